package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"clima-relay/internal/config"
	"clima-relay/internal/modules/usuarios/types"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen :0: %v", err)
	}
	defer ln.Close()

	return ln.Addr().String()
}

func waitForOK(t *testing.T, url string, timeout time.Duration) {
	t.Helper()

	client := &http.Client{Timeout: time.Second}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("server not healthy after %s: %s", timeout, url)
}

// start runs fn in the background and returns a stop func that cancels it
// and returns its error.
func start(t *testing.T, fn func(context.Context, config.Config) error, cfg config.Config) func() error {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- fn(ctx, cfg) }()

	waitForOK(t, "http://"+cfg.HTTPAddr+"/health", 5*time.Second)

	stopped := false
	stop := func() error {
		stopped = true
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(15 * time.Second):
			t.Fatal("server did not stop")
			return nil
		}
	}
	t.Cleanup(func() {
		if !stopped {
			_ = stop()
		}
	})
	return stop
}

func baseConfig(t *testing.T) config.Config {
	return config.Config{
		AppEnv:   "dev",
		LogLevel: slog.LevelInfo,
		HTTPAddr: pickFreeAddr(t),
		Forward:  config.ForwardConfig{Timeout: time.Second},
		Users:    config.UsersConfig{Store: "memory", PersistCreates: true},
		DB:       config.DBConfig{Driver: "sqlite3", Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1},
		Broker:   config.BrokerConfig{Kind: "log"},
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

const observation = `{"name":"Amatitlán","temperatura":26,"humedad":58,"clima":"Soleado"}`

func TestRunEcho(t *testing.T) {
	cfg := baseConfig(t)
	stop := start(t, RunEcho, cfg)

	resp := postJSON(t, "http://"+cfg.HTTPAddr+"/clima", observation)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["mensaje"] != "Datos de Amatitlán recibidos correctamente" {
		t.Fatalf("mensaje=%v", body["mensaje"])
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunEcho() = %v; want context.Canceled", err)
	}
}

func TestRunRelay_ForwardsAndDrains(t *testing.T) {
	var received atomic.Int32
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		received.Add(1)
	}))
	t.Cleanup(downstream.Close)

	cfg := baseConfig(t)
	cfg.Forward.BaseURL = downstream.URL
	stop := start(t, RunRelay, cfg)

	resp := postJSON(t, "http://"+cfg.HTTPAddr+"/clima", observation)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
	if b, _ := io.ReadAll(resp.Body); len(b) != 0 {
		t.Fatalf("body=%q want empty", b)
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunRelay() = %v; want context.Canceled", err)
	}
	if received.Load() != 1 {
		t.Fatalf("downstream received %d observations; want 1 after shutdown drain", received.Load())
	}
}

func TestRunRelay_UnreachableDownstream(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Forward.BaseURL = "http://" + pickFreeAddr(t)
	start(t, RunRelay, cfg)

	resp := postJSON(t, "http://"+cfg.HTTPAddr+"/clima", observation)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		r, err := http.Get("http://" + cfg.HTTPAddr + "/forwarding/status")
		if err != nil {
			t.Fatalf("GET status: %v", err)
		}
		var st struct {
			Failed uint64 `json:"failed"`
		}
		_ = json.NewDecoder(r.Body).Decode(&st)
		_ = r.Body.Close()
		if st.Failed == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("forwarding status never recorded the failure")
}

func TestRunUsuarios(t *testing.T) {
	tests := []struct {
		name        string
		store       string
		persist     bool
		wantAfterPo int
	}{
		{name: "memory persisted", store: "memory", persist: true, wantAfterPo: 3},
		{name: "memory snapshot", store: "memory", persist: false, wantAfterPo: 2},
		{name: "sqlite persisted", store: "sqlite", persist: true, wantAfterPo: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(t)
			cfg.Users = config.UsersConfig{Store: tt.store, PersistCreates: tt.persist}
			start(t, RunUsuarios, cfg)
			base := "http://" + cfg.HTTPAddr

			list := func() []types.User {
				resp, err := http.Get(base + "/usuarios")
				if err != nil {
					t.Fatalf("GET /usuarios: %v", err)
				}
				defer resp.Body.Close()
				var users []types.User
				if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
					t.Fatalf("decode: %v", err)
				}
				return users
			}

			seeded := list()
			if len(seeded) != 2 || seeded[0] != types.SeedUsers()[0] || seeded[1] != types.SeedUsers()[1] {
				t.Fatalf("initial users = %+v", seeded)
			}

			resp := postJSON(t, base+"/usuarios", `{"id":3,"nombre":"Maria","email":"maria@email.com"}`)
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("create status=%d", resp.StatusCode)
			}

			if got := list(); len(got) != tt.wantAfterPo {
				t.Fatalf("users after create = %d; want %d", len(got), tt.wantAfterPo)
			}
		})
	}
}

func TestRunSink_LogBroker(t *testing.T) {
	cfg := baseConfig(t)
	start(t, RunSink, cfg)

	resp := postJSON(t, "http://"+cfg.HTTPAddr+"/clima", observation)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}
}

func TestServeHTTP_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := baseConfig(t)
	cfg.HTTPAddr = ln.Addr().String()

	err = serveHTTP(context.Background(), cfg, http.NewServeMux(), nil)
	if err == nil {
		t.Fatal("serveHTTP() on a busy address = nil; want error")
	}
}

func TestRunLoadgen(t *testing.T) {
	var hits atomic.Int32
	target := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	t.Cleanup(target.Close)

	cfg := baseConfig(t)
	cfg.Loadgen = config.LoadgenConfig{TargetURL: target.URL, Rate: 500, Burst: 5, Count: 4}

	if err := RunLoadgen(context.Background(), cfg); err != nil {
		t.Fatalf("RunLoadgen() = %v", err)
	}
	if hits.Load() != 4 {
		t.Fatalf("target saw %d requests; want 4", hits.Load())
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	_, port, err := net.SplitHostPort(pickFreeAddr(t))
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	return n
}

func waitForServing(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()
	hc := healthpb.NewHealthClient(conn)

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{})
		cancel()
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("grpc server not serving after %s: %s", timeout, addr)
}

func TestRunSink_GRPCBroker(t *testing.T) {
	tweetsCfg := baseConfig(t)
	tweetsCfg.Tweets.Port = freePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- RunTweets(ctx, tweetsCfg) }()

	grpcAddr := net.JoinHostPort("127.0.0.1", strconv.Itoa(tweetsCfg.Tweets.Port))
	waitForServing(t, grpcAddr, 5*time.Second)

	sinkCfg := baseConfig(t)
	sinkCfg.Broker = config.BrokerConfig{Kind: "grpc", GRPCServerAddr: grpcAddr, GRPCTimeout: 2 * time.Second}
	stopSink := start(t, RunSink, sinkCfg)

	resp := postJSON(t, "http://"+sinkCfg.HTTPAddr+"/clima", observation)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d want=%d", resp.StatusCode, http.StatusOK)
	}

	resp = postJSON(t, "http://"+sinkCfg.HTTPAddr+"/clima", `{"name":"Mixco","temperatura":20,"humedad":60,"clima":""}`)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("incomplete tweet status=%d want=%d", resp.StatusCode, http.StatusBadGateway)
	}

	if err := stopSink(); !errors.Is(err, context.Canceled) {
		t.Fatalf("RunSink() = %v; want context.Canceled", err)
	}
	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("RunTweets() = %v; want context.Canceled", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("RunTweets did not stop")
	}
}

func TestRunTweets_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "0.0.0.0:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := baseConfig(t)
	cfg.Tweets.Port = ln.Addr().(*net.TCPAddr).Port
	if err := RunTweets(context.Background(), cfg); err == nil {
		t.Fatal("RunTweets() on a busy port = nil; want error")
	}
}

func TestRunConsumer_LogBrokerRejected(t *testing.T) {
	if err := RunConsumer(context.Background(), baseConfig(t)); err == nil {
		t.Fatal("RunConsumer() with log broker = nil; want error")
	}
}
