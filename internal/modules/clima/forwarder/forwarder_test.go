package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"clima-relay/internal/config"
	"clima-relay/internal/logging"
	"clima-relay/internal/modules/clima/types"
)

type captured struct {
	method      string
	path        string
	contentType string
	body        []byte
}

type stubDownstream struct {
	mu       sync.Mutex
	requests []captured
	status   int
}

func (s *stubDownstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, captured{
		method:      r.Method,
		path:        r.URL.Path,
		contentType: r.Header.Get("Content-Type"),
		body:        body,
	})
	status := s.status
	s.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (s *stubDownstream) snapshot() []captured {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]captured(nil), s.requests...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitAll(t *testing.T, f *Forwarder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}

var sample = types.Observation{Name: "Villa Nueva", Temperatura: 24, Humedad: 71, Clima: "Nublado"}

func TestNew_Target(t *testing.T) {
	f := New(config.ForwardConfig{BaseURL: "http://sink:8080"}, nil, discardLogger())
	if got := f.Target(); got != "http://sink:8080/clima" {
		t.Fatalf("Target() = %q; want %q", got, "http://sink:8080/clima")
	}
	if got := f.Status().Target; got != "http://sink:8080/clima" {
		t.Fatalf("Status().Target = %q", got)
	}
}

func TestForward_DeliversOnce(t *testing.T) {
	stub := &stubDownstream{}
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	f := New(config.ForwardConfig{BaseURL: ts.URL, Timeout: time.Second}, ts.Client(), discardLogger())
	f.Forward(context.Background(), sample)
	waitAll(t, f)

	reqs := stub.snapshot()
	if len(reqs) != 1 {
		t.Fatalf("downstream saw %d requests; want 1", len(reqs))
	}
	got := reqs[0]
	if got.method != http.MethodPost || got.path != "/clima" {
		t.Errorf("request = %s %s; want POST /clima", got.method, got.path)
	}
	if got.contentType != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", got.contentType)
	}
	var obs types.Observation
	if err := json.Unmarshal(got.body, &obs); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if obs != sample {
		t.Errorf("payload = %+v; want %+v", obs, sample)
	}

	st := f.Status()
	if st.Attempted != 1 || st.Succeeded != 1 || st.Failed != 0 || st.InFlight != 0 {
		t.Errorf("status = %+v", st)
	}
	if st.LastStatusCode != http.StatusOK || st.LastSuccessAt == nil || st.LastError != "" {
		t.Errorf("status = %+v", st)
	}
}

func TestForward_CancelledRequestContextStillDelivers(t *testing.T) {
	stub := &stubDownstream{}
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	f := New(config.ForwardConfig{BaseURL: ts.URL}, ts.Client(), discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.Forward(ctx, sample)
	waitAll(t, f)

	if n := len(stub.snapshot()); n != 1 {
		t.Fatalf("downstream saw %d requests; want 1", n)
	}
}

func TestForward_NonSuccessStatusCountsAsFailure(t *testing.T) {
	stub := &stubDownstream{status: http.StatusServiceUnavailable}
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	f := New(config.ForwardConfig{BaseURL: ts.URL}, ts.Client(), discardLogger())
	f.Forward(context.Background(), sample)
	waitAll(t, f)

	st := f.Status()
	if st.Failed != 1 || st.Succeeded != 0 {
		t.Fatalf("status = %+v; want one failure", st)
	}
	if st.LastStatusCode != http.StatusServiceUnavailable {
		t.Errorf("LastStatusCode = %d; want %d", st.LastStatusCode, http.StatusServiceUnavailable)
	}
}

func TestForward_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	f := New(config.ForwardConfig{BaseURL: base, Timeout: time.Second}, nil, discardLogger())
	f.Forward(context.Background(), sample)
	waitAll(t, f)

	st := f.Status()
	if st.Attempted != 1 || st.Failed != 1 || st.InFlight != 0 {
		t.Fatalf("status = %+v; want one failed attempt", st)
	}
	if st.LastStatusCode != 0 || st.LastError == "" {
		t.Errorf("status = %+v; want transport error recorded", st)
	}
}

func TestForward_LogsCarryRequestID(t *testing.T) {
	stub := &stubDownstream{status: http.StatusServiceUnavailable}
	ts := httptest.NewServer(stub)
	t.Cleanup(ts.Close)

	var buf bytes.Buffer
	logger := slog.New(logging.NewContextHandler(slog.NewJSONHandler(&buf, nil)))
	f := New(config.ForwardConfig{BaseURL: ts.URL}, ts.Client(), logger)

	f.Forward(logging.WithRequestID(context.Background(), "req-9"), sample)
	waitAll(t, f)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "forward failed" || rec[logging.RequestIDKey] != "req-9" {
		t.Fatalf("log record = %v; want forward failed with request_id=req-9", rec)
	}
}

func TestForward_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(ts.Close)
	t.Cleanup(func() { close(release) })

	f := New(config.ForwardConfig{BaseURL: ts.URL, Timeout: 50 * time.Millisecond}, ts.Client(), discardLogger())
	f.Forward(context.Background(), sample)
	waitAll(t, f)

	st := f.Status()
	if st.Failed != 1 {
		t.Fatalf("status = %+v; want the hung request to fail", st)
	}
}

func TestWait_RespectsContext(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(ts.Close)

	f := New(config.ForwardConfig{BaseURL: ts.URL}, ts.Client(), discardLogger())
	f.Forward(context.Background(), sample)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v; want deadline exceeded", err)
	}
	if st := f.Status(); st.InFlight != 1 {
		t.Errorf("InFlight = %d; want 1", st.InFlight)
	}

	close(release)
	waitAll(t, f)
}

func TestStatusError(t *testing.T) {
	err := &StatusError{Code: http.StatusBadGateway}
	if got := err.Error(); got != "downstream responded 502 Bad Gateway" {
		t.Fatalf("Error() = %q", got)
	}
}
