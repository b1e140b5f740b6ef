package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"clima-relay/internal/config"
	"clima-relay/internal/modules/clima/types"
)

const drainLimit = 64 << 10

// Status is a point-in-time view of forwarding outcomes.
type Status struct {
	Target         string     `json:"target"`
	Attempted      uint64     `json:"attempted"`
	Succeeded      uint64     `json:"succeeded"`
	Failed         uint64     `json:"failed"`
	InFlight       int        `json:"in_flight"`
	LastStatusCode int        `json:"last_status_code,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	LastSuccessAt  *time.Time `json:"last_success_at,omitempty"`
}

// StatusError reports a downstream answer outside 2xx.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream responded %d %s", e.Code, http.StatusText(e.Code))
}

// Forwarder posts observations to {base}/clima in the background. Outcomes
// are logged and counted, never returned to the caller that handed the
// observation over.
type Forwarder struct {
	client  *http.Client
	target  string
	timeout time.Duration
	logger  *slog.Logger

	wg sync.WaitGroup

	mu     sync.Mutex
	status Status
	now    func() time.Time
}

// New builds a Forwarder for cfg.BaseURL. A nil client means http.DefaultClient.
func New(cfg config.ForwardConfig, client *http.Client, logger *slog.Logger) *Forwarder {
	if client == nil {
		client = http.DefaultClient
	}
	target := cfg.BaseURL + "/clima"
	return &Forwarder{
		client:  client,
		target:  target,
		timeout: cfg.Timeout,
		logger:  logger,
		status:  Status{Target: target},
		now:     time.Now,
	}
}

func (f *Forwarder) Target() string {
	return f.target
}

// Forward starts one delivery attempt and returns immediately. The attempt
// outlives ctx's cancellation but keeps its values.
func (f *Forwarder) Forward(ctx context.Context, obs types.Observation) {
	ctx = context.WithoutCancel(ctx)
	f.begin()
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()

		code, err := f.send(ctx, obs)
		f.finish(code, err)
		if err != nil {
			f.logger.ErrorContext(ctx, "forward failed",
				"target", f.target,
				"name", obs.Name,
				"status", code,
				"error", err,
			)
			return
		}
		f.logger.InfoContext(ctx, "observation forwarded",
			"target", f.target,
			"name", obs.Name,
			"status", code,
		)
	}()
}

func (f *Forwarder) send(ctx context.Context, obs types.Observation) (int, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	body, err := json.Marshal(obs)
	if err != nil {
		return 0, fmt.Errorf("encode observation: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.target, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post %s: %w", f.target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, drainLimit))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}
	return resp.StatusCode, nil
}

func (f *Forwarder) begin() {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	f.status.Attempted++
	f.status.InFlight++
	f.status.LastAttemptAt = &now
}

func (f *Forwarder) finish(code int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.InFlight--
	f.status.LastStatusCode = code
	if err != nil {
		f.status.Failed++
		f.status.LastError = err.Error()
		return
	}
	now := f.now()
	f.status.Succeeded++
	f.status.LastError = ""
	f.status.LastSuccessAt = &now
}

func (f *Forwarder) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Wait blocks until every started forward has finished or ctx is done.
func (f *Forwarder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
