package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"clima-relay/internal/config"
)

type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// Runner posts generated observations to {target}/clima, paced by a token
// bucket.
type Runner struct {
	client    *http.Client
	target    string
	limiter   *rate.Limiter
	count     int
	generator *Generator
	logger    *slog.Logger
}

func NewRunner(cfg config.LoadgenConfig, client *http.Client, gen *Generator, logger *slog.Logger) *Runner {
	if client == nil {
		client = http.DefaultClient
	}
	return &Runner{
		client:    client,
		target:    cfg.TargetURL + "/clima",
		limiter:   rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst),
		count:     cfg.Count,
		generator: gen,
		logger:    logger,
	}
}

// Run sends until count requests are done (count 0 means until ctx ends).
// Cancellation or deadline of ctx ends the run without an error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	for r.count == 0 || res.Sent+res.Failed < r.count {
		if err := r.limiter.Wait(ctx); err != nil {
			// Wait also fails early when the next token lands past ctx's deadline.
			if _, hasDeadline := ctx.Deadline(); hasDeadline || ctx.Err() != nil {
				return res, nil
			}
			return res, fmt.Errorf("rate limiter: %w", err)
		}

		obs := r.generator.Next()
		if err := r.post(ctx, obs); err != nil {
			if ctx.Err() != nil {
				return res, nil
			}
			res.Failed++
			r.logger.Warn("load request failed", "name", obs.Name, "error", err)
			continue
		}
		res.Sent++
		r.logger.Debug("load request sent", "name", obs.Name, "sent", res.Sent)
	}
	return res, nil
}

func (r *Runner) post(ctx context.Context, obs any) error {
	body, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
