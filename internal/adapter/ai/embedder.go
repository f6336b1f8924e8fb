// Package ai provides HTTP clients for the two black-box AI backends named
// in spec §1/§6: the embedding backend consumed by the encoder worker, and
// the LLM backend consumed by the generator worker.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
	obsctx "github.com/fairyhunter13/ai-cv-evaluator/internal/observability"
)

// EmbedderClient implements domain.Embedder over a small HTTP contract:
// POST {url} {"text": "..."} -> {"vector": [...], "dim": N}, grounded on
// original_source/services/encoder_service/app.py's /encode endpoint.
type EmbedderClient struct {
	url        string
	httpClient *http.Client
	backoffCfg config.Config
	breaker    *obsctx.CircuitBreaker
}

// NewEmbedderClient constructs an EmbedderClient pointed at url. It trips a
// circuit breaker after 5 consecutive failures and holds it open for 30s
// before allowing a trial request through, so a down embedder backend fails
// fast instead of exhausting the backoff budget on every request.
func NewEmbedderClient(url string, cfg config.Config) *EmbedderClient {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("Embedder %s", r.Method)
		}),
	)
	return &EmbedderClient{
		url:        url,
		httpClient: &http.Client{Timeout: cfg.EncodeTimeout(), Transport: transport},
		backoffCfg: cfg,
		breaker:    obsctx.NewCircuitBreaker(5, 30*time.Second, 0.5),
	}
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
	Dim    int       `json:"dim"`
}

// Embed returns the embedding vector for text, retrying transient failures
// with exponential backoff per the configured AI backoff policy.
func (c *EmbedderClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("op=ai.Embed: %w", domain.ErrBadInput)
	}
	if !c.breaker.CanExecute() {
		return nil, fmt.Errorf("op=ai.Embed: %w: circuit breaker open", domain.ErrUpstreamUnavailable)
	}

	maxElapsed, initial, maxInterval, multiplier := c.backoffCfg.GetAIBackoffConfig()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = maxInterval
	bo.Multiplier = multiplier
	bo.MaxElapsedTime = maxElapsed
	boCtx := backoff.WithContext(bo, ctx)

	var vec []float32
	op := func() error {
		start := time.Now()
		v, err := c.doEmbed(ctx, text)
		observability.AIRequestsTotal.WithLabelValues("embedder", "embed").Inc()
		observability.AIRequestDuration.WithLabelValues("embedder", "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		vec = v
		return nil
	}
	if err := backoff.Retry(op, boCtx); err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("op=ai.Embed: %w: %v", domain.ErrBackendFailure, err)
	}
	c.breaker.RecordSuccess()
	return vec, nil
}

func (c *EmbedderClient) doEmbed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedder status %d", resp.StatusCode)
	}
	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Vector, nil
}
