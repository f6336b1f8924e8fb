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

// LLMClient implements domain.LLMClient over the Ollama-style contract of
// spec §6: POST {url} {model, prompt, stream:false, options:{temperature,
// num_predict}} -> {response, model}.
type LLMClient struct {
	url         string
	model       string
	temperature float64
	numPredict  int
	httpClient  *http.Client
	backoffCfg  config.Config
	breaker     *obsctx.CircuitBreaker
}

// NewLLMClient constructs an LLMClient pointed at url for model. Its
// circuit breaker trips after 5 consecutive failures, same policy as
// EmbedderClient, so a down LLM backend fails generator dispatches fast
// instead of stalling every in-flight query on the full backoff budget.
func NewLLMClient(url, model string, cfg config.Config) *LLMClient {
	transport := otelhttp.NewTransport(http.DefaultTransport,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return fmt.Sprintf("LLM %s", r.Method)
		}),
	)
	return &LLMClient{
		url:         url,
		model:       model,
		temperature: 0.2,
		numPredict:  512,
		httpClient:  &http.Client{Timeout: cfg.LLMTimeout(), Transport: transport},
		backoffCfg:  cfg,
		breaker:     obsctx.NewCircuitBreaker(5, 30*time.Second, 0.5),
	}
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

// Generate invokes the LLM with prompt and returns the raw response text.
// Retries transient failures with exponential backoff; a persistent
// failure is reported as domain.ErrBackendFailure so the generator worker
// can write a {success:false, error} completion record.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("op=ai.Generate: %w", domain.ErrBadInput)
	}
	if !c.breaker.CanExecute() {
		return "", fmt.Errorf("op=ai.Generate: %w: circuit breaker open", domain.ErrUpstreamUnavailable)
	}

	maxElapsed, initial, maxInterval, multiplier := c.backoffCfg.GetAIBackoffConfig()
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = initial
	bo.MaxInterval = maxInterval
	bo.Multiplier = multiplier
	bo.MaxElapsedTime = maxElapsed
	boCtx := backoff.WithContext(bo, ctx)

	var response string
	op := func() error {
		start := time.Now()
		r, err := c.doGenerate(ctx, prompt)
		observability.AIRequestsTotal.WithLabelValues("llm", "generate").Inc()
		observability.AIRequestDuration.WithLabelValues("llm", "generate").Observe(time.Since(start).Seconds())
		if err != nil {
			return err
		}
		response = r
		return nil
	}
	if err := backoff.Retry(op, boCtx); err != nil {
		c.breaker.RecordFailure()
		return "", fmt.Errorf("op=ai.Generate: %w: %v", domain.ErrBackendFailure, err)
	}
	c.breaker.RecordSuccess()
	return response, nil
}

func (c *LLMClient) doGenerate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.temperature,
			NumPredict:  c.numPredict,
		},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm status %d", resp.StatusCode)
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Response, nil
}
