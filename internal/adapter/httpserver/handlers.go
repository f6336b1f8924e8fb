package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// QueryService is the narrow interface Server depends on to run a RAG
// query; satisfied by *internal/usecase.Orchestrator.
type QueryService interface {
	Query(ctx domain.Context, text string) (jobID, answer string, latencyMS int64, replica string, err error)
}

// Server aggregates the RAG ingress HTTP handlers' dependencies.
type Server struct {
	Cfg         config.Config
	Query       QueryService
	ReadyChecks map[string]func(ctx context.Context) error
}

// NewServer constructs an HTTP server wired to the orchestrator and a set
// of named readiness probes (e.g. "redis", "qdrant").
func NewServer(cfg config.Config, query QueryService, readyChecks map[string]func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Query: query, ReadyChecks: readyChecks}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

type queryRequest struct {
	Text string `json:"text" validate:"required,min=1"`
}

type queryResponse struct {
	JobID      string `json:"job_id"`
	Answer     string `json:"answer"`
	LatencyMS  int64  `json:"latency_ms"`
	Replica    string `json:"replica"`
}

// QueryHandler implements POST /query (spec §6's external interface).
func (s *Server) QueryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "BAD_INPUT", Message: "not acceptable"}})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrBadInput), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			verrs := map[string]string{}
			var ve validator.ValidationErrors
			if errors.As(err, &ve) {
				for _, fe := range ve {
					verrs[strings.ToLower(fe.Field())] = fe.Tag()
				}
			}
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrBadInput), verrs)
			return
		}

		text := sanitizeQueryText(req.Text)
		if text == "" {
			writeError(w, r, fmt.Errorf("%w: text required", domain.ErrBadInput), nil)
			return
		}

		jobID, answer, latencyMS, replica, err := s.Query.Query(r.Context(), text)
		if err != nil {
			writeError(w, r, err, map[string]string{"job_id": jobID})
			return
		}
		writeJSON(w, http.StatusOK, queryResponse{JobID: jobID, Answer: answer, LatencyMS: latencyMS, Replica: replica})
	}
}

// HealthzHandler is a liveness probe: always 200 once the process is up.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// ReadyzHandler runs every configured readiness probe and reports 503 if
// any fails, per the teacher's multi-dependency readiness pattern.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := make([]check, 0, len(s.ReadyChecks))
		ok := true
		for name, fn := range s.ReadyChecks {
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
				ok = false
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]any{"checks": checks})
	}
}

// MetricsHandler exposes the Prometheus registry (spec's GET /metrics).
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.Handler()
}
