// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	AppEnv string `env:"APP_ENV" envDefault:"dev"`
	Port   int    `env:"PORT" envDefault:"8080"`

	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	QdrantURL       string `env:"QDRANT_URL" envDefault:"http://localhost:6333"`
	QdrantAPIKey    string `env:"QDRANT_API_KEY"`
	QdrantCollection string `env:"QDRANT_COLLECTION" envDefault:"rag_documents"`

	EmbedderURL string `env:"EMBEDDER_URL" envDefault:"http://localhost:8001/encode"`
	LLMURL      string `env:"LLM_URL" envDefault:"http://localhost:11434/api/generate"`
	LLMModel    string `env:"LLM_MODEL" envDefault:"llama3"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"rag-serving-backend"`

	CORSAllowOrigins      string        `env:"CORS_ALLOW_ORIGINS" envDefault:"*"`
	RateLimitPerMin       int           `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"65s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"60s"`

	// RAG pipeline configuration (spec §6).
	ReplicaCount    int           `env:"REPLICA_COUNT" envDefault:"3"`
	TopK            int           `env:"TOP_K" envDefault:"5"`
	EmbedDim        int           `env:"EMBED_DIM" envDefault:"384"`
	PollIntervalMS  int           `env:"POLL_INTERVAL_MS" envDefault:"250"`
	JobTimeoutS     int           `env:"JOB_TIMEOUT_S" envDefault:"60"`
	LLMTimeoutS     int           `env:"LLM_TIMEOUT_S" envDefault:"30"`
	EncodeTimeoutS  int           `env:"ENCODE_TIMEOUT_S" envDefault:"10"`
	QueueRecvTimeoutS int         `env:"QUEUE_RECV_TIMEOUT_S" envDefault:"5"`

	// ReplicaIndex identifies which generator replica this process embodies
	// (0-based, < ReplicaCount). Only meaningful to cmd/generator, which
	// consumes exactly the Q_llm shard for this index.
	ReplicaIndex int `env:"REPLICA_INDEX" envDefault:"0"`

	// DQN / RL policy configuration (spec §4.6).
	BatchSize        int           `env:"BATCH_SIZE" envDefault:"64"`
	Gamma            float64       `env:"GAMMA" envDefault:"0.99"`
	EpsilonStart     float64       `env:"EPSILON_START" envDefault:"1.0"`
	EpsilonEnd       float64       `env:"EPSILON_END" envDefault:"0.01"`
	EpsilonDecay     float64       `env:"EPSILON_DECAY" envDefault:"0.995"`
	TargetSyncSteps  int64         `env:"TARGET_SYNC_STEPS" envDefault:"100"`
	CheckpointSteps  int64         `env:"CHECKPOINT_STEPS" envDefault:"500"`
	BufferCapacity   int           `env:"BUFFER_CAPACITY" envDefault:"10000"`
	HiddenSize       int           `env:"HIDDEN_SIZE" envDefault:"128"`
	LearningRate     float64       `env:"LEARNING_RATE" envDefault:"0.001"`
	GradClipNorm     float64       `env:"GRAD_CLIP_NORM" envDefault:"1.0"`
	CheckpointPath   string        `env:"CHECKPOINT_PATH" envDefault:"./data/policy_checkpoint.json"`
	TrainerInterval  time.Duration `env:"TRAINER_INTERVAL" envDefault:"60s"`
	TrainerIterations int          `env:"TRAINER_ITERATIONS" envDefault:"10"`

	// Load tester configuration (spec §4.8).
	LoadTestConcurrency int    `env:"LOAD_TEST_CONCURRENCY" envDefault:"50"`
	LoadTestTargetURL   string `env:"LOAD_TEST_TARGET_URL" envDefault:"http://localhost:8080/query"`

	// AI backend retry/backoff configuration, grounded on the teacher's
	// AI-client backoff fields.
	AIBackoffMaxElapsedTime  time.Duration `env:"AI_BACKOFF_MAX_ELAPSED_TIME" envDefault:"30s"`
	AIBackoffInitialInterval time.Duration `env:"AI_BACKOFF_INITIAL_INTERVAL" envDefault:"500ms"`
	AIBackoffMaxInterval     time.Duration `env:"AI_BACKOFF_MAX_INTERVAL" envDefault:"5s"`
	AIBackoffMultiplier      float64       `env:"AI_BACKOFF_MULTIPLIER" envDefault:"2.0"`
}

// Load parses environment variables into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	return cfg, nil
}

// IsDev reports whether the app is running in development mode.
func (c Config) IsDev() bool { return strings.ToLower(c.AppEnv) == "dev" }

// IsProd reports whether the app is running in production mode.
func (c Config) IsProd() bool { return strings.ToLower(c.AppEnv) == "prod" }

// IsTest reports whether the app is running in test mode.
func (c Config) IsTest() bool { return strings.ToLower(c.AppEnv) == "test" }

// GetAIBackoffConfig returns backoff configuration appropriate for the current environment.
// In test environments, uses much shorter timeouts for faster test execution.
func (c Config) GetAIBackoffConfig() (maxElapsedTime, initialInterval, maxInterval time.Duration, multiplier float64) {
	if c.IsTest() {
		return 2 * time.Second, 10 * time.Millisecond, 200 * time.Millisecond, 2.0
	}
	return c.AIBackoffMaxElapsedTime, c.AIBackoffInitialInterval, c.AIBackoffMaxInterval, c.AIBackoffMultiplier
}

// JobTimeout returns the end-to-end ingress deadline as a time.Duration.
func (c Config) JobTimeout() time.Duration { return time.Duration(c.JobTimeoutS) * time.Second }

// LLMTimeout returns the per-LLM-call deadline as a time.Duration.
func (c Config) LLMTimeout() time.Duration { return time.Duration(c.LLMTimeoutS) * time.Second }

// EncodeTimeout returns the per-embed-call deadline as a time.Duration.
func (c Config) EncodeTimeout() time.Duration { return time.Duration(c.EncodeTimeoutS) * time.Second }

// PollInterval returns the completion polling cadence as a time.Duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// QueueRecvTimeout returns the worker blocking-receive timeout.
func (c Config) QueueRecvTimeout() time.Duration {
	return time.Duration(c.QueueRecvTimeoutS) * time.Second
}
