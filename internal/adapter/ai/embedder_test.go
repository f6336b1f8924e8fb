package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

func testAIConfig() config.Config {
	return config.Config{
		AppEnv:                   "test",
		AIBackoffMaxElapsedTime:  2000000000,
		AIBackoffInitialInterval: 1000000,
		AIBackoffMaxInterval:     2000000,
		AIBackoffMultiplier:      2.0,
	}
}

func TestEmbedderClient_Embed_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Text)
		_ = json.NewEncoder(w).Encode(embedResponse{Vector: []float32{0.1, 0.2, 0.3}, Dim: 3})
	}))
	defer ts.Close()

	c := NewEmbedderClient(ts.URL, testAIConfig())
	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedderClient_Embed_EmptyTextIsBadInput(t *testing.T) {
	c := NewEmbedderClient("http://unused", testAIConfig())
	_, err := c.Embed(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestEmbedderClient_Embed_UpstreamFailureIsBackendFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewEmbedderClient(ts.URL, testAIConfig())
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrBackendFailure)
}
