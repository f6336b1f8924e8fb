package asynqq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueLLM_NamesByReplica(t *testing.T) {
	assert.Equal(t, "q_llm_0", QueueLLM(0))
	assert.Equal(t, "q_llm_2", QueueLLM(2))
	assert.NotEqual(t, QueueLLM(0), QueueLLM(1))
}

func TestParseRedisURI_Valid(t *testing.T) {
	opt, err := ParseRedisURI("redis://localhost:6379/0")
	require.NoError(t, err)
	assert.NotNil(t, opt)
}

func TestParseRedisURI_Invalid(t *testing.T) {
	_, err := ParseRedisURI("not-a-uri")
	assert.Error(t, err)
}

func TestNew_BuildsQueueFromConnOpt(t *testing.T) {
	opt, err := ParseRedisURI("redis://localhost:6379/0")
	require.NoError(t, err)
	q := New(opt)
	require.NotNil(t, q)
	defer func() { _ = q.Close() }()
}
