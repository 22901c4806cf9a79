package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLLMCallTimeouts(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, 2*time.Minute, config.Gemini.CallTimeout())
	assert.Equal(t, 2*time.Minute, config.Claude.CallTimeout())
}

func TestCallTimeout_ParsesConfiguredValue(t *testing.T) {
	gemini := GeminiConfig{Timeout: "45s"}
	assert.Equal(t, 45*time.Second, gemini.CallTimeout())

	claude := ClaudeConfig{Timeout: "90s"}
	assert.Equal(t, 90*time.Second, claude.CallTimeout())
}

func TestCallTimeout_FallsBackOnBadValue(t *testing.T) {
	gemini := GeminiConfig{Timeout: "not-a-duration"}
	assert.Equal(t, 2*time.Minute, gemini.CallTimeout())

	gemini.Timeout = "-10s"
	assert.Equal(t, 2*time.Minute, gemini.CallTimeout())

	claude := ClaudeConfig{}
	assert.Equal(t, 2*time.Minute, claude.CallTimeout())
}

func TestValidate_RejectsBadLLMTimeout(t *testing.T) {
	config := NewDefaultConfig()
	config.Gemini.Timeout = "soon"

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini.timeout")

	config = NewDefaultConfig()
	config.Claude.Timeout = "later"
	err = config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude.timeout")
}
