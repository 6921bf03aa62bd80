package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "error.log")

	logger := NewLogger(tmpFile)

	logger.LogError("unjobs", errors.New("test error"))
	logger.LogError("untalent", errors.New("second error"))

	data, err := os.ReadFile(tmpFile)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "[unjobs] test error")
	assert.Contains(t, string(data), "[untalent] second error")

	// Info messages go to the structured logger only
	logger.LogInfo("Test info message: %s", "hello")
}

func TestLoggerWithoutFile(t *testing.T) {
	logger := NewLogger("")
	assert.NotPanics(t, func() {
		logger.LogError("careersun", errors.New("boom"))
	})
}
