package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBufferLogger(t *testing.T) {
	logger, buf := NewBufferLogger()
	assert.Nil(t, buf.Lines())

	logger.Debug("first", "n", 1)
	logger.Info("second")

	lines := buf.Lines()
	if assert.Len(t, lines, 2) {
		assert.Equal(t, `level=DEBUG msg=first n=1`, lines[0])
		assert.Equal(t, `level=INFO msg=second`, lines[1])
	}
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger(t)
	assert.True(t, logger.Enabled(t.Context(), -4))
	logger.Debug("visible with -v")
}
