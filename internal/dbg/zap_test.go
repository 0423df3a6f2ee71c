package dbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("warn", true)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))

	_, err = NewLogger("loud", false)
	assert.Error(t, err)

	assert.True(t, NewDevLogger().Core().Enabled(zap.DebugLevel))
	assert.False(t, NewProdLogger().Core().Enabled(zap.DebugLevel))
}
