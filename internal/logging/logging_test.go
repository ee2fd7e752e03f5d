package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name           string
		verbose, quiet bool
		want           zapcore.Level
	}{
		{"default", false, false, zapcore.InfoLevel},
		{"verbose", true, false, zapcore.DebugLevel},
		{"quiet", false, true, zapcore.ErrorLevel},
		{"verbose wins", true, true, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Level(tt.verbose, tt.quiet))
		})
	}
}

func TestNew(t *testing.T) {
	l, err := New(zapcore.WarnLevel)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}
