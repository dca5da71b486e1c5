package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestConfig(t *testing.T) {
	c := Config(zapcore.WarnLevel, "0b6c4c1e-5a4e-4c2b-9d0e-1f6e4b4b2a10")

	assert.Equal(t, zapcore.WarnLevel, c.Level.Level())
	assert.Equal(t, "console", c.Encoding)
	assert.Equal(t, map[string]any{"run": "0b6c4c1e-5a4e-4c2b-9d0e-1f6e4b4b2a10"}, c.InitialFields)

	assert.Nil(t, Config(zapcore.InfoLevel, "").InitialFields)
}
