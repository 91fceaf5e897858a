package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("info level by default", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, false, true)

		assert.False(t, log.Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
	})

	t.Run("verbose enables debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, true, true)

		assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
	})

	t.Run("json handler emits json lines", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, false, true)

		log.Info("sync started", "workspace", "acme")

		assert.Contains(t, buf.String(), `"workspace":"acme"`)
	})
}
