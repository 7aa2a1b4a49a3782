// File: internal/observability/trail.go
package observability

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Trail captures the human-readable log lines of one submission attempt so
// they can be returned with its result, alongside the normal log sinks.
type Trail struct {
	mu    sync.Mutex
	lines []string
	core  zapcore.Core
}

// NewTrail creates a trail recording entries at or above level.
func NewTrail(level zapcore.LevelEnabler) *Trail {
	t := &Trail{}
	encCfg := zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	t.core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(trailWriter{t}), level)
	return t
}

// Attach returns a logger that writes to both logger's sinks and the trail.
func (t *Trail) Attach(logger *zap.Logger) *zap.Logger {
	return logger.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, t.core)
	}))
}

// Lines returns a copy of the recorded lines.
func (t *Trail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

type trailWriter struct{ t *Trail }

func (w trailWriter) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	w.t.mu.Lock()
	w.t.lines = append(w.t.lines, line)
	w.t.mu.Unlock()
	return len(p), nil
}
