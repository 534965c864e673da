package logging

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type lineRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *lineRecorder) sink(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func TestTee_WritesLevelledLines(t *testing.T) {
	rec := &lineRecorder{}
	log := Tee(NewNop(), rec.sink)

	log.Debug("hidden")
	log.Info("page done", Int("records", 12))
	log.Warn("record dropped", String("reason", "bad phone"))
	log.Error("unit failed", Error(errors.New("timeout")))

	lines := rec.all()
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "INFO page done")
	assert.Contains(t, lines[0], `"records": 12`)
	assert.Contains(t, lines[1], "WARN record dropped")
	assert.Contains(t, lines[2], "ERROR unit failed")
	assert.Contains(t, lines[2], "timeout")
	for _, l := range lines {
		assert.NotContains(t, l, "\n")
	}
}

func TestTee_KeepsContextFields(t *testing.T) {
	rec := &lineRecorder{}
	log := Tee(NewNop(), rec.sink).With(String("job", "golfzon"))

	log.Info("started")

	lines := rec.all()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"job": "golfzon"`)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew(t *testing.T) {
	log, err := New(Config{Level: "debug", OutputPaths: []string{"stderr"}})
	require.NoError(t, err)
	log.Info("ready")
}
