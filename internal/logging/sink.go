package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LineSink receives one formatted text line per log entry, for example
//
//	2026-10-18T09:00:00.000Z INFO unit done {"unit": "page 3", "records": 12}
//
// Calls are serialised.
type LineSink func(line string)

// Tee returns a logger that writes to base and, at info level and above,
// to sink as plain text lines with upper-case level names.
func Tee(base Logger, sink LineSink) Logger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	})
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(lineWriter(sink))), zapcore.InfoLevel)

	if zl, ok := base.(*zapLogger); ok {
		core = zapcore.NewTee(zl.logger.Core(), core)
	}
	return &zapLogger{logger: zap.New(core)}
}

type lineWriter LineSink

func (w lineWriter) Write(p []byte) (int, error) {
	w(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
