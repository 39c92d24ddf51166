package logger

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level  string
	Format string // json or console
	// File enables a size-rotated log file next to stderr output.
	File      string
	FileMaxMB int
}

type Logger struct {
	l *zap.SugaredLogger
}

func New(conf Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if conf.Level != "" {
		if err := level.UnmarshalText([]byte(conf.Level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", conf.Level, err)
		}
	}

	encConf := zap.NewProductionEncoderConfig()
	encConf.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder

	switch conf.Format {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encConf)
	case "console":
		encConf.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encConf)
	default:
		return nil, fmt.Errorf("unknown log format %q", conf.Format)
	}

	sink := zapcore.Lock(os.Stderr)

	if conf.File != "" {
		maxSize := conf.FileMaxMB
		if maxSize <= 0 {
			maxSize = 10
		}

		//nolint:exhaustruct
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:  conf.File,
			MaxSize:   maxSize,
			LocalTime: true,
		})
		sink = zapcore.NewMultiWriteSyncer(sink, rotated)
	}

	core := zapcore.NewCore(enc, sink, level)

	return &Logger{l: zap.New(core).Sugar()}, nil
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{l: zap.NewNop().Sugar()}
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.l.Errorf(format, v...)
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.l.Infof(format, v...)
}

func (l *Logger) LogDebug(format string, v ...any) {
	l.l.Debugf(format, v...)
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{l: l.l.With(keysAndValues...)}
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

// StdLogger adapts the logger for APIs that want a *log.Logger, such as
// http.Server.ErrorLog.
func (l *Logger) StdLogger() *log.Logger {
	return zap.NewStdLog(l.l.Desugar())
}
