package tpool

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Log struct {
	app   *zap.Logger
	err   *zap.Logger
	owned bool
}

func NewLog(cfg LogConfig) *Log {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	return &Log{
		app:   zap.New(newFileCore(cfg, cfg.AppFile, level), zap.AddCaller(), zap.AddCallerSkip(1)),
		err:   zap.New(newFileCore(cfg, cfg.ErrorFile, zapcore.ErrorLevel), zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)),
		owned: true,
	}
}

// WrapLogger routes both the app and error streams to an existing logger.
// The caller keeps ownership; Sync is left to it.
func WrapLogger(logger *zap.Logger) *Log {
	logger = logger.WithOptions(zap.AddCallerSkip(1))
	return &Log{app: logger, err: logger}
}

func newFileCore(cfg LogConfig, filename string, level zapcore.LevelEnabler) zapcore.Core {
	if filename == "" {
		return zapcore.NewNopCore()
	}
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}),
		level,
	)
}

func (l *Log) With(fields ...zap.Field) *Log {
	return &Log{
		app:   l.app.With(fields...),
		err:   l.err.With(fields...),
		owned: l.owned,
	}
}

func (l *Log) App(msg string, fields ...zap.Field) {
	l.app.Info(msg, fields...)
}

func (l *Log) Debug(msg string, fields ...zap.Field) {
	l.app.Debug(msg, fields...)
}

func (l *Log) Error(err error, msg string, fields ...zap.Field) {
	l.err.Error(msg, append(fields, zap.Error(err))...)
}

func (l *Log) Sync() error {
	if !l.owned {
		return nil
	}
	return multierr.Append(l.app.Sync(), l.err.Sync())
}
