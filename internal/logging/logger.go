package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options mirror the logging section of the config file.
type Options struct {
	Directory  string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Debug      bool
}

// Init builds a logger with a JSON rotating file core and a human-readable
// console core.
func Init(opts Options) (*zap.Logger, error) {
	if opts.Directory == "" {
		opts.Directory = "logs"
	}
	if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(opts.Directory, "reviewd.log"),
		MaxSize:    defaultInt(opts.MaxSize, 10),
		MaxBackups: defaultInt(opts.MaxBackups, 3),
		MaxAge:     defaultInt(opts.MaxAge, 7),
		Compress:   opts.Compress,
	})

	level := zapcore.InfoLevel
	if opts.Debug {
		level = zapcore.DebugLevel
	}

	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level)

	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	return zap.New(zapcore.NewTee(fileCore, consoleCore), zap.AddCaller()), nil
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
