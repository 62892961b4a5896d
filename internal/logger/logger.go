package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger. It starts as a development console
// logger; Configure replaces it once the config file is loaded.
var Logger = zapLogger()

func zapLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

// Configure rebuilds the logger. With a filename, output goes to a
// size-rotated JSON log; otherwise to the console.
func Configure(level string, filename string, maxSizeMB, maxBackups int) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	var core zapcore.Core
	if filename != "" {
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		})
		enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		core = zapcore.NewCore(enc, sink, lvl)
	} else {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		core = zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	}

	old := Logger
	Logger = zap.New(core, zap.AddCaller())
	_ = old.Sync()
}
