package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON - структурированный вывод для продакшена.
	FormatJSON = "json"
	// FormatConsole - человекочитаемый вывод для локальной разработки.
	FormatConsole = "console"
)

var initOnce sync.Once

// parseLevel переводит строковый уровень из конфигурации в zapcore.Level.
// Неизвестные значения трактуются как info.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New создает zap логгер с заданным уровнем и форматом.
func New(level, format string) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(format, FormatConsole) {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.ConsoleSeparator = " | "
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(parseLevel(level)))
	return zap.New(core, zap.AddCaller())
}

// Initialize заменяет глобальные логгеры zap. Повторные вызовы игнорируются.
func Initialize(level, format string) {
	initOnce.Do(func() {
		l := New(level, format)
		zap.ReplaceGlobals(l)
		l.Info("Logger initialized", zap.String("level", level), zap.String("format", format))
	})
}

// For возвращает именованный логгер компонента.
// До Initialize используется глобальный no-op логгер zap, что удобно в тестах.
func For(component string) *zap.SugaredLogger {
	return zap.S().Named(component)
}

// Sync сбрасывает буферизованные записи.
func Sync() error {
	return zap.L().Sync()
}
