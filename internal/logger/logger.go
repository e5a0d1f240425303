package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// New builds the process logger from LOG_LEVEL and LOG_FORMAT.
// An unknown level falls back to info.
func New() *zap.Logger {
	level := strings.ToLower(getEnv("LOG_LEVEL", "info"))
	format := strings.ToLower(getEnv("LOG_FORMAT", "json"))

	var zapConfig zap.Config
	if level == "debug" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if err := zapConfig.Level.UnmarshalText([]byte(level)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: invalid LOG_LEVEL %q, defaulting to info\n", level)
		zapConfig.Level.SetLevel(zapcore.InfoLevel)
	}

	if format == "console" || format == "text" {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig.Encoding = "json"
	}

	log, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v, falling back to production defaults\n", err)
		log, _ = zap.NewProduction()
	}
	return log
}
