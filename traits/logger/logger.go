package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger. Level and encoding follow the
// LOG_LEVEL and ENVIRONMENT variables so the same binary logs JSON in
// production and console output in development.
func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if os.Getenv("ENVIRONMENT") != "production" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		if parsed, err := zapcore.ParseLevel(lvl); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(parsed)
		}
	}

	return cfg.Build()
}
