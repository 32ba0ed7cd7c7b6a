package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the reasoning provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the reasoning model identifier.
	FieldModel = "ai_model"
	// FieldStore is the structured log field key for the profile store backend.
	FieldStore = "store"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields safely attaches the provided fields to the logger.
// If no fields are supplied the input logger is returned unchanged, defaulting
// to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// WithReasoning names the logger after the reasoning component and tags it
// with the provider and model in use.
func WithReasoning(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...).Named("reasoning")
}

// WithStore tags a logger with the backing store kind ("postgres" or "file").
func WithStore(logger *zap.Logger, kind string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldStore, Value: kind})...)
}
