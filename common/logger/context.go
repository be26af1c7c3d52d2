package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// A job run enriches its context once and every log line of that run carries the kind and run id.
type LogFields struct {
	JobKind   *string // scrape, process or ingest
	RunID     *int64  // Snowflake id of the job run
	Stage     *string // Current stage label (e.g., "downloading")
	Filename  *string // PDF being downloaded or processed
	RequestID *string
	Component string // Component name (e.g., "pipeline.scraper")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.JobKind != nil {
		result.JobKind = new.JobKind
	}
	if new.RunID != nil {
		result.RunID = new.RunID
	}
	if new.Stage != nil {
		result.Stage = new.Stage
	}
	if new.Filename != nil {
		result.Filename = new.Filename
	}
	if new.RequestID != nil {
		result.RequestID = new.RequestID
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to at most maxLen runes, appending "..." if truncated.
// Works on runes so Ge'ez text is never cut mid-character.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
