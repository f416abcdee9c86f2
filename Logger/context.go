package Logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with the context.
type LogFields struct {
	TriggerID   string
	TriggerKind string
	ChannelID   string
	ThreadID    string
	Intent      string
	Component   string
}

// WithLogFields merges fields into the context; non-empty new values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.TriggerID != "" {
		result.TriggerID = next.TriggerID
	}
	if next.TriggerKind != "" {
		result.TriggerKind = next.TriggerKind
	}
	if next.ChannelID != "" {
		result.ChannelID = next.ChannelID
	}
	if next.ThreadID != "" {
		result.ThreadID = next.ThreadID
	}
	if next.Intent != "" {
		result.Intent = next.Intent
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Truncate shortens s to maxLen bytes for logging, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
