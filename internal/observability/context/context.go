// Package context carries run-scoped correlation values.
package context

import "context"

type ctxKey string

const (
	runIDKey   ctxKey = "run_id"
	triggerKey ctxKey = "trigger"
)

// WithRunID stores the pipeline run identifier.
func WithRunID(ctx context.Context, runID string) context.Context {
	if ctx == nil || runID == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, runID)
}

func RunIDFromContext(ctx context.Context) string {
	return stringValue(ctx, runIDKey)
}

// WithTrigger records what started the run (cli, scheduler, http).
func WithTrigger(ctx context.Context, trigger string) context.Context {
	if ctx == nil || trigger == "" {
		return ctx
	}
	return context.WithValue(ctx, triggerKey, trigger)
}

func TriggerFromContext(ctx context.Context) string {
	return stringValue(ctx, triggerKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
