package logging

import "context"

type contextKey string

const (
	runIDKey contextKey = "run_id"
	trialKey contextKey = "trial"
)

// WithRunID annotates a context with the identifier of the current
// optimization run. Every log entry emitted under this context carries it.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// GetRunID extracts the run identifier from a context.
func GetRunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok
}

// WithTrial annotates a context with the trial currently being handled.
func WithTrial(ctx context.Context, trial TrialRef) context.Context {
	return context.WithValue(ctx, trialKey, trial)
}

// GetTrial extracts the trial reference from a context.
func GetTrial(ctx context.Context) (TrialRef, bool) {
	t, ok := ctx.Value(trialKey).(TrialRef)
	return t, ok
}
