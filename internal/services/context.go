package services

import "context"

type contextKey string

const (
	jobUUIDKey   contextKey = "job_uuid"
	jobKindKey   contextKey = "job_kind"
	stageKey     contextKey = "stage"
	requestIDKey contextKey = "request_id"
)

// WithJobUUID attaches the job correlation value to the context.
func WithJobUUID(ctx context.Context, uuid string) context.Context {
	return context.WithValue(ctx, jobUUIDKey, uuid)
}

// JobUUIDFromContext extracts the job correlation value from the context.
func JobUUIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(jobUUIDKey).(string)
	return value, ok && value != ""
}

// WithJobKind attaches the ledger record kind to the context.
func WithJobKind(ctx context.Context, kind string) context.Context {
	return context.WithValue(ctx, jobKindKey, kind)
}

// JobKindFromContext extracts the ledger record kind from the context.
func JobKindFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(jobKindKey).(string)
	return value, ok && value != ""
}

// WithStage attaches a pipeline stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the pipeline stage name from the context.
func StageFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(stageKey).(string)
	return value, ok && value != ""
}

// WithRequestID attaches a request correlation identifier to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request correlation identifier from the context.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(requestIDKey).(string)
	return value, ok && value != ""
}
