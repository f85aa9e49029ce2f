package dispatch

import "context"

type jobIDKeyType struct{}

var jobIDKey = jobIDKeyType{}

// withJobID attaches the async job id a handler is running under, so
// cooperative handlers (like sleep) can poll cancellation without the
// Handler Table needing a job-shaped parameter.
func withJobID(ctx context.Context, jobID string) context.Context {
	if jobID == "" {
		return ctx
	}
	return context.WithValue(ctx, jobIDKey, jobID)
}

// jobIDFromContext returns the job id set by withJobID, or "" for a
// synchronous call with no job behind it.
func jobIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey).(string)
	return id
}

// JobIDFromContext is the exported form of jobIDFromContext, for
// building a checkCanceled callback (see BuildDefaultHandlerTable)
// from outside this package without exposing the context key itself.
func JobIDFromContext(ctx context.Context) string {
	return jobIDFromContext(ctx)
}
