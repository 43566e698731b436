package ctxutil

import "context"

type traceDataKey struct{}
type viewerKey struct{}

type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// WithViewerID attaches the authenticated user id taken from a bearer token.
func WithViewerID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, viewerKey{}, userID)
}

// ViewerID returns the authenticated user id, if any.
func ViewerID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(viewerKey{}).(int64)
	return id, ok && id > 0
}
