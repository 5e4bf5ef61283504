package middleware

import "context"

type ctxKey string

const (
	ctxRequestID ctxKey = "request_id"
	ctxAdminID   ctxKey = "admin_id"
)

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxRequestID, id)
}

func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxRequestID).(string)
	return v
}

func WithAdminID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxAdminID, id)
}

// AdminID returns the authenticated administrator, if any.
func AdminID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxAdminID).(int64)
	return id, ok
}
