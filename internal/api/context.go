package api

import (
	"context"
)

type contextKey string

const (
	ctxKeyRequestID contextKey = "request_id"
	ctxKeyAudit     contextKey = "audit"
)

// auditState is filled in by inner middleware and read by auditMiddleware
// once the request completes.
type auditState struct {
	authenticated bool
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

func withAuditState(ctx context.Context, st *auditState) context.Context {
	return context.WithValue(ctx, ctxKeyAudit, st)
}

func auditStateFromCtx(ctx context.Context) *auditState {
	st, _ := ctx.Value(ctxKeyAudit).(*auditState)
	return st
}
