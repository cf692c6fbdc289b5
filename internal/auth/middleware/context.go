package auth

import "context"

// Request-scoped identity. JWTMiddleware stores the authenticated user ID
// after token verification; handlers that scope data to the caller (own
// roster record, own password) read it back.

type subjectKey struct{}

func WithSubject(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// SubjectFromContext returns the authenticated user ID, or "" when the
// request never passed through JWTMiddleware.
func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s
	}
	return ""
}
