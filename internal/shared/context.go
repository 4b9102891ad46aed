package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context. The session middleware
// installs it before the principal loader runs.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context, nil when the request
// carried no session.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
