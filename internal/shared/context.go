package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Principal is the authenticated actor of a request.
type Principal struct {
	UserID     string
	SalesmanID string
	Role       string
}

// PrincipalFromContext reads the logged-in user from the request session.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	sess := SessionFromContext(ctx)
	if sess == nil || sess.User() == "" {
		return Principal{}, false
	}
	return Principal{
		UserID:     sess.User(),
		SalesmanID: sess.Get(SessionKeySalesmanID),
		Role:       sess.Get(SessionKeyRole),
	}, true
}
