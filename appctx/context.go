package appctx

import "context"

// ContextKey is the shared type for all context keys in this codebase.
// Keeping it in a tiny package avoids import cycles (config <-> utils).
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyToken         = ContextKey("Token")
	ContextKeySubject       = ContextKey("Subject")
	ContextKeyDisplayName   = ContextKey("DisplayName")
	ContextKeyEmail         = ContextKey("Email")
	ContextKeyCorrelationId = ContextKey("CorrelationId")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}

// IsAuthenticated reports whether the auth middleware stored a subject.
func IsAuthenticated(ctx context.Context) bool {
	sub, ok := GetString(ctx, ContextKeySubject)
	return ok && sub != ""
}
