package utils

import (
	"context"

	"github.com/gutsdata/explorer_backend/appctx"
)

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeySubject       = appctx.ContextKeySubject
	ContextKeyDisplayName   = appctx.ContextKeyDisplayName
	ContextKeyEmail         = appctx.ContextKeyEmail
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetSubjectFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySubject)
}

func GetDisplayNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyDisplayName)
}

func GetEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyEmail)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// SetIdentityInContext stores the authenticated caller's claims.
func SetIdentityInContext(ctx context.Context, token string, claims *JwtCustomClaim) context.Context {
	ctx = appctx.Set(ctx, ContextKeyToken, token)
	ctx = appctx.Set(ctx, ContextKeySubject, claims.Subject)
	ctx = appctx.Set(ctx, ContextKeyDisplayName, claims.Name)
	return appctx.Set(ctx, ContextKeyEmail, claims.Email)
}
