package shared

import (
	"context"

	"github.com/clientportal/portal/internal/roles"
)

// Principal is the authenticated actor attached to a request.
type Principal struct {
	UserID    string
	CompanyID string
	Email     string
	Role      roles.Role
}

type principalContextKey struct{}

type requestMetaContextKey struct{}

// RequestMeta carries client metadata recorded alongside activity entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// ContextWithRequestMeta stores request metadata in context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaContextKey{}, meta)
}

// RequestMetaFromContext returns request metadata, empty when absent.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaContextKey{}).(RequestMeta)
	return meta
}
