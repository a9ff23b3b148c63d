package oauth2login

import "context"

type ctxKeyClaimsPrincipalT int

var ctxKeyClaimsPrincipal ctxKeyClaimsPrincipalT

// ContextWithPrincipal stores the principal in ctx.
func ContextWithPrincipal(
	ctx context.Context,
	v ClaimsPrincipal,
) context.Context {
	return context.WithValue(ctx, ctxKeyClaimsPrincipal, v)
}

// PrincipalFromContext returns the principal stored in ctx, or an
// unauthenticated one.
func PrincipalFromContext(ctx context.Context) ClaimsPrincipal {
	v, ok := ctx.Value(ctxKeyClaimsPrincipal).(ClaimsPrincipal)
	if ok {
		return v
	}

	return unauthenticatedClaimsPrincipal()
}
