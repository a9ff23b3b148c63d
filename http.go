package oauth2login

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// HTTPMiddleware is the middleware for HTTP handler.
type HTTPMiddleware func(http.Handler) http.Handler

// HTTPParams specifies the token lookup settings for the HTTP interceptor.
type HTTPParams struct {
	// HTTPHeaderName specifies the header name for retrieving the token.
	// Defaults to `Authorization`.
	HTTPHeaderName string

	// HTTPHeaderValuePrefixes specifies the accepted schemes of the header value.
	// Defaults to `Bearer` and `X-JWT-Assertion`.
	HTTPHeaderValuePrefixes []string

	// AssertionHeaderName specifies a header carrying the bare token.
	// Defaults to `X-JWT-Assertion`.
	AssertionHeaderName string

	// Logger receives the reason of failed authentications. Defaults to a
	// no-op logger.
	Logger *zap.SugaredLogger
}

const headerJWTAssertion = "X-JWT-Assertion"

func (p HTTPParams) defaults() HTTPParams {
	rv := p

	if rv.HTTPHeaderName == "" {
		rv.HTTPHeaderName = "Authorization"
	}
	if len(rv.HTTPHeaderValuePrefixes) == 0 {
		rv.HTTPHeaderValuePrefixes = []string{"Bearer", headerJWTAssertion}
	}
	if rv.AssertionHeaderName == "" {
		rv.AssertionHeaderName = headerJWTAssertion
	}
	if rv.Logger == nil {
		rv.Logger = zap.NewNop().Sugar()
	}

	return rv
}

func (p HTTPParams) loadTokenFromRequest(req *http.Request) string {
	v := strings.TrimSpace(req.Header.Get(p.HTTPHeaderName))
	for _, prefix := range p.HTTPHeaderValuePrefixes {
		if len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) && v[len(prefix)] == ' ' {
			return strings.TrimSpace(v[len(prefix):])
		}
	}

	return strings.TrimSpace(req.Header.Get(p.AssertionHeaderName))
}

// InterceptHTTP creates a HTTP middleware authenticating service account
// bearer tokens from the request.
//
// Requests without a JWT pass through with an unauthenticated principal.
// Failed authentications are logged and also pass through unauthenticated;
// the remote caller never sees the failure detail.
func InterceptHTTP(authenticator *Authenticator, params HTTPParams) HTTPMiddleware {
	params = params.defaults()

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := unauthenticatedClaimsPrincipal()

			token := params.loadTokenFromRequest(r)
			if IsJWT(token) {
				a, err := authenticator.AuthenticateToken(r.Context(), token)
				if err != nil {
					params.Logger.Warnw("failed to authenticate user using oauth token",
						"path", r.URL.Path, "error", err)
				} else {
					principal = newClaimsPrincipal(a)
				}
			}

			r = r.WithContext(ContextWithPrincipal(r.Context(), principal))
			h.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects requests without an authenticated principal.
func RequireAuthenticated(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := PrincipalFromHTTPRequest(r).AuthenticateErr(); err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// PrincipalFromHTTPRequest retrieves the ClaimsPrincipal from the request.
// It returns unauthenticated principal if the request has not set.
func PrincipalFromHTTPRequest(req *http.Request) ClaimsPrincipal {
	return PrincipalFromContext(req.Context())
}
