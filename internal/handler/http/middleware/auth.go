package middleware

import (
	"context"
	"net/http"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payrun-backend-go/internal/handler/http/response"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type identityContextKey struct{}

// AuthRequired rejects requests without a verified access token and puts the
// caller identity and payroll actor on the request context.
// Must run after jwtauth.Verify.
func AuthRequired(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			token, claims, err := jwtauth.FromContext(r.Context())

			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			if token == nil {
				response.HandleError(w, user.ErrInvalidToken)
				return
			}

			identity, err := jwt.IdentityFromClaims(claims)
			if err != nil {
				response.HandleError(w, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			ctx = payroll.WithActor(ctx, payroll.Actor{ID: identity.UserID, Name: identity.Name, Role: identity.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		}
		return http.HandlerFunc(hfn)
	}
}

// WithIdentity stores the caller identity on ctx
func WithIdentity(ctx context.Context, identity user.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity stored by AuthRequired
func IdentityFromContext(ctx context.Context) (user.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(user.Identity)
	return identity, ok && !identity.IsZero()
}
