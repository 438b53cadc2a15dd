package middleware

import (
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payrun-backend-go/internal/handler/http/response"
)

// RequirePermission checks if user has specific permission
func RequirePermission(permission user.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s'", permission))
				return
			}

			if !user.HasPermission(identity.Role, permission) {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s', but user role is '%s'", permission, identity.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission passes when the role holds at least one of permissions
func RequireAnyPermission(permissions ...user.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if ok {
				for _, p := range permissions {
					if user.HasPermission(identity.Role, p) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required one of %v", permissions))
		})
	}
}
