package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"tablefare-order-service/internal/auth"
)

type contextKey string

const authContextKey contextKey = "authContext"

// AuthContext is the verified identity attached to vendor-side
// requests. VendorID is nil for platform admins.
type AuthContext struct {
	UserID   string
	Role     auth.UserRole
	VendorID *int64
	Name     string
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}

// RequireAuth verifies the bearer token and loads the auth context.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.ParseBearerToken(r.Header.Get("Authorization"))
			claims, err := auth.VerifyAccessToken(token, jwtSecret)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			authCtx := &AuthContext{
				UserID: claims.UserID,
				Role:   claims.Role,
			}
			if claims.Name != nil {
				authCtx.Name = *claims.Name
			}
			if claims.VendorID != nil {
				vendorID, parseErr := strconv.ParseInt(*claims.VendorID, 10, 64)
				if parseErr != nil {
					writeAuthError(w, http.StatusUnauthorized, "Invalid vendor claim")
					return
				}
				authCtx.VendorID = &vendorID
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// RequireVendor rejects requests whose token carries no vendor scope.
// Admins must act through vendor-scoped tokens for order operations.
func RequireVendor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, ok := GetAuthContext(r.Context())
		if !ok || authCtx.VendorID == nil {
			writeAuthError(w, http.StatusForbidden, "Vendor scope required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole limits an endpoint to the listed roles.
func RequireRole(roles ...auth.UserRole) func(http.Handler) http.Handler {
	allowed := make(map[auth.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, ok := GetAuthContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := allowed[authCtx.Role]; !ok {
				writeAuthError(w, http.StatusForbidden, "Insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
