package cart

import (
	"context"
	"net/http"
	"strings"

	"github.com/sharweng/LappyShoppy-sub000/internal/platform"
	"github.com/sharweng/LappyShoppy-sub000/pkg/kit"
)

type ctxKey string

const userKey ctxKey = "user"

type User struct {
	ID   string
	Role string
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey).(User)
	return u, ok
}

// RequireUser resolves the cart owner. Behind the gateway the identity
// arrives as X-User-Id/X-User-Role headers; direct callers may present
// the provider's bearer token instead.
func RequireUser(verifier *platform.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid := r.Header.Get("X-User-Id"); uid != "" {
				ctx := context.WithValue(r.Context(), userKey, User{
					ID:   uid,
					Role: r.Header.Get("X-User-Role"),
				})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				kit.WriteError(w, r, http.StatusUnauthorized, "missing token", nil)
				return
			}

			claims, err := verifier.Parse(strings.TrimPrefix(authz, "Bearer "))
			if err != nil || claims.UserID == "" {
				kit.WriteError(w, r, http.StatusUnauthorized, "invalid token", nil)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, User{ID: claims.UserID, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
