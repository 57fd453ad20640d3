package kit

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// AdminKeyAuth guards back-office routes with an operator API key supplied
// as "X-Admin-Key". Only the bcrypt hash of the key is configured on the
// service, so a leaked environment never reveals the key itself. An empty
// hash disables the routes entirely.
func AdminKeyAuth(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
			if key == "" {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
