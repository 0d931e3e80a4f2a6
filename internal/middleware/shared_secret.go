package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// RecoverySecretHeader carries the secret for internal endpoints when the
// caller does not use a bearer token.
const RecoverySecretHeader = "X-Recovery-Secret"

// RequireSecret guards internal endpoints with a shared secret compared in
// constant time. An empty configured secret rejects every request.
func RequireSecret(secret string) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimSpace(r.Header.Get(RecoverySecretHeader))
			if got == "" {
				got, _ = bearerToken(r)
			}
			if len(want) == 0 || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid internal secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
