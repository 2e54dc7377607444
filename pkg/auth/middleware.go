package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Middleware rejects requests without a valid token and stores the claims in
// the request context. onFailure, when set, is called for every rejection.
func Middleware(v *Verifier, log *slog.Logger, onFailure func()) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Authenticate(r)
			if err != nil {
				if onFailure != nil {
					onFailure()
				}
				log.Debug("Rejected request", "path", r.URL.Path, "err", err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}
