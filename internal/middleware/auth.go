package middleware

import (
	"context"
	"encoding/json"
	"net/http"
)

// AuthInfo identifies the caller of an authenticated request.
type AuthInfo struct {
	APIKey string
	Tier   string
}

type authKey string

const authInfoKey authKey = "auth_info"

// APIKeyAuth authenticates requests by the X-API-Key header against the
// configured key -> tier map. With no keys configured the server runs in dev
// mode: every request is accepted as a shared pro-tier caller.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	devMode := len(keys) == 0
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := AuthInfo{APIKey: "dev", Tier: "pro"}
			if !devMode {
				key := r.Header.Get("X-API-Key")
				if key == "" {
					writeAuthError(w, http.StatusUnauthorized, "missing API key")
					return
				}
				tier, ok := keys[key]
				if !ok {
					writeAuthError(w, http.StatusForbidden, "invalid API key")
					return
				}
				info = AuthInfo{APIKey: key, Tier: tier}
			}
			ctx := context.WithValue(r.Context(), authInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthFromContext returns the caller identity set by APIKeyAuth.
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(AuthInfo)
	return info, ok
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
