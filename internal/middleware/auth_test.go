package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func authEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok := AuthFromContext(r.Context())
		if !ok {
			t.Error("auth info missing from context")
		}
		w.Header().Set("X-Tier", info.Tier)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAPIKeyAuth(t *testing.T) {
	keys := map[string]string{
		"sk_free_1": "free",
		"sk_pro_1":  "pro",
	}
	tests := []struct {
		name       string
		keys       map[string]string
		header     string
		wantStatus int
		wantTier   string
	}{
		{name: "valid key", keys: keys, header: "sk_pro_1", wantStatus: http.StatusOK, wantTier: "pro"},
		{name: "free key", keys: keys, header: "sk_free_1", wantStatus: http.StatusOK, wantTier: "free"},
		{name: "missing key", keys: keys, wantStatus: http.StatusUnauthorized},
		{name: "unknown key", keys: keys, header: "sk_nope", wantStatus: http.StatusForbidden},
		{name: "dev mode accepts anything", keys: nil, wantStatus: http.StatusOK, wantTier: "pro"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := APIKeyAuth(tt.keys)(authEcho(t))
			req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantTier != "" && rec.Header().Get("X-Tier") != tt.wantTier {
				t.Errorf("tier = %q, want %q", rec.Header().Get("X-Tier"), tt.wantTier)
			}
		})
	}
}
