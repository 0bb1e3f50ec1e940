package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leonkenneth/RNB-coeur/internal/config"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(r.RemoteAddr)) //nolint:errcheck
})

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SecurityConfig
		key     string
		wantSts int
	}{
		{"disabled", config.SecurityConfig{RequireAPIKey: false}, "", http.StatusOK},
		{"missing", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, "", http.StatusUnauthorized},
		{"invalid", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, "nope", http.StatusForbidden},
		{"valid second key", config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}, "k2", http.StatusOK},
		{"no keys configured", config.SecurityConfig{RequireAPIKey: true}, "k1", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/publish/75", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			APIKeyAuth(&tt.cfg)(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantSts, rec.Code)
			if tt.wantSts != http.StatusOK {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"code":"AUTH_`)
			}
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	mw := TrustedRealIP([]string{"10.0.0.0/8", "192.168.1.5", "bogus"})

	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{"trusted X-Real-IP", "10.1.2.3:5555", map[string]string{"X-Real-IP": "203.0.113.9"}, "203.0.113.9"},
		{"trusted single host XFF", "192.168.1.5:80", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "198.51.100.1"},
		{"untrusted ignored", "203.0.113.50:1234", map[string]string{"X-Real-IP": "1.2.3.4"}, "203.0.113.50:1234"},
		{"invalid header ignored", "10.1.2.3:5555", map[string]string{"X-Real-IP": "not-an-ip"}, "10.1.2.3:5555"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			mw(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Body.String())
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Middleware(ok)

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/areas", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("198.51.100.7:1000"))
	assert.Equal(t, http.StatusOK, do("198.51.100.7:1001"))
	assert.Equal(t, http.StatusTooManyRequests, do("198.51.100.7:1002"), "burst is per IP, not per port")
	assert.Equal(t, http.StatusOK, do("198.51.100.8:1000"), "other clients keep their own bucket")
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/publish/nat", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
