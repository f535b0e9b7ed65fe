package middleware

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.Write([]byte(userID))
	})
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", testSecret)
	defer viper.Set("jwt.secret_key", "")

	valid := signToken(t, jwt.MapClaims{"user_id": "user-1", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Token " + valid, http.StatusUnauthorized, ""},
		{"bad signature", "Bearer " + signToken(t, jwt.MapClaims{"user_id": "user-1"}, "other"), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, jwt.MapClaims{"user_id": "user-1", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret), http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/wallets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			AuthMiddleware(echoUser()).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestParseToken_SubjectFallback(t *testing.T) {
	viper.Set("jwt.secret_key", testSecret)
	defer viper.Set("jwt.secret_key", "")

	userID, err := ParseToken(signToken(t, jwt.MapClaims{"sub": "user-9"}, testSecret))
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)

	_, err = ParseToken(signToken(t, jwt.MapClaims{"scope": "x"}, testSecret))
	assert.Error(t, err)
}

func TestStreamAuth(t *testing.T) {
	viper.Set("jwt.secret_key", testSecret)
	defer viper.Set("jwt.secret_key", "")

	token := signToken(t, jwt.MapClaims{"user_id": "user-1"}, testSecret)

	tests := []struct {
		name     string
		required bool
		url      string
		header   string
		status   int
		body     string
	}{
		{"token in query", true, "/api/v1/events?token=" + token, "", http.StatusOK, "user-1"},
		{"token in header", true, "/api/v1/events", "Bearer " + token, http.StatusOK, "user-1"},
		{"matching userId", true, "/api/v1/events?userId=user-1&token=" + token, "", http.StatusOK, "user-1"},
		{"mismatched userId", true, "/api/v1/events?userId=user-2&token=" + token, "", http.StatusUnauthorized, ""},
		{"no token when required", true, "/api/v1/events?userId=user-1", "", http.StatusUnauthorized, ""},
		{"bad token", true, "/api/v1/events?token=garbage", "", http.StatusUnauthorized, ""},
		{"legacy userId only", false, "/api/v1/polling-updates?userId=user-3", "", http.StatusOK, "user-3"},
		{"legacy without userId", false, "/api/v1/polling-updates", "", http.StatusBadRequest, ""},
		{"legacy still checks a token", false, "/api/v1/events?userId=user-2&token=" + token, "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			StreamAuth(tt.required)(echoUser()).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(echoUser()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestStaticFileServer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "openapi.yaml"), []byte("openapi: 3.0.3\n"), 0o644))

	handler := StaticFileServer(dir)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi: 3.0.3")

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/../../etc/passwd", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
