package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewMiddleware_DisabledPassesThrough(t *testing.T) {
	h := NewMiddleware(Credentials{}, zap.NewNop())(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/enrollment", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewMiddleware_ChecksEveryPath(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	h := NewMiddleware(Credentials{Username: "admin", PasswordHash: hash}, zap.NewNop())(okHandler())

	tests := []struct {
		name       string
		user, pass string
		withAuth   bool
		status     int
	}{
		{name: "no credentials", status: http.StatusUnauthorized},
		{name: "wrong user", user: "root", pass: "s3cret", withAuth: true, status: http.StatusUnauthorized},
		{name: "wrong password", user: "admin", pass: "nope", withAuth: true, status: http.StatusUnauthorized},
		{name: "valid", user: "admin", pass: "s3cret", withAuth: true, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range []string{"/", "/health"} {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				if tt.withAuth {
					req.SetBasicAuth(tt.user, tt.pass)
				}
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				assert.Equal(t, tt.status, rec.Code, path)
			}
		})
	}
}
