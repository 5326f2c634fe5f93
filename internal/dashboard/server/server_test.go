package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/handler"
	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/service"
	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/i18n"
	"github.com/xela07ax/secure-access-dashboard/internal/infra"
	"github.com/xela07ax/secure-access-dashboard/internal/infra/auth"
)

type stubService struct{}

func (stubService) Enrollment(context.Context) (*domain.EnrollmentView, error) {
	return &domain.EnrollmentView{TotalUsers: 3}, nil
}
func (stubService) Tunnels(context.Context) (*domain.TunnelView, error) {
	return &domain.TunnelView{}, nil
}
func (stubService) Activity(context.Context) (*domain.ActivityView, error) {
	return &domain.ActivityView{}, nil
}
func (stubService) Overview(context.Context) service.Overview { return service.Overview{} }
func (stubService) FlushCache(context.Context) error          { return nil }
func (stubService) Logos() service.Logos                      { return service.Logos{} }
func (stubService) Location() *time.Location                  { return time.UTC }

func newServer(t *testing.T, creds auth.Credentials) *DashboardServer {
	t.Helper()
	tr, err := i18n.New("es")
	require.NoError(t, err)
	h, err := handler.NewDashboardHandler(stubService{}, tr, "", zap.NewNop())
	require.NoError(t, err)
	return NewDashboardServer(zap.NewNop(), creds, h)
}

func TestDashboardServer_Routes(t *testing.T) {
	s := newServer(t, auth.Credentials{})

	tests := []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/api/v1/enrollment", http.StatusOK},
		{http.MethodGet, "/api/v1/tunnels", http.StatusOK},
		{http.MethodGet, "/api/v1/activity", http.StatusOK},
		{http.MethodPost, "/api/v1/cache/flush", http.StatusNoContent},
		{http.MethodGet, "/api/v1/cache/flush", http.StatusMethodNotAllowed},
		{http.MethodGet, "/logos/1", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.status, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestDashboardServer_TraceHeader(t *testing.T) {
	s := newServer(t, auth.Credentials{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(infra.TraceHeader, "trace-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get(infra.TraceHeader))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(infra.TraceHeader))
}

func TestDashboardServer_BasicAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	s := newServer(t, auth.Credentials{Username: "admin", PasswordHash: hash})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/enrollment", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/enrollment", nil)
	req.SetBasicAuth("admin", "wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/enrollment", nil)
	req.SetBasicAuth("admin", "s3cret")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
