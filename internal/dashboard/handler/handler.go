package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/dashboard/service"
	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/i18n"
	"github.com/xela07ax/secure-access-dashboard/internal/infra"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

// DashboardService Описываем, что нам нужно от сервиса
type DashboardService interface {
	Enrollment(ctx context.Context) (*domain.EnrollmentView, error)
	Tunnels(ctx context.Context) (*domain.TunnelView, error)
	Activity(ctx context.Context) (*domain.ActivityView, error)
	Overview(ctx context.Context) service.Overview
	FlushCache(ctx context.Context) error
	Logos() service.Logos
	Location() *time.Location
}

type DashboardHandler struct {
	service DashboardService
	tr      *i18n.Translator
	page    *pageRenderer
	author  string
	logger  *zap.Logger
}

func NewDashboardHandler(s DashboardService, tr *i18n.Translator, author string, logger *zap.Logger) (*DashboardHandler, error) {
	page, err := newPageRenderer(tr)
	if err != nil {
		return nil, err
	}
	return &DashboardHandler{
		service: s,
		tr:      tr,
		page:    page,
		author:  author,
		logger:  logger.Named("dashboard-handler"),
	}, nil
}

// Health — проверка живости для оркестратора.
func (h *DashboardHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorStatus отделяет отсутствие настроек (503) от отказа Secure Access (502).
func errorStatus(err error) int {
	switch {
	case errors.Is(err, secureaccess.ErrMissingCredentials):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *DashboardHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	h.logger.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("trace_id", infra.TraceID(r.Context())),
		zap.Error(err),
	)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
