package handler

import (
	"net/http"

	"go.uber.org/zap"
)

func (h *DashboardHandler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Enrollment(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DashboardHandler) GetTunnels(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Tunnels(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *DashboardHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Activity(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// FlushCache сбрасывает кэш API, следующая загрузка страницы пойдет в Secure Access.
func (h *DashboardHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.FlushCache(r.Context()); err != nil {
		h.logger.Error("cache flush failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
