package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// GetLogo отдает логотип шапки: /logos/1 или /logos/2.
func (h *DashboardHandler) GetLogo(w http.ResponseWriter, r *http.Request) {
	logos := h.service.Logos()
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || !logos.Ready() || n < 1 || n > len(logos.Items) {
		http.NotFound(w, r)
		return
	}

	logo := logos.Items[n-1]
	w.Header().Set("Content-Type", logo.ContentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(logo.Data)
}
