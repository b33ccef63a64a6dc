package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rrrrrr/school-system/backend/internal/domain"
)

type UserStatsResponse struct {
	Admin   int `json:"admin"`
	Student int `json:"student"`
	Staff   int `json:"staff"`
	HR      int `json:"hr"`
}

func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.directory.GetUserStats(r.Context(), currentUser(r))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, UserStatsResponse{
		Admin:   stats[domain.RoleAdmin],
		Student: stats[domain.RoleStudent],
		Staff:   stats[domain.RoleStaff],
		HR:      stats[domain.RoleHR],
	})
}

func (h *Handler) GetUsersByRole(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.GetUsersByRole(r.Context(), currentUser(r), chi.URLParam(r, "role"))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, users)
}
