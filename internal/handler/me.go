package handler

import (
	"net/http"
)

func (h *Handler) GetMyInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, currentUser(r))
}
