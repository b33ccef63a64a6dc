package handler

import (
	"net/http"

	"github.com/rrrrrr/school-system/backend/internal/domain"
	"github.com/rrrrrr/school-system/backend/internal/service"
)

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *domain.User `json:"user"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
		Role     string `json:"role" validate:"required"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 未知的角色不可能与任何用户的角色一致，交给 service 统一按凭证错误处理
	res, err := h.auths.Login(r.Context(), req.Username, req.Password, domain.Role(req.Role))
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		User:        res.User,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username   string  `json:"username" validate:"required,max=50"`
		Password   string  `json:"password" validate:"required"`
		Email      string  `json:"email" validate:"required,email"`
		Role       string  `json:"role" validate:"required"`
		Name       string  `json:"name" validate:"required"`
		Department string  `json:"department" validate:"required"`
		StudentID  *string `json:"studentId"`
		StaffID    *string `json:"staffId"`
		Position   *string `json:"position"`
		Grade      *int    `json:"grade" validate:"omitnil,min=1"`
	}

	if err := h.readJSON(w, r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.auths.Register(r.Context(), service.RegisterInput{
		Username:   req.Username,
		Password:   req.Password,
		Email:      req.Email,
		Role:       req.Role,
		Name:       req.Name,
		Department: req.Department,
		StudentID:  req.StudentID,
		StaffID:    req.StaffID,
		Position:   req.Position,
		Grade:      req.Grade,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, user)
}
