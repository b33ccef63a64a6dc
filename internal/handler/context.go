package handler

import (
	"net/http"

	"github.com/rrrrrr/school-system/backend/internal/domain"
)

type ContextKey string

var (
	MyInfoCtx ContextKey = "myInfo"
)

// currentUser 在未经过 auth 中间件的路由上返回 nil
func currentUser(r *http.Request) *domain.User {
	user, _ := r.Context().Value(MyInfoCtx).(*domain.User)
	return user
}
