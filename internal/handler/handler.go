package handler

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/rrrrrr/school-system/backend/internal/config"
	"github.com/rrrrrr/school-system/backend/internal/domain"
	"github.com/rrrrrr/school-system/backend/internal/service"
)

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	translator ut.Translator
	store      domain.UserRepository
	auths      *service.AuthService
	directory  *service.DirectoryService
	now        func() time.Time

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, store domain.UserRepository, auths *service.AuthService, directory *service.DirectoryService) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		translator: trans,
		store:      store,
		auths:      auths,
		directory:  directory,
		now:        time.Now,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(middleware.RequestID)
	h.Mux.Use(middleware.RealIP)
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)
	h.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	h.Mux.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/login", h.Login)
		r.Post("/register", h.Register)

		// 以下 API 必须携带有效的令牌
		r.Group(func(r chi.Router) {
			r.Use(h.auth)
			r.Get("/me", h.GetMyInfo)
			r.Route("/users", func(r chi.Router) {
				r.Get("/stats", h.GetUserStats)
				r.Get("/{role}", h.GetUsersByRole)
			})
		})
	})
}
