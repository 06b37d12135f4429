package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/groundops/staff-sizer/backend/internal/config"
	"github.com/groundops/staff-sizer/backend/internal/domain"
	"github.com/groundops/staff-sizer/backend/internal/repository"
	"github.com/groundops/staff-sizer/backend/internal/scheduler"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mailChannel *amqp.Channel
	redisClient *redis.Client

	// 从配置中读出的默认排班参数，请求中的参数在它的基础上覆盖
	parameters *scheduler.Parameters

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mailCh *amqp.Channel, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	parameters, err := cfg.Sizing.Parameters()
	if err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,
		parameters:  parameters,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	adminOnly := h.RequiredRole([]domain.UserRole{domain.UserRoleAdmin})

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
			r.Get("/sizing-runs", h.GetMySizingRuns)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(adminOnly).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin, adminOnly).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin, adminOnly).Delete("/", h.DeleteUser)
				r.With(adminOnly).Patch("/password", h.UpdateUserPassword)
			})
		})

		r.Get("/sizing-parameters", h.GetDefaultParameters)

		r.Route("/sizing-runs", func(r chi.Router) {
			r.Post("/", h.CreateSizingRun)
			r.Post("/preview", h.PreviewSizingRun)
			r.Get("/", h.GetAllSizingRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.sizingRun)
				r.Get("/", h.GetSizingRun)
				r.Get("/hours-summary", h.GetSizingRunHoursSummary)
				r.With(adminOnly).Delete("/", h.DeleteSizingRun)
			})
		})
	})
}
