package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/skills-audit/internal/core/domain"
	"github.com/arklim/skills-audit/internal/infra/config"
	"github.com/arklim/skills-audit/internal/infra/security"
	"github.com/arklim/skills-audit/internal/transport/http/handlers"
	"github.com/arklim/skills-audit/internal/transport/http/middleware"
	"github.com/arklim/skills-audit/internal/usecase"
)

// ReminderJobName is the scheduler name of the training reminder job.
const ReminderJobName = "training-reminders"

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthSessionService
	Users         *usecase.UserService
	Skills        *usecase.SkillService
	Trainings     *usecase.TrainingService
	Notifications *usecase.NotificationService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config         *config.AppConfig
	Logger         *zap.Logger
	RateLimiter    *middleware.RateLimiter
	HTTPMetrics    *middleware.HTTPMetrics
	MetricsHandler http.Handler
	Services       ServiceSet
	PasswordPolicy *security.PasswordPolicy
	TokenManager   *security.TokenManager
	Jobs           handlers.JobRunner
	Database       DatabaseChecker
	Cache          CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Tracing())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(deps.HTTPMetrics.Handler())
	if len(deps.Config.App.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.AllowedOrigins))
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)
	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}
	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}
	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.GET("/metrics", gin.WrapH(metricsHandler))

	r.GET("/.well-known/jwks.json", handlers.NewJWKSHandler(deps.TokenManager).Keys)

	if deps.Services.Auth == nil || deps.Services.Users == nil {
		return r
	}

	gates := middleware.NewGates(deps.Config.App.LoginPath)
	authenticated := gates.RequireAuth()
	supervisors := gates.RequireRole(domain.RoleAdmin, domain.RoleManager)
	admins := gates.RequireRole(domain.RoleAdmin)

	api := r.Group("/api")
	api.Use(middleware.ResolveIdentity(deps.Services.Auth, deps.Services.Users, deps.Config.Session.CookieName, deps.Logger))
	{
		authHandler := handlers.NewAuthHandler(deps.Services.Auth, deps.Services.Users, deps.PasswordPolicy, handlers.CookieOptions{
			Name:   deps.Config.Session.CookieName,
			Secure: deps.Config.Session.CookieSecure,
			TTL:    deps.Config.Session.CookieTTL,
		})

		authGroup := api.Group("/auth")
		authGroup.POST("/login", chain(buildLoginMiddlewares(deps), middleware.ValidateModel[handlers.LoginRequest](), authHandler.Login)...)
		authGroup.POST("/register", chain(buildRegisterMiddlewares(deps), middleware.ValidateModel[handlers.RegisterRequest](), authHandler.Register)...)
		authGroup.POST("/logout", authenticated, authHandler.Logout)

		resetMiddlewares := buildPasswordResetMiddlewares(deps)
		authGroup.POST("/password/reset", chain(resetMiddlewares, middleware.ValidateModel[handlers.ResetPasswordRequest](), authHandler.ResetPassword)...)
		authGroup.POST("/password/reset/confirm", chain(resetMiddlewares, middleware.ValidateModel[handlers.ConfirmResetRequest](), authHandler.ConfirmPasswordReset)...)

		ajax := authGroup.Group("", middleware.AjaxOnly())
		ajax.POST("/password/strength", middleware.ValidateModel[handlers.PasswordStrengthRequest](), authHandler.PasswordStrength)
		ajax.GET("/check-email", authHandler.CheckEmail)
		ajax.GET("/check-employee-id", authHandler.CheckEmployeeID)

		userHandler := handlers.NewUserHandler(deps.Services.Users)
		api.GET("/departments", userHandler.Departments)

		account := api.Group("/account", authenticated)
		account.GET("", userHandler.Me)
		account.PUT("", middleware.ValidateModel[handlers.UpdateProfileRequest](), userHandler.UpdateMe)
		account.GET("/stats", userHandler.MyStats)
		account.POST("/password", middleware.ValidateModel[handlers.ChangePasswordRequest](), authHandler.ChangePassword)
		account.PUT("/email", middleware.ValidateModel[handlers.UpdateEmailRequest](), authHandler.UpdateEmail)

		users := api.Group("/users", supervisors)
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.GET("/:id/stats", userHandler.Stats)
		users.PUT("/:id/role", admins, middleware.ValidateModel[handlers.UpdateRoleRequest](), userHandler.UpdateRole)
		users.POST("/:id/activate", admins, userHandler.Activate)
		users.POST("/:id/deactivate", admins, userHandler.Deactivate)

		if deps.Services.Skills != nil {
			skillHandler := handlers.NewSkillHandler(deps.Services.Skills)
			users.GET("/:id/skills", skillHandler.ListForUser)

			skills := api.Group("/skills", authenticated)
			skills.GET("", skillHandler.ListMine)
			skills.POST("", middleware.ValidateModel[handlers.SkillRequest](), skillHandler.Create)
			skills.POST("/import", middleware.ValidateModel[handlers.ImportSkillsRequest](), skillHandler.Import)
			skills.GET("/categories", skillHandler.Categories)
			skills.GET("/category/:category", supervisors, skillHandler.ListByCategory)
			skills.GET("/search", skillHandler.Search)
			skills.GET("/stats", skillHandler.Stats)
			skills.GET("/top", skillHandler.Top)
			skills.GET("/:id", skillHandler.Get)
			skills.PUT("/:id", middleware.ValidateModel[handlers.SkillPatchRequest](), skillHandler.Update)
			skills.DELETE("/:id", skillHandler.Delete)
		}

		if deps.Services.Trainings != nil {
			trainingHandler := handlers.NewTrainingHandler(deps.Services.Trainings)
			users.GET("/:id/training", trainingHandler.ListForUser)

			training := api.Group("/training", authenticated)
			training.GET("", trainingHandler.ListMine)
			training.POST("", middleware.ValidateModel[handlers.TrainingRequest](), trainingHandler.Create)
			training.GET("/upcoming", trainingHandler.Upcoming)
			training.GET("/completed", trainingHandler.Completed)
			training.GET("/stats", trainingHandler.Stats)
			training.GET("/:id", trainingHandler.Get)
			training.PUT("/:id", middleware.ValidateModel[handlers.TrainingPatchRequest](), trainingHandler.Update)
			training.DELETE("/:id", trainingHandler.Delete)
		}

		if deps.Services.Notifications != nil {
			notificationHandler := handlers.NewNotificationHandler(deps.Services.Notifications)
			notifications := api.Group("/notifications", authenticated)
			notifications.GET("", notificationHandler.List)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
		}

		adminHandler := handlers.NewAdminHandler(deps.Jobs, ReminderJobName)
		api.POST("/admin/reminders/run", admins, adminHandler.RunReminders)
	}

	return r
}

func chain(pre []gin.HandlerFunc, rest ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(pre)+len(rest))
	out = append(out, pre...)
	return append(out, rest...)
}

func buildLoginMiddlewares(deps Dependencies) []gin.HandlerFunc {
	return buildLimit(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts, time.Minute, middleware.ClientIPIdentifier())
}

func buildRegisterMiddlewares(deps Dependencies) []gin.HandlerFunc {
	return buildLimit(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts, time.Hour, middleware.ClientIPIdentifier())
}

func buildPasswordResetMiddlewares(deps Dependencies) []gin.HandlerFunc {
	ip := buildLimit(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts, time.Hour, middleware.ClientIPIdentifier())
	email := buildLimit(deps, "password_reset_email", deps.Config.RateLimit.PasswordResetMaxAttempts, time.Hour, middleware.EmailFieldIdentifier("email"))
	return append(ip, email...)
}

func buildLimit(deps Dependencies, name string, limit int, fallbackWindow time.Duration, identifier middleware.IdentifierFunc) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = fallbackWindow
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: identifier,
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
