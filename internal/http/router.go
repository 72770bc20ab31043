package http

import (
	"context"
	"log/slog"
	nethttp "net/http"

	"github.com/geocoder89/bugzapp/internal/config"
	"github.com/geocoder89/bugzapp/internal/domain/user"
	"github.com/geocoder89/bugzapp/internal/http/handlers"
	"github.com/geocoder89/bugzapp/internal/http/middlewares"
	"github.com/geocoder89/bugzapp/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type AuthService interface {
	handlers.Authenticator
	handlers.UserDirectory
}

type Deps struct {
	Log      *slog.Logger
	Cfg      config.Config
	Auth     AuthService
	Bugs     handlers.BugService
	Verifier middlewares.TokenVerifier

	// optional
	Prom *observability.Prom
	Ping func(ctx context.Context) error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("bugzapp-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	if d.Cfg.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(d.Cfg.MaxBodyBytes))
	}
	r.Use(middlewares.RequireJSON())

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, nethttp.StatusNotFound, "Route not found")
	})

	// health + metrics
	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/health", health.Health)
	if d.Prom != nil {
		r.GET("/metrics", gin.WrapH(d.Prom.Handler()))
	}

	authMW := middlewares.NewAuthMiddleware(d.Verifier)

	authHandler := handlers.NewAuthHandler(d.Auth)
	usersHandler := handlers.NewUsersHandler(d.Auth)
	bugsHandler := handlers.NewBugsHandler(d.Bugs)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	users := api.Group("/users", authMW.RequireAuth())
	users.GET("/me", usersHandler.Me)
	users.GET("", authMW.RequireRole(user.RoleAdmin), usersHandler.List)

	bugs := api.Group("/bugs")
	bugs.GET("", bugsHandler.ListBugs)
	bugs.GET("/:id", bugsHandler.GetBug)

	protected := bugs.Group("", authMW.RequireAuth())
	protected.POST("", bugsHandler.CreateBug)
	protected.PATCH("/:id/status", bugsHandler.UpdateStatus)
	protected.PUT("/:id", bugsHandler.UpdateBug)
	protected.DELETE("/:id", bugsHandler.DeleteBug)

	return r
}
