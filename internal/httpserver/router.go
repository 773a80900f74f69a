package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"habittracker/internal/handler"
	"habittracker/pkg/rbac"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Deps struct {
	Auth          *handler.AuthHandler
	Habits        *handler.HabitHandler
	Admin         *handler.AdminHandler
	Authenticator TokenAuthenticator
	AuthLimiter   *IPRateLimiter
	Ready         map[string]ReadinessCheck
	Logger        *zap.Logger
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(d Deps) *Router {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(d.Logger))

	// Health endpoints (放在最前面)
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) }
	r.GET("/healthz", ok)
	r.HEAD("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", ok)
	r.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/readyz", readyz(d.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	public := r.Group("/auth")
	if d.AuthLimiter != nil {
		public.Use(d.AuthLimiter.Middleware())
	}
	public.POST("/register", d.Auth.Register)
	public.POST("/login", d.Auth.Login)

	// Protected
	authed := r.Group("/")
	authed.Use(AuthMiddleware(d.Authenticator))
	{
		authed.POST("/auth/logout", d.Auth.Logout)
		authed.GET("/auth/me", d.Auth.Me)

		read := authed.Group("/", RequirePermission(rbac.PermissionReadHabit))
		read.GET("/habits", d.Habits.List)
		read.GET("/habits/:id", d.Habits.Get)
		read.GET("/habits/:id/entries", d.Habits.Entries)
		read.GET("/habits/:id/calendar", d.Habits.Calendar)
		read.GET("/dashboard", d.Habits.Dashboard)
		read.GET("/analytics", d.Habits.Analytics)
		read.GET("/milestones", d.Habits.Milestones)

		write := authed.Group("/", RequirePermission(rbac.PermissionWriteHabit))
		write.POST("/habits", d.Habits.Create)
		write.PATCH("/habits/:id", d.Habits.Update)
		write.DELETE("/habits/:id", d.Habits.Delete)
		write.POST("/habits/:id/toggle", d.Habits.Toggle)

		if d.Admin != nil {
			admin := authed.Group("/admin", RequirePermission(rbac.PermissionReplayOutbox))
			admin.POST("/outbox/replay", d.Admin.ReplayOutboxEvent)
			admin.POST("/outbox/replay-failed", d.Admin.ReplayFailedEvents)
		}
	}

	return &Router{Engine: r}
}

func readyz(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
