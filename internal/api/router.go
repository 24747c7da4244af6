// Package api wires together all HTTP routes for the shared lists backend.
//
// Route grouping:
//   - /health, /ready, /version and the register and login routes are public.
//   - Everything else under /api/v1/ sits behind the credential gate: account routes
//     need a valid X-Account-ID and X-API-Key pair, admin routes need X-Admin-Key.
//
// The gate only establishes who is calling. Whether that caller may touch a given list
// is decided by the services through the membership authorizer.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/sharedlists/sharedlists/internal/api/accounts"
	"github.com/sharedlists/sharedlists/internal/api/admin"
	"github.com/sharedlists/sharedlists/internal/api/lists"
	"github.com/sharedlists/sharedlists/internal/audit"
	"github.com/sharedlists/sharedlists/internal/auth"
	"github.com/sharedlists/sharedlists/internal/authz"
	"github.com/sharedlists/sharedlists/internal/config"
	"github.com/sharedlists/sharedlists/internal/db/repositories"
	"github.com/sharedlists/sharedlists/internal/middleware"
	"github.com/sharedlists/sharedlists/internal/services"
)

// Version is the server version, overridden at build time with -ldflags.
var Version = "0.1.0"

// BackgroundServices holds resources started alongside the router that must be
// released during graceful shutdown. The caller (cmd/server) calls Shutdown after the
// HTTP server has drained.
type BackgroundServices struct {
	// Accounts is exposed so the server can hand it to the key sweeper
	Accounts *services.AccountService
	stops    []func()
}

// Shutdown stops all background goroutines and closes limiter connections
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, stop := range bg.stops {
		stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sqlx.DB, secrets *config.SecretProvider) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	bg := &BackgroundServices{}

	// Repositories
	accountRepo := repositories.NewAccountRepository(db.DB)
	apiKeyRepo := repositories.NewAPIKeyRepository(db.DB)
	auditRepo := repositories.NewAuditRepository(db.DB)
	membershipRepo := repositories.NewMembershipRepository(db)
	listRepo := repositories.NewListRepository(db)
	itemRepo := repositories.NewItemRepository(db)

	// Services
	keyManager := auth.NewKeyManager(apiKeyRepo, cfg.Auth.APIKeys.Prefix, cfg.Auth.APIKeys.TTL)
	authenticator := auth.NewAuthenticator(accountRepo, apiKeyRepo)
	authorizer := authz.NewMembershipAuthorizer(membershipRepo)
	accountService := services.NewAccountService(accountRepo, keyManager)
	listService := services.NewListService(listRepo, membershipRepo, accountRepo, authorizer, cfg.Limits)
	itemService := services.NewItemService(itemRepo, listRepo, authorizer, cfg.Limits)
	bg.Accounts = accountService

	gate := middleware.NewGate(authenticator, secrets)

	// Rate limiters: one for the API at large, a stricter one for login and register
	var apiLimit, authLimit gin.HandlerFunc
	if cfg.Security.RateLimiting.Enabled {
		limiter, stop, err := middleware.NewLimiter(cfg.Security.RateLimiting,
			middleware.RateLimitConfigFrom(cfg.Security.RateLimiting), "api")
		if err != nil {
			return nil, nil, err
		}
		bg.stops = append(bg.stops, stop)
		apiLimit = middleware.RateLimitMiddleware(limiter)

		loginLimiter, stop, err := middleware.NewLimiter(cfg.Security.RateLimiting,
			middleware.LoginRateLimitConfig(), "auth")
		if err != nil {
			bg.Shutdown()
			return nil, nil, err
		}
		bg.stops = append(bg.stops, stop)
		authLimit = middleware.RateLimitMiddleware(loginLimiter)
	} else {
		apiLimit = passThrough
		authLimit = passThrough
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig(cfg.Security.TLS.Enabled)))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg))

	router.GET("/health", healthCheckHandler(db))
	router.GET("/ready", readinessHandler(db))
	router.GET("/version", versionHandler())

	shippers, err := audit.NewShippers(cfg.Audit)
	if err != nil {
		bg.Shutdown()
		return nil, nil, err
	}
	bg.stops = append(bg.stops, func() { _ = shippers.Close() })
	auditTrail := middleware.AuditMiddleware(audit.NewRecorder(auditRepo, shippers), cfg.Audit)
	accountHandlers := accounts.NewHandlers(accountService)
	listHandlers := lists.NewHandlers(listService, itemService)
	adminHandlers := admin.NewHandlers(accountService, auditRepo)

	v1 := router.Group("/api/v1")

	// Public
	public := v1.Group("/auth", gate.Require(middleware.VisibilityPublic), authLimit, auditTrail)
	{
		public.POST("/register", accountHandlers.Register)
		public.POST("/login", accountHandlers.Login)
	}

	// Authenticated accounts. The limiter runs after the gate so it can key on the account.
	user := v1.Group("", gate.Require(middleware.VisibilityUser), apiLimit, middleware.UUIDParams(), auditTrail)
	{
		user.POST("/auth/logout", accountHandlers.Logout)
		user.POST("/auth/logout-all", accountHandlers.LogoutAll)

		user.GET("/account", accountHandlers.Profile)
		user.GET("/account/keys", accountHandlers.ListKeys)
		user.POST("/account/keys", accountHandlers.IssueKey)
		user.DELETE("/account/keys/:key_id", accountHandlers.RevokeKey)
		user.DELETE("/accounts/:account_id", accountHandlers.DeleteAccount)

		user.GET("/lists", listHandlers.ListLists)
		user.POST("/lists", listHandlers.CreateList)
		user.GET("/lists/:list_id", listHandlers.GetList)
		user.PUT("/lists/:list_id", listHandlers.RenameList)
		user.DELETE("/lists/:list_id", listHandlers.DeleteList)

		user.GET("/lists/:list_id/members", listHandlers.ListMembers)
		user.POST("/lists/:list_id/members", listHandlers.AddCollaborator)
		user.DELETE("/lists/:list_id/members/:account_id", listHandlers.KickCollaborator)
		user.POST("/lists/:list_id/leave", listHandlers.LeaveList)

		user.GET("/lists/:list_id/items", listHandlers.ListItems)
		user.POST("/lists/:list_id/items", listHandlers.AddItem)
		user.PATCH("/lists/:list_id/items/:item_id", listHandlers.UpdateItem)
		user.DELETE("/lists/:list_id/items/:item_id", listHandlers.DeleteItem)
	}

	// Administration
	adminGroup := v1.Group("/admin", gate.Require(middleware.VisibilityAdmin), apiLimit, middleware.UUIDParams(), auditTrail)
	{
		adminGroup.GET("/accounts", adminHandlers.ListAccountsHandler())
		adminGroup.DELETE("/accounts/:account_id", adminHandlers.DeleteAccountHandler())
		adminGroup.DELETE("/apikeys/expired", adminHandlers.SweepExpiredKeysHandler())
		adminGroup.GET("/audit-logs", adminHandlers.ListAuditLogsHandler())
		adminGroup.GET("/audit-logs/:id", adminHandlers.GetAuditLogHandler())
	}

	return router, bg, nil
}

func passThrough(c *gin.Context) { c.Next() }

// Pinger is the database probe used by the health endpoints
type Pinger interface {
	PingContext(ctx context.Context) error
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "ready: false, error: database not ready"
// @Router       /ready [get]
func readinessHandler(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{}
		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      API version
// @Description  Returns the server version and API version.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "version, api_version"
// @Router       /version [get]
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     Version,
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging. The output format follows the global
// slog handler configured in telemetry.SetupLogger.
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("user_agent", c.Request.UserAgent()),
		}
		if id := middleware.AccountID(c); id != "" {
			attrs = append(attrs, slog.String("account_id", id))
		}
		slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	methods := strings.Join(cfg.Security.CORS.AllowedMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	}
	headers := strings.Join([]string{
		"Origin", "Content-Type", "Accept", "X-Requested-With",
		middleware.AccountIDHeader, middleware.APIKeyHeader, middleware.AdminKeyHeader,
	}, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Methods", methods)
			c.Header("Access-Control-Allow-Headers", headers)
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
