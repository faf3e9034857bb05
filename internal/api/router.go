package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"github.com/fieldops/installation-api/internal/api/handler"
	"github.com/fieldops/installation-api/internal/api/middleware"
	"github.com/fieldops/installation-api/internal/api/session"
	"github.com/fieldops/installation-api/internal/core/domain"
	"github.com/fieldops/installation-api/internal/core/ports"
	"github.com/fieldops/installation-api/internal/pkg/config"
	"github.com/fieldops/installation-api/internal/pkg/ids"
	"github.com/fieldops/installation-api/internal/pkg/metrics"
)

// Permission tokens checked by the route table.
const (
	permInstallationsRead  = "installations:read"
	permInstallationsWrite = "installations:write"
	permChecklistsRead     = "checklists:read"
	permChecklistsWrite    = "checklists:write"
	permCrew               = "crew:*"
	permStoresRead         = "stores:read"
	permStoresWrite        = "stores:write"
	permAddressesRead      = "addresses:read"
	permAddressesWrite     = "addresses:write"
	permUsersRead          = "users:read"
	permUsersWrite         = "users:write"
	permRolesRead          = "roles:read"
	permRolesWrite         = "roles:write"
	permAuditRead          = "audit:read"
)

var errAPIRateLimited = &domain.Error{Kind: domain.ErrTooManyRequests, Message: "Too many requests, please slow down."}

// Deps is everything the HTTP layer needs from the rest of the process.
type Deps struct {
	Config *config.Config
	Log    zerolog.Logger

	Sessions ports.SessionStore
	Limiter  ports.AttemptLimiter
	Codec    *session.Codec

	Auth          ports.AuthService
	Users         ports.UserService
	Roles         ports.RoleService
	Installations ports.InstallationService
	Checklists    ports.ChecklistService
	Media         ports.MediaService
	References    ports.ReferenceService
	Audit         ports.AuditQueryService

	// Checks are probed by the readiness endpoint, keyed by dependency name.
	Checks map[string]handler.Check

	// Registerer receives the HTTP request metrics. Nil means the default
	// registry, which is also what /metrics serves.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, !cfg.IsProduction())

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: ids.NewRequestID,
	}))
	e.Use(middleware.ClientContext())
	e.Use(requestLogger(d.Log))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:      "0",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		HSTSMaxAge:         hstsMaxAge(cfg.HTTP.EnableHSTS),
		ReferrerPolicy:     "no-referrer",
	}))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowCredentials: cfg.HTTP.CORSCredentials,
	}))
	e.Use(echomiddleware.BodyLimit(cfg.HTTP.BodyLimit))
	e.Use(echomiddleware.ContextTimeoutWithConfig(echomiddleware.ContextTimeoutConfig{
		Timeout: cfg.HTTP.RequestTimeout,
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "fieldops",
		Registerer: d.Registerer,
	}))
	e.Use(middleware.Session(d.Sessions, d.Codec, d.Log))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.Codec)
	userHandler := handler.NewUserHandler(d.Users)
	roleHandler := handler.NewRoleHandler(d.Roles)
	installationHandler := handler.NewInstallationHandler(d.Installations)
	checklistHandler := handler.NewChecklistHandler(d.Checklists)
	mediaHandler := handler.NewMediaHandler(d.Media)
	referenceHandler := handler.NewReferenceHandler(d.References)
	auditHandler := handler.NewAuditHandler(d.Audit)
	healthHandler := handler.NewHealthHandler(d.Checks)
	docsHandler := handler.NewDocsHandler(cfg.APIPrefix, cfg.Env == "development")

	// --- Probes, metrics and docs (outside the API prefix) ---
	e.GET("/", docsHandler.Root)
	e.GET("/healthz", healthHandler.Healthz)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/docs-json", docsHandler.Spec)
	e.GET("/docs/*", echoSwagger.EchoWrapHandler(echoSwagger.URL("/docs-json")))

	api := e.Group(cfg.APIPrefix, apiRateLimiter(cfg))

	// --- Auth ---
	loginLimit := middleware.LoginRateLimit(d.Limiter, d.Log)
	api.POST("/auth/login", authHandler.Login, loginLimit)
	api.POST("/auth/register", authHandler.Register, loginLimit)
	api.POST("/auth/logout", authHandler.Logout, middleware.RequireSession())
	api.GET("/auth/me", authHandler.Me, middleware.RequireSession())

	// --- Installations ---
	instRead := middleware.Authorize(permInstallationsRead)
	instWrite := middleware.Authorize(permInstallationsWrite)
	api.GET("/installations", installationHandler.List, instRead)
	api.POST("/installations", installationHandler.Create, instWrite)
	api.GET("/installations/:id", installationHandler.Get, instRead)
	api.PATCH("/installations/:id", installationHandler.Update, instWrite)
	api.PATCH("/installations/:id/status", installationHandler.UpdateStatus, instWrite)
	api.GET("/installations/:id/items", installationHandler.ListItems, instRead)
	api.POST("/installations/:id/items", installationHandler.AddItem, instWrite)
	api.PATCH("/installations/:id/items/:itemId", installationHandler.UpdateItem, instWrite)
	api.DELETE("/installations/:id/items/:itemId", installationHandler.RemoveItem, instWrite)
	api.GET("/installations/:id/crew", installationHandler.ListCrew, instRead)
	api.POST("/installations/:id/crew", installationHandler.AssignCrew, instWrite)
	api.PATCH("/installations/:id/crew/:assignmentId", installationHandler.UpdateAssignment, instWrite)
	api.DELETE("/installations/:id/crew/:assignmentId", installationHandler.RemoveAssignment, instWrite)

	// --- Checklists ---
	checkRead := middleware.Authorize(permChecklistsRead, permCrew)
	checkWrite := middleware.Authorize(permChecklistsWrite, permCrew)
	api.GET("/checklist-templates", checklistHandler.ListTemplates, checkRead)
	api.POST("/checklist-templates", checklistHandler.CreateTemplate, checkWrite)
	api.GET("/checklist-templates/:id", checklistHandler.GetTemplate, checkRead)
	api.PATCH("/checklist-templates/:id", checklistHandler.UpdateTemplate, checkWrite)
	api.GET("/checklist-templates/:id/items", checklistHandler.ListItems, checkRead)
	api.POST("/checklist-templates/:id/items", checklistHandler.CreateItem, checkWrite)
	api.PATCH("/checklist-items/:itemId", checklistHandler.UpdateItem, checkWrite)
	api.GET("/installations/:id/checklist-responses", checklistHandler.ListResponses, checkRead)
	api.POST("/installations/:id/checklist-responses", checklistHandler.UpsertResponse, checkWrite)
	api.PATCH("/checklist-responses/:id", checklistHandler.UpdateResponse, checkWrite)

	// --- Media ---
	api.GET("/installations/:id/media", mediaHandler.List, instRead)
	api.POST("/installations/:id/media", mediaHandler.Create, instWrite)
	api.GET("/media/:id", mediaHandler.Get, middleware.Authorize(permInstallationsRead, permCrew))
	api.DELETE("/media/:id", mediaHandler.Delete, middleware.Authorize(permInstallationsWrite, permCrew))

	// --- Stores & addresses ---
	storeRead := middleware.Authorize(permStoresRead, permCrew)
	storeWrite := middleware.Authorize(permStoresWrite)
	api.GET("/stores", referenceHandler.ListStores, storeRead)
	api.POST("/stores", referenceHandler.CreateStore, storeWrite)
	api.GET("/stores/:id", referenceHandler.GetStore, storeRead)
	api.PATCH("/stores/:id", referenceHandler.UpdateStore, storeWrite)

	addrRead := middleware.Authorize(permAddressesRead)
	addrWrite := middleware.Authorize(permAddressesWrite)
	api.GET("/addresses", referenceHandler.ListAddresses, addrRead)
	api.POST("/addresses", referenceHandler.CreateAddress, addrWrite)
	api.GET("/addresses/:id", referenceHandler.GetAddress, addrRead)
	api.PATCH("/addresses/:id", referenceHandler.UpdateAddress, addrWrite)

	// --- Users & roles ---
	api.GET("/users", userHandler.List, middleware.Authorize(permUsersRead))
	api.POST("/users", userHandler.Create, middleware.Authorize(permUsersWrite))
	api.GET("/users/:id", userHandler.Get, middleware.Authorize(permUsersRead))
	api.PATCH("/users/:id", userHandler.Update, middleware.Authorize(permUsersWrite))
	// Self-or-admin is decided by the service.
	api.PATCH("/users/:id/password", userHandler.ChangePassword, middleware.RequireSession())

	api.GET("/roles", roleHandler.List, middleware.Authorize(permRolesRead))
	api.POST("/roles", roleHandler.Create, middleware.Authorize(permRolesWrite))
	api.GET("/roles/:id", roleHandler.Get, middleware.Authorize(permRolesRead))
	api.PATCH("/roles/:id", roleHandler.Update, middleware.Authorize(permRolesWrite))

	// --- Audit ---
	api.GET("/audit-logs", auditHandler.List, middleware.Authorize(permAuditRead))
	api.GET("/audit-logs/:id", auditHandler.Get, middleware.Authorize(permAuditRead))

	return e
}

// requestLogger emits one zerolog event per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}

// apiRateLimiter is a per-address token bucket over the whole API prefix.
func apiRateLimiter(cfg *config.Config) echo.MiddlewareFunc {
	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.Limits.APIPerSecond),
		Burst:     cfg.Limits.APIBurst,
		ExpiresIn: 3 * time.Minute,
	})
	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return middleware.ClientIP(c), nil
		},
		DenyHandler: func(echo.Context, string, error) error {
			metrics.RateLimitedTotal.WithLabelValues("api").Inc()
			return errAPIRateLimited
		},
	})
}

func hstsMaxAge(enabled bool) int {
	if enabled {
		return 15552000
	}
	return 0
}
