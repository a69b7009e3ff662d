package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/clientportal/client-service/docs"
	"github.com/clientportal/client-service/internal/api/handler"
	"github.com/clientportal/client-service/internal/api/middleware"
	"github.com/clientportal/client-service/internal/core/ports"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Log      zerolog.Logger
	Auth     ports.AuthService
	Clients  ports.ClientService
	Sessions middleware.SessionVerifier
	Health   *handler.HealthHandler

	// GoogleTokenLogin enables POST /api/auth/google/verify.
	GoogleTokenLogin bool
	// GoogleCodes enables the browser redirect flow when non-nil.
	GoogleCodes ports.AuthCodeExchanger

	UploadsDir     string
	MaxRequestSize string
	MaxAssetBytes  int64
	SecureCookies  bool

	// Registerer receives the HTTP metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	registerer := d.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	maxRequest := d.MaxRequestSize
	if maxRequest == "" {
		maxRequest = "5M"
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOriginFunc:  func(string) (bool, error) { return true, nil },
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "client_portal",
		Subsystem:  "http",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/health")
		},
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Auth, d.GoogleCodes, d.SecureCookies)
	clientHandler := handler.NewClientHandler(d.Clients, d.Auth, d.MaxAssetBytes)
	requireSession := middleware.Auth(d.Sessions)
	self := middleware.SelfOnly("id")
	bodyLimit := echomiddleware.BodyLimit(maxRequest)

	api := e.Group("/api")

	// --- Auth routes ---
	auth := api.Group("/auth", echomiddleware.BodyLimit("64K"))
	auth.POST("/login", authHandler.Login)
	if d.GoogleTokenLogin {
		auth.POST("/google/verify", authHandler.GoogleVerify)
	}
	auth.GET("/google", authHandler.GoogleRedirect)
	auth.GET("/google/callback", authHandler.GoogleCallback)
	auth.GET("/me", authHandler.Me, requireSession)

	// --- Client routes ---
	clients := api.Group("/clients")
	clients.POST("", clientHandler.Create, bodyLimit)
	clients.GET("", clientHandler.List, requireSession)
	clients.GET("/:id", clientHandler.Get, requireSession, self)
	clients.PATCH("/:id", clientHandler.Update, bodyLimit, requireSession, self)
	clients.DELETE("/:id", clientHandler.Delete, requireSession, self)

	// --- Stored assets ---
	if d.UploadsDir != "" {
		e.Static("/uploads", d.UploadsDir)
	}

	// --- Health probes (no auth required) ---
	if d.Health != nil {
		e.GET("/health", d.Health.Liveness)        // liveness: is the process alive?
		e.GET("/health/ready", d.Health.Readiness) // readiness: are dependencies up?
	}

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
