// Package api exposes the HTTP surface: registration, the OAuth handoff
// endpoints, the connect page, the MCP tool endpoint and the admin surface.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cherrin1/remote-slack-server/config"
	"github.com/cherrin1/remote-slack-server/internal/oauth"
	"github.com/cherrin1/remote-slack-server/internal/registry"
	"github.com/cherrin1/remote-slack-server/internal/slack"
	"github.com/cherrin1/remote-slack-server/internal/store"
	"github.com/cherrin1/remote-slack-server/internal/tools"
)

const (
	serverName    = "remote-slack-server"
	serverVersion = "1.2.0"
)

// API holds the handler dependencies.
type API struct {
	cfg        *config.ServerConfig
	store      store.Store
	registry   *registry.Service
	exchange   *oauth.Exchange
	dispatcher *tools.Dispatcher
	slack      *slack.Client
}

// New initializes the API.
func New(
	cfg *config.ServerConfig,
	st store.Store,
	reg *registry.Service,
	ex *oauth.Exchange,
	disp *tools.Dispatcher,
	slackClient *slack.Client,
) *API {
	return &API{
		cfg:        cfg,
		store:      st,
		registry:   reg,
		exchange:   ex,
		dispatcher: disp,
		slack:      slackClient,
	}
}

// RegisterRoutes registers all routes.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.Use(TraceRequests())

	e.GET("/health", a.HealthHandler)

	e.POST("/register", a.RegisterHandler)
	e.GET("/connect", a.ConnectPageHandler)

	e.GET("/oauth/authorize", a.AuthorizeHandler)
	e.POST("/oauth/store-token", a.StoreTokenHandler)
	e.POST("/oauth/token", a.TokenHandler)
	e.GET("/oauth/config", a.OAuthConfigHandler)
	e.GET("/.well-known/oauth-authorization-server", a.OAuthConfigHandler)

	mcp := a.RequireAPIKey(a.MCPHandler)
	e.POST("/", mcp)
	e.POST("/message", mcp)

	if a.cfg.AdminKey != "" {
		admin := e.Group("/admin", a.RequireAdminKey)
		admin.GET("/users", a.AdminListUsersHandler)
		admin.GET("/stats", a.AdminStatsHandler)
		admin.POST("/users/:id/rotate", a.AdminRotateKeyHandler)
		admin.POST("/users/:id/deactivate", a.AdminDeactivateHandler)
		admin.POST("/users/:id/reactivate", a.AdminReactivateHandler)
		admin.POST("/cleanup", a.AdminCleanupHandler)
	}
}

// HealthHandler reports liveness including store reachability.
func (a *API) HealthHandler(c echo.Context) error {
	if err := a.store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  "unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
