// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/camera-control-manager/backend/internal/api/handlers"
	"github.com/camera-control-manager/backend/internal/api/middleware"
	"github.com/camera-control-manager/backend/internal/discovery"
	"github.com/camera-control-manager/backend/internal/ptz"
	"github.com/camera-control-manager/backend/internal/ratelimit"
	"github.com/camera-control-manager/backend/internal/storage"
	"github.com/camera-control-manager/backend/internal/v4l2"
	ws "github.com/camera-control-manager/backend/internal/websocket"
)

// Deps carries everything the routes need.
type Deps struct {
	DB          *storage.DB
	Settings    *storage.SettingsRepository
	Hub         *ws.Hub
	Broadcaster *ws.EventBroadcaster
	Engine      *discovery.Engine
	Driver      *ptz.Driver
	Registry    *v4l2.Registry
	Limiter     *ratelimit.Limiter
	StaticDir   string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(deps Deps) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(deps.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(deps.Engine, deps.Hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(deps.Hub)).Methods("GET")

	// Capability model endpoints
	api.HandleFunc("/capabilities", handlers.GetCapabilities(deps.Engine)).Methods("GET")
	api.HandleFunc("/refresh", handlers.RefreshControls(deps.Engine, deps.Broadcaster)).Methods("POST")
	api.HandleFunc("/id", handlers.GetCameraID(deps.Engine)).Methods("GET")

	// PTZ endpoints
	api.HandleFunc("/ptz", handlers.GetPTZState(deps.Driver)).Methods("GET")
	api.HandleFunc("/ptz/{axis}", handlers.PTZCommand(deps.Driver, deps.Limiter, deps.Broadcaster)).Methods("POST")
	api.HandleFunc("/focus", handlers.GetFocus(deps.Settings)).Methods("GET")

	// Video control endpoints
	api.HandleFunc("/v4l2/{id}", handlers.GetControl(deps.Registry)).Methods("GET")
	api.HandleFunc("/v4l2/{id}", handlers.SetControl(deps.Registry, deps.Limiter, deps.Broadcaster)).Methods("POST")

	// Serve static frontend files
	if deps.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(deps.StaticDir)))
	}

	return r
}
