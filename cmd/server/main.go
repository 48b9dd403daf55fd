// Package main is the entry point for the camera control backend.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/camera-control-manager/backend/internal/api"
	"github.com/camera-control-manager/backend/internal/discovery"
	"github.com/camera-control-manager/backend/internal/libcamera"
	"github.com/camera-control-manager/backend/internal/ptz"
	"github.com/camera-control-manager/backend/internal/ratelimit"
	"github.com/camera-control-manager/backend/internal/storage"
	"github.com/camera-control-manager/backend/internal/v4l2"
	"github.com/camera-control-manager/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	addr := flag.String("addr", ":8099", "HTTP server address")
	dataDir := flag.String("data", "/data", "Data directory for SQLite database")
	staticDir := flag.String("static", "./static", "Directory for static frontend files")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(*addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting camera control backend (version: %s)...", version)

	// Initialize database
	dbPath := *dataDir + "/camera-control.db"
	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub)

	// Initialize hardware layers
	settings := storage.NewSettingsRepository(db)
	driver := ptz.NewDriver(ptz.WithFocusStore(settings))
	registry := v4l2.NewRegistry(v4l2.NewDeviceProber())
	capture := libcamera.NewCapture()
	limiter := ratelimit.NewLimiter(ratelimit.DefaultWindow)

	// Run the startup discovery pass before the server accepts requests:
	// the metadata capture needs the camera to itself.
	engine := discovery.NewEngine(driver, registry, capture)
	model := engine.Startup(context.Background())
	log.Printf("Discovery complete: camera_type=%s i2c_caps=%d v4l2_controls=%d",
		model.CameraType, len(model.I2CCapabilities), len(model.V4L2Controls))

	// Periodic re-discovery picks up hot-plugged devices
	scheduler := discovery.NewScheduler(engine, broadcaster, refreshIntervalMin())
	if err := scheduler.Start(); err != nil {
		log.Printf("Warning: Failed to start discovery scheduler: %v", err)
	}

	// Initialize HTTP router
	router := api.NewRouter(api.Deps{
		DB:          db,
		Settings:    settings,
		Hub:         hub,
		Broadcaster: broadcaster,
		Engine:      engine,
		Driver:      driver,
		Registry:    registry,
		Limiter:     limiter,
		StaticDir:   *staticDir,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Server listening on %s", *addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	scheduler.Stop()
	driver.Close()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// refreshIntervalMin reads the periodic rediscovery interval from the
// environment, defaulting to 15 minutes.
func refreshIntervalMin() int {
	if raw := os.Getenv("REFRESH_INTERVAL_MIN"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return 15
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
