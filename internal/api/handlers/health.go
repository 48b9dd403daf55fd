package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/camera-control-manager/backend/internal/discovery"
	"github.com/camera-control-manager/backend/internal/storage"
	"github.com/camera-control-manager/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.Ping() == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		}

		w.Header().Set("Content-Type", "application/json")
		if status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	CameraType        string   `json:"camera_type"`
	DiscoveryState    string   `json:"discovery_state"`
	I2CBusesFound     int      `json:"i2c_buses_found"`
	VideoDevicesFound int      `json:"video_devices_found"`
	V4L2Controls      int      `json:"v4l2_controls"`
	I2CCapabilities   []string `json:"i2c_capabilities"`
	LibcameraProbe    string   `json:"libcamera_probe"`
	ConnectedClients  int      `json:"connected_clients"`
}

// Status returns a handler that provides system status information.
func Status(engine *discovery.Engine, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := engine.Model()

		response := StatusResponse{
			DiscoveryState:   string(engine.State()),
			LibcameraProbe:   string(engine.MetaStatus()),
			ConnectedClients: hub.ClientCount(),
		}
		if model != nil {
			response.CameraType = string(model.CameraType)
			response.I2CBusesFound = model.Diagnostics.I2CBusesFound
			response.VideoDevicesFound = model.Diagnostics.VideoDevicesFound
			response.V4L2Controls = len(model.V4L2Controls)
			response.I2CCapabilities = model.I2CCapabilities
		}

		writeJSON(w, response)
	}
}
