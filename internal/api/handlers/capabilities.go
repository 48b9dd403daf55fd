// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/camera-control-manager/backend/internal/discovery"
	"github.com/camera-control-manager/backend/internal/storage"
)

// GetCapabilities returns the latest capabilities model. Read-only and
// side-effect free: the UI polls it to build its control panel.
func GetCapabilities(engine *discovery.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, engine.Model())
	}
}

// GetCameraID returns the legacy numeric camera-type identifier as plain
// text, for frontends that predate the capabilities endpoint.
func GetCameraID(engine *discovery.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(engine.LegacyID()))
	}
}

// GetFocus returns the persisted focus position.
func GetFocus(settings *storage.SettingsRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level, err := settings.FocusLevel()
		if err != nil {
			level = storage.DefaultFocusLevel
		}
		writeJSON(w, map[string]int{"value": level})
	}
}

// RefreshControls re-enters discovery at the device-probe stage and
// returns the freshly built model. Refresh is not rate limited: it issues
// no motor commands and the pass itself serializes concurrent callers.
func RefreshControls(engine *discovery.Engine, broadcaster Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		model := engine.Refresh(r.Context())
		if broadcaster != nil {
			broadcaster.BroadcastCapabilitiesRefreshed(model)
		}
		writeJSON(w, model)
	}
}

// Broadcaster is the slice of the websocket event broadcaster the
// handlers need.
type Broadcaster interface {
	BroadcastCapabilitiesRefreshed(model *discovery.Capabilities)
	BroadcastPTZMoved(axis string, value int)
	BroadcastControlChanged(id uint32, name string, value int32)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
