package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/camera-control-manager/backend/internal/api/middleware"
	"github.com/camera-control-manager/backend/internal/ratelimit"
	"github.com/camera-control-manager/backend/internal/v4l2"
)

// ControlValueResponse is the response for control reads and writes.
type ControlValueResponse struct {
	ControlID uint32 `json:"control_id"`
	Value     int32  `json:"value"`
}

// GetControl reads the live value of one video control.
func GetControl(registry *v4l2.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := controlID(w, r)
		if !ok {
			return
		}

		value, err := registry.CurrentValue(id)
		if errors.Is(err, v4l2.ErrNotFound) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown control")
			return
		}
		if err != nil {
			middleware.WriteError(w, http.StatusBadGateway, middleware.ErrBus, "Reading control failed: "+err.Error())
			return
		}

		writeJSON(w, ControlValueResponse{ControlID: id, Value: value})
	}
}

// SetControl validates and writes one video control value. Writes are
// rate limited per control id.
func SetControl(registry *v4l2.Registry, limiter *ratelimit.Limiter, broadcaster Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := controlID(w, r)
		if !ok {
			return
		}

		var req struct {
			Value int32 `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if err := limiter.Allow("v4l2:" + strconv.FormatUint(uint64(id), 10)); err != nil {
			middleware.WriteError(w, http.StatusTooManyRequests, middleware.ErrThrottled, "Too many commands for this control, retry shortly")
			return
		}

		accepted, err := registry.Set(id, req.Value)
		if err != nil {
			writeRegistryError(w, err)
			return
		}

		if broadcaster != nil {
			name := ""
			if c, err := registry.Get(id); err == nil {
				name = c.Name
			}
			broadcaster.BroadcastControlChanged(id, name, accepted)
		}

		writeJSON(w, ControlValueResponse{ControlID: id, Value: accepted})
	}
}

func controlID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid control id")
		return 0, false
	}
	return uint32(id), true
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, v4l2.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown control")
	case errors.Is(err, v4l2.ErrNotWritable):
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrNotWritable, "Control is read-only or inactive")
	case errors.Is(err, v4l2.ErrValidation):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
	case errors.Is(err, v4l2.ErrStale):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "Control set changed during the write, refresh and retry")
	default:
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrBus, "Writing control failed: "+err.Error())
	}
}
