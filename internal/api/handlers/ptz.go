package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/camera-control-manager/backend/internal/api/middleware"
	"github.com/camera-control-manager/backend/internal/bus"
	"github.com/camera-control-manager/backend/internal/ptz"
	"github.com/camera-control-manager/backend/internal/ratelimit"
)

// PTZCommand moves one motor axis. Commands are rate limited per axis so
// a held-down UI button cannot flood the bus; unrelated axes never
// throttle each other.
func PTZCommand(driver *ptz.Driver, limiter *ratelimit.Limiter, broadcaster Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		axis := mux.Vars(r)["axis"]

		var req struct {
			Value *int `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Value == nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid or missing value")
			return
		}
		value := *req.Value

		apply, ok := axisCommand(driver, axis, value)
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Unknown axis: "+axis)
			return
		}

		if err := limiter.Allow("ptz:" + axis); err != nil {
			middleware.WriteError(w, http.StatusTooManyRequests, middleware.ErrThrottled, "Too many commands for this axis, retry shortly")
			return
		}

		if err := apply(); err != nil {
			writePTZError(w, axis, err)
			return
		}

		if broadcaster != nil {
			broadcaster.BroadcastPTZMoved(axis, value)
		}
		writeJSON(w, map[string]any{"axis": axis, "value": value, "state": driver.State()})
	}
}

// GetPTZState returns the last acknowledged motor state.
func GetPTZState(driver *ptz.Driver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, driver.State())
	}
}

func axisCommand(driver *ptz.Driver, axis string, value int) (func() error, bool) {
	switch axis {
	case ptz.CapPan:
		return func() error { return driver.SetPan(value) }, true
	case ptz.CapTilt:
		return func() error { return driver.SetTilt(value) }, true
	case ptz.CapZoom:
		return func() error { return driver.SetZoom(value) }, true
	case ptz.CapFocus:
		return func() error { return driver.SetFocus(value) }, true
	case ptz.CapIRCut:
		return func() error {
			if value != 0 && value != 1 {
				return &ptz.OutOfRangeError{Axis: ptz.CapIRCut, Value: value, Min: 0, Max: 1}
			}
			return driver.SetIRCut(value == 1)
		}, true
	default:
		return nil, false
	}
}

func writePTZError(w http.ResponseWriter, axis string, err error) {
	var oor *ptz.OutOfRangeError
	switch {
	case errors.As(err, &oor):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, oor.Error())
	case errors.Is(err, ptz.ErrUnsupported), errors.Is(err, ptz.ErrNoController):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrUnsupported, "Unsupported by this camera")
	case bus.IsNotPresent(err):
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrBus, "Controller stopped answering, is the camera plugged in?")
	default:
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrBus, axis+" command failed: "+err.Error())
	}
}
