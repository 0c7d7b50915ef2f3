package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fleetsim/fleetsim-core/internal/device"
)

// handleListDevices returns all live devices, optionally filtered by kind.
//
// GET /api/v1/devices?kind=sensor
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	views := s.controller.ListDevices()

	if kind := r.URL.Query().Get("kind"); kind != "" {
		if !validKind(kind) {
			writeBadRequest(w, "unknown device kind "+strconv.Quote(kind))
			return
		}
		filtered := views[:0]
		for _, v := range views {
			if string(v.Kind) == kind {
				filtered = append(filtered, v)
			}
		}
		views = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": views,
		"count":   len(views),
	})
}

// validKind reports whether kind names a known device variant.
func validKind(kind string) bool {
	for _, k := range device.AllKinds() {
		if kind == string(k) {
			return true
		}
	}
	return false
}

// handleCreateDevice creates a device and starts its simulation task.
//
// POST /api/v1/devices
//
//	{"name": "Boiler Temp", "kind": "sensor", "sensor": {"base": 20, "amplitude": 0.5}}
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var spec device.CreateSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	view, err := s.controller.CreateDevice(r.Context(), spec)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// handleGetDevice returns a single device.
//
// GET /api/v1/devices/{id}
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	view, err := s.controller.GetDevice(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// handleConfigureDevice applies a partial config delta to a device.
//
// PATCH /api/v1/devices/{id}
//
//	{"interval_ms": 500, "amplitude": 1.5}
func (s *Server) handleConfigureDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var delta map[string]any
	if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if len(delta) == 0 {
		writeBadRequest(w, "empty config delta")
		return
	}

	state, err := s.controller.Configure(r.Context(), id, delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"state": state,
	})
}

// handleDeleteDevice stops a device's task, waits for it, and removes the
// device. Responds 204 on success.
//
// DELETE /api/v1/devices/{id}
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.controller.RemoveDevice(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCommandDevice applies a control command to a device.
//
// POST /api/v1/devices/{id}/command
//
//	{"command": "turn_on"}
func (s *Server) handleCommandDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cmd device.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if cmd.Name == "" {
		writeBadRequest(w, "command is required")
		return
	}

	state, err := s.controller.Command(r.Context(), id, cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    id,
		"state": state,
	})
}

// handleDeviceReadings returns the most recent persisted readings for a
// device, newest first.
//
// GET /api/v1/devices/{id}/readings?limit=100
func (s *Server) handleDeviceReadings(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	readings, err := s.controller.Readings(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"readings":  readings,
		"count":     len(readings),
	})
}

// handleSetAllSwitches turns every active switch in the fleet on or off.
//
// PUT /api/v1/switches/state
//
//	{"on": true}
func (s *Server) handleSetAllSwitches(w http.ResponseWriter, r *http.Request) {
	var body struct {
		On *bool `json:"on"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if body.On == nil {
		writeBadRequest(w, "on is required")
		return
	}

	changed := s.controller.SetAllSwitches(r.Context(), *body.On)
	writeJSON(w, http.StatusOK, map[string]any{
		"on":      *body.On,
		"changed": changed,
	})
}
