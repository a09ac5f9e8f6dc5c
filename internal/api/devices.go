package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ac-bridge/internal/device"
)

// deviceKeyFromPath extracts the composite key from the URL.
func deviceKeyFromPath(r *http.Request) device.Key {
	return device.NewKey(chi.URLParam(r, "brand"), chi.URLParam(r, "deviceId"))
}

// handleListDevices returns the registry snapshot.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns one device record.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	rec, err := s.registry.Get(deviceKeyFromPath(r))
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeleteDevice has the same effect as a dashboard delete_device
// command: the record is removed, relays are told and clients get the new
// device list.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	key := deviceKeyFromPath(r)
	if !s.deleter.DeleteDevice(key) {
		writeNotFound(w, "device not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceHistory returns recorded lifecycle events for a device,
// newest first.
//
// Query parameters:
//   - limit: number of entries (default 50, max 200)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "device history is not enabled")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	key := deviceKeyFromPath(r)
	entries, err := s.history.GetHistory(r.Context(), key, limit)
	if err != nil {
		s.logger.Error("failed to query device history", "key", key.String(), "error", err)
		writeInternalError(w, "failed to query device history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"brand":    key.Brand,
		"deviceId": key.DeviceID,
		"history":  entries,
		"count":    len(entries),
	})
}
