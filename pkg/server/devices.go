package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/raterudder/azzurro/pkg/coordinator"
	"github.com/raterudder/azzurro/pkg/log"
	"github.com/raterudder/azzurro/pkg/storage"
	"github.com/raterudder/azzurro/pkg/types"
)

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	list := s.hub.List()
	statuses := make([]types.DeviceStatus, 0, len(list))
	for _, c := range list {
		statuses = append(statuses, c.Status())
	}
	writeJSON(w, statuses, http.StatusOK)
}

func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req struct {
		ThingKey string `json:"thingKey"`
		Name     string `json:"name"`
	}
	// Limit body size to 1MB
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode device", slog.Any("error", err))
		writeJSONError(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.ThingKey == "" {
		writeJSONError(w, "thingKey is required", http.StatusBadRequest)
		return
	}
	ctx = log.WithThing(ctx, req.ThingKey)

	device := types.Device{
		ThingKey: req.ThingKey,
		Name:     req.Name,
	}
	if err := s.storage.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, storage.ErrDeviceExists) {
			writeJSONError(w, "device already registered", http.StatusConflict)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to create device", slog.Any("error", err))
		writeJSONError(w, "failed to create device", http.StatusInternalServerError)
		return
	}

	// read back to get the stored creation time
	if stored, err := s.storage.GetDevice(ctx, device.ThingKey); err == nil {
		device = stored
	} else {
		log.Ctx(ctx).WarnContext(ctx, "failed to read back device", slog.Any("error", err))
	}

	c, err := s.hub.Add(device)
	if err != nil {
		if errors.Is(err, coordinator.ErrAlreadyRegistered) {
			writeJSONError(w, "device already registered", http.StatusConflict)
			return
		}
		log.Ctx(ctx).ErrorContext(ctx, "failed to start device", slog.Any("error", err))
		writeJSONError(w, "failed to start device", http.StatusInternalServerError)
		return
	}
	log.Ctx(ctx).InfoContext(ctx, "device registered")
	writeJSON(w, c.Status(), http.StatusCreated)
}

func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	thingKey := r.PathValue("thingKey")
	ctx = log.WithThing(ctx, thingKey)

	err := s.storage.DeleteDevice(ctx, thingKey)
	switch {
	case errors.Is(err, storage.ErrDeviceNotFound):
		// it may only be running, e.g. registered by flag
		if !s.hub.Remove(thingKey) {
			writeJSONError(w, "device not found", http.StatusNotFound)
			return
		}
	case err != nil:
		log.Ctx(ctx).ErrorContext(ctx, "failed to delete device", slog.Any("error", err))
		writeJSONError(w, "failed to delete device", http.StatusInternalServerError)
		return
	default:
		s.hub.Remove(thingKey)
	}
	log.Ctx(ctx).InfoContext(ctx, "device removed")
	w.WriteHeader(http.StatusNoContent)
}
