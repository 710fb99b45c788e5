package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"solar-tracker/internal/control"
	"solar-tracker/internal/database"
	"solar-tracker/internal/models"
	"solar-tracker/internal/services"
)

const maxBodyBytes = 64 << 10

// History reads persisted samples back; nil when storage is disabled
type History interface {
	GetRecentSamples(ctx context.Context, deviceID string, limit int) ([]database.SampleSummary, error)
}

type APIHandler struct {
	tracker *services.TrackerService
	history History
	now     func() time.Time
}

func NewAPIHandler(tracker *services.TrackerService, history History) *APIHandler {
	return &APIHandler{
		tracker: tracker,
		history: history,
		now:     time.Now,
	}
}

// HandleSensorValues receives a reading from a tracker and answers with its next position
func (h *APIHandler) HandleSensorValues(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reading, err := models.ParseReading(body, "", h.now())
	if err != nil {
		log.Printf("API: Rejected reading: %v", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.tracker.Process(r.Context(), reading)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrInvalidReading) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDiagnostics reports pair averages and suggested directions without moving anything
func (h *APIHandler) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var payload models.ReadingPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if payload.DeviceID == "" {
		payload.DeviceID = "bench"
	}

	reading, err := payload.ToReading(h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, control.Diagnose(reading))
}

// HandleStats returns the analytics counters
func (h *APIHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Stats())
}

// HandleListDevices returns the IDs of every device seen since startup
func (h *APIHandler) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"devices": h.tracker.Devices(),
	})
}

func (h *APIHandler) HandleDeviceState(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	state, ok := h.tracker.DeviceState(deviceID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown device: "+deviceID)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleSetLimits recalibrates the axis travel of a device
func (h *APIHandler) HandleSetLimits(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")

	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var limits control.Limits
	if err := json.Unmarshal(body, &limits); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.tracker.SetLimits(deviceID, limits); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, _ := h.tracker.DeviceState(deviceID)
	writeJSON(w, http.StatusOK, state)
}

// HandleDeviceSamples returns the most recent persisted samples of a device
func (h *APIHandler) HandleDeviceSamples(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}

	deviceID := chi.URLParam(r, "deviceID")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	samples, err := h.history.GetRecentSamples(r.Context(), deviceID, limit)
	if err != nil {
		log.Printf("API: Error reading samples for %s: %v", deviceID, err)
		writeError(w, http.StatusInternalServerError, "failed to read samples")
		return
	}
	if samples == nil {
		samples = []database.SampleSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"device_id": deviceID,
		"samples":   samples,
	})
}

func (h *APIHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "msg": msg})
}
