package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"perimeter-state-sync/internal/cache"
	"perimeter-state-sync/internal/fence"

	"github.com/go-chi/chi/v5"
)

type repository interface {
	All(ctx context.Context) ([]cache.DeviceRecord, error)
	ListByControllerLine(ctx context.Context, controller, line int) ([]cache.DeviceRecord, error)
	Stats(ctx context.Context) (cache.Stats, error)
}

type API struct {
	Cache repository
}

type Config struct {
	Cache repository
}

func New(cfg Config) *API {
	return &API{Cache: cfg.Cache}
}

// Routes mounts the read-only cache endpoints.
func (a *API) Routes(r chi.Router) {
	r.Get("/devices", a.GetDevices)
	r.Get("/controllers/{controller_id}/lines/{line}/devices", a.GetLineDevices)
	r.Get("/cache/stats", a.GetCacheStats)
}

func (a *API) GetDevices(w http.ResponseWriter, r *http.Request) {
	records, err := a.Cache.All(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, toResponse(records))
}

// GetLineDevices lists one (controller, line) ordered by zone, which is the
// view used to inspect cascade scope.
func (a *API) GetLineDevices(w http.ResponseWriter, r *http.Request) {
	controller, err := strconv.Atoi(chi.URLParam(r, "controller_id"))
	if err != nil {
		http.Error(w, "invalid controller id", http.StatusBadRequest)
		return
	}
	line, err := strconv.Atoi(chi.URLParam(r, "line"))
	if err != nil {
		http.Error(w, "invalid line", http.StatusBadRequest)
		return
	}

	records, err := a.Cache.ListByControllerLine(r.Context(), controller, line)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, toResponse(records))
}

func (a *API) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Cache.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func toResponse(records []cache.DeviceRecord) GetDevicesResponse {
	resp := GetDevicesResponse{Devices: make([]Device, 0, len(records))}
	for _, rec := range records {
		color := "red"
		if rec.EffectiveState == fence.EffectiveNormal {
			color = "blue"
		}
		resp.Devices = append(resp.Devices, Device{
			Name:           rec.Name,
			LastState:      rec.RawState,
			EffectiveState: string(rec.EffectiveState),
			Color:          color,
			LastSetTime:    rec.LastSetTime.Format(time.RFC3339),
			UpdatedAt:      rec.UpdatedAt.Format(time.RFC3339),
			ControllerID:   rec.ControllerID,
			Line:           rec.Line,
			Zone:           rec.Zone,
			DeviceType:     string(rec.DeviceType),
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
