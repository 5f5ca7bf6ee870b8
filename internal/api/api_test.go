package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"perimeter-state-sync/internal/cache"
	"perimeter-state-sync/internal/fence"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) All(ctx context.Context) ([]cache.DeviceRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]cache.DeviceRecord)
	return records, args.Error(1)
}

func (m *mockRepository) ListByControllerLine(ctx context.Context, controller, line int) ([]cache.DeviceRecord, error) {
	args := m.Called(ctx, controller, line)
	records, _ := args.Get(0).([]cache.DeviceRecord)
	return records, args.Error(1)
}

func (m *mockRepository) Stats(ctx context.Context) (cache.Stats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(cache.Stats)
	return stats, args.Error(1)
}

func sampleRecord() cache.DeviceRecord {
	ctrl, line, zone := 14, 0, 22
	return cache.DeviceRecord{
		Name:           "Fence Controller FC-14 Line 0 Zone Z22",
		RawState:       "Fence Zone Z22 Line 0 FC-14 Fail",
		EffectiveState: fence.EffectiveFail,
		LastSetTime:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 3, 1, 10, 0, 5, 0, time.UTC),
		ControllerID:   &ctrl,
		Line:           &line,
		Zone:           &zone,
		DeviceType:     fence.TypeFenceZone,
	}
}

func Test_GetDevices(t *testing.T) {
	cases := []struct {
		name           string
		setupRepo      func() repository
		expectedStatus int
		expectedColor  string
	}{
		{
			name: "failed device renders red",
			setupRepo: func() repository {
				repo := &mockRepository{}
				repo.On("All", mock.Anything).Return([]cache.DeviceRecord{sampleRecord()}, nil)
				return repo
			},
			expectedStatus: http.StatusOK,
			expectedColor:  "red",
		},
		{
			name: "normal device renders blue",
			setupRepo: func() repository {
				rec := sampleRecord()
				rec.EffectiveState = fence.EffectiveNormal
				repo := &mockRepository{}
				repo.On("All", mock.Anything).Return([]cache.DeviceRecord{rec}, nil)
				return repo
			},
			expectedStatus: http.StatusOK,
			expectedColor:  "blue",
		},
		{
			name: "cache error",
			setupRepo: func() repository {
				repo := &mockRepository{}
				repo.On("All", mock.Anything).Return(nil, errors.New("cache error"))
				return repo
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			api := New(Config{Cache: tt.setupRepo()})

			req := httptest.NewRequest(http.MethodGet, "https://test.com/devices", nil)
			w := httptest.NewRecorder()
			api.GetDevices(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var resp GetDevicesResponse
				assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Len(t, resp.Devices, 1)
				assert.Equal(t, tt.expectedColor, resp.Devices[0].Color)
			}
		})
	}
}

func Test_GetLineDevices(t *testing.T) {
	cases := []struct {
		name           string
		controllerID   string
		line           string
		setupRepo      func() repository
		expectedStatus int
	}{
		{
			name:         "valid request",
			controllerID: "14",
			line:         "0",
			setupRepo: func() repository {
				repo := &mockRepository{}
				repo.On("ListByControllerLine", mock.Anything, 14, 0).
					Return([]cache.DeviceRecord{sampleRecord()}, nil)
				return repo
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid controller id",
			controllerID:   "bad",
			line:           "0",
			setupRepo:      func() repository { return &mockRepository{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid line",
			controllerID:   "14",
			line:           "bad",
			setupRepo:      func() repository { return &mockRepository{} },
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:         "cache error",
			controllerID: "14",
			line:         "0",
			setupRepo: func() repository {
				repo := &mockRepository{}
				repo.On("ListByControllerLine", mock.Anything, 14, 0).
					Return(nil, errors.New("cache error"))
				return repo
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			api := New(Config{Cache: tt.setupRepo()})

			req := httptest.NewRequest(http.MethodGet, "https://test.com/controllers/"+tt.controllerID+"/lines/"+tt.line+"/devices", nil)
			ctx := chi.NewRouteContext()
			ctx.URLParams.Add("controller_id", tt.controllerID)
			ctx.URLParams.Add("line", tt.line)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, ctx))

			w := httptest.NewRecorder()
			api.GetLineDevices(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func Test_GetCacheStats(t *testing.T) {
	repo := &mockRepository{}
	repo.On("Stats", mock.Anything).Return(cache.Stats{TotalDevices: 3}, nil)
	api := New(Config{Cache: repo})

	req := httptest.NewRequest(http.MethodGet, "https://test.com/cache/stats", nil)
	w := httptest.NewRecorder()
	api.GetCacheStats(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var stats cache.Stats
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalDevices)
}
