package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/response"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is any backing service the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	checks    map[string]Pinger
	log       *logger.Logger
	startTime time.Time
}

// NewHealthHandler probes every entry of checks. Nil entries are skipped so
// optional services can be passed unconditionally.
func NewHealthHandler(checks map[string]Pinger, log *logger.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}

	return &HealthHandler{
		checks:    active,
		log:       log,
		startTime: time.Now().UTC(),
	}
}

type MemoryMetrics struct {
	Alloc      uint64 `json:"alloc"`
	TotalAlloc uint64 `json:"total_alloc"`
	Sys        uint64 `json:"sys"`
	NumGC      uint32 `json:"num_gc"`
}

type HealthData struct {
	ServicesStatus map[string]string `json:"services_status"`
	Uptime         string            `json:"uptime"`
	Memory         MemoryMetrics     `json:"memory"`
	Goroutines     int               `json:"goroutines"`
}

func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := map[string]string{"app": "UP"}
	healthy := true
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.log.Warn("Health check failed", "service", name, "error", err)
			status[name] = "DOWN"
			healthy = false
			continue
		}
		status[name] = "UP"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	data := HealthData{
		ServicesStatus: status,
		Uptime:         time.Since(h.startTime).String(),
		Memory: MemoryMetrics{
			Alloc:      mem.Alloc,
			TotalAlloc: mem.TotalAlloc,
			Sys:        mem.Sys,
			NumGC:      mem.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
	}

	if !healthy {
		response.WriteJSON(w, http.StatusServiceUnavailable, &response.DataResponse[HealthData]{
			BaseResponse: response.BaseResponse{Status: response.StatusServiceUnavailable},
			Data:         data,
		})
		return
	}

	response.WriteSuccess(w, data)
}
