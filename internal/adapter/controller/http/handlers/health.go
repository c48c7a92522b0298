package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/frclabs/reportcenter/internal/config"
)

var startTime = time.Now()

// Pinger checks one backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Uptime      string            `json:"uptime"`
	Environment string            `json:"environment"`
	Timestamp   time.Time         `json:"timestamp"`
	Checks      map[string]string `json:"checks"`
	System      SystemInfo        `json:"system"`
}

// SystemInfo represents system information
type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumCPU       int    `json:"num_cpu"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
}

// HealthCheck returns a handler for the health check endpoint. A nil db
// skips the database probe.
func HealthCheck(cfg *config.Config, db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		checks := map[string]string{
			"api": "ok",
		}
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				checks["clickhouse"] = err.Error()
			} else {
				checks["clickhouse"] = "ok"
			}
		}

		status := "healthy"
		for _, check := range checks {
			if check != "ok" {
				status = "degraded"
				break
			}
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}

		JSONResponse(w, code, HealthResponse{
			Status:      status,
			Version:     "1.0.0",
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			Environment: cfg.App.Env,
			Timestamp:   time.Now().UTC(),
			Checks:      checks,
			System: SystemInfo{
				GoVersion:    runtime.Version(),
				NumCPU:       runtime.NumCPU(),
				NumGoroutine: runtime.NumGoroutine(),
				MemAllocMB:   m.Alloc / 1024 / 1024,
			},
		})
	}
}
