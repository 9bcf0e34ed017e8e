package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const defaultReadinessTimeout = 3 * time.Second

// Check は依存先の疎通確認です。
type Check func(ctx context.Context) error

// HealthHandler は liveness / readiness プローブを提供します。
type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
}

// NewHealthHandler は HealthHandler を生成します。checks のキーはレスポンスの依存名になります。
func NewHealthHandler(checks map[string]Check, timeout time.Duration) *HealthHandler {
	if timeout <= 0 {
		timeout = defaultReadinessTimeout
	}
	copied := make(map[string]Check, len(checks))
	for name, check := range checks {
		if check != nil {
			copied[name] = check
		}
	}
	return &HealthHandler{checks: copied, timeout: timeout}
}

type dependencyStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status       string                      `json:"status"`
	Dependencies map[string]dependencyStatus `json:"dependencies"`
}

// Live はプロセスが応答可能であれば常に 200 を返します。
func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready はすべての依存先を並行して確認し、1 つでも失敗すれば 503 を返します。
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), h.timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		g       errgroup.Group
		healthy = true
		deps    = make(map[string]dependencyStatus, len(h.checks))
	)
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			st := dependencyStatus{Status: "ok"}
			if err := check(ctx); err != nil {
				st = dependencyStatus{Status: "unhealthy", Error: err.Error()}
			}
			mu.Lock()
			defer mu.Unlock()
			deps[name] = st
			if st.Error != "" {
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	return c.JSON(code, readinessResponse{Status: status, Dependencies: deps})
}
