package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/guard"
	"github.com/boddenberg/zillo-assist-go/internal/infra/observability"

	"go.uber.org/zap"
)

// ============================================================
// Landing & dashboard
// ============================================================

type landing struct {
	Product string            `json:"product"`
	Tagline string            `json:"tagline"`
	Links   map[string]string `json:"links"`
}

func landingHandler() http.HandlerFunc {
	body := landing{
		Product: "Zillo Assist",
		Tagline: "Gestão da sua empresa em um só lugar.",
		Links: map[string]string{
			"login":    guard.LoginPath,
			"recovery": guard.LoginPath + "/recuperar-senha",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

func dashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SessionFromContext(r.Context()))
	}
}

// ============================================================
// Métricas & Health
// ============================================================

func healthzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := make([]domain.ServiceHealth, len(checks)+1)
		services[0] = domain.ServiceHealth{Name: "zillo-bff", Status: "healthy", LastChecked: now}

		var wg sync.WaitGroup
		for i, c := range checks {
			wg.Add(1)
			go func(i int, c HealthCheck) {
				defer wg.Done()
				start := time.Now()
				err := c.Ping(ctx)
				status := "healthy"
				if err != nil {
					status = "degraded"
					logger.Warn("health check failed", zap.String("service", c.Name), zap.Error(err))
				}
				services[i+1] = domain.ServiceHealth{
					Name:        c.Name,
					Status:      status,
					LatencyMs:   time.Since(start).Milliseconds(),
					LastChecked: now,
				}
			}(i, c)
		}
		wg.Wait()

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func authMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAuthSnapshot())
	}
}
