package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// AuthMetrics is returned by GET /v1/metrics/auth.
type AuthMetrics struct {
	StageAdvances  map[string]int64 `json:"stageAdvances"`
	StageRejects   map[string]int64 `json:"stageRejects"`
	FallbackUses   int64            `json:"fallbackUses"`
	RemoteErrors   int64            `json:"remoteErrors"`
	FallbackRate   float64          `json:"fallbackRate"`
	CacheHitRate   float64          `json:"cacheHitRate"`
	ExpiredCleared int64            `json:"expiredSessionsCleared"`
	Period         string           `json:"period"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
