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

// ConsoleMetrics is returned by GET /v1/metrics/console.
type ConsoleMetrics struct {
	OAuthExchanges      int64   `json:"oauthExchanges"`
	OAuthFailures       int64   `json:"oauthFailures"`
	OAuthSuccessRate    float64 `json:"oauthSuccessRate"`
	TokenRefreshes      int64   `json:"tokenRefreshes"`
	TokenRefreshFailed  int64   `json:"tokenRefreshFailed"`
	Simulations         int64   `json:"simulations"`
	MatchedItems        int64   `json:"matchedItems"`
	UnmatchedItems      int64   `json:"unmatchedItems"`
	MatchRate           float64 `json:"matchRate"`
	ProfileCacheHitRate float64 `json:"profileCacheHitRate"`
	Period              string  `json:"period"`

	// LastTokenRefresh is the report of the latest completed refresh sweep.
	LastTokenRefresh *RefreshReport `json:"lastTokenRefresh,omitempty"`
}

// ============================================================
// Generic API Response wrappers
// ============================================================

// ListResponse wraps paginated list results.
type ListResponse[T any] struct {
	Data     []T  `json:"data"`
	Total    int  `json:"total"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasMore  bool `json:"has_more"`
}

// SuccessResponse wraps a successful single-entity response.
type SuccessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
