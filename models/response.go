package models

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	// Success indicates whether the extraction ran to completion.
	// A successful run with zero records means the page simply had no
	// numeric-shaped content, not that the run failed.
	Success bool `json:"success"`

	// Records is the ordered metric list, one row per grid item.
	Records []PostMetricRecord `json:"records"`

	// Count is len(Records), surfaced for convenience.
	Count int `json:"count"`

	// StrategyUsed names the extraction strategy that produced the
	// records: "primary" or "fallback".
	StrategyUsed string `json:"strategy_used,omitempty"`

	// Passes is the number of sampling passes actually performed.
	Passes int `json:"passes,omitempty"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo provides duration breakdowns for an extraction.
type TimingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	NavigationMs int64 `json:"navigation_ms,omitempty"`
	SamplingMs   int64 `json:"sampling_ms,omitempty"`
	EnrichMs     int64 `json:"enrich_ms,omitempty"`
}

// PoolStats reports page pool utilisation.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}
