package models

// SizeFilter is the plausible-metric bounding-box window in px.
// Tokens outside it are large headline numbers or incidental digits,
// not per-item metrics.
type SizeFilter struct {
	WMin float64 `json:"w_min"`
	WMax float64 `json:"w_max"`
	HMin float64 `json:"h_min"`
	HMax float64 `json:"h_max"`
}

// ExtractRequest is the payload for POST /api/v1/extract.
//
// All geometry knobs are optional; zero values mean "use the server
// defaults". They encode assumptions about one dashboard layout at one
// viewport size, so callers targeting a different surface should tune
// them rather than trust the defaults.
type ExtractRequest struct {
	// URL is the dashboard page to extract from. Required.
	URL string `json:"url" binding:"required,url"`

	// CDPURL attaches to an already-running Chrome via DevTools
	// protocol instead of the pooled headless browser. This is how a
	// manually-logged-in session is reused in server mode.
	CDPURL string `json:"cdp_url,omitempty" binding:"omitempty,url"`

	// Timeout is the maximum duration in seconds for the entire
	// extraction (navigation + all sampling passes + classification).
	// Default: 180. Max: 600.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=600"`

	// Stealth enables anti-bot-detection evasions. Default: true
	// (the kind of page this targets is behind a login that actively
	// looks for automation).
	Stealth *bool `json:"stealth,omitempty"`

	// Headers/Cookies are applied to the page before navigation.
	Headers map[string]string `json:"headers,omitempty"`
	Cookies []Cookie          `json:"cookies,omitempty"`

	// Sampler knobs.
	MaxPasses          int     `json:"max_passes,omitempty" binding:"omitempty,min=1,max=500"`
	ScrollOverlapRatio float64 `json:"scroll_overlap_ratio,omitempty" binding:"omitempty,gt=0,lt=1"`
	SettleDelayMs      int     `json:"settle_delay_ms,omitempty" binding:"omitempty,min=0,max=30000"`

	// Pipeline geometry knobs.
	DedupCellSize     int         `json:"dedup_cell_size,omitempty" binding:"omitempty,min=1"`
	ClassifyCellSize  int         `json:"classify_cell_size,omitempty" binding:"omitempty,min=1"`
	RowBandHeight     int         `json:"row_band_height,omitempty" binding:"omitempty,min=1"`
	SizeFilter        *SizeFilter `json:"size_filter,omitempty"`
	FallbackThreshold *int        `json:"fallback_threshold,omitempty" binding:"omitempty,min=0"`

	// EnrichDetails opens each item's detail overlay to fill metrics
	// the grid itself does not show (likes/comments/shares/saves).
	// Slow and side-effecting; off by default.
	EnrichDetails bool `json:"enrich_details,omitempty"`

	// MaxAge enables cache lookup: accept a cached response no older
	// than this many milliseconds. 0 disables caching.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Cookie is a browser cookie applied before navigation.
type Cookie struct {
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value" binding:"required"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ExtractRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 180
	}
	if r.Stealth == nil {
		t := true
		r.Stealth = &t
	}
}
