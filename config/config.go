package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Sampler   SamplerConfig
	Pipeline  PipelineConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless. The CLI
	// forces this off because login is manual.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// WindowWidth/WindowHeight set the browser window size. Geometry
	// defaults in PipelineConfig assume roughly this viewport.
	WindowWidth  int // default: 1920
	WindowHeight int // default: 1080

	// DefaultProxy is the default proxy URL for all sessions.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls per-extraction browser behavior.
type ScraperConfig struct {
	// DefaultTimeout is the per-extraction deadline.
	DefaultTimeout time.Duration // default: 180s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 600s

	// BlockedResourceTypes lists resource types blocked during
	// sampling. The metric text renders without them and the page
	// settles faster. default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// MaxDetailLookups caps the click-to-reveal overlay lookups per
	// run so a large grid cannot turn into hundreds of clicks.
	MaxDetailLookups int // default: 10
}

// SamplerConfig controls the multi-pass scroll sampler.
type SamplerConfig struct {
	// MaxPasses is the hard cap on sampling passes per extraction.
	MaxPasses int // default: 50

	// ScrollOverlapRatio is the viewport fraction by which successive
	// passes overlap, so an item straddling a pass boundary is seen
	// whole in at least one pass. Must be in (0,1). default: 0.1
	ScrollOverlapRatio float64

	// SettleDelay is how long the sampler suspends after each scroll
	// before snapshotting, letting lazy content render. default: 1.5s
	SettleDelay time.Duration
}

// PipelineConfig carries the default geometry of the classification
// pipeline. Every value is overridable per request; the defaults encode
// one particular dashboard layout at the default window size.
type PipelineConfig struct {
	// DedupCellSize is the dedup grid cell (G1). Larger than cross-pass
	// position jitter, smaller than item spacing. default: 150
	DedupCellSize int

	// ClassifyCellSize is the one-metric-per-item grid cell (G2),
	// strictly larger than DedupCellSize. default: 250
	ClassifyCellSize int

	// RowBandHeight groups items into visual rows for ordering.
	// default: 200
	RowBandHeight int

	// Size window for a plausible per-item metric, in px.
	MinTokenWidth  int // default: 10
	MaxTokenWidth  int // default: 100
	MinTokenHeight int // default: 10
	MaxTokenHeight int // default: 50

	// FallbackThreshold is the minimum classified-candidate count
	// below which the fallback strategy replaces the primary result.
	// default: 10
	FallbackThreshold int

	// Scan visibility bounds: nodes above ScanTopMargin (fixed
	// headers), below ScanMaxTop, or right of ScanMaxLeft are ignored.
	ScanTopMargin int // default: 60
	ScanMaxTop    int // default: 200000
	ScanMaxLeft   int // default: 2400
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 2

	// Burst is the maximum burst size per API key.
	Burst int // default: 5
}

// CacheConfig controls the extraction response cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached responses.
	MaxEntries int // default: 500
}

// WebhookConfig controls batch-completion webhook delivery.
type WebhookConfig struct {
	// Secret signs webhook payloads with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("GRIDSIGHT_HOST", "0.0.0.0"),
			Port: envIntOr("GRIDSIGHT_PORT", 8080),
			Mode: envOr("GRIDSIGHT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("GRIDSIGHT_HEADLESS", true),
			MaxPages:     envIntOr("GRIDSIGHT_MAX_PAGES", 4),
			WindowWidth:  envIntOr("GRIDSIGHT_WINDOW_WIDTH", 1920),
			WindowHeight: envIntOr("GRIDSIGHT_WINDOW_HEIGHT", 1080),
			DefaultProxy: os.Getenv("GRIDSIGHT_PROXY"),
			NoSandbox:    envBoolOr("GRIDSIGHT_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("GRIDSIGHT_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout: envDurationOr("GRIDSIGHT_DEFAULT_TIMEOUT", 180*time.Second),
			MaxTimeout:     envDurationOr("GRIDSIGHT_MAX_TIMEOUT", 600*time.Second),
			BlockedResourceTypes: envSliceOr("GRIDSIGHT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			MaxDetailLookups: envIntOr("GRIDSIGHT_MAX_DETAIL_LOOKUPS", 10),
		},
		Sampler: SamplerConfig{
			MaxPasses:          envIntOr("GRIDSIGHT_MAX_PASSES", 50),
			ScrollOverlapRatio: envFloatOr("GRIDSIGHT_SCROLL_OVERLAP", 0.1),
			SettleDelay:        envDurationOr("GRIDSIGHT_SETTLE_DELAY", 1500*time.Millisecond),
		},
		Pipeline: PipelineConfig{
			DedupCellSize:     envIntOr("GRIDSIGHT_DEDUP_CELL", 150),
			ClassifyCellSize:  envIntOr("GRIDSIGHT_CLASSIFY_CELL", 250),
			RowBandHeight:     envIntOr("GRIDSIGHT_ROW_BAND", 200),
			MinTokenWidth:     envIntOr("GRIDSIGHT_MIN_TOKEN_WIDTH", 10),
			MaxTokenWidth:     envIntOr("GRIDSIGHT_MAX_TOKEN_WIDTH", 100),
			MinTokenHeight:    envIntOr("GRIDSIGHT_MIN_TOKEN_HEIGHT", 10),
			MaxTokenHeight:    envIntOr("GRIDSIGHT_MAX_TOKEN_HEIGHT", 50),
			FallbackThreshold: envIntOr("GRIDSIGHT_FALLBACK_THRESHOLD", 10),
			ScanTopMargin:     envIntOr("GRIDSIGHT_SCAN_TOP_MARGIN", 60),
			ScanMaxTop:        envIntOr("GRIDSIGHT_SCAN_MAX_TOP", 200000),
			ScanMaxLeft:       envIntOr("GRIDSIGHT_SCAN_MAX_LEFT", 2400),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("GRIDSIGHT_AUTH_ENABLED", true),
			APIKeys: envSliceOr("GRIDSIGHT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("GRIDSIGHT_RATE_RPS", 2.0),
			Burst:             envIntOr("GRIDSIGHT_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("GRIDSIGHT_CACHE_MAX_ENTRIES", 500),
		},
		Webhook: WebhookConfig{
			Secret: os.Getenv("GRIDSIGHT_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("GRIDSIGHT_LOG_LEVEL", "info"),
			Format: envOr("GRIDSIGHT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
