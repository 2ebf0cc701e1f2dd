package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/gridsight/cache"
	"github.com/use-agent/gridsight/config"
	"github.com/use-agent/gridsight/models"
	"github.com/use-agent/gridsight/pipeline"
	"github.com/use-agent/gridsight/scraper"
)

// Extract returns a handler for POST /api/v1/extract.
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults.
//  2. Cache lookup (if the client sent max_age).
//  3. Scraper.DoExtract → ordered metric records.
//  4. Fill timing, cache store, return 200.
func Extract(sc *scraper.Scraper, cfg *config.Config, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ExtractResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		// ── 2. Cache lookup ─────────────────────────────────────────
		if cc != nil && req.MaxAge > 0 {
			cacheKey := cache.Key(&req)
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				resp := *cached
				resp.CacheStatus = "hit"
				resp.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, resp)
				return
			}
		}

		// ── 3. Extract ──────────────────────────────────────────────
		outcome, err := sc.DoExtract(c.Request.Context(), &req, BuildOptions(cfg, &req))
		if err != nil {
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		// ── 4. Assemble response ────────────────────────────────────
		resp := &models.ExtractResponse{
			Success:      true,
			Records:      outcome.Records,
			Count:        len(outcome.Records),
			StrategyUsed: outcome.Strategy,
			Passes:       outcome.Passes,
			FinalURL:     outcome.FinalURL,
			Timing: models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: outcome.NavigationMs,
				SamplingMs:   outcome.SamplingMs,
				EnrichMs:     outcome.EnrichMs,
			},
		}

		if cc != nil && req.MaxAge > 0 {
			cc.Set(cache.Key(&req), resp)
			resp.CacheStatus = "miss"
		}

		c.JSON(http.StatusOK, resp)
	}
}

// BuildOptions seeds pipeline options from server configuration, then
// overlays any per-request overrides.
func BuildOptions(cfg *config.Config, req *models.ExtractRequest) pipeline.Options {
	opts := pipeline.Options{
		MaxPasses:          cfg.Sampler.MaxPasses,
		ScrollOverlapRatio: cfg.Sampler.ScrollOverlapRatio,
		SettleDelay:        cfg.Sampler.SettleDelay,
		DedupCellSize:      cfg.Pipeline.DedupCellSize,
		ClassifyCellSize:   cfg.Pipeline.ClassifyCellSize,
		RowBandHeight:      cfg.Pipeline.RowBandHeight,
		SizeFilter: pipeline.SizeWindow{
			WMin: float64(cfg.Pipeline.MinTokenWidth),
			WMax: float64(cfg.Pipeline.MaxTokenWidth),
			HMin: float64(cfg.Pipeline.MinTokenHeight),
			HMax: float64(cfg.Pipeline.MaxTokenHeight),
		},
		FallbackThreshold: cfg.Pipeline.FallbackThreshold,
		Bounds: pipeline.ScanBounds{
			TopMargin: float64(cfg.Pipeline.ScanTopMargin),
			MaxTop:    float64(cfg.Pipeline.ScanMaxTop),
			MaxLeft:   float64(cfg.Pipeline.ScanMaxLeft),
		},
		Fallback: pipeline.DefaultFallbackParams(),
	}

	if req.MaxPasses > 0 {
		opts.MaxPasses = req.MaxPasses
	}
	if req.ScrollOverlapRatio > 0 && req.ScrollOverlapRatio < 1 {
		opts.ScrollOverlapRatio = req.ScrollOverlapRatio
	}
	if req.SettleDelayMs > 0 {
		opts.SettleDelay = time.Duration(req.SettleDelayMs) * time.Millisecond
	}
	if req.DedupCellSize > 0 {
		opts.DedupCellSize = req.DedupCellSize
	}
	if req.ClassifyCellSize > 0 {
		opts.ClassifyCellSize = req.ClassifyCellSize
	}
	if req.RowBandHeight > 0 {
		opts.RowBandHeight = req.RowBandHeight
	}
	if req.SizeFilter != nil {
		opts.SizeFilter = pipeline.SizeWindow{
			WMin: req.SizeFilter.WMin,
			WMax: req.SizeFilter.WMax,
			HMin: req.SizeFilter.HMin,
			HMax: req.SizeFilter.HMax,
		}
	}
	if req.FallbackThreshold != nil {
		opts.FallbackThreshold = *req.FallbackThreshold
	}
	return opts
}

// respondError maps an ExtractError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	extractErr, ok := err.(*models.ExtractError)
	if !ok {
		extractErr = models.NewExtractError(models.ErrCodeInternal, err.Error(), err)
	}

	c.JSON(mapErrorToStatus(extractErr), models.ExtractResponse{
		Success: false,
		Error:   extractErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ExtractError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSnapshot:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
