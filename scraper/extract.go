package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/gridsight/models"
	"github.com/use-agent/gridsight/pipeline"
	"github.com/use-agent/gridsight/surface"
)

// Outcome is the scraper-level result of one extraction: the pipeline
// result plus navigation metadata and timing.
type Outcome struct {
	Records      []models.PostMetricRecord
	Strategy     string
	Passes       int
	FinalURL     string
	NavigationMs int64
	SamplingMs   int64
	EnrichMs     int64
}

// DoExtract runs a full extraction against a dashboard URL.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard    – hard deadline on the entire operation
//  2. Acquire page     – borrow a tab from the pool (or create one)
//  3. DEFER: cleanup   – about:blank + return to pool (leak prevention)
//  4. Stealth          – mask navigator.webdriver etc. (before navigation!)
//  5. Headers/cookies  – session credentials for the logged-in dashboard
//  6. Hijack mount     – block images/fonts/media (before navigation!)
//  7. Navigate + wait  – page load, DOM stable
//  8. Extract          – build the render surface, run the pipeline
//  9. Enrich           – optional detail-overlay lookups
//
// Steps 4–6 must precede step 7: stealth JS, header overrides, and
// resource blocking only apply to navigations after they are installed.
// Step 3's about:blank uses the ORIGINAL page reference (without request
// context), so cleanup succeeds even if the request context expired.
func (s *Scraper) DoExtract(ctx context.Context, req *models.ExtractRequest, opts pipeline.Options) (*Outcome, error) {
	// ── 1. Timeout guard ────────────────────────────────────────────
	timeout := time.Duration(req.Timeout) * time.Second
	if timeout <= 0 {
		timeout = s.scraperCfg.DefaultTimeout
	}
	if timeout > s.scraperCfg.MaxTimeout {
		timeout = s.scraperCfg.MaxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 1b. Per-request CDP URL: reuse the caller's own Chrome ─────
	// A manually-logged-in session lives there; attach, extract,
	// detach without killing the browser.
	if req.CDPURL != "" {
		return s.doExtractWithCDP(ctx, req, opts)
	}

	// ── 2. Acquire page from pool ───────────────────────────────────
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, acquireErr := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to acquire page from pool",
			acquireErr,
		)
	}

	// ── 3. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank",
				"error", navErr,
			)
		}
		s.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ────────────────────────────────────────
	if req.Stealth != nil && *req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}

	// ── 5. Session headers + cookies ────────────────────────────────
	applyHeaders(page, req)
	applyCookies(page, req)

	// ── 6. Mount hijack router ──────────────────────────────────────
	router := setupHijack(page, s.scraperCfg.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 7. Navigate + wait ──────────────────────────────────────────
	p := page.Context(ctx)

	navStart := time.Now()
	if navErr := p.Navigate(req.URL); navErr != nil {
		return nil, categorizeError(navErr, "navigation to dashboard failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr,
		)
	}
	navigationMs := time.Since(navStart).Milliseconds()

	// ── 8–9. Extract + enrich ───────────────────────────────────────
	outcome, err := s.ExtractFromPage(ctx, p, req, opts)
	if err != nil {
		return nil, err
	}
	outcome.NavigationMs = navigationMs
	return outcome, nil
}

// ExtractFromPage runs the pipeline against an already-navigated page.
// The interactive CLI calls this directly after the user finishes the
// manual login and lands on the dashboard.
func (s *Scraper) ExtractFromPage(ctx context.Context, p *rod.Page, req *models.ExtractRequest, opts pipeline.Options) (*Outcome, error) {
	surf := surface.NewRod(p)
	pipe := pipeline.New(opts)

	sampleStart := time.Now()
	result, err := pipe.Extract(ctx, surf)
	if err != nil {
		return nil, categorizeError(err, "extraction pipeline failed")
	}
	samplingMs := time.Since(sampleStart).Milliseconds()

	var enrichMs int64
	if req.EnrichDetails && len(result.Records) > 0 {
		enrichStart := time.Now()
		lookup := surface.NewDetailLookup(p, opts.SettleDelay)
		lookup.EnrichAll(ctx, result, s.scraperCfg.MaxDetailLookups)
		enrichMs = time.Since(enrichStart).Milliseconds()
	}

	return &Outcome{
		Records:    result.Records,
		Strategy:   result.Strategy,
		Passes:     result.Passes,
		FinalURL:   evalStringOrEmpty(p, `() => window.location.href`),
		SamplingMs: samplingMs,
		EnrichMs:   enrichMs,
	}, nil
}

// doExtractWithCDP connects to a user-provided CDP endpoint, creates a
// temporary page, extracts, and disconnects (without killing the browser).
func (s *Scraper) doExtractWithCDP(ctx context.Context, req *models.ExtractRequest, opts pipeline.Options) (*Outcome, error) {
	browser := rod.New().ControlURL(req.CDPURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to connect to CDP URL",
			err,
		)
	}
	// Close disconnects the WebSocket but does NOT kill the browser.
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to create page on CDP browser",
			err,
		)
	}
	defer func() {
		_ = page.Close()
	}()

	p := page.Context(ctx)

	navStart := time.Now()
	if err := p.Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to dashboard failed")
	}
	_ = p.WaitDOMStable(300*time.Millisecond, 0.1)
	navigationMs := time.Since(navStart).Milliseconds()

	outcome, err := s.ExtractFromPage(ctx, p, req, opts)
	if err != nil {
		return nil, err
	}
	outcome.NavigationMs = navigationMs
	return outcome, nil
}

// applyHeaders sets extra HTTP headers, defaulting the Referer to a
// search hit for the dashboard's host when the caller didn't supply one.
func applyHeaders(page *rod.Page, req *models.ExtractRequest) {
	extraHeaders := make(map[string]string, len(req.Headers)+1)
	if _, hasReferer := req.Headers["Referer"]; !hasReferer {
		if u, parseErr := url.Parse(req.URL); parseErr == nil {
			extraHeaders["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
		}
	}
	for k, v := range req.Headers {
		extraHeaders[k] = v
	}
	if len(extraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(extraHeaders),
		}.Call(page)
	}
}

// applyCookies installs session cookies before navigation.
func applyCookies(page *rod.Page, req *models.ExtractRequest) {
	for _, cookie := range req.Cookies {
		domain := cookie.Domain
		if domain == "" {
			if u, parseErr := url.Parse(req.URL); parseErr == nil {
				domain = u.Host
			}
		}
		path := cookie.Path
		if path == "" {
			path = "/"
		}
		_, _ = proto.NetworkSetCookie{
			Name:   cookie.Name,
			Value:  cookie.Value,
			Domain: domain,
			Path:   path,
		}.Call(page)
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors (optional metadata only).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders
// type (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw errors into typed ExtractErrors so the API
// layer can map them to appropriate HTTP status codes.
func categorizeError(err error, msg string) error {
	var extractErr *models.ExtractError
	switch {
	case errors.As(err, &extractErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewExtractError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewExtractError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewExtractError(models.ErrCodeNavigation, msg, err)
	}
}
