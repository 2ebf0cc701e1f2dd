package surface

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"golang.org/x/net/html"

	"github.com/use-agent/gridsight/models"
	"github.com/use-agent/gridsight/pipeline"
)

// overlayScope narrows the page HTML to the detail overlay so metric
// keywords elsewhere on the page cannot leak into a record.
const overlayScope = `[role="dialog"], [aria-modal="true"]`

// metricKeywords maps record fields to the keyword variants that appear
// next to a magnitude in the overlay text.
var metricKeywords = map[string][]string{
	"views":    {"views", "view", "plays", "play"},
	"likes":    {"likes", "like"},
	"comments": {"comments", "comment"},
	"shares":   {"shares", "share"},
	"saves":    {"saves", "save"},
}

// DetailLookup is the explicitly fallible click-to-reveal collaborator:
// it opens an item's detail overlay to resolve metrics the grid itself
// does not show, then closes it. Every step is side-effecting against
// the render surface, so it runs only after the pure pipeline finishes,
// and only for records still missing metrics.
type DetailLookup struct {
	page   *rod.Page
	settle time.Duration
}

// NewDetailLookup wraps a page for overlay lookups. settle is the wait
// after each click for the overlay to render or dismiss.
func NewDetailLookup(page *rod.Page, settle time.Duration) *DetailLookup {
	return &DetailLookup{page: page, settle: settle}
}

// EnrichAll resolves missing metrics for up to maxLookups records,
// walking records in sequence order. A stale sighting (the clicked
// position no longer maps to an element) is skipped, never retried.
func (d *DetailLookup) EnrichAll(ctx context.Context, result *pipeline.Result, maxLookups int) {
	lookups := 0
	for i := range result.Records {
		if lookups >= maxLookups {
			slog.Info("detail: lookup cap reached", "cap", maxLookups)
			return
		}
		rec := &result.Records[i]
		if !needsEnrichment(rec) {
			continue
		}
		lookups++
		if err := d.enrichOne(ctx, rec, result.Tokens[i]); err != nil {
			slog.Warn("detail: lookup failed, skipping record",
				"label", rec.Label,
				"error", err,
			)
		}
	}
}

// needsEnrichment reports whether any metric field is unresolved.
func needsEnrichment(rec *models.PostMetricRecord) bool {
	return rec.Views == nil || rec.Likes == nil || rec.Comments == nil ||
		rec.Shares == nil || rec.Saves == nil
}

// enrichOne opens the overlay at the token's position, extracts metric
// values from the overlay text, and closes the overlay again. The
// overlay is closed on every path so a failed extraction cannot leave
// the page in the detail state.
func (d *DetailLookup) enrichOne(ctx context.Context, rec *models.PostMetricRecord, at pipeline.CandidateToken) error {
	if err := d.openAt(at); err != nil {
		return err
	}
	defer d.close()

	if err := d.wait(ctx); err != nil {
		return err
	}

	pageHTML, err := d.page.HTML()
	if err != nil {
		return fmt.Errorf("detail: read overlay html: %w", err)
	}

	text, err := overlayText(pageHTML)
	if err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("detail: no overlay appeared for %s", rec.Label)
	}

	fillMetrics(rec, text)
	return nil
}

// openAt centres the token's document position in the viewport and
// clicks whatever element renders there. An empty hit means the token
// went stale since it was observed.
func (d *DetailLookup) openAt(at pipeline.CandidateToken) error {
	x := at.Left + at.Width/2
	y := at.Top + at.Height/2

	res, err := d.page.Eval(`(x, y) => {
		window.scrollTo(0, Math.max(0, y - window.innerHeight / 2));
		const vy = y - (window.scrollY || 0);
		const el = document.elementFromPoint(x, vy);
		if (!el) return false;
		const target = el.closest('[role="button"], a') || el;
		target.click();
		return true;
	}`, x, y)
	if err != nil {
		return err
	}
	if !res.Value.Bool() {
		return fmt.Errorf("detail: stale sighting at (%.0f, %.0f)", at.Left, at.Top)
	}
	return nil
}

// close dismisses the overlay: the close button when present, Escape
// otherwise. Best-effort.
func (d *DetailLookup) close() {
	res, err := d.page.Eval(`() => {
		const btn = document.querySelector(
			'[role="dialog"] [aria-label="Close"], [aria-modal="true"] [aria-label="Close"]');
		if (btn) { btn.click(); return true; }
		return false;
	}`)
	if err == nil && res.Value.Bool() {
		return
	}
	if err := d.page.Keyboard.Press(input.Escape); err != nil {
		slog.Warn("detail: failed to dismiss overlay", "error", err)
	}
}

func (d *DetailLookup) wait(ctx context.Context) error {
	if d.settle <= 0 {
		return nil
	}
	select {
	case <-time.After(d.settle):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// overlayText scopes the page HTML to the overlay node and returns its
// visible text. Empty string when no overlay matched.
func overlayText(pageHTML string) (string, error) {
	scoped, err := ScopeHTML(pageHTML, overlayScope)
	if err != nil {
		return "", err
	}
	if scoped == "" {
		return "", nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(scoped))
	if err != nil {
		return "", fmt.Errorf("detail: parse overlay: %w", err)
	}
	return strings.TrimSpace(doc.Text()), nil
}

// ScopeHTML parses rawHTML, matches elements against the CSS selector,
// and returns the concatenated outer HTML of all matches. Unlike a
// content-filtering scope, not matching is meaningful here (no overlay
// is open), so no match returns the empty string.
func ScopeHTML(rawHTML, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// fillMetrics extracts each still-missing metric from the overlay text.
func fillMetrics(rec *models.PostMetricRecord, text string) {
	if rec.Views == nil {
		rec.Views = ExtractMetric(text, metricKeywords["views"])
	}
	if rec.Likes == nil {
		rec.Likes = ExtractMetric(text, metricKeywords["likes"])
	}
	if rec.Comments == nil {
		rec.Comments = ExtractMetric(text, metricKeywords["comments"])
	}
	if rec.Shares == nil {
		rec.Shares = ExtractMetric(text, metricKeywords["shares"])
	}
	if rec.Saves == nil {
		rec.Saves = ExtractMetric(text, metricKeywords["saves"])
	}
}

// keywordPatterns precompiles, per keyword, the two shapes a metric
// takes in overlay text: "4.4K views" and "views 4.4K".
var keywordPatterns = func() map[string][]*regexp.Regexp {
	m := make(map[string][]*regexp.Regexp)
	for _, kws := range metricKeywords {
		for _, kw := range kws {
			m[kw] = []*regexp.Regexp{
				regexp.MustCompile(`([\d,\.]+[kmb]?)\s*` + kw),
				regexp.MustCompile(kw + `\s*([\d,\.]+[kmb]?)`),
			}
		}
	}
	return m
}()

// ExtractMetric finds a magnitude adjacent to any of the keywords. The
// magnitude literal is returned uppercased, preserving separators; nil
// when nothing matched.
func ExtractMetric(text string, keywords []string) *string {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		for _, re := range keywordPatterns[kw] {
			if m := re.FindStringSubmatch(lower); m != nil {
				return models.String(strings.ToUpper(m[1]))
			}
		}
	}
	return nil
}
