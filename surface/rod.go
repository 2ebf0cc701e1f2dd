package surface

import (
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/gridsight/pipeline"
)

// snapshotScopes is the ordered list of container selectors the primary
// snapshot tries. The dashboard grid usually lives in a main/grid
// region; scoping to it keeps sidebar and navigation text out of the
// observation stream. The list is tried in priority order and the
// first scope that yields any observations wins; "body" always matches.
var snapshotScopes = []string{
	`main [role="grid"]`,
	`[role="main"]`,
	`main`,
	`article`,
	`body`,
}

// snapshotJS collects every element under the scope that carries its
// own (non-descendant) text, with absolute document coordinates.
// Own-text-only matching keeps a container and its children from
// double-counting; an element with no element children may fall back to
// its full rendered text.
const snapshotJS = `(scope) => {
	const root = document.querySelector(scope);
	if (!root) return [];
	const out = [];
	const sy = window.scrollY || window.pageYOffset || 0;
	const els = root.querySelectorAll('*');
	for (const el of els) {
		let own = '';
		for (const child of el.childNodes) {
			if (child.nodeType === Node.TEXT_NODE) own += child.textContent;
		}
		own = own.trim();
		if (!own && el.children.length === 0) {
			own = (el.textContent || '').trim();
		}
		if (!own || own.length > 16) continue;
		const r = el.getBoundingClientRect();
		if (r.width <= 0 || r.height <= 0) continue;
		out.push({
			text: own,
			top: r.top + sy,
			left: r.left,
			width: r.width,
			height: r.height,
		});
	}
	return out;
}`

// leafJS collects the lower-precision fallback population: leaf
// containers with short text anywhere in the document, regardless of
// grid structure.
const leafJS = `() => {
	const out = [];
	const sy = window.scrollY || window.pageYOffset || 0;
	const els = document.querySelectorAll('span, div, a, strong, b');
	for (const el of els) {
		if (el.children.length > 0) continue;
		const text = (el.textContent || '').trim();
		if (!text || text.length > 12) continue;
		const r = el.getBoundingClientRect();
		if (r.width <= 0) continue;
		out.push({
			text: text,
			top: r.top + sy,
			left: r.left,
			width: r.width,
			height: r.height,
		});
	}
	return out;
}`

// Rod adapts a rod page to the pipeline's render-surface capability.
// It holds no state beyond the page reference; every query reads the
// live layout.
type Rod struct {
	page   *rod.Page
	scopes []string
}

// NewRod wraps a page (already navigated, context-bound by the caller)
// as a render surface.
func NewRod(page *rod.Page) *Rod {
	return &Rod{page: page, scopes: snapshotScopes}
}

// Snapshot queries all currently rendered text-bearing nodes, trying
// each scope selector in priority order until one yields observations.
func (s *Rod) Snapshot() ([]pipeline.RawObservation, error) {
	var lastErr error
	for _, scope := range s.scopes {
		res, err := s.page.Eval(snapshotJS, scope)
		if err != nil {
			lastErr = err
			continue
		}
		obs := decodeObservations(res)
		if len(obs) > 0 {
			slog.Debug("surface: snapshot scope matched",
				"scope", scope,
				"observations", len(obs),
			)
			return obs, nil
		}
	}
	// No scope produced anything: empty page, unless every eval failed.
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// LeafSnapshot queries the fallback leaf-container population in a
// single pass at the current scroll offset.
func (s *Rod) LeafSnapshot() ([]pipeline.RawObservation, error) {
	res, err := s.page.Eval(leafJS)
	if err != nil {
		return nil, err
	}
	return decodeObservations(res), nil
}

// ScrollTo issues an absolute vertical scroll.
func (s *Rod) ScrollTo(offsetY float64) error {
	_, err := s.page.Eval(`(y) => window.scrollTo(0, y)`, offsetY)
	return err
}

// DocumentHeight returns the full scrollable height, re-read each call
// because virtualized feeds grow it as content loads.
func (s *Rod) DocumentHeight() (float64, error) {
	res, err := s.page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

// ViewportHeight returns the visible viewport height.
func (s *Rod) ViewportHeight() (float64, error) {
	res, err := s.page.Eval(`() => window.innerHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Num(), nil
}

// decodeObservations converts the eval result array into observations.
func decodeObservations(res *proto.RuntimeRemoteObject) []pipeline.RawObservation {
	arr := res.Value.Arr()
	obs := make([]pipeline.RawObservation, 0, len(arr))
	for _, item := range arr {
		obs = append(obs, pipeline.RawObservation{
			Text:   item.Get("text").Str(),
			Top:    item.Get("top").Num(),
			Left:   item.Get("left").Num(),
			Width:  item.Get("width").Num(),
			Height: item.Get("height").Num(),
		})
	}
	return obs
}
