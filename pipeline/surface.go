package pipeline

// Surface is the render-surface capability the pipeline samples from.
// It stands in for the browser/DOM collaborator: a live layout engine
// that can be scrolled and queried for currently-rendered text nodes.
//
// Implementations must return absolute document coordinates from both
// snapshot methods. Errors from any Surface method are communication
// failures with the render engine and abort the extraction; an empty
// snapshot is a valid result, not an error.
type Surface interface {
	// Snapshot returns all currently rendered, visible text-bearing
	// nodes with position and size, as seen from the current scroll
	// offset. Text must be the node's own text, not descendant text,
	// so a container and its children never double-count.
	Snapshot() ([]RawObservation, error)

	// LeafSnapshot returns the lower-precision node population used by
	// the fallback strategy: likely leaf text containers, regardless
	// of grid structure.
	LeafSnapshot() ([]RawObservation, error)

	// ScrollTo issues an imperative vertical scroll command.
	ScrollTo(offsetY float64) error

	// DocumentHeight returns the full scrollable document height.
	// Virtualized feeds grow this value as passes load more content,
	// so the sampler re-reads it every pass.
	DocumentHeight() (float64, error)

	// ViewportHeight returns the visible viewport height.
	ViewportHeight() (float64, error)
}
