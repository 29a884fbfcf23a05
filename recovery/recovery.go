// Package recovery defines how parsing components react to malformed input.
// Components report each defect through a Strategy and act on the returned
// Action, so callers choose between fail-fast and best-effort handling
// without the components knowing which policy is active.
package recovery

// Strategy decides how a component reacts to a malformed construct.
type Strategy interface {
	OnError(ctx Context, err error, location Location) Action
}

// Location identifies where in the document a defect was found.
type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

// Action is the strategy's verdict for a single defect.
type Action int

const (
	// ActionFail aborts the surrounding operation with the original error.
	ActionFail Action = iota
	// ActionSkip drops the offending construct and continues.
	ActionSkip
	// ActionFix lets the component apply its local repair, if it has one.
	ActionFix
	// ActionWarn records the defect and continues unchanged.
	ActionWarn
)

// Context carries cancellation into strategies without importing context.
type Context interface{ Done() <-chan struct{} }
