// Package browser defines the browser control surface the harness drives.
// Concrete drivers live in subpackages (rodpage, cdppage); the resolution
// engine, the action facade and the scenario runner depend only on these
// interfaces.
package browser

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/v0xg/formprobe/internal/locator"
)

// HandleAttr is stamped on every element a query returns, so that later
// operations can address exactly that node with HandleSelector.
const HandleAttr = "data-formprobe-handle"

// HandleSelector returns the CSS selector for a stamped handle.
func HandleSelector(handle string) string {
	return fmt.Sprintf(`[%s="%s"]`, HandleAttr, handle)
}

// ErrUnsupportedStrategy is returned by FindAll for semantic strategies,
// which only the resolution engine can serve.
var ErrUnsupportedStrategy = errors.New("strategy kind is not resolvable by the browser driver")

// Page is one browser tab. A Page is driven by a single goroutine.
type Page interface {
	// Identity returns an id that changes whenever the document is replaced
	// (navigation, reload). Element handles never survive an identity change.
	Identity(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	// FindAll returns every element matching a deterministic strategy, in
	// document order. Ordinal disambiguation is the caller's job.
	FindAll(ctx context.Context, s locator.Strategy) ([]Element, error)
	// Element returns the element addressed by a CSS selector the page
	// itself handed out (a handle selector or a PageMap selector).
	Element(ctx context.Context, selector string) (Element, error)
	Location(ctx context.Context) (string, error)
	// Snapshot summarises the interactive elements for the semantic resolver.
	Snapshot(ctx context.Context) (*PageMap, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Element is a concrete node on a Page.
type Element interface {
	// Selector addresses this node uniquely within the current document.
	Selector() string
	// WaitInteractable blocks until the node is attached, visible, enabled
	// and not covered, or ctx is done.
	WaitInteractable(ctx context.Context) error
	Value(ctx context.Context) (string, error)
	// SetValue replaces the current value, firing input events.
	SetValue(ctx context.Context, value string) error
	// Click activates the node. With force set the actionability checks
	// are skipped and the activation is dispatched directly.
	Click(ctx context.Context, force bool) error
	Visible(ctx context.Context) (bool, error)
	Center(ctx context.Context) (image.Point, error)
}

// Opener hands out fresh, isolated pages. Each scenario opens its own.
type Opener interface {
	Open(ctx context.Context) (Page, error)
	Close() error
}
