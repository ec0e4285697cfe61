// Package browsertest provides an in-memory browser.Page for tests. Nodes
// are declared up front; submission, navigation and late-appearing
// evidence are scripted through hooks.
package browsertest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/locator"
)

// Read operations reported to Page.BeforeRead.
const (
	ReadLocation = "location"
	ReadValue    = "value"
	ReadVisible  = "visible"
)

// ErrDetached is returned when an element from a previous document, or one
// removed from the page, is used.
var ErrDetached = errors.New("browsertest: element is detached")

// Node is a fake DOM element.
type Node struct {
	ID          string
	Tag         string
	Role        string
	Name        string // accessible name
	Placeholder string
	Text        string
	Value       string
	// Selectors lists the CSS selectors this node answers to.
	Selectors []string

	Hidden   bool
	Disabled bool
	// Covered makes the node fail actionability checks while staying
	// visible, like a control behind an overlay.
	Covered bool
	// Submits marks the control whose click triggers Page.OnSubmit.
	Submits bool

	handle string
	gen    int
}

// Page is a scripted fake page. All methods are safe for concurrent use so
// hooks may mutate the page from a test goroutine.
type Page struct {
	mu sync.Mutex

	url    string
	title  string
	nodes  []*Node
	gen    int
	seq    int
	closed bool

	// OnSubmit runs, with the page lock released, when a Submits node is
	// clicked.
	OnSubmit func(p *Page)
	// BeforeRead runs, with the page lock released, before every read. op
	// is one of ReadLocation, ReadValue and ReadVisible.
	BeforeRead func(p *Page, op string)

	queries   []locator.Kind
	writes    []string
	clicks    []string
	snapshots int
}

var _ browser.Page = (*Page)(nil)

// NewPage returns a page already showing url with nodes.
func NewPage(url string, nodes ...*Node) *Page {
	p := &Page{url: url, title: "fake", gen: 1}
	p.nodes = nodes
	for _, n := range nodes {
		n.gen = p.gen
	}
	return p
}

// Replace swaps the document: new url, new nodes, new identity. Every
// element handed out earlier becomes detached.
func (p *Page) Replace(url string, nodes ...*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replaceLocked(url, nodes)
}

func (p *Page) replaceLocked(url string, nodes []*Node) {
	p.gen++
	p.url = url
	p.nodes = nodes
	for _, n := range nodes {
		n.handle = ""
		n.gen = p.gen
	}
}

// SetNodes swaps the node set without replacing the document, like a
// client-side re-render. Elements whose node is kept stay attached.
func (p *Page) SetNodes(nodes ...*Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nodes = nodes
	for _, n := range nodes {
		if n.gen != p.gen {
			n.handle = ""
			n.gen = p.gen
		}
	}
}

// SetURL changes the location without replacing the document, like a
// client-side route change.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Node returns the node with id, or nil.
func (p *Page) Node(id string) *Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Mutate runs fn under the page lock.
func (p *Page) Mutate(fn func(nodes []*Node)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.nodes)
}

// Queries returns the strategy kinds FindAll was called with.
func (p *Page) Queries() []locator.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]locator.Kind(nil), p.queries...)
}

// Writes returns "id=value" for every SetValue call, in order.
func (p *Page) Writes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.writes...)
}

// Clicks returns "id" or "id!force" for every Click call, in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Snapshots counts Snapshot calls.
func (p *Page) Snapshots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Identity implements browser.Page.
func (p *Page) Identity(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return fmt.Sprintf("doc-%d", p.gen), nil
}

// Navigate implements browser.Page. The node set is kept.
func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replaceLocked(url, p.nodes)
	return nil
}

// Reload implements browser.Page.
func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()
	return p.Navigate(ctx, url)
}

// FindAll implements browser.Page.
func (p *Page) FindAll(ctx context.Context, s locator.Strategy) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := browser.NewQueryArgs(s); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries = append(p.queries, s.Kind)

	var out []browser.Element
	for _, n := range p.nodes {
		if !n.matches(s) {
			continue
		}
		out = append(out, p.elementLocked(n))
	}
	return out, nil
}

// Element implements browser.Page.
func (p *Page) Element(ctx context.Context, selector string) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, n := range p.nodes {
		if n.handle != "" && browser.HandleSelector(n.handle) == selector {
			return p.elementLocked(n), nil
		}
		for _, sel := range n.Selectors {
			if sel == selector {
				return p.elementLocked(n), nil
			}
		}
	}
	return nil, fmt.Errorf("no element matches %s", selector)
}

func (p *Page) elementLocked(n *Node) *Element {
	if n.handle == "" {
		p.seq++
		n.handle = fmt.Sprintf("%d", p.seq)
	}
	return &Element{page: p, node: n, gen: p.gen, selector: browser.HandleSelector(n.handle)}
}

// Location implements browser.Page.
func (p *Page) Location(ctx context.Context) (string, error) {
	p.beforeRead(ReadLocation)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// Snapshot implements browser.Page.
func (p *Page) Snapshot(ctx context.Context) (*browser.PageMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots++

	pm := &browser.PageMap{URL: p.url, Title: p.title}
	for _, n := range p.nodes {
		if n.Hidden {
			continue
		}
		el := p.elementLocked(n)
		pm.Controls = append(pm.Controls, browser.Control{
			Selector:    el.selector,
			Type:        n.Tag,
			Role:        n.Role,
			Label:       strings.ToLower(n.Name),
			Text:        n.Text,
			Placeholder: n.Placeholder,
			ID:          n.ID,
		})
	}
	return pm, nil
}

// Screenshot implements browser.Page with a small solid PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 240, G: 240, B: 240, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Page) beforeRead(op string) {
	if hook := p.BeforeRead; hook != nil {
		hook(p, op)
	}
}

func (n *Node) matches(s locator.Strategy) bool {
	contains := func(actual, want string, exact bool) bool {
		a := strings.ToLower(strings.TrimSpace(actual))
		w := strings.ToLower(strings.TrimSpace(want))
		if exact {
			return a == w
		}
		return strings.Contains(a, w)
	}
	switch s.Kind {
	case locator.KindSelector:
		for _, sel := range n.Selectors {
			if sel == s.Selector {
				return true
			}
		}
		return n.handle != "" && browser.HandleSelector(n.handle) == s.Selector
	case locator.KindRole:
		return n.Role == s.Role && (s.Name == "" || contains(n.Name, s.Name, s.Exact))
	case locator.KindPlaceholder:
		return n.Placeholder != "" && n.Placeholder == s.Placeholder
	case locator.KindText:
		return n.Text != "" && contains(n.Text, s.Text, s.Exact)
	}
	return false
}
