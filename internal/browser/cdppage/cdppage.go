// Package cdppage implements the browser control surface on chromedp.
//
// Every operation derives its context from the tab's chromedp context and
// is cancelled together with the caller's context, so a scenario deadline
// abandons in-flight CDP calls without closing the tab.
package cdppage

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/locator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures the launched browser.
type Options struct {
	Width      int
	Height     int
	Headless   bool
	NoSandbox  bool
	ProfileDir string
}

// Browser owns the exec allocator and the root browser context.
type Browser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// Launch starts Chromium through chromedp's exec allocator.
func Launch(opts Options) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
	)
	if opts.Width > 0 && opts.Height > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox, chromedp.Flag("disable-dev-shm-usage", true))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// the first Run on a fresh context starts the browser
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Browser{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Open creates a new tab.
func (b *Browser) Open(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	// the first Run allocates the tab; it must use the tab context itself,
	// since cancelling a derived context here would close the target
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	return &Page{ctx: tabCtx, cancel: cancel}, nil
}

// Close shuts the browser down.
func (b *Browser) Close() error {
	b.browserCancel()
	b.allocCancel()
	return nil
}

// Page is one chromedp tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
}

var _ browser.Page = (*Page)(nil)

// run executes actions on the tab, bounded by ctx.
func (p *Page) run(ctx context.Context, op string, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		opCtx, cancelDeadline = context.WithDeadline(opCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%s: %w (%w)", op, cerr, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// eval runs a JS function declaration with JSON-encoded arguments.
func (p *Page) eval(ctx context.Context, op, fn string, res any, args ...any) error {
	encoded := make([]byte, 0, 64)
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("%s: encode argument: %w", op, err)
		}
		if i > 0 {
			encoded = append(encoded, ',')
		}
		encoded = append(encoded, b...)
	}
	expr := fmt.Sprintf("(%s)(%s)", fn, encoded)
	return p.run(ctx, op, chromedp.Evaluate(expr, res))
}

// Identity implements browser.Page.
func (p *Page) Identity(ctx context.Context) (string, error) {
	var id string
	if err := p.eval(ctx, "read page identity", browser.IdentityJS, &id, uuid.NewString()); err != nil {
		return "", err
	}
	return id, nil
}

// Navigate implements browser.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, "navigate to "+url, chromedp.Navigate(url))
}

// Reload implements browser.Page.
func (p *Page) Reload(ctx context.Context) error {
	return p.run(ctx, "reload", chromedp.Reload())
}

// FindAll implements browser.Page.
func (p *Page) FindAll(ctx context.Context, s locator.Strategy) ([]browser.Element, error) {
	args, err := browser.NewQueryArgs(s)
	if err != nil {
		return nil, err
	}
	var handles []string
	if err := p.eval(ctx, "query "+s.String(), browser.QueryJS, &handles, args); err != nil {
		return nil, err
	}
	out := make([]browser.Element, 0, len(handles))
	for _, h := range handles {
		out = append(out, &Element{page: p, selector: browser.HandleSelector(h)})
	}
	return out, nil
}

// Element implements browser.Page.
func (p *Page) Element(ctx context.Context, selector string) (browser.Element, error) {
	var found bool
	if err := p.eval(ctx, "look up "+selector, `(sel) => !!document.querySelector(sel)`, &found, selector); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return &Element{page: p, selector: selector}, nil
}

// Location implements browser.Page.
func (p *Page) Location(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, "read location", chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

// Snapshot implements browser.Page.
func (p *Page) Snapshot(ctx context.Context) (*browser.PageMap, error) {
	var raw []byte
	if err := p.eval(ctx, "snapshot page", browser.SnapshotJS, &raw); err != nil {
		return nil, err
	}
	var pm browser.PageMap
	if err := json.Unmarshal(raw, &pm); err != nil {
		return nil, fmt.Errorf("failed to decode page map: %w", err)
	}
	return &pm, nil
}

// Screenshot implements browser.Page.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, "screenshot", chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close implements browser.Page.
func (p *Page) Close() error {
	p.cancel()
	return nil
}

// Element addresses a node by selector within a chromedp tab.
type Element struct {
	page     *Page
	selector string
}

var _ browser.Element = (*Element)(nil)

// errDetached reports that the node is no longer in the document.
var errDetached = errors.New("element is not attached")

// onElement calls fn with `this` bound to the element. Absence is reported
// as errDetached rather than blocking.
func (e *Element) onElement(ctx context.Context, op, fn string, res any) error {
	wrapper := `(sel) => {
		const el = document.querySelector(sel);
		if (!el) return { found: false };
		return { found: true, value: (` + fn + `).call(el) };
	}`
	var raw []byte
	if err := e.page.eval(ctx, op, wrapper, &raw, e.selector); err != nil {
		return err
	}
	var out struct {
		Found bool                `json:"found"`
		Value jsoniter.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !out.Found {
		return fmt.Errorf("%s %s: %w", op, e.selector, errDetached)
	}
	if res == nil || len(out.Value) == 0 {
		return nil
	}
	return json.Unmarshal(out.Value, res)
}

// Selector implements browser.Element.
func (e *Element) Selector() string { return e.selector }

// WaitInteractable implements browser.Element.
func (e *Element) WaitInteractable(ctx context.Context) error {
	return e.page.run(ctx, "wait interactable "+e.selector,
		chromedp.WaitVisible(e.selector, chromedp.ByQuery),
		chromedp.WaitEnabled(e.selector, chromedp.ByQuery),
	)
}

// Value implements browser.Element.
func (e *Element) Value(ctx context.Context) (string, error) {
	var v *string
	if err := e.onElement(ctx, "read value", `function() { return this.value === undefined ? null : String(this.value); }`, &v); err != nil {
		return "", err
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// SetValue implements browser.Element.
func (e *Element) SetValue(ctx context.Context, value string) error {
	actions := []chromedp.Action{chromedp.Clear(e.selector, chromedp.ByQuery)}
	if value != "" {
		actions = append(actions, chromedp.SendKeys(e.selector, value, chromedp.ByQuery))
	}
	return e.page.run(ctx, "set value "+e.selector, actions...)
}

// Click implements browser.Element.
func (e *Element) Click(ctx context.Context, force bool) error {
	if force {
		return e.onElement(ctx, "dispatch click", browser.ForceClickJS, nil)
	}
	return e.page.run(ctx, "click "+e.selector, chromedp.Click(e.selector, chromedp.ByQuery))
}

// Visible implements browser.Element.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	var visible bool
	if err := e.onElement(ctx, "check visibility", browser.VisibleJS, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

// Center implements browser.Element.
func (e *Element) Center(ctx context.Context) (image.Point, error) {
	var rect struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	const centerJS = `function() {
		const r = this.getBoundingClientRect();
		return { x: r.left + r.width / 2, y: r.top + r.height / 2 };
	}`
	if err := e.onElement(ctx, "element center", centerJS, &rect); err != nil {
		return image.Point{}, err
	}
	return image.Pt(int(rect.X), int(rect.Y)), nil
}
