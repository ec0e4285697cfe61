// Package rodpage implements the browser control surface on go-rod.
package rodpage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/locator"
)

// Options configures the launched browser
type Options struct {
	Width      int
	Height     int
	Headless   bool
	NoSandbox  bool
	ProfileDir string // Chrome/Chromium profile directory for authenticated sessions
}

// Browser wraps a launched Rod browser. Every Open call gets its own
// incognito context so scenarios never share cookies or storage.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     Options
}

// Launch starts a local Chromium and connects to it.
func Launch(opts Options) (*Browser, error) {
	path, _ := launcher.LookPath()
	l := launcher.New().Bin(path).Headless(opts.Headless)
	if opts.NoSandbox {
		l = l.NoSandbox(true).Set("disable-dev-shm-usage")
	}
	if opts.ProfileDir != "" {
		l = l.UserDataDir(opts.ProfileDir)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{browser: b, launcher: l, opts: opts}, nil
}

// Open creates a fresh isolated page.
func (b *Browser) Open(ctx context.Context) (browser.Page, error) {
	incognito, err := b.browser.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	// the page must outlive ctx, so it is created from the uncancelled handle
	page, err := incognito.Context(context.Background()).Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if b.opts.Width > 0 && b.opts.Height > 0 {
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.opts.Width,
			Height:            b.opts.Height,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			_ = page.Close()
			_ = incognito.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return &Page{page: page, incognito: incognito}, nil
}

// Close cleans up browser resources
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

// Page is a single Rod tab.
type Page struct {
	page      *rod.Page
	incognito *rod.Browser
}

var _ browser.Page = (*Page)(nil)

// Identity implements browser.Page.
func (p *Page) Identity(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(browser.IdentityJS, uuid.NewString())
	if err != nil {
		return "", wrap(ctx, "read page identity", err)
	}
	return res.Value.String(), nil
}

// Navigate implements browser.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return wrap(ctx, "navigate to "+url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return wrap(ctx, "wait for load", err)
	}
	settle(page)
	return nil
}

// Reload implements browser.Page.
func (p *Page) Reload(ctx context.Context) error {
	page := p.page.Context(ctx)
	if err := page.Reload(); err != nil {
		return wrap(ctx, "reload", err)
	}
	if err := page.WaitLoad(); err != nil {
		return wrap(ctx, "wait for load", err)
	}
	settle(page)
	return nil
}

// settle waits for network to be idle; persistent connections (WebSockets,
// polling) must not hang the harness, hence the cap.
func settle(page *rod.Page) {
	page.Timeout(5*time.Second).WaitRequestIdle(500*time.Millisecond, nil, nil, nil)()
}

// FindAll implements browser.Page.
func (p *Page) FindAll(ctx context.Context, s locator.Strategy) ([]browser.Element, error) {
	args, err := browser.NewQueryArgs(s)
	if err != nil {
		return nil, err
	}
	res, err := p.page.Context(ctx).Eval(browser.QueryJS, args)
	if err != nil {
		return nil, wrap(ctx, "query "+s.String(), err)
	}

	var out []browser.Element
	for _, h := range res.Value.Arr() {
		out = append(out, &Element{page: p.page, selector: browser.HandleSelector(h.String())})
	}
	return out, nil
}

// Element implements browser.Page.
func (p *Page) Element(ctx context.Context, selector string) (browser.Element, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	if err != nil {
		return nil, wrap(ctx, "look up "+selector, err)
	}
	if !has {
		return nil, fmt.Errorf("no element matches %s", selector)
	}
	return &Element{page: p.page, selector: selector}, nil
}

// Location implements browser.Page.
func (p *Page) Location(ctx context.Context) (string, error) {
	res, err := p.page.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", wrap(ctx, "read location", err)
	}
	return res.Value.String(), nil
}

// Snapshot implements browser.Page.
func (p *Page) Snapshot(ctx context.Context) (*browser.PageMap, error) {
	res, err := p.page.Context(ctx).Eval(browser.SnapshotJS)
	if err != nil {
		return nil, wrap(ctx, "snapshot page", err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
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
	data, err := p.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, wrap(ctx, "screenshot", err)
	}
	return data, nil
}

// Close implements browser.Page.
func (p *Page) Close() error {
	return errors.Join(p.page.Close(), p.incognito.Close())
}

// wrap keeps ctx errors matchable with errors.Is while naming the operation.
func wrap(ctx context.Context, op string, err error) error {
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		return fmt.Errorf("%s: %w (%w)", op, cerr, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
