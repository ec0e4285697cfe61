package rodpage

import (
	"context"
	"fmt"
	"image"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	jsoniter "github.com/json-iterator/go"

	"github.com/v0xg/formprobe/internal/browser"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Element addresses a node by its handle selector and re-acquires the Rod
// element for every operation, so a detached node surfaces as an error
// instead of acting on a stale object.
type Element struct {
	page     *rod.Page
	selector string
}

var _ browser.Element = (*Element)(nil)

// Selector implements browser.Element.
func (e *Element) Selector() string { return e.selector }

// lookup fails fast when the node is absent.
func (e *Element) lookup(ctx context.Context) (*rod.Element, error) {
	el, err := e.page.Context(ctx).Sleeper(rod.NotFoundSleeper).Element(e.selector)
	if err != nil {
		return nil, wrap(ctx, "element "+e.selector, err)
	}
	return el, nil
}

// WaitInteractable implements browser.Element. Rod's own element lookup
// retries until the node is attached, bounded by ctx.
func (e *Element) WaitInteractable(ctx context.Context) error {
	el, err := e.page.Context(ctx).Element(e.selector)
	if err != nil {
		return wrap(ctx, "wait for "+e.selector, err)
	}
	if _, err := el.WaitInteractable(); err != nil {
		return wrap(ctx, "wait interactable "+e.selector, err)
	}
	if err := el.WaitEnabled(); err != nil {
		return wrap(ctx, "wait enabled "+e.selector, err)
	}
	return nil
}

// Value implements browser.Element.
func (e *Element) Value(ctx context.Context) (string, error) {
	el, err := e.lookup(ctx)
	if err != nil {
		return "", err
	}
	v, err := el.Property("value")
	if err != nil {
		return "", wrap(ctx, "read value", err)
	}
	if v.Nil() {
		return "", nil
	}
	return v.String(), nil
}

// SetValue implements browser.Element.
func (e *Element) SetValue(ctx context.Context, value string) error {
	el, err := e.lookup(ctx)
	if err != nil {
		return err
	}
	if _, err := el.Eval(browser.ClearValueJS); err != nil {
		return wrap(ctx, "clear", err)
	}
	if value == "" {
		return nil
	}
	if err := el.Input(value); err != nil {
		return wrap(ctx, "input", err)
	}
	return nil
}

// Click implements browser.Element.
func (e *Element) Click(ctx context.Context, force bool) error {
	el, err := e.lookup(ctx)
	if err != nil {
		return err
	}
	if force {
		if _, err := el.Eval(browser.ForceClickJS); err != nil {
			return wrap(ctx, "dispatch click", err)
		}
		return nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return wrap(ctx, "click", err)
	}
	return nil
}

// Visible implements browser.Element.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	el, err := e.lookup(ctx)
	if err != nil {
		return false, err
	}
	res, err := el.Eval(browser.VisibleJS)
	if err != nil {
		return false, wrap(ctx, "check visibility", err)
	}
	return res.Value.Bool(), nil
}

// Center implements browser.Element.
func (e *Element) Center(ctx context.Context) (image.Point, error) {
	el, err := e.lookup(ctx)
	if err != nil {
		return image.Point{}, err
	}
	box, err := el.Shape()
	if err != nil {
		return image.Point{}, wrap(ctx, "element shape", err)
	}
	if len(box.Quads) == 0 {
		return image.Point{}, fmt.Errorf("element has no shape: %s", e.selector)
	}

	quad := box.Quads[0]
	x := int((quad[0] + quad[2] + quad[4] + quad[6]) / 4)
	y := int((quad[1] + quad[3] + quad[5] + quad[7]) / 4)
	return image.Pt(x, y), nil
}
