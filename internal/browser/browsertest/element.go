package browsertest

import (
	"context"
	"fmt"
	"image"

	"github.com/v0xg/formprobe/internal/browser"
)

// Element is a handle on a fake node, bound to the document it came from.
type Element struct {
	page     *Page
	node     *Node
	gen      int
	selector string
}

var _ browser.Element = (*Element)(nil)

// attachedLocked reports whether the node is still part of the current
// document. Callers hold page.mu.
func (e *Element) attachedLocked() bool {
	if e.gen != e.page.gen {
		return false
	}
	for _, n := range e.page.nodes {
		if n == e.node {
			return true
		}
	}
	return false
}

func (e *Element) actionableLocked() bool {
	return !e.node.Hidden && !e.node.Disabled && !e.node.Covered
}

// Node exposes the underlying fake node.
func (e *Element) Node() *Node { return e.node }

// Selector implements browser.Element.
func (e *Element) Selector() string { return e.selector }

// WaitInteractable implements browser.Element. A node that is not
// actionable blocks until ctx is done.
func (e *Element) WaitInteractable(ctx context.Context) error {
	e.page.mu.Lock()
	if !e.attachedLocked() {
		e.page.mu.Unlock()
		return ErrDetached
	}
	ok := e.actionableLocked()
	e.page.mu.Unlock()
	if ok {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("wait interactable %s: %w", e.node.ID, ctx.Err())
}

// Value implements browser.Element.
func (e *Element) Value(ctx context.Context) (string, error) {
	e.page.beforeRead(ReadValue)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if !e.attachedLocked() {
		return "", ErrDetached
	}
	return e.node.Value, nil
}

// SetValue implements browser.Element.
func (e *Element) SetValue(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if !e.attachedLocked() {
		return ErrDetached
	}
	e.node.Value = value
	e.page.writes = append(e.page.writes, e.node.ID+"="+value)
	return nil
}

// Click implements browser.Element.
func (e *Element) Click(ctx context.Context, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.page.mu.Lock()
	if !e.attachedLocked() {
		e.page.mu.Unlock()
		return ErrDetached
	}
	if !force && !e.actionableLocked() {
		e.page.mu.Unlock()
		return fmt.Errorf("click %s: element is not actionable", e.node.ID)
	}
	id := e.node.ID
	if force {
		id += "!force"
	}
	e.page.clicks = append(e.page.clicks, id)
	submits := e.node.Submits
	e.page.mu.Unlock()

	if submits && e.page.OnSubmit != nil {
		e.page.OnSubmit(e.page)
	}
	return nil
}

// Visible implements browser.Element.
func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.page.beforeRead(ReadVisible)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if !e.attachedLocked() {
		return false, ErrDetached
	}
	return !e.node.Hidden, nil
}

// Center implements browser.Element.
func (e *Element) Center(ctx context.Context) (image.Point, error) {
	if err := ctx.Err(); err != nil {
		return image.Point{}, err
	}
	e.page.mu.Lock()
	defer e.page.mu.Unlock()
	if !e.attachedLocked() {
		return image.Point{}, ErrDetached
	}
	for i, n := range e.page.nodes {
		if n == e.node {
			return image.Pt(32, 4+i*8), nil
		}
	}
	return image.Point{}, ErrDetached
}
