package browsertest

import (
	"context"
	"errors"
	"sync"

	"github.com/v0xg/formprobe/internal/browser"
)

// Opener hands out a fresh page from New on every Open.
type Opener struct {
	New func() *Page
	// Err, when set, fails every Open.
	Err error

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

var _ browser.Opener = (*Opener)(nil)

// Open implements browser.Opener.
func (o *Opener) Open(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.Err != nil {
		return nil, o.Err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, errors.New("browsertest: opener is closed")
	}
	p := o.New()
	o.pages = append(o.pages, p)
	return p, nil
}

// Pages returns every page opened so far.
func (o *Opener) Pages() []*Page {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Page(nil), o.pages...)
}

// Close implements browser.Opener.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}
