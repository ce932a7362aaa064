package browser

import (
	"context"
	"fmt"
	"sync"
)

// singlePageHandle adapts a caller-supplied page into the BrowserHandle
// shape. The session wraps the page without creating any new process
// or connection, and releasing the handle only closes the one page.
type singlePageHandle struct {
	page PageHandle

	mu     sync.Mutex
	closed bool
}

func newSinglePageHandle(page PageHandle) *singlePageHandle {
	return &singlePageHandle{page: page}
}

// NewPage is unsupported: a supplied page carries no context to open
// siblings in.
func (h *singlePageHandle) NewPage(ctx context.Context) (PageHandle, error) {
	return nil, fmt.Errorf("cannot open a new tab on a supplied page handle")
}

// Pages returns the one wrapped page until it is released.
func (h *singlePageHandle) Pages() []PageHandle {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	return []PageHandle{h.page}
}

// OnPage never fires: a single page cannot spawn tracked siblings.
func (h *singlePageHandle) OnPage(fn func(PageHandle)) {}

// Cookies is unsupported on a bare page; cookie persistence needs a
// context-level handle.
func (h *singlePageHandle) Cookies(ctx context.Context) ([]Cookie, error) {
	return nil, nil
}

// AddCookies is unsupported on a bare page.
func (h *singlePageHandle) AddCookies(ctx context.Context, cookies []Cookie) error {
	return nil
}

// Close closes the wrapped page. The caller's browser stays untouched.
func (h *singlePageHandle) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.page.Close(ctx)
}

// Detach releases the handle without closing the caller's page.
func (h *singlePageHandle) Detach(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
