package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakePage implements PageHandle for lifecycle tests.
type fakePage struct {
	mu        sync.Mutex
	id        string
	url       string
	closed    bool
	onClose   []func()
	gotoErr   error
	gotoCalls []string
	idleCalls []time.Duration
	fronted   bool
}

func newFakePage(id string) *fakePage {
	return &fakePage{id: id, url: "about:blank"}
}

func (p *fakePage) ID() string { return p.id }

func (p *fakePage) Goto(ctx context.Context, url string, timeoutMS float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotoCalls = append(p.gotoCalls, url)
	if p.gotoErr != nil {
		return p.gotoErr
	}
	p.url = url
	return nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) OnClose(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClose = append(p.onClose, fn)
}

func (p *fakePage) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idleCalls = append(p.idleCalls, timeout)
	return nil
}

func (p *fakePage) BringToFront(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fronted = true
	return nil
}

func (p *fakePage) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	callbacks := append([]func(){}, p.onClose...)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// simulateHumanClose fires the close callbacks as if the browser
// reported the tab closing.
func (p *fakePage) simulateHumanClose() {
	p.Close(context.Background())
}

// fakeBrowser implements BrowserHandle for lifecycle tests.
type fakeBrowser struct {
	mu          sync.Mutex
	pages       []*fakePage
	onPage      []func(PageHandle)
	nextPage    int
	closed      bool
	detached    bool
	cookies     []Cookie
	newPageErr  error
	newPageHook func()
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{}
}

func (b *fakeBrowser) NewPage(ctx context.Context) (PageHandle, error) {
	b.mu.Lock()
	hook := b.newPageHook
	b.mu.Unlock()
	if hook != nil {
		hook()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	b.nextPage++
	page := newFakePage(fmt.Sprintf("page-%d", b.nextPage))
	b.pages = append(b.pages, page)
	return page, nil
}

func (b *fakeBrowser) Pages() []PageHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	pages := make([]PageHandle, 0, len(b.pages))
	for _, page := range b.pages {
		if !page.closed {
			pages = append(pages, page)
		}
	}
	return pages
}

func (b *fakeBrowser) OnPage(fn func(PageHandle)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onPage = append(b.onPage, fn)
}

// simulatePopup reports a browser-initiated page, as window.open would.
func (b *fakeBrowser) simulatePopup() *fakePage {
	b.mu.Lock()
	b.nextPage++
	page := newFakePage(fmt.Sprintf("page-%d", b.nextPage))
	b.pages = append(b.pages, page)
	callbacks := append([]func(PageHandle){}, b.onPage...)
	b.mu.Unlock()

	for _, fn := range callbacks {
		fn(page)
	}
	return page
}

func (b *fakeBrowser) Cookies(ctx context.Context) ([]Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Cookie{}, b.cookies...), nil
}

func (b *fakeBrowser) AddCookies(ctx context.Context, cookies []Cookie) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cookies = append(b.cookies, cookies...)
	return nil
}

func (b *fakeBrowser) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) Detach(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.detached = true
	return nil
}

func (b *fakeBrowser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *fakeBrowser) isDetached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.detached
}

// fakeClient implements EndpointClient and records which branch ran.
type fakeClient struct {
	mu       sync.Mutex
	branches []string
	browser  *fakeBrowser
	err      error
	stopped  bool
	delay    time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{browser: newFakeBrowser()}
}

func (c *fakeClient) record(branch string) (BrowserHandle, error) {
	c.mu.Lock()
	c.branches = append(c.branches, branch)
	err := c.err
	browser := c.browser
	delay := c.delay
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return browser, nil
}

func (c *fakeClient) ConnectCDP(ctx context.Context, url string, timeout time.Duration) (BrowserHandle, error) {
	return c.record("cdp")
}

func (c *fakeClient) ConnectWS(ctx context.Context, url string, timeout time.Duration) (BrowserHandle, error) {
	return c.record("ws")
}

func (c *fakeClient) AttachPID(ctx context.Context, pid int) (BrowserHandle, error) {
	return c.record("pid")
}

func (c *fakeClient) LaunchPersistent(ctx context.Context, opts LaunchOptions) (BrowserHandle, error) {
	return c.record("launch_persistent")
}

func (c *fakeClient) LaunchEphemeral(ctx context.Context, opts LaunchOptions) (BrowserHandle, error) {
	return c.record("launch_ephemeral")
}

func (c *fakeClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	return nil
}

func (c *fakeClient) calledBranches() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.branches...)
}
