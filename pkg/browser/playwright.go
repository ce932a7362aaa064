package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/playwright-community/playwright-go"
)

// PlaywrightClient is the production EndpointClient, backed by the
// Playwright driver. The driver process is started lazily on the first
// connection and shared by all handles the client produces.
type PlaywrightClient struct {
	mu sync.Mutex
	pw *playwright.Playwright
}

// NewPlaywrightClient creates an endpoint client. The driver is not
// started until a connection method is called.
func NewPlaywrightClient() *PlaywrightClient {
	return &PlaywrightClient{}
}

// ensureStarted installs and runs the Playwright driver once,
// discarding its output so it cannot interfere with the host process.
func (c *PlaywrightClient) ensureStarted() (*playwright.Playwright, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pw != nil {
		return c.pw, nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	c.pw = pw
	return pw, nil
}

// Stop stops the Playwright driver. Safe to call multiple times.
func (c *PlaywrightClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pw == nil {
		return nil
	}
	err := c.pw.Stop()
	c.pw = nil
	if err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

// ConnectCDP connects to a browser exposing a CDP HTTP endpoint.
func (c *PlaywrightClient) ConnectCDP(ctx context.Context, url string, timeout time.Duration) (BrowserHandle, error) {
	pw, err := c.ensureStarted()
	if err != nil {
		return nil, err
	}

	ms := float64(timeout.Milliseconds())
	browser, err := pw.Chromium.ConnectOverCDP(url, playwright.BrowserTypeConnectOverCDPOptions{
		Timeout: &ms,
	})
	if err != nil {
		return nil, fmt.Errorf("cdp connect to %s failed: %w", url, err)
	}

	return newRemoteBrowserHandle(browser)
}

// ConnectWS connects to a remote browser server over its websocket
// endpoint.
func (c *PlaywrightClient) ConnectWS(ctx context.Context, url string, timeout time.Duration) (BrowserHandle, error) {
	pw, err := c.ensureStarted()
	if err != nil {
		return nil, err
	}

	ms := float64(timeout.Milliseconds())
	browser, err := pw.Chromium.Connect(url, playwright.BrowserTypeConnectOptions{
		Timeout: &ms,
	})
	if err != nil {
		return nil, fmt.Errorf("websocket connect to %s failed: %w", url, err)
	}

	return newRemoteBrowserHandle(browser)
}

// AttachPID attaches to a locally running browser by discovering its
// remote-debugging port from the process command line, confirming the
// DevTools endpoint answers, and connecting over CDP.
func (c *PlaywrightClient) AttachPID(ctx context.Context, pid int) (BrowserHandle, error) {
	port, err := debugPortForPID(pid)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("http://127.0.0.1:%d", port)
	wsURL, err := devtoolsWebSocketURL(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("pid %d: %w", pid, err)
	}

	// Cheap handshake before involving the driver, so a dead or
	// foreign endpoint is reported against the pid branch directly.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("pid %d: devtools endpoint %s not accepting connections: %w", pid, wsURL, err)
	}
	conn.Close()

	return c.ConnectCDP(ctx, endpoint, 10*time.Second)
}

// debugPortForPID extracts --remote-debugging-port from the process
// command line.
func debugPortForPID(pid int) (int, error) {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
	if err != nil {
		return 0, fmt.Errorf("pid %d: cannot read process command line: %w", pid, err)
	}

	const flag = "--remote-debugging-port="
	for _, arg := range strings.Split(string(raw), "\x00") {
		if !strings.HasPrefix(arg, flag) {
			continue
		}
		port, convErr := strconv.Atoi(strings.TrimPrefix(arg, flag))
		if convErr != nil || port <= 0 {
			return 0, fmt.Errorf("pid %d: invalid remote-debugging-port argument %q", pid, arg)
		}
		return port, nil
	}

	return 0, fmt.Errorf("pid %d: process has no --remote-debugging-port argument", pid)
}

// devtoolsWebSocketURL asks a CDP HTTP endpoint for its browser-level
// websocket debugger URL.
func devtoolsWebSocketURL(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/json/version", nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("devtools version probe failed: %w", err)
	}
	defer resp.Body.Close()

	var version struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		return "", fmt.Errorf("devtools version response not understood: %w", err)
	}
	if version.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("devtools endpoint reported no websocket debugger url")
	}
	return version.WebSocketDebuggerURL, nil
}

// LaunchPersistent launches a browser bound to a profile directory.
func (c *PlaywrightClient) LaunchPersistent(ctx context.Context, opts LaunchOptions) (BrowserHandle, error) {
	pw, err := c.ensureStarted()
	if err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: &opts.Headless,
		Args:     opts.Args,
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = &opts.ExecutablePath
	}
	if opts.NoViewport {
		noViewport := true
		launchOpts.NoViewport = &noViewport
	} else {
		launchOpts.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}

	context, err := pw.Chromium.LaunchPersistentContext(opts.UserDataDir, launchOpts)
	if err != nil {
		return nil, fmt.Errorf("persistent launch with profile %s failed: %w", opts.UserDataDir, err)
	}

	return newLaunchedContextHandle(nil, context), nil
}

// LaunchEphemeral launches a browser with no persisted profile.
func (c *PlaywrightClient) LaunchEphemeral(ctx context.Context, opts LaunchOptions) (BrowserHandle, error) {
	pw, err := c.ensureStarted()
	if err != nil {
		return nil, err
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     opts.Args,
	}
	if opts.ExecutablePath != "" {
		launchOpts.ExecutablePath = &opts.ExecutablePath
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("browser launch failed: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.NoViewport {
		noViewport := true
		contextOpts.NoViewport = &noViewport
	} else {
		contextOpts.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
	}
	if opts.StorageStatePath != "" {
		contextOpts.StorageStatePath = &opts.StorageStatePath
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return newLaunchedContextHandle(browser, context), nil
}

// pwBrowserHandle adapts a playwright context (and optionally its
// owning browser) to the BrowserHandle contract.
type pwBrowserHandle struct {
	browser playwright.Browser // nil for persistent-context launches
	context playwright.BrowserContext
	remote  bool // connection to an externally owned browser

	mu    sync.Mutex
	pages map[playwright.Page]*pwPageHandle
}

// newRemoteBrowserHandle wraps a connected browser, reusing its
// default context when the remote side already has one.
func newRemoteBrowserHandle(browser playwright.Browser) (BrowserHandle, error) {
	var context playwright.BrowserContext
	if contexts := browser.Contexts(); len(contexts) > 0 {
		context = contexts[0]
	} else {
		created, err := browser.NewContext()
		if err != nil {
			browser.Close()
			return nil, fmt.Errorf("failed to create context on remote browser: %w", err)
		}
		context = created
	}

	return &pwBrowserHandle{
		browser: browser,
		context: context,
		remote:  true,
		pages:   make(map[playwright.Page]*pwPageHandle),
	}, nil
}

func newLaunchedContextHandle(browser playwright.Browser, context playwright.BrowserContext) BrowserHandle {
	return &pwBrowserHandle{
		browser: browser,
		context: context,
		pages:   make(map[playwright.Page]*pwPageHandle),
	}
}

// wrapPage returns the one handle tracking a playwright page, creating
// it on first sight.
func (h *pwBrowserHandle) wrapPage(page playwright.Page) *pwPageHandle {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.pages[page]; ok {
		return existing
	}

	wrapped := &pwPageHandle{id: uuid.New().String(), page: page}
	h.pages[page] = wrapped

	page.OnClose(func(closed playwright.Page) {
		h.mu.Lock()
		delete(h.pages, closed)
		h.mu.Unlock()
	})

	return wrapped
}

// NewPage opens a new blank page in the handle's context.
func (h *pwBrowserHandle) NewPage(ctx context.Context) (PageHandle, error) {
	page, err := h.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return h.wrapPage(page), nil
}

// Pages returns the currently open pages.
func (h *pwBrowserHandle) Pages() []PageHandle {
	raw := h.context.Pages()
	pages := make([]PageHandle, 0, len(raw))
	for _, page := range raw {
		pages = append(pages, h.wrapPage(page))
	}
	return pages
}

// OnPage forwards browser-initiated pages in arrival order.
func (h *pwBrowserHandle) OnPage(fn func(PageHandle)) {
	h.context.OnPage(func(page playwright.Page) {
		fn(h.wrapPage(page))
	})
}

// Cookies returns all cookies held by the context.
func (h *pwBrowserHandle) Cookies(ctx context.Context) ([]Cookie, error) {
	raw, err := h.context.Cookies()
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

// AddCookies installs cookies into the context.
func (h *pwBrowserHandle) AddCookies(ctx context.Context, cookies []Cookie) error {
	converted := make([]playwright.OptionalCookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := playwright.OptionalCookie{
			Name:  c.Name,
			Value: c.Value,
		}
		if c.Domain != "" {
			domain := c.Domain
			cookie.Domain = &domain
		}
		if c.Path != "" {
			path := c.Path
			cookie.Path = &path
		}
		if c.Expires != 0 {
			expires := c.Expires
			cookie.Expires = &expires
		}
		if c.HTTPOnly {
			httpOnly := true
			cookie.HttpOnly = &httpOnly
		}
		if c.Secure {
			secure := true
			cookie.Secure = &secure
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			cookie.SameSite = playwright.SameSiteAttributeStrict
		case "lax":
			cookie.SameSite = playwright.SameSiteAttributeLax
		case "none":
			cookie.SameSite = playwright.SameSiteAttributeNone
		}
		converted = append(converted, cookie)
	}

	if err := h.context.AddCookies(converted); err != nil {
		return fmt.Errorf("failed to add cookies: %w", err)
	}
	return nil
}

// Close tears down the context and, for launched browsers, the process.
func (h *pwBrowserHandle) Close(ctx context.Context) error {
	if err := h.context.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	if h.browser != nil {
		if err := h.browser.Close(); err != nil {
			return fmt.Errorf("failed to close browser: %w", err)
		}
	}
	return nil
}

// Detach releases the local handle and leaves the browser running. For
// remote connections, closing a connected browser only disconnects the
// client; for launched browsers the process is deliberately left
// alone so a later connection to its endpoint can adopt it.
func (h *pwBrowserHandle) Detach(ctx context.Context) error {
	if h.remote && h.browser != nil {
		if err := h.browser.Close(); err != nil {
			return fmt.Errorf("failed to disconnect from browser: %w", err)
		}
	}
	return nil
}

// pwPageHandle adapts a playwright page to the PageHandle contract.
type pwPageHandle struct {
	id   string
	page playwright.Page
}

// ID returns a stable identifier for this page.
func (p *pwPageHandle) ID() string {
	return p.id
}

// Goto navigates the page and waits for the load event.
func (p *pwPageHandle) Goto(ctx context.Context, url string, timeoutMS float64) error {
	opts := playwright.PageGotoOptions{}
	if timeoutMS > 0 {
		opts.Timeout = &timeoutMS
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return fmt.Errorf("goto %s failed: %w", url, err)
	}
	return nil
}

// URL returns the page's current URL.
func (p *pwPageHandle) URL() string {
	return p.page.URL()
}

// OnClose registers a callback for the page closing.
func (p *pwPageHandle) OnClose(fn func()) {
	p.page.OnClose(func(playwright.Page) {
		fn()
	})
}

// WaitForNetworkIdle blocks until the page reaches network idle or the
// timeout elapses.
func (p *pwPageHandle) WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error {
	ms := float64(timeout.Milliseconds())
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: &ms,
	})
}

// BringToFront makes this the visible tab.
func (p *pwPageHandle) BringToFront(ctx context.Context) error {
	return p.page.BringToFront()
}

// Close closes the tab.
func (p *pwPageHandle) Close(ctx context.Context) error {
	return p.page.Close()
}
