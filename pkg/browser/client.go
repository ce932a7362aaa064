package browser

import (
	"context"
	"time"

	"github.com/entrhq/pilot/pkg/config"
)

// EndpointClient is the contract for obtaining a live browser. Exactly
// one of its methods is called per session, chosen by the resolver.
// The production implementation is PlaywrightClient; tests substitute
// fakes.
type EndpointClient interface {
	// ConnectCDP connects to a browser exposing a Chrome DevTools
	// Protocol HTTP endpoint.
	ConnectCDP(ctx context.Context, url string, timeout time.Duration) (BrowserHandle, error)

	// ConnectWS connects to a remote browser server over its websocket
	// endpoint.
	ConnectWS(ctx context.Context, url string, timeout time.Duration) (BrowserHandle, error)

	// AttachPID attaches to a locally running browser process through
	// its remote-debugging port.
	AttachPID(ctx context.Context, pid int) (BrowserHandle, error)

	// LaunchPersistent launches a new browser bound to an on-disk
	// profile directory.
	LaunchPersistent(ctx context.Context, opts LaunchOptions) (BrowserHandle, error)

	// LaunchEphemeral launches a new browser with no persisted profile.
	LaunchEphemeral(ctx context.Context, opts LaunchOptions) (BrowserHandle, error)

	// Stop releases client-level resources. Safe to call multiple times.
	Stop() error
}

// LaunchOptions carries the launch-relevant subset of a resolved config.
type LaunchOptions struct {
	UserDataDir      string
	ExecutablePath   string
	Args             []string
	Headless         bool
	Viewport         config.Viewport
	NoViewport       bool
	StorageStatePath string
}

// BrowserHandle is a live, exclusively owned browser connection. The
// session that resolved it releases it exactly once, via Close or
// Detach.
type BrowserHandle interface {
	// NewPage opens a new blank page.
	NewPage(ctx context.Context) (PageHandle, error)

	// Pages returns the currently open pages.
	Pages() []PageHandle

	// OnPage registers a callback for pages opened by the browser
	// itself (window.open, target=_blank). Callbacks for a given
	// handle fire in the order the browser reports them.
	OnPage(fn func(PageHandle))

	// Cookies returns all cookies held by the browser context.
	Cookies(ctx context.Context) ([]Cookie, error)

	// AddCookies installs cookies into the browser context.
	AddCookies(ctx context.Context, cookies []Cookie) error

	// Close tears down the connection and, for launched browsers, the
	// process itself.
	Close(ctx context.Context) error

	// Detach releases the local handle but leaves the remote browser
	// running, so a later connection to the same endpoint succeeds.
	Detach(ctx context.Context) error
}

// PageHandle is a single open tab.
type PageHandle interface {
	// ID returns a stable identifier for this page.
	ID() string

	// Goto navigates the page and waits for the load event, bounded by
	// timeout in milliseconds.
	Goto(ctx context.Context, url string, timeoutMS float64) error

	// URL returns the page's current URL.
	URL() string

	// OnClose registers a callback invoked when the tab closes,
	// whether by automation or by a human.
	OnClose(fn func())

	// WaitForNetworkIdle blocks until the page has no in-flight
	// network requests, or the timeout elapses.
	WaitForNetworkIdle(ctx context.Context, timeout time.Duration) error

	// BringToFront makes this the visible tab in a headed browser.
	BringToFront(ctx context.Context) error

	// Close closes the tab.
	Close(ctx context.Context) error
}

// Cookie is the serialized cookie shape persisted to the cookies file.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}
