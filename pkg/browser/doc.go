// Package browser manages the lifecycle of browser-automation
// sessions: how a controllable browser is obtained, which tab is under
// agent versus human control, and which navigations are permitted.
//
// The package is the policy layer between an agent loop and the
// underlying browser protocol. It never implements the protocol
// itself; that sits behind the EndpointClient, BrowserHandle, and
// PageHandle interfaces, with PlaywrightClient as the production
// implementation.
//
// # Connection resolution
//
// A resolved config plus an optional caller-supplied handle determines
// exactly one connection strategy, in strict priority order:
//
//  1. Supplied handle (page, context, or browser), wrapped as is
//  2. cdp_url: connect over the Chrome DevTools Protocol
//  3. wss_url: connect to a browser server websocket endpoint
//  4. browser_pid: attach to a local process's debugging port
//  5. user_data_dir: launch a persistent-context browser
//  6. otherwise: launch an ephemeral browser
//
// Supplying more than one concrete remote source is a ConnectionError
// with ReasonAmbiguousSpec, raised before any process or network
// activity. A chosen branch that fails is reported with its branch and
// target; the resolver never silently falls back to another strategy.
//
// # Session lifecycle
//
// Sessions advance Unstarted -> Starting -> Connected -> Closing ->
// Closed. A failed start lands directly in Closed, so callers never
// see a half-open session. Close is idempotent. With keep_alive set,
// Close discards local bookkeeping only and the remote browser stays
// running for a future connection.
//
// # Navigation security
//
// Every navigation routed through a session is checked against the
// allowed_domains allowlist before it reaches the browser. A denied
// navigation returns NavigationBlockedError and leaves the session
// fully usable.
//
// # Example Usage
//
//	manager := browser.NewSessionManager(&config.Profile{
//	    AllowedDomains: []string{"example.com", "*.example.org"},
//	})
//
//	session, err := manager.Start(ctx)
//	if err != nil {
//	    return err
//	}
//	defer manager.Close(ctx)
//
//	if err := session.Navigate(ctx, "https://example.com"); err != nil {
//	    var blocked *browser.NavigationBlockedError
//	    if errors.As(err, &blocked) {
//	        // pick a different target
//	    }
//	}
package browser
