package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/entrhq/pilot/pkg/config"
	"github.com/entrhq/pilot/pkg/logging"
	"github.com/entrhq/pilot/pkg/security/navigation"
)

// State is a session's lifecycle position. States advance
// monotonically: Unstarted -> Starting -> Connected -> Closing ->
// Closed, with Closed terminal. A failed start jumps straight to
// Closed so callers never observe a partially started session.
type State string

const (
	StateUnstarted State = "unstarted"
	StateStarting  State = "starting"
	StateConnected State = "connected"
	StateClosing   State = "closing"
	StateClosed    State = "closed"
)

// Tab is an open page tracked by a session. Tabs may close
// independently (a human can close them); the session observes this
// through page close events and drops its reference.
type Tab struct {
	id   string
	page PageHandle
}

// ID returns the tab's stable identifier.
func (t *Tab) ID() string {
	return t.id
}

// URL returns the tab's current URL.
func (t *Tab) URL() string {
	return t.page.URL()
}

// Page returns the underlying page handle.
func (t *Tab) Page() PageHandle {
	return t.page
}

// Session owns one live browser connection and tracks its open tabs,
// which tab the agent drives, and which tab the human is looking at.
// All mutations are serialized behind the session mutex, so focus
// reassignment never races a concurrent tab close.
type Session struct {
	mu sync.Mutex

	id        string
	cfg       *config.Config
	allowlist *navigation.Allowlist
	resolver  *Resolver
	supplied  *SuppliedHandle
	logger    *logging.Logger

	state  State
	handle BrowserHandle
	spec   *ConnectionSpec

	// tabs is kept in open order; the newest tab is the focus
	// fallback when a focused tab closes.
	tabs       []*Tab
	agentFocus *Tab
	humanFocus *Tab
}

// NewSession creates an unstarted session for a resolved config. The
// supplied handle may be nil; when present it takes priority over any
// configured connection source. Returns an error if the config's
// allowed_domains contain an invalid pattern.
func NewSession(cfg *config.Config, resolver *Resolver, supplied *SuppliedHandle) (*Session, error) {
	allowlist, err := navigation.NewAllowlist(cfg.AllowedDomains)
	if err != nil {
		return nil, err
	}

	logger, _ := logging.NewLogger("session")

	return &Session{
		id:        uuid.New().String(),
		cfg:       cfg,
		allowlist: allowlist,
		resolver:  resolver,
		supplied:  supplied,
		logger:    logger,
		state:     StateUnstarted,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Config returns the session's resolved configuration.
func (s *Session) Config() *config.Config {
	return s.cfg
}

// Spec returns the connection spec chosen at start, or nil before the
// session has started.
func (s *Session) Spec() *ConnectionSpec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Start resolves the connection and brings the session to Connected.
// Calling Start on an already connected session is a no-op. If the
// chosen connection branch fails, the session transitions directly to
// Closed and the ConnectionError is returned; no other branch is
// tried.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateConnected, StateStarting:
		return nil
	case StateClosing, StateClosed:
		return fmt.Errorf("session %s is closed and cannot be restarted", s.id)
	}

	s.state = StateStarting

	handle, spec, err := s.resolver.Resolve(ctx, s.cfg, s.supplied)
	if err != nil {
		s.state = StateClosed
		s.logger.Errorf("session %s failed to start: %v", s.id, err)
		return err
	}

	s.handle = handle
	s.spec = spec
	s.logger.Infof("session %s connected via %s (%s)", s.id, spec.Kind, spec.Target())

	// Browser-initiated tabs (window.open, target=_blank) arrive here,
	// in the order the browser reports them.
	handle.OnPage(func(page PageHandle) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateConnected {
			s.adoptPageLocked(page)
		}
	})

	for _, page := range handle.Pages() {
		s.adoptPageLocked(page)
	}

	// A session is only useful with at least one page to drive.
	if len(s.tabs) == 0 {
		page, pageErr := handle.NewPage(ctx)
		if pageErr != nil {
			s.teardownLocked(ctx)
			s.state = StateClosed
			return &ConnectionError{
				Reason: classifyReason(pageErr),
				Branch: string(spec.Kind),
				Target: spec.Target(),
				Err:    pageErr,
			}
		}
		s.adoptPageLocked(page)
	}

	if s.cfg.CookiesFile != "" {
		if cookieErr := loadCookies(ctx, handle, s.cfg.CookiesFile); cookieErr != nil {
			s.logger.Warnf("session %s could not load cookies from %s: %v", s.id, s.cfg.CookiesFile, cookieErr)
		}
	}

	s.state = StateConnected
	return nil
}

// adoptPageLocked registers a page as a tracked tab. The first tab a
// session sees becomes the focus target for both agent and human until
// explicitly reassigned. Duplicate adoption of the same page is a
// no-op. Caller must hold s.mu.
func (s *Session) adoptPageLocked(page PageHandle) *Tab {
	for _, existing := range s.tabs {
		if existing.id == page.ID() {
			return existing
		}
	}

	tab := &Tab{id: page.ID(), page: page}
	s.tabs = append(s.tabs, tab)

	if s.agentFocus == nil {
		s.agentFocus = tab
	}
	if s.humanFocus == nil {
		s.humanFocus = tab
	}

	page.OnClose(func() {
		s.dropTab(tab.id)
	})

	return tab
}

// dropTab removes a tab after the browser reports it closed.
func (s *Session) dropTab(tabID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeTabLocked(tabID)
}

// removeTabLocked removes a tab from the open set and reassigns focus.
// Focus falls back to the most recently opened remaining tab, or to
// none when the set is empty. Caller must hold s.mu.
func (s *Session) removeTabLocked(tabID string) *Tab {
	idx := -1
	for i, tab := range s.tabs {
		if tab.id == tabID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removed := s.tabs[idx]
	s.tabs = append(s.tabs[:idx], s.tabs[idx+1:]...)

	var fallback *Tab
	if len(s.tabs) > 0 {
		fallback = s.tabs[len(s.tabs)-1]
	}
	if s.agentFocus == removed {
		s.agentFocus = fallback
	}
	if s.humanFocus == removed {
		s.humanFocus = fallback
	}

	return removed
}

// OpenTab opens a new tab, optionally navigating it to url. Valid only
// in Connected. A non-empty url is checked against the allowlist
// before any page is created.
func (s *Session) OpenTab(ctx context.Context, url string) (*Tab, error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return nil, fmt.Errorf("cannot open tab: session is %s", s.state)
	}
	if url != "" && !s.allowedLocked(url) {
		s.mu.Unlock()
		s.logger.Warnf("session %s blocked tab open to %s", s.id, url)
		return nil, &NavigationBlockedError{URL: url}
	}
	handle := s.handle
	s.mu.Unlock()

	page, err := handle.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}

	s.mu.Lock()
	// The session may have closed while the page was being created;
	// don't adopt a tab onto a dead session.
	if s.state != StateConnected {
		state := s.state
		s.mu.Unlock()
		if closeErr := page.Close(ctx); closeErr != nil {
			s.logger.Warnf("session %s could not close orphaned page: %v", s.id, closeErr)
		}
		return nil, fmt.Errorf("cannot open tab: session is %s", state)
	}
	tab := s.adoptPageLocked(page)
	s.mu.Unlock()

	if url != "" {
		if err := page.Goto(ctx, url, s.cfg.NavigationTimeout); err != nil {
			return tab, fmt.Errorf("navigation to %s failed: %w", url, err)
		}
		s.waitForStability(ctx, page)
	}

	return tab, nil
}

// Navigate drives the agent-focused tab to url, enforcing the
// allowlist first. A blocked navigation returns NavigationBlockedError
// and leaves the session fully usable. On success, Navigate waits for
// the page to settle per the configured load-wait gates.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return fmt.Errorf("cannot navigate: session is %s", s.state)
	}
	tab := s.agentFocus
	if tab == nil {
		s.mu.Unlock()
		return fmt.Errorf("cannot navigate: session has no open tabs")
	}
	if !s.allowedLocked(url) {
		s.mu.Unlock()
		s.logger.Warnf("session %s blocked navigation to %s", s.id, url)
		return &NavigationBlockedError{URL: url}
	}
	s.mu.Unlock()

	if err := tab.page.Goto(ctx, url, s.cfg.NavigationTimeout); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}

	s.waitForStability(ctx, tab.page)
	return nil
}

// allowedLocked applies the origin allowlist. disable_security
// bypasses the check entirely. Caller must hold s.mu.
func (s *Session) allowedLocked(url string) bool {
	if s.cfg.DisableSecurity {
		return true
	}
	return s.allowlist.IsAllowed(url)
}

// FocusAgent points the agent at the given tab.
func (s *Session) FocusAgent(tabID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tab := s.findTabLocked(tabID)
	if tab == nil {
		return &UnknownTabError{TabID: tabID}
	}
	s.agentFocus = tab
	return nil
}

// FocusHuman marks the given tab as the one the human is looking at
// and brings it to the front of a headed browser.
func (s *Session) FocusHuman(ctx context.Context, tabID string) error {
	s.mu.Lock()
	tab := s.findTabLocked(tabID)
	if tab == nil {
		s.mu.Unlock()
		return &UnknownTabError{TabID: tabID}
	}
	s.humanFocus = tab
	s.mu.Unlock()

	if err := tab.page.BringToFront(ctx); err != nil {
		s.logger.Warnf("session %s could not raise tab %s: %v", s.id, tabID, err)
	}
	return nil
}

// CloseTab closes a tab and removes it from the open set. If the tab
// held agent or human focus, focus falls back to the most recently
// opened remaining tab.
func (s *Session) CloseTab(ctx context.Context, tabID string) error {
	s.mu.Lock()
	removed := s.removeTabLocked(tabID)
	s.mu.Unlock()

	if removed == nil {
		return &UnknownTabError{TabID: tabID}
	}
	if err := removed.page.Close(ctx); err != nil {
		return fmt.Errorf("failed to close tab %s: %w", tabID, err)
	}
	return nil
}

// findTabLocked looks a tab up by id. Caller must hold s.mu.
func (s *Session) findTabLocked(tabID string) *Tab {
	for _, tab := range s.tabs {
		if tab.id == tabID {
			return tab
		}
	}
	return nil
}

// Tabs returns the open tabs in the order they were opened.
func (s *Session) Tabs() []*Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	tabs := make([]*Tab, len(s.tabs))
	copy(tabs, s.tabs)
	return tabs
}

// AgentTab returns the tab under agent control, or nil.
func (s *Session) AgentTab() *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentFocus
}

// HumanTab returns the tab under human control, or nil.
func (s *Session) HumanTab() *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.humanFocus
}

// CurrentPage returns the page handle of the agent-focused tab, or nil
// when the session has no open tabs.
func (s *Session) CurrentPage() PageHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.agentFocus == nil {
		return nil
	}
	return s.agentFocus.page
}

// Close ends the session. With keep_alive set, only local bookkeeping
// is discarded and the remote browser keeps running, reusable by a
// later connection to the same endpoint; otherwise the underlying
// connection and any launched process are torn down. Close is
// idempotent: closing an already closed session is a no-op.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case StateClosed, StateClosing:
		s.mu.Unlock()
		return nil
	case StateUnstarted:
		s.state = StateClosed
		s.mu.Unlock()
		return nil
	}

	s.state = StateClosing
	handle := s.handle
	cookiesFile := s.cfg.CookiesFile
	keepAlive := s.cfg.KeepAlive
	s.tabs = nil
	s.agentFocus = nil
	s.humanFocus = nil
	s.mu.Unlock()

	var err error
	if handle != nil {
		if cookiesFile != "" {
			if cookieErr := saveCookies(ctx, handle, cookiesFile); cookieErr != nil {
				s.logger.Warnf("session %s could not save cookies to %s: %v", s.id, cookiesFile, cookieErr)
			}
		}
		if keepAlive {
			err = handle.Detach(ctx)
		} else {
			err = handle.Close(ctx)
		}
	}

	s.mu.Lock()
	s.state = StateClosed
	s.handle = nil
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to release browser handle: %w", err)
	}
	return nil
}

// teardownLocked releases the handle after a partial start. Caller
// must hold s.mu.
func (s *Session) teardownLocked(ctx context.Context) {
	if s.handle != nil {
		if closeErr := s.handle.Close(ctx); closeErr != nil {
			s.logger.Warnf("session %s teardown error: %v", s.id, closeErr)
		}
		s.handle = nil
	}
	s.tabs = nil
	s.agentFocus = nil
	s.humanFocus = nil
}
