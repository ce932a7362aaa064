package browser

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/entrhq/pilot/pkg/config"
	"github.com/entrhq/pilot/pkg/logging"
)

// DefaultSessionName is the session used by the single-session
// convenience methods.
const DefaultSessionName = "default"

// DefaultMaxSessions bounds how many sessions a manager will track.
const DefaultMaxSessions = 5

// SessionManager is the composition root: it owns the base profile,
// resolves per-session configs by merging overrides onto it, and
// tracks named sessions. Sessions are independent of each other and
// share no mutable state.
type SessionManager struct {
	mu          sync.RWMutex
	profile     *config.Profile
	client      EndpointClient
	sessions    map[string]*Session
	maxSessions int
	logger      *logging.Logger
}

// NewSessionManager creates a manager with the given base profile. A
// nil profile means all defaults. The manager uses the playwright
// endpoint client unless SetClient replaces it.
func NewSessionManager(profile *config.Profile) *SessionManager {
	logger, _ := logging.NewLogger("manager")
	return &SessionManager{
		profile:     profile,
		client:      NewPlaywrightClient(),
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
		logger:      logger,
	}
}

// SetClient replaces the endpoint client. Must be called before any
// session is started.
func (m *SessionManager) SetClient(client EndpointClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = client
}

// SetMaxSessions sets the maximum number of concurrent sessions.
func (m *SessionManager) SetMaxSessions(max int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxSessions = max
}

// StartSession starts a named session. The override profile is merged
// onto the manager's base profile, key by key, with the override
// winning; unset keys fall back to defaults. A supplied handle, when
// non-nil, is wrapped instead of opening any new connection.
//
// Starting a name that is already tracked returns the existing session:
// a concurrent caller racing an in-flight start blocks until that start
// settles rather than opening a second browser.
func (m *SessionManager) StartSession(ctx context.Context, name string, override *config.Profile, supplied *SuppliedHandle) (*Session, error) {
	if name == "" {
		name = DefaultSessionName
	}

	m.mu.Lock()
	if existing, ok := m.sessions[name]; ok {
		m.mu.Unlock()
		// Start blocks on the session mutex while another caller's
		// Start is resolving, then no-ops once connected.
		if err := existing.Start(ctx); err != nil {
			return nil, err
		}
		return existing, nil
	}
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("maximum number of sessions (%d) reached", m.maxSessions)
	}

	cfg, err := config.Merge(m.profile, override).Resolve()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	session, err := NewSession(cfg, NewResolver(m.client), supplied)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	// Reserve the name before connecting, so a concurrent start of the
	// same name finds this session instead of opening its own browser.
	m.sessions[name] = session
	m.mu.Unlock()

	if err := session.Start(ctx); err != nil {
		m.mu.Lock()
		if m.sessions[name] == session {
			delete(m.sessions, name)
		}
		m.mu.Unlock()
		return nil, err
	}

	m.logger.Infof("started session %q via %s", name, session.Spec().Kind)
	return session, nil
}

// GetSession retrieves an active session by name.
func (m *SessionManager) GetSession(name string) (*Session, error) {
	if name == "" {
		name = DefaultSessionName
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("session %q not found", name)
	}
	return session, nil
}

// CloseSession closes a named session and removes it from the manager.
func (m *SessionManager) CloseSession(ctx context.Context, name string) error {
	if name == "" {
		name = DefaultSessionName
	}

	m.mu.Lock()
	session, ok := m.sessions[name]
	if ok {
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %q not found", name)
	}
	return session.Close(ctx)
}

// HasSessions returns true if there are any tracked sessions.
func (m *SessionManager) HasSessions() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions) > 0
}

// SessionNames returns the names of all tracked sessions.
func (m *SessionManager) SessionNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.sessions))
	for name := range m.sessions {
		names = append(names, name)
	}
	return names
}

// CloseAll closes every tracked session concurrently and reports the
// first failure.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for name, session := range m.sessions {
		sessions = append(sessions, session)
		delete(m.sessions, name)
	}
	m.mu.Unlock()

	group, ctx := errgroup.WithContext(ctx)
	for _, session := range sessions {
		session := session
		group.Go(func() error {
			return session.Close(ctx)
		})
	}
	return group.Wait()
}

// Shutdown closes all sessions and releases the endpoint client.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	if err := m.CloseAll(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client != nil {
		if err := client.Stop(); err != nil {
			return fmt.Errorf("failed to stop endpoint client: %w", err)
		}
	}
	return nil
}

// Start starts the default session with no overrides. Idempotent: if
// the default session is already connected it is returned as is.
func (m *SessionManager) Start(ctx context.Context) (*Session, error) {
	return m.StartSession(ctx, DefaultSessionName, nil, nil)
}

// Navigate drives the default session's agent-focused tab to url.
func (m *SessionManager) Navigate(ctx context.Context, url string) error {
	session, err := m.GetSession(DefaultSessionName)
	if err != nil {
		return err
	}
	return session.Navigate(ctx, url)
}

// GetCurrentPage returns the default session's agent-focused page.
func (m *SessionManager) GetCurrentPage() (PageHandle, error) {
	session, err := m.GetSession(DefaultSessionName)
	if err != nil {
		return nil, err
	}
	page := session.CurrentPage()
	if page == nil {
		return nil, fmt.Errorf("session has no open tabs")
	}
	return page, nil
}

// Close closes the default session.
func (m *SessionManager) Close(ctx context.Context) error {
	return m.CloseSession(ctx, DefaultSessionName)
}
