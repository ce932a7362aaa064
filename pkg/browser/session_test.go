package browser

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/config"
)

func newTestSession(t *testing.T, profile *config.Profile, client *fakeClient) *Session {
	t.Helper()
	session, err := NewSession(resolveProfile(t, profile), NewResolver(client), nil)
	require.NoError(t, err)
	return session
}

func startedSession(t *testing.T, profile *config.Profile) (*Session, *fakeClient) {
	t.Helper()
	client := newFakeClient()
	session := newTestSession(t, profile, client)
	require.NoError(t, session.Start(context.Background()))
	return session, client
}

func TestSession_StartReachesConnected(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	assert.Equal(t, StateConnected, session.State())
	require.Len(t, session.Tabs(), 1, "a started session opens an initial tab")

	// The first tab is the default focus target for both agent and human
	tab := session.Tabs()[0]
	assert.Equal(t, tab.ID(), session.AgentTab().ID())
	assert.Equal(t, tab.ID(), session.HumanTab().ID())
}

func TestSession_StartIsIdempotent(t *testing.T) {
	session, client := startedSession(t, &config.Profile{})

	require.NoError(t, session.Start(context.Background()))
	assert.Equal(t, StateConnected, session.State())
	assert.Len(t, client.calledBranches(), 1, "a second Start must not reconnect")
}

func TestSession_StartFailureLandsInClosed(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")
	session := newTestSession(t, &config.Profile{CDPURL: strPtr("http://localhost:9222")}, client)

	err := session.Start(context.Background())
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "cdp", connErr.Branch)
	assert.Equal(t, StateClosed, session.State(), "failed start must not leave a half-open session")
}

func TestSession_StartAfterCloseFails(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})
	require.NoError(t, session.Close(context.Background()))

	assert.Error(t, session.Start(context.Background()))
}

func TestSession_InvalidAllowlistRejectedAtConstruction(t *testing.T) {
	cfg := resolveProfile(t, &config.Profile{AllowedDomains: []string{"*.com"}})

	_, err := NewSession(cfg, NewResolver(newFakeClient()), nil)
	assert.Error(t, err)
}

func TestSession_OpenTabTracksAndFocuses(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	tab, err := session.OpenTab(context.Background(), "https://example.com")
	require.NoError(t, err)

	assert.Len(t, session.Tabs(), 2)
	assert.Equal(t, "https://example.com", tab.URL())

	// Opening a tab does not steal focus from the first tab
	assert.NotEqual(t, tab.ID(), session.AgentTab().ID())
}

func TestSession_OpenTabBlockedByAllowlist(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{AllowedDomains: []string{"example.com"}})

	_, err := session.OpenTab(context.Background(), "https://evil.com")

	var blocked *NavigationBlockedError
	require.ErrorAs(t, err, &blocked)
	assert.Equal(t, "https://evil.com", blocked.URL)
	assert.Len(t, session.Tabs(), 1, "no tab may be created for a blocked URL")
}

func TestSession_OpenTabRequiresConnected(t *testing.T) {
	session := newTestSession(t, &config.Profile{}, newFakeClient())

	_, err := session.OpenTab(context.Background(), "")
	assert.ErrorContains(t, err, "unstarted")
}

func TestSession_OpenTabDuringCloseDoesNotLeakPage(t *testing.T) {
	session, client := startedSession(t, &config.Profile{})

	// The session closes in the window between the page being created
	// and the tab being adopted.
	client.browser.newPageHook = func() {
		require.NoError(t, session.Close(context.Background()))
	}

	_, err := session.OpenTab(context.Background(), "")
	require.Error(t, err)

	assert.Equal(t, StateClosed, session.State())
	assert.Empty(t, session.Tabs(), "a closed session must not adopt new tabs")

	orphan := client.browser.pages[len(client.browser.pages)-1]
	assert.True(t, orphan.closed, "the orphaned page must be closed, not left running")
}

func TestSession_NavigateUsesAgentTab(t *testing.T) {
	session, client := startedSession(t, &config.Profile{})

	require.NoError(t, session.Navigate(context.Background(), "https://example.com"))

	page := client.browser.pages[0]
	assert.Equal(t, []string{"https://example.com"}, page.gotoCalls)
	assert.Equal(t, "https://example.com", session.AgentTab().URL())
}

func TestSession_NavigateBlockedLeavesSessionUsable(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{AllowedDomains: []string{"example.com"}})

	err := session.Navigate(context.Background(), "https://sub.example.com")
	var blocked *NavigationBlockedError
	require.ErrorAs(t, err, &blocked)

	assert.Equal(t, StateConnected, session.State())
	require.NoError(t, session.Navigate(context.Background(), "https://example.com"))
}

func TestSession_DisableSecurityBypassesAllowlist(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{
		AllowedDomains:  []string{"example.com"},
		DisableSecurity: boolPtr(true),
	})

	require.NoError(t, session.Navigate(context.Background(), "https://anywhere.net"))
}

func TestSession_FocusReassignment(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	second, err := session.OpenTab(context.Background(), "")
	require.NoError(t, err)

	require.NoError(t, session.FocusAgent(second.ID()))
	assert.Equal(t, second.ID(), session.AgentTab().ID())
	assert.NotEqual(t, second.ID(), session.HumanTab().ID())

	require.NoError(t, session.FocusHuman(context.Background(), second.ID()))
	assert.Equal(t, second.ID(), session.HumanTab().ID())
}

func TestSession_FocusUnknownTab(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	err := session.FocusAgent("no-such-tab")
	var unknown *UnknownTabError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "no-such-tab", unknown.TabID)

	err = session.FocusHuman(context.Background(), "no-such-tab")
	assert.ErrorAs(t, err, &unknown)
}

func TestSession_CloseTabFocusFallsBackToNewest(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	second, err := session.OpenTab(context.Background(), "")
	require.NoError(t, err)
	third, err := session.OpenTab(context.Background(), "")
	require.NoError(t, err)

	// Focus the third tab, then close it: focus falls back to the most
	// recently opened remaining tab.
	require.NoError(t, session.FocusAgent(third.ID()))
	require.NoError(t, session.FocusHuman(context.Background(), third.ID()))
	require.NoError(t, session.CloseTab(context.Background(), third.ID()))

	assert.Equal(t, second.ID(), session.AgentTab().ID())
	assert.Equal(t, second.ID(), session.HumanTab().ID())
	assert.Len(t, session.Tabs(), 2)
}

func TestSession_CloseLastTabClearsFocus(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	only := session.Tabs()[0]
	require.NoError(t, session.CloseTab(context.Background(), only.ID()))

	assert.Empty(t, session.Tabs())
	assert.Nil(t, session.AgentTab())
	assert.Nil(t, session.HumanTab())
	assert.Nil(t, session.CurrentPage())
}

func TestSession_CloseUnknownTab(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	err := session.CloseTab(context.Background(), "no-such-tab")
	var unknown *UnknownTabError
	assert.ErrorAs(t, err, &unknown)
}

func TestSession_HumanClosedTabIsDropped(t *testing.T) {
	session, client := startedSession(t, &config.Profile{})

	second, err := session.OpenTab(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, session.FocusAgent(second.ID()))

	// The human closes the agent's tab out from under it
	client.browser.pages[1].simulateHumanClose()

	require.Len(t, session.Tabs(), 1)
	assert.NotEqual(t, second.ID(), session.AgentTab().ID())
}

func TestSession_PopupTabsAreAdopted(t *testing.T) {
	session, client := startedSession(t, &config.Profile{})

	popup := client.browser.simulatePopup()

	tabs := session.Tabs()
	require.Len(t, tabs, 2)
	assert.Equal(t, popup.ID(), tabs[1].ID())
}

func TestSession_CloseTearsDownByDefault(t *testing.T) {
	session, client := startedSession(t, &config.Profile{})

	require.NoError(t, session.Close(context.Background()))

	assert.Equal(t, StateClosed, session.State())
	assert.True(t, client.browser.isClosed())
	assert.False(t, client.browser.isDetached())
	assert.Empty(t, session.Tabs())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	session, _ := startedSession(t, &config.Profile{})

	require.NoError(t, session.Close(context.Background()))
	require.NoError(t, session.Close(context.Background()))
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_CloseUnstartedSession(t *testing.T) {
	session := newTestSession(t, &config.Profile{}, newFakeClient())

	require.NoError(t, session.Close(context.Background()))
	assert.Equal(t, StateClosed, session.State())
}

func TestSession_KeepAliveDetachesInsteadOfClosing(t *testing.T) {
	session, client := startedSession(t, &config.Profile{
		CDPURL:    strPtr("http://localhost:9222"),
		KeepAlive: boolPtr(true),
	})

	require.NoError(t, session.Close(context.Background()))

	assert.Equal(t, StateClosed, session.State())
	assert.True(t, client.browser.isDetached(), "keep_alive must detach, not tear down")
	assert.False(t, client.browser.isClosed())

	// The remote browser is still there: a fresh session against the
	// same endpoint connects again.
	again := newTestSession(t, &config.Profile{CDPURL: strPtr("http://localhost:9222")}, client)
	require.NoError(t, again.Start(context.Background()))
	assert.Equal(t, StateConnected, again.State())
}

func TestSession_CookiesPersistAcrossClose(t *testing.T) {
	cookiesFile := filepath.Join(t.TempDir(), "cookies.json")

	client := newFakeClient()
	client.browser.cookies = []Cookie{{Name: "session", Value: "abc", Domain: "example.com", Path: "/"}}

	session := newTestSession(t, &config.Profile{CookiesFile: strPtr(cookiesFile)}, client)
	require.NoError(t, session.Start(context.Background()))
	require.NoError(t, session.Close(context.Background()))

	// A second session against the same cookie file gets them back
	restored := newFakeClient()
	session2 := newTestSession(t, &config.Profile{CookiesFile: strPtr(cookiesFile)}, restored)
	require.NoError(t, session2.Start(context.Background()))

	cookies, err := restored.browser.Cookies(context.Background())
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestSession_AdoptsExistingPagesOnStart(t *testing.T) {
	client := newFakeClient()
	_, err := client.browser.NewPage(context.Background())
	require.NoError(t, err)
	_, err = client.browser.NewPage(context.Background())
	require.NoError(t, err)

	session := newTestSession(t, &config.Profile{CDPURL: strPtr("http://localhost:9222")}, client)
	require.NoError(t, session.Start(context.Background()))

	assert.Len(t, session.Tabs(), 2, "existing pages are adopted instead of opening a fresh one")
	assert.Equal(t, session.Tabs()[0].ID(), session.AgentTab().ID())
}

func TestSession_SuppliedPageHandle(t *testing.T) {
	page := newFakePage("external")
	session, err := NewSession(resolveProfile(t, &config.Profile{}), NewResolver(newFakeClient()), SupplyPage(page))
	require.NoError(t, err)

	require.NoError(t, session.Start(context.Background()))

	require.Len(t, session.Tabs(), 1)
	assert.Equal(t, "external", session.AgentTab().ID())
	assert.Equal(t, ConnectSupplied, session.Spec().Kind)

	// New tabs cannot be opened on a bare page handle
	_, err = session.OpenTab(context.Background(), "")
	assert.Error(t, err)
}

func TestSession_WaitGateCappedByMaximum(t *testing.T) {
	session, client := startedSession(t, &config.Profile{
		MinimumWaitPageLoadTime:        floatPtr(0),
		WaitForNetworkIdlePageLoadTime: floatPtr(10),
		MaximumWaitPageLoadTime:        floatPtr(0.05),
	})

	require.NoError(t, session.Navigate(context.Background(), "https://example.com"))

	page := client.browser.pages[0]
	require.Len(t, page.idleCalls, 1)
	assert.LessOrEqual(t, page.idleCalls[0].Seconds(), 0.05, "idle poll must never exceed the maximum wait")
}

func floatPtr(f float64) *float64 { return &f }
