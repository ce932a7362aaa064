package browser

import (
	"fmt"
	"strings"

	"github.com/entrhq/pilot/pkg/config"
)

// ConnectionKind names one of the mutually exclusive ways to obtain a
// browser.
type ConnectionKind string

const (
	// ConnectSupplied wraps a handle the caller already holds.
	ConnectSupplied ConnectionKind = "supplied_handle"

	// ConnectCDP connects to a CDP HTTP endpoint.
	ConnectCDP ConnectionKind = "cdp"

	// ConnectWS connects to a browser-server websocket endpoint.
	ConnectWS ConnectionKind = "ws"

	// ConnectPID attaches to a local process's debugging port.
	ConnectPID ConnectionKind = "pid"

	// LaunchPersistent launches a browser bound to a profile directory.
	LaunchPersistent ConnectionKind = "launch_persistent"

	// LaunchEphemeral launches a browser with no persisted profile.
	LaunchEphemeral ConnectionKind = "launch_ephemeral"
)

// HandleKind identifies what kind of live object the caller supplied.
type HandleKind string

const (
	// HandlePage is a single open page.
	HandlePage HandleKind = "page"

	// HandleContext is a browser context.
	HandleContext HandleKind = "context"

	// HandleBrowser is a whole browser connection.
	HandleBrowser HandleKind = "browser"
)

// SuppliedHandle is a live object handed in by the caller instead of a
// connection address. Wrapping it never creates a new process or
// connection. Construct with SupplyBrowser or SupplyPage.
type SuppliedHandle struct {
	Kind    HandleKind
	Browser BrowserHandle
	Page    PageHandle
}

// SupplyBrowser wraps an existing browser or context handle.
func SupplyBrowser(kind HandleKind, handle BrowserHandle) *SuppliedHandle {
	return &SuppliedHandle{Kind: kind, Browser: handle}
}

// SupplyPage wraps a single existing page.
func SupplyPage(page PageHandle) *SuppliedHandle {
	return &SuppliedHandle{Kind: HandlePage, Page: page}
}

// ConnectionSpec is the tagged variant produced by DeriveSpec: exactly
// one Kind is active, and only the fields for that kind are set.
type ConnectionSpec struct {
	Kind ConnectionKind

	// URL is the endpoint for ConnectCDP and ConnectWS.
	URL string

	// PID is the local process id for ConnectPID.
	PID int

	// UserDataDir is the profile directory for LaunchPersistent.
	UserDataDir string

	// Handle is the caller-supplied object for ConnectSupplied.
	Handle *SuppliedHandle
}

// Target describes the spec's target for error reporting.
func (s *ConnectionSpec) Target() string {
	switch s.Kind {
	case ConnectSupplied:
		return fmt.Sprintf("supplied %s handle", s.Handle.Kind)
	case ConnectCDP, ConnectWS:
		return s.URL
	case ConnectPID:
		return fmt.Sprintf("pid %d", s.PID)
	case LaunchPersistent:
		return s.UserDataDir
	default:
		return "ephemeral browser"
	}
}

// DeriveSpec decides the single connection strategy for a resolved
// config plus an optional supplied handle. Priority order, first match
// wins:
//
//  1. supplied handle
//  2. cdp_url
//  3. wss_url
//  4. browser_pid
//  5. user_data_dir (persistent launch)
//  6. ephemeral launch
//
// More than one concrete remote source (cdp_url, wss_url, browser_pid)
// is a ConnectionError with ReasonAmbiguousSpec, returned before any
// process or network activity. The resolver never guesses between
// conflicting inputs.
func DeriveSpec(cfg *config.Config, supplied *SuppliedHandle) (*ConnectionSpec, error) {
	if sources := cfg.ConnectionSources(); len(sources) > 1 {
		return nil, &ConnectionError{
			Reason: ReasonAmbiguousSpec,
			Target: strings.Join(sources, ", "),
			Err:    fmt.Errorf("config supplies %d connection sources, want at most one", len(sources)),
		}
	}

	switch {
	case supplied != nil:
		if supplied.Kind == HandlePage && supplied.Page == nil ||
			supplied.Kind != HandlePage && supplied.Browser == nil {
			return nil, &ConnectionError{
				Reason: ReasonNotFound,
				Branch: string(ConnectSupplied),
				Err:    fmt.Errorf("supplied %s handle is nil", supplied.Kind),
			}
		}
		return &ConnectionSpec{Kind: ConnectSupplied, Handle: supplied}, nil
	case cfg.CDPURL != "":
		return &ConnectionSpec{Kind: ConnectCDP, URL: cfg.CDPURL}, nil
	case cfg.WSSURL != "":
		return &ConnectionSpec{Kind: ConnectWS, URL: cfg.WSSURL}, nil
	case cfg.BrowserPID != 0:
		return &ConnectionSpec{Kind: ConnectPID, PID: cfg.BrowserPID}, nil
	case cfg.UserDataDir != "":
		return &ConnectionSpec{Kind: LaunchPersistent, UserDataDir: cfg.UserDataDir}, nil
	default:
		return &ConnectionSpec{Kind: LaunchEphemeral}, nil
	}
}
