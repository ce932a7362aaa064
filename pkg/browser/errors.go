package browser

import (
	"fmt"
	"strings"
)

// ConnectionErrorReason classifies why obtaining a browser failed.
type ConnectionErrorReason string

const (
	// ReasonAmbiguousSpec means the config supplied more than one
	// concrete connection source. Never retried; the config must be
	// fixed upstream.
	ReasonAmbiguousSpec ConnectionErrorReason = "ambiguous_spec"

	// ReasonRefused means the chosen endpoint rejected the connection.
	ReasonRefused ConnectionErrorReason = "refused"

	// ReasonNotFound means the chosen target does not exist: no such
	// process, no debugging port, or no browser executable.
	ReasonNotFound ConnectionErrorReason = "not_found"

	// ReasonTimeout means the chosen branch did not complete in time.
	ReasonTimeout ConnectionErrorReason = "timeout"
)

// ConnectionError reports a failure to resolve or establish a browser
// connection. Branch and Target identify the one strategy that was
// chosen so the caller can retry with corrected input; the resolver
// itself never falls back to a different strategy.
type ConnectionError struct {
	Reason ConnectionErrorReason
	Branch string
	Target string
	Err    error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "connection failed (%s)", e.Reason)
	if e.Branch != "" {
		fmt.Fprintf(&b, ": branch %s", e.Branch)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " target %s", e.Target)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause, if any.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// UnknownTabError reports a focus or close call referencing a tab that
// is not in the session's open set.
type UnknownTabError struct {
	TabID string
}

// Error implements the error interface.
func (e *UnknownTabError) Error() string {
	return fmt.Sprintf("unknown tab: %s", e.TabID)
}

// NavigationBlockedError reports a navigation denied by the origin
// allowlist. It never terminates the session; the caller may pick a
// different target and continue.
type NavigationBlockedError struct {
	URL string
}

// Error implements the error interface.
func (e *NavigationBlockedError) Error() string {
	return fmt.Sprintf("navigation to %s blocked by allowed_domains", e.URL)
}
