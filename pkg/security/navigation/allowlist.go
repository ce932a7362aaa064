// Package navigation enforces the origin allowlist that bounds where
// an automated browser session is permitted to navigate.
//
// An allowlist entry is an origin pattern: an optional scheme glob
// followed by a host pattern. Host patterns support a single leading
// wildcard label for subdomain matching:
//
//	example.com         matches example.com only, never subdomains
//	*.example.com       matches any subdomain, never example.com itself
//	http*://example.com matches http and https on example.com
//
// The two host forms are intentionally disjoint: an exact host never
// implies its subdomains, and a wildcard never implies the bare
// domain. Callers that want both must list both patterns. An empty
// allowlist permits every URL.
package navigation

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
	"golang.org/x/net/publicsuffix"
)

// Pattern is a compiled origin-matching rule.
type Pattern struct {
	raw    string
	scheme glob.Glob
	host   glob.Glob
}

// ParsePattern compiles a single allowlist entry. Patterns are
// case-insensitive. Returns an error for empty hosts, wildcards
// anywhere but the leading label, and wildcards over a bare public
// suffix (e.g. *.com), which would allow essentially the whole web.
func ParsePattern(raw string) (*Pattern, error) {
	entry := strings.ToLower(strings.TrimSpace(raw))
	if entry == "" {
		return nil, fmt.Errorf("allowlist pattern cannot be empty")
	}

	schemePart := "*"
	hostPart := entry
	if idx := strings.Index(entry, "://"); idx >= 0 {
		schemePart = entry[:idx]
		hostPart = entry[idx+len("://"):]
	}
	if schemePart == "" {
		return nil, fmt.Errorf("allowlist pattern %q has an empty scheme", raw)
	}
	if hostPart == "" {
		return nil, fmt.Errorf("allowlist pattern %q has an empty host", raw)
	}

	if err := vetHostPattern(raw, hostPart); err != nil {
		return nil, err
	}

	schemeGlob, err := glob.Compile(schemePart)
	if err != nil {
		return nil, fmt.Errorf("allowlist pattern %q has an invalid scheme glob: %w", raw, err)
	}
	hostGlob, err := glob.Compile(hostPart)
	if err != nil {
		return nil, fmt.Errorf("allowlist pattern %q has an invalid host glob: %w", raw, err)
	}

	return &Pattern{raw: entry, scheme: schemeGlob, host: hostGlob}, nil
}

// vetHostPattern rejects host patterns whose wildcard placement would
// widen the match beyond a leading subdomain label.
func vetHostPattern(raw, host string) error {
	wildcards := strings.Count(host, "*")
	if wildcards == 0 {
		return nil
	}
	if wildcards > 1 || !strings.HasPrefix(host, "*.") {
		return fmt.Errorf("allowlist pattern %q: host wildcard must be a single leading *. label", raw)
	}

	base := strings.TrimPrefix(host, "*.")
	if base == "" {
		return fmt.Errorf("allowlist pattern %q has an empty host", raw)
	}

	// *.com or *.co.uk would match every registrable domain under the
	// suffix. Refuse rather than warn: this list is the security boundary.
	if suffix, icann := publicsuffix.PublicSuffix(base); icann && suffix == base {
		return fmt.Errorf("allowlist pattern %q matches every domain under the public suffix %q", raw, base)
	}

	return nil
}

// Matches reports whether the pattern permits the given scheme and
// host. Both must already be lowercase.
func (p *Pattern) Matches(scheme, host string) bool {
	return p.scheme.Match(scheme) && p.host.Match(host)
}

// String returns the original pattern text.
func (p *Pattern) String() string {
	return p.raw
}

// Allowlist is an ordered set of compiled origin patterns. The order
// never affects the outcome: a URL is allowed if any pattern matches.
type Allowlist struct {
	patterns []*Pattern
}

// NewAllowlist compiles the given entries. A nil or empty entry list
// produces an unrestricted allowlist.
func NewAllowlist(entries []string) (*Allowlist, error) {
	list := &Allowlist{}
	for _, entry := range entries {
		pattern, err := ParsePattern(entry)
		if err != nil {
			return nil, err
		}
		list.patterns = append(list.patterns, pattern)
	}
	return list, nil
}

// Empty reports whether the allowlist has no patterns, meaning every
// URL is permitted.
func (a *Allowlist) Empty() bool {
	return a == nil || len(a.patterns) == 0
}

// IsAllowed reports whether navigation to rawURL is permitted. An
// empty allowlist permits everything. about:blank is always permitted
// since new tabs open there before any navigation. URLs that cannot be
// parsed, or that have no host, are denied.
func (a *Allowlist) IsAllowed(rawURL string) bool {
	if a.Empty() {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(rawURL), "about:blank") {
		return true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if scheme == "" || host == "" {
		return false
	}

	for _, pattern := range a.patterns {
		if pattern.Matches(scheme, host) {
			return true
		}
	}
	return false
}

// Patterns returns the compiled patterns, for logging and diagnostics.
func (a *Allowlist) Patterns() []*Pattern {
	if a == nil {
		return nil
	}
	return a.patterns
}
