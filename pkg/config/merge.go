package config

// Merge overlays override on top of base, per key. A key set in
// override wins; a key unset in override keeps the base value; keys
// unset in both stay unset. Neither input is modified.
//
// Merge is idempotent: merging the same override twice produces the
// same result as merging it once.
func Merge(base, override *Profile) *Profile {
	merged := &Profile{}
	if base != nil {
		*merged = *base
		merged.Args = copyStrings(base.Args)
		merged.AllowedDomains = copyStrings(base.AllowedDomains)
	}
	if override == nil {
		return merged
	}

	if override.CDPURL != nil {
		merged.CDPURL = override.CDPURL
	}
	if override.WSSURL != nil {
		merged.WSSURL = override.WSSURL
	}
	if override.BrowserPID != nil {
		merged.BrowserPID = override.BrowserPID
	}
	if override.UserDataDir != nil {
		merged.UserDataDir = override.UserDataDir
	}
	if override.ExecutablePath != nil {
		merged.ExecutablePath = override.ExecutablePath
	}
	if override.Args != nil {
		merged.Args = copyStrings(override.Args)
	}
	if override.Headless != nil {
		merged.Headless = override.Headless
	}
	if override.Viewport != nil {
		merged.Viewport = override.Viewport
	}
	if override.NoViewport != nil {
		merged.NoViewport = override.NoViewport
	}
	if override.KeepAlive != nil {
		merged.KeepAlive = override.KeepAlive
	}
	if override.AllowedDomains != nil {
		merged.AllowedDomains = copyStrings(override.AllowedDomains)
	}
	if override.DisableSecurity != nil {
		merged.DisableSecurity = override.DisableSecurity
	}
	if override.MinimumWaitPageLoadTime != nil {
		merged.MinimumWaitPageLoadTime = override.MinimumWaitPageLoadTime
	}
	if override.WaitForNetworkIdlePageLoadTime != nil {
		merged.WaitForNetworkIdlePageLoadTime = override.WaitForNetworkIdlePageLoadTime
	}
	if override.MaximumWaitPageLoadTime != nil {
		merged.MaximumWaitPageLoadTime = override.MaximumWaitPageLoadTime
	}
	if override.NavigationTimeout != nil {
		merged.NavigationTimeout = override.NavigationTimeout
	}
	if override.CookiesFile != nil {
		merged.CookiesFile = override.CookiesFile
	}
	if override.StorageStatePath != nil {
		merged.StorageStatePath = override.StorageStatePath
	}

	return merged
}

// Clone returns a deep copy of the profile. Pointer fields are
// duplicated, so mutating the copy never reaches the original.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return &Profile{}
	}

	clone := *p
	clone.CDPURL = clonePtr(p.CDPURL)
	clone.WSSURL = clonePtr(p.WSSURL)
	clone.BrowserPID = clonePtr(p.BrowserPID)
	clone.UserDataDir = clonePtr(p.UserDataDir)
	clone.ExecutablePath = clonePtr(p.ExecutablePath)
	clone.Args = copyStrings(p.Args)
	clone.Headless = clonePtr(p.Headless)
	clone.Viewport = clonePtr(p.Viewport)
	clone.NoViewport = clonePtr(p.NoViewport)
	clone.KeepAlive = clonePtr(p.KeepAlive)
	clone.AllowedDomains = copyStrings(p.AllowedDomains)
	clone.DisableSecurity = clonePtr(p.DisableSecurity)
	clone.MinimumWaitPageLoadTime = clonePtr(p.MinimumWaitPageLoadTime)
	clone.WaitForNetworkIdlePageLoadTime = clonePtr(p.WaitForNetworkIdlePageLoadTime)
	clone.MaximumWaitPageLoadTime = clonePtr(p.MaximumWaitPageLoadTime)
	clone.NavigationTimeout = clonePtr(p.NavigationTimeout)
	clone.CookiesFile = clonePtr(p.CookiesFile)
	clone.StorageStatePath = clonePtr(p.StorageStatePath)
	return &clone
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Resolve fills every unset key with its default and validates the
// result. The returned Config has no unset keys. Returns a
// *ValidationError if any resolved value violates a range or
// exclusivity constraint.
func (p *Profile) Resolve() (*Config, error) {
	if p == nil {
		p = &Profile{}
	}

	cfg := &Config{
		CDPURL:         strValue(p.CDPURL),
		WSSURL:         strValue(p.WSSURL),
		BrowserPID:     intValue(p.BrowserPID),
		UserDataDir:    strValue(p.UserDataDir),
		ExecutablePath: strValue(p.ExecutablePath),
		Args:           copyStrings(p.Args),
		Headless:       boolValue(p.Headless),
		NoViewport:     boolValue(p.NoViewport),
		KeepAlive:      boolValue(p.KeepAlive),

		AllowedDomains:  copyStrings(p.AllowedDomains),
		DisableSecurity: boolValue(p.DisableSecurity),

		MinimumWaitPageLoadTime:        floatOr(p.MinimumWaitPageLoadTime, DefaultMinimumWaitPageLoadTime),
		WaitForNetworkIdlePageLoadTime: floatOr(p.WaitForNetworkIdlePageLoadTime, DefaultWaitForNetworkIdlePageLoadTime),
		MaximumWaitPageLoadTime:        floatOr(p.MaximumWaitPageLoadTime, DefaultMaximumWaitPageLoadTime),
		NavigationTimeout:              floatOr(p.NavigationTimeout, DefaultNavigationTimeout),

		CookiesFile:      strValue(p.CookiesFile),
		StorageStatePath: strValue(p.StorageStatePath),
	}

	if p.Viewport != nil {
		cfg.Viewport = *p.Viewport
	} else {
		cfg.Viewport = Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}

	if err := cfg.validate(p.Viewport != nil); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks range and exclusivity constraints on a resolved
// config. explicitViewport reports whether the viewport was set by the
// caller rather than defaulted; only an explicit viewport conflicts
// with no_viewport.
func (c *Config) validate(explicitViewport bool) error {
	if explicitViewport && c.NoViewport {
		return &ValidationError{Field: "viewport", Reason: "viewport and no_viewport are mutually exclusive"}
	}
	if explicitViewport {
		if c.Viewport.Width < 100 || c.Viewport.Width > 5000 {
			return &ValidationError{Field: "viewport.width", Reason: "must be between 100 and 5000 pixels"}
		}
		if c.Viewport.Height < 100 || c.Viewport.Height > 5000 {
			return &ValidationError{Field: "viewport.height", Reason: "must be between 100 and 5000 pixels"}
		}
	}
	if c.BrowserPID < 0 {
		return &ValidationError{Field: "browser_pid", Reason: "must be a positive process id"}
	}
	if c.MinimumWaitPageLoadTime < 0 {
		return &ValidationError{Field: "minimum_wait_page_load_time", Reason: "must not be negative"}
	}
	if c.WaitForNetworkIdlePageLoadTime < 0 {
		return &ValidationError{Field: "wait_for_network_idle_page_load_time", Reason: "must not be negative"}
	}
	if c.MaximumWaitPageLoadTime < 0 {
		return &ValidationError{Field: "maximum_wait_page_load_time", Reason: "must not be negative"}
	}
	if c.MinimumWaitPageLoadTime > c.MaximumWaitPageLoadTime {
		return &ValidationError{Field: "minimum_wait_page_load_time", Reason: "must not exceed maximum_wait_page_load_time"}
	}
	if c.NavigationTimeout < 0 {
		return &ValidationError{Field: "navigation_timeout", Reason: "must not be negative"}
	}
	return nil
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func strValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func boolValue(p *bool) bool {
	if p == nil {
		return false
	}
	return *p
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
