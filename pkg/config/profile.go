package config

// Profile is a reusable, partially specified set of browser session
// options. Every field is optional: nil (or empty, for slices) means
// "unset", and unset keys fall through to the profile below it in the
// merge chain, or to the built-in defaults.
//
// Profiles are merged per key with Merge and turned into a fully
// resolved Config with Resolve.
type Profile struct {
	// CDPURL is the HTTP endpoint of a running browser exposing the
	// Chrome DevTools Protocol (e.g. http://localhost:9222).
	CDPURL *string `yaml:"cdp_url,omitempty" json:"cdp_url,omitempty"`

	// WSSURL is the websocket endpoint of a remote browser server.
	WSSURL *string `yaml:"wss_url,omitempty" json:"wss_url,omitempty"`

	// BrowserPID is the process id of a locally running browser to
	// attach to via its debugging port.
	BrowserPID *int `yaml:"browser_pid,omitempty" json:"browser_pid,omitempty"`

	// UserDataDir is the on-disk profile directory for a launched
	// persistent-context browser.
	UserDataDir *string `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`

	// ExecutablePath overrides the browser binary used for launches.
	ExecutablePath *string `yaml:"executable_path,omitempty" json:"executable_path,omitempty"`

	// Args are extra command-line arguments passed to a launched browser.
	Args []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Headless controls whether launched browsers run without a window.
	Headless *bool `yaml:"headless,omitempty" json:"headless,omitempty"`

	// Viewport sets the page viewport size. Mutually exclusive with
	// NoViewport.
	Viewport *Viewport `yaml:"viewport,omitempty" json:"viewport,omitempty"`

	// NoViewport disables viewport emulation entirely (window-sized
	// pages). Mutually exclusive with Viewport.
	NoViewport *bool `yaml:"no_viewport,omitempty" json:"no_viewport,omitempty"`

	// KeepAlive leaves the underlying browser running when the session
	// is closed, so a later session can reconnect to it.
	KeepAlive *bool `yaml:"keep_alive,omitempty" json:"keep_alive,omitempty"`

	// AllowedDomains restricts navigation to matching origins. Empty
	// means unrestricted.
	AllowedDomains []string `yaml:"allowed_domains,omitempty" json:"allowed_domains,omitempty"`

	// DisableSecurity bypasses the navigation allowlist check.
	DisableSecurity *bool `yaml:"disable_security,omitempty" json:"disable_security,omitempty"`

	// MinimumWaitPageLoadTime is the minimum time in seconds to wait
	// after a navigation before the page is considered ready.
	MinimumWaitPageLoadTime *float64 `yaml:"minimum_wait_page_load_time,omitempty" json:"minimum_wait_page_load_time,omitempty"`

	// WaitForNetworkIdlePageLoadTime is the time in seconds to poll for
	// network idle after the minimum wait has elapsed.
	WaitForNetworkIdlePageLoadTime *float64 `yaml:"wait_for_network_idle_page_load_time,omitempty" json:"wait_for_network_idle_page_load_time,omitempty"`

	// MaximumWaitPageLoadTime caps the total page readiness wait in
	// seconds, regardless of network activity.
	MaximumWaitPageLoadTime *float64 `yaml:"maximum_wait_page_load_time,omitempty" json:"maximum_wait_page_load_time,omitempty"`

	// NavigationTimeout is the navigation timeout in milliseconds.
	NavigationTimeout *float64 `yaml:"navigation_timeout,omitempty" json:"navigation_timeout,omitempty"`

	// CookiesFile is a path to a serialized cookie list, read when the
	// session starts and written back when it closes.
	CookiesFile *string `yaml:"cookies_file,omitempty" json:"cookies_file,omitempty"`

	// StorageStatePath points to an opaque storage-state blob (cookies
	// plus local storage) handed to the launch collaborator.
	StorageStatePath *string `yaml:"storage_state_path,omitempty" json:"storage_state_path,omitempty"`
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

// Config is a fully resolved option set: every key has a concrete
// value, either from a profile layer or from the defaults. Configs are
// produced by Resolve and are not mutated afterwards.
type Config struct {
	CDPURL         string
	WSSURL         string
	BrowserPID     int
	UserDataDir    string
	ExecutablePath string
	Args           []string
	Headless       bool
	Viewport       Viewport
	NoViewport     bool
	KeepAlive      bool

	AllowedDomains  []string
	DisableSecurity bool

	MinimumWaitPageLoadTime        float64
	WaitForNetworkIdlePageLoadTime float64
	MaximumWaitPageLoadTime        float64
	NavigationTimeout              float64

	CookiesFile      string
	StorageStatePath string
}

// Default values applied by Resolve for unset keys.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720

	DefaultMinimumWaitPageLoadTime        = 0.25
	DefaultWaitForNetworkIdlePageLoadTime = 0.5
	DefaultMaximumWaitPageLoadTime        = 5.0
	DefaultNavigationTimeout              = 30000.0
)

// ConnectionSources returns the names of the "how to obtain a browser"
// options that are concretely set on the resolved config. More than one
// entry means the config is ambiguous about which connection strategy
// to use.
func (c *Config) ConnectionSources() []string {
	var sources []string
	if c.CDPURL != "" {
		sources = append(sources, "cdp_url")
	}
	if c.WSSURL != "" {
		sources = append(sources, "wss_url")
	}
	if c.BrowserPID != 0 {
		sources = append(sources, "browser_pid")
	}
	return sources
}
