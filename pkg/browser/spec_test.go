package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/pilot/pkg/config"
)

func resolveProfile(t *testing.T, profile *config.Profile) *config.Config {
	t.Helper()
	cfg, err := profile.Resolve()
	require.NoError(t, err)
	return cfg
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func TestDeriveSpec_PriorityOrder(t *testing.T) {
	tests := []struct {
		name     string
		profile  *config.Profile
		supplied *SuppliedHandle
		want     ConnectionKind
	}{
		{
			name:     "supplied handle wins over cdp",
			profile:  &config.Profile{CDPURL: strPtr("http://localhost:9222")},
			supplied: SupplyBrowser(HandleBrowser, newFakeBrowser()),
			want:     ConnectSupplied,
		},
		{
			name:    "cdp url",
			profile: &config.Profile{CDPURL: strPtr("http://localhost:9222")},
			want:    ConnectCDP,
		},
		{
			name:    "ws url",
			profile: &config.Profile{WSSURL: strPtr("ws://localhost:3000")},
			want:    ConnectWS,
		},
		{
			name:    "browser pid selects attach branch exclusively",
			profile: &config.Profile{BrowserPID: intPtr(1234)},
			want:    ConnectPID,
		},
		{
			name:    "user data dir launches persistent",
			profile: &config.Profile{UserDataDir: strPtr("/tmp/profile")},
			want:    LaunchPersistent,
		},
		{
			name:    "nothing configured launches ephemeral",
			profile: &config.Profile{},
			want:    LaunchEphemeral,
		},
		{
			name: "pid beats user data dir",
			profile: &config.Profile{
				BrowserPID:  intPtr(1234),
				UserDataDir: strPtr("/tmp/profile"),
			},
			want: ConnectPID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := DeriveSpec(resolveProfile(t, tt.profile), tt.supplied)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.Kind)
		})
	}
}

func TestDeriveSpec_AmbiguousSources(t *testing.T) {
	tests := []struct {
		name    string
		profile *config.Profile
	}{
		{
			name: "cdp and pid",
			profile: &config.Profile{
				CDPURL:     strPtr("http://localhost:9222"),
				BrowserPID: intPtr(1234),
			},
		},
		{
			name: "cdp and ws",
			profile: &config.Profile{
				CDPURL: strPtr("http://localhost:9222"),
				WSSURL: strPtr("ws://localhost:3000"),
			},
		},
		{
			name: "all three",
			profile: &config.Profile{
				CDPURL:     strPtr("http://localhost:9222"),
				WSSURL:     strPtr("ws://localhost:3000"),
				BrowserPID: intPtr(1234),
			},
		},
		{
			name: "invalid values are still ambiguous",
			profile: &config.Profile{
				CDPURL:     strPtr("not-a-url"),
				BrowserPID: intPtr(99999999),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveSpec(resolveProfile(t, tt.profile), nil)
			require.Error(t, err)

			var connErr *ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, ReasonAmbiguousSpec, connErr.Reason)
		})
	}
}

func TestDeriveSpec_AmbiguityBeatsSuppliedHandle(t *testing.T) {
	profile := &config.Profile{
		CDPURL:     strPtr("http://localhost:9222"),
		BrowserPID: intPtr(1234),
	}

	_, err := DeriveSpec(resolveProfile(t, profile), SupplyBrowser(HandleBrowser, newFakeBrowser()))

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ReasonAmbiguousSpec, connErr.Reason)
}

func TestDeriveSpec_NilSuppliedHandle(t *testing.T) {
	_, err := DeriveSpec(resolveProfile(t, &config.Profile{}), SupplyBrowser(HandleBrowser, nil))

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ReasonNotFound, connErr.Reason)
}

func TestConnectionSpec_Target(t *testing.T) {
	tests := []struct {
		name string
		spec *ConnectionSpec
		want string
	}{
		{"cdp", &ConnectionSpec{Kind: ConnectCDP, URL: "http://localhost:9222"}, "http://localhost:9222"},
		{"pid", &ConnectionSpec{Kind: ConnectPID, PID: 42}, "pid 42"},
		{"persistent", &ConnectionSpec{Kind: LaunchPersistent, UserDataDir: "/tmp/p"}, "/tmp/p"},
		{"ephemeral", &ConnectionSpec{Kind: LaunchEphemeral}, "ephemeral browser"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Target())
		})
	}
}
