// Package main provides the pilot command, a small driver around the
// browser session policy layer. It loads a named profile, applies
// flag and environment overrides, starts a session, navigates to a
// URL, and reports where the page landed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/entrhq/pilot/pkg/browser"
	"github.com/entrhq/pilot/pkg/config"
)

const version = "0.1.0"

func main() {
	// Environment files are optional; flags and real env still apply
	_ = godotenv.Load()

	var (
		profileFile    = flag.String("profiles", "", "Path to the YAML profile store (default ~/.pilot/profiles.yaml)")
		profileName    = flag.String("profile", config.DefaultProfileName, "Named profile to load")
		url            = flag.String("url", "", "URL to navigate to after the session starts")
		cdpURL         = flag.String("cdp-url", os.Getenv("PILOT_CDP_URL"), "CDP endpoint of an existing browser")
		wssURL         = flag.String("wss-url", os.Getenv("PILOT_WSS_URL"), "Websocket endpoint of a remote browser server")
		browserPID     = flag.Int("browser-pid", envInt("PILOT_BROWSER_PID"), "PID of a local browser to attach to")
		headless       = flag.Bool("headless", false, "Run a launched browser headless")
		keepAlive      = flag.Bool("keep-alive", false, "Leave the browser running on exit")
		allowedDomains = flag.String("allowed-domains", os.Getenv("PILOT_ALLOWED_DOMAINS"), "Comma-separated origin allowlist")
		timeout        = flag.Duration("timeout", 2*time.Minute, "Overall run timeout")
		showVersion    = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pilot v%s\n", version)
		return
	}

	override := overrideFromFlags(flag.CommandLine, headless, keepAlive, cdpURL, wssURL, browserPID, *allowedDomains)

	if err := run(*profileFile, *profileName, *url, override, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "pilot: %v\n", err)
		os.Exit(1)
	}
}

// overrideFromFlags builds the session override profile from parsed
// flags. Boolean flags are only applied when explicitly passed, so
// their defaults never clobber a stored profile value; the endpoint
// flags carry env-var defaults and apply whenever non-empty.
func overrideFromFlags(fs *flag.FlagSet, headless, keepAlive *bool, cdpURL, wssURL *string, browserPID *int, allowedDomains string) *config.Profile {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	override := &config.Profile{}
	if explicit["headless"] {
		override.Headless = headless
	}
	if explicit["keep-alive"] {
		override.KeepAlive = keepAlive
	}
	if *cdpURL != "" {
		override.CDPURL = cdpURL
	}
	if *wssURL != "" {
		override.WSSURL = wssURL
	}
	if *browserPID != 0 {
		override.BrowserPID = browserPID
	}
	if allowedDomains != "" {
		override.AllowedDomains = splitList(allowedDomains)
	}
	return override
}

func run(profileFile, profileName, url string, override *config.Profile, timeout time.Duration) error {
	store, err := config.NewFileStore(profileFile)
	if err != nil {
		return err
	}

	base, err := store.Profile(profileName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Close the session cleanly on Ctrl-C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	manager := browser.NewSessionManager(base)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := manager.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "pilot: shutdown: %v\n", err)
		}
	}()

	session, err := manager.StartSession(ctx, browser.DefaultSessionName, override, nil)
	if err != nil {
		return err
	}

	fmt.Printf("session %s connected via %s (%s)\n", session.ID(), session.Spec().Kind, session.Spec().Target())

	if url != "" {
		if err := session.Navigate(ctx, url); err != nil {
			var blocked *browser.NavigationBlockedError
			if errors.As(err, &blocked) {
				return fmt.Errorf("navigation to %s is outside the allowed domains", blocked.URL)
			}
			return err
		}
		if page := session.CurrentPage(); page != nil {
			fmt.Printf("landed on %s\n", page.URL())
		}
	}

	return nil
}

func envInt(key string) int {
	raw := os.Getenv(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
