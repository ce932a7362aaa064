package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// loadCookies reads a serialized cookie list and installs it into the
// browser. A missing file is not an error; the first run of a session
// has no cookies yet.
func loadCookies(ctx context.Context, handle BrowserHandle, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(raw, &cookies); err != nil {
		return fmt.Errorf("failed to parse cookie file: %w", err)
	}
	if len(cookies) == 0 {
		return nil
	}

	if err := handle.AddCookies(ctx, cookies); err != nil {
		return fmt.Errorf("failed to install cookies: %w", err)
	}
	return nil
}

// saveCookies writes the browser's current cookies back to the cookie
// file, via a temp file and rename.
func saveCookies(ctx context.Context, handle BrowserHandle, path string) error {
	cookies, err := handle.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cookies from browser: %w", err)
	}

	raw, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename cookie file: %w", err)
	}
	return nil
}
