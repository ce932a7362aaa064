package browser

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/entrhq/pilot/pkg/config"
)

// Resolver turns a resolved config and an optional supplied handle
// into a live BrowserHandle. It derives the one applicable connection
// strategy, executes it, and classifies failures. A specific branch
// that fails is reported, never retried with a different strategy.
type Resolver struct {
	client EndpointClient
}

// NewResolver creates a resolver backed by the given endpoint client.
func NewResolver(client EndpointClient) *Resolver {
	return &Resolver{client: client}
}

// Resolve executes exactly one connection branch. The returned spec
// records which branch ran, for logging and reconnection.
func (r *Resolver) Resolve(ctx context.Context, cfg *config.Config, supplied *SuppliedHandle) (BrowserHandle, *ConnectionSpec, error) {
	spec, err := DeriveSpec(cfg, supplied)
	if err != nil {
		return nil, nil, err
	}

	timeout := time.Duration(cfg.NavigationTimeout) * time.Millisecond

	var handle BrowserHandle
	switch spec.Kind {
	case ConnectSupplied:
		if spec.Handle.Kind == HandlePage {
			handle = newSinglePageHandle(spec.Handle.Page)
		} else {
			handle = spec.Handle.Browser
		}
	case ConnectCDP:
		handle, err = r.client.ConnectCDP(ctx, spec.URL, timeout)
	case ConnectWS:
		handle, err = r.client.ConnectWS(ctx, spec.URL, timeout)
	case ConnectPID:
		handle, err = r.client.AttachPID(ctx, spec.PID)
	case LaunchPersistent:
		handle, err = r.client.LaunchPersistent(ctx, launchOptions(cfg))
	case LaunchEphemeral:
		handle, err = r.client.LaunchEphemeral(ctx, launchOptions(cfg))
	}

	if err != nil {
		return nil, nil, &ConnectionError{
			Reason: classifyReason(err),
			Branch: string(spec.Kind),
			Target: spec.Target(),
			Err:    err,
		}
	}

	return handle, spec, nil
}

func launchOptions(cfg *config.Config) LaunchOptions {
	return LaunchOptions{
		UserDataDir:      cfg.UserDataDir,
		ExecutablePath:   cfg.ExecutablePath,
		Args:             cfg.Args,
		Headless:         cfg.Headless,
		Viewport:         cfg.Viewport,
		NoViewport:       cfg.NoViewport,
		StorageStatePath: cfg.StorageStatePath,
	}
}

// classifyReason maps an underlying failure to the connection error
// taxonomy: timeouts, missing targets, and everything else as refused.
func classifyReason(err error) ConnectionErrorReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	if errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, syscall.ESRCH) {
		return ReasonNotFound
	}
	// The playwright driver reports timeouts as plain error strings.
	if msg := err.Error(); strings.Contains(msg, "Timeout") || strings.Contains(msg, "timed out") {
		return ReasonTimeout
	}
	return ReasonRefused
}
