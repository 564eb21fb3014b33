// Package checks: serve check — boot the installed package's server and probe it.
package checks

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/pkg/errs"
	"github.com/hacker-4-good/chroma/pkg/netutil"
)

// DefaultServeTimeout bounds the whole serve check when spec.Timeout is zero.
const DefaultServeTimeout = 60 * time.Second

// ServePort returns the TCP port a serve check will probe, used before
// provisioning to decide which port the sandbox must expose.
func ServePort(spec v1.CheckSpec) int {
	if spec.Port > 0 {
		return spec.Port
	}
	return DefaultServePort
}

// runServe starts the package's server entrypoint in the sandbox background,
// waits for TCP readiness and optionally probes an HTTP URL. The background
// process is stopped before returning; sandbox Close reaps anything left.
func (e *Engine) runServe(ctx context.Context, env sandbox.Env, spec v1.CheckSpec) (string, error) {
	if spec.Entrypoint == "" {
		return "", errs.Newf(errs.ErrCheckFailed, "check.serve", "entrypoint is required").
			WithAdvice("set entrypoint to the module run via python -m, e.g. \"mypkg.cli run\"")
	}
	fields := strings.Fields(spec.Entrypoint)
	if err := ValidateModule(fields[0]); err != nil {
		return "", err
	}

	// Sandboxes run unprivileged, so a port below 1024 would fail at bind
	// time with a confusing pip-side error. Reject it up front.
	port := ServePort(spec)
	if !netutil.IsValidPort(port) {
		return "", errs.Newf(errs.ErrValidation, "check.serve", "port %d is outside the unprivileged range", port).
			WithAdvice("set port to a value between 1024 and 65535")
	}

	argv := append([]string{env.Python(), "-m"}, fields...)
	argv = append(argv, spec.Args...)

	stop, err := env.StartBackground(ctx, checkStep(spec), argv...)
	if err != nil {
		return "", err
	}
	defer func() { _ = stop() }()

	host, hostPort := env.Endpoint(port)

	deadline := timeoutOr(spec.Timeout, DefaultServeTimeout)
	serveCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	interval := spec.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	retries := spec.Retries
	if retries <= 0 {
		retries = int(deadline/interval) + 1
	}

	err = WaitReady(serveCtx, interval, retries, func(c context.Context) error {
		return netutil.ProbeTCP(c, host, hostPort, interval)
	})
	if err != nil {
		return "", errs.Wrap(err, errs.ErrCheckTimeout, "check.serve").
			WithAdvice("the server never started listening; inspect the run with --keep")
	}

	output := fmt.Sprintf("listening on %s", net.JoinHostPort(host, strconv.Itoa(hostPort)))
	if spec.URL != "" {
		probeURL, err := rewriteURL(spec.URL, host, hostPort)
		if err != nil {
			return output, err
		}
		body, err := ProbeHTTP(serveCtx, probeURL, spec.ExpectedCode, DefaultTimeout)
		if err != nil {
			return output, err
		}
		if body != "" {
			output += "\n" + body
		}
	}
	return output, nil
}

// rewriteURL points the configured probe URL at the actual endpoint, which
// differs from the configured port when docker publishes a random host port.
func rewriteURL(raw, host string, port int) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrCheckFailed, "check.serve")
	}
	u.Host = net.JoinHostPort(host, strconv.Itoa(port))
	return u.String(), nil
}
