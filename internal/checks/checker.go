// Package checks runs post-install verification checks inside a sandbox.
//
// A check is declarative (v1.CheckSpec) and executes through the sandbox Env,
// so the same definitions work across the venv, docker and ssh runners.
package checks

import (
	"context"
	"strings"
	"time"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/pkg/errs"
	"github.com/hacker-4-good/chroma/pkg/netutil"
)

// DefaultInterval is used when spec.Interval is zero (readiness polling).
const DefaultInterval = 2 * time.Second

// DefaultTimeout is used when spec.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// DefaultRetries is used when spec.Retries is zero (readiness polling).
const DefaultRetries = 15

// DefaultServePort is probed when a serve check does not name a port.
const DefaultServePort = 8000

// maxOutputBytes caps the output stored per check so run records stay small.
const maxOutputBytes = 64 << 10

// Engine dispatches checks against a provisioned sandbox Env.
type Engine struct {
	log *logger.Logger
}

// NewEngine constructs an Engine.
func NewEngine(log *logger.Logger) *Engine {
	return &Engine{log: log}
}

// Run executes a single check and converts the outcome into a CheckResult.
// Failures are reported in the result, never as a panic or lost error.
func (e *Engine) Run(ctx context.Context, env sandbox.Env, spec v1.CheckSpec) v1.CheckResult {
	name := spec.Name
	if name == "" {
		name = spec.Type
	}
	start := time.Now()
	out, err := e.dispatch(ctx, env, spec)

	res := v1.CheckResult{
		Name:       name,
		Type:       spec.Type,
		Output:     Clip(strings.TrimSpace(out)),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Status = v1.CheckFailed
		res.Error = err.Error()
		e.log.Debug("check failed", "check", name, "err", err)
	} else {
		res.Status = v1.CheckPassed
		e.log.Debug("check passed", "check", name, "duration_ms", res.DurationMS)
	}
	return res
}

// Skipped returns the result recorded for a check that never ran because an
// earlier step already failed the run.
func Skipped(spec v1.CheckSpec) v1.CheckResult {
	name := spec.Name
	if name == "" {
		name = spec.Type
	}
	return v1.CheckResult{Name: name, Type: spec.Type, Status: v1.CheckSkipped}
}

func (e *Engine) dispatch(ctx context.Context, env sandbox.Env, spec v1.CheckSpec) (string, error) {
	switch spec.Type {
	case "version":
		snippet, err := VersionSnippet(spec.Module, spec.Attribute)
		if err != nil {
			return "", err
		}
		return e.runPython(ctx, env, spec, snippet)
	case "heartbeat":
		snippet, err := HeartbeatSnippet(spec.Module, spec.Factory, spec.Method)
		if err != nil {
			return "", err
		}
		return e.runPython(ctx, env, spec, snippet)
	case "import":
		snippet, err := ImportSnippet(spec.Module)
		if err != nil {
			return "", err
		}
		return e.runPython(ctx, env, spec, snippet)
	case "cmd":
		if spec.Command == "" {
			return "", errs.Newf(errs.ErrCheckFailed, "check.cmd", "command is required")
		}
		res, err := env.Run(ctx, checkStep(spec), "sh", "-c", spec.Command)
		return resultOutput(res, err, "check.cmd")
	case "http":
		return ProbeHTTP(ctx, spec.URL, spec.ExpectedCode, timeoutOr(spec.Timeout, DefaultTimeout))
	case "tcp":
		host, port := env.Endpoint(spec.Port)
		if err := netutil.ProbeTCP(ctx, host, port, timeoutOr(spec.Timeout, DefaultTimeout)); err != nil {
			return "", errs.Wrap(err, errs.ErrCheckFailed, "check.tcp")
		}
		return "", nil
	case "serve":
		return e.runServe(ctx, env, spec)
	default:
		return "", errs.Newf(errs.ErrCheckUnsupported, "check",
			"unknown check type %q", spec.Type)
	}
}

// runPython executes a -c snippet with the env's interpreter.
func (e *Engine) runPython(ctx context.Context, env sandbox.Env, spec v1.CheckSpec, snippet string) (string, error) {
	res, err := env.Run(ctx, checkStep(spec), env.Python(), "-c", snippet)
	return resultOutput(res, err, "check."+spec.Type)
}

// resultOutput folds an ExecResult into the (output, error) contract: the raw
// tool output is always preserved, a non-zero exit becomes the check error.
func resultOutput(res sandbox.ExecResult, err error, op string) (string, error) {
	out := res.Combined()
	if err != nil {
		return out, err
	}
	if res.ExitCode != 0 {
		return out, errs.Newf(errs.ErrCheckFailed, op, "exit status %d", res.ExitCode)
	}
	return out, nil
}

// WaitReady polls probe until it passes, retries are exhausted or ctx is
// cancelled, waiting interval between attempts.
func WaitReady(ctx context.Context, interval time.Duration, retries int, probe func(context.Context) error) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if retries <= 0 {
		retries = DefaultRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if attempt > 0 {
			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = probe(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return errs.Newf(errs.ErrCheckTimeout, "check.wait",
		"not ready after %d attempts: %v", retries+1, lastErr)
}

// Clip truncates s to the stored-output cap, marking the cut.
func Clip(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n… output truncated"
}

func checkStep(spec v1.CheckSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.Type
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
