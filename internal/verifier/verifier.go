// Package verifier drives the verification pipeline for one artifact:
// resolve → provision → install → checks → record.
//
// The pipeline never aborts early on a missing artifact unless strict mode is
// on; pip reports the failure itself and the run is recorded as failed, so a
// release batch keeps moving while the log shows exactly what went wrong.
package verifier

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	v1 "github.com/hacker-4-good/chroma/api/v1"
	"github.com/hacker-4-good/chroma/internal/artifact"
	"github.com/hacker-4-good/chroma/internal/checks"
	"github.com/hacker-4-good/chroma/internal/core/config"
	"github.com/hacker-4-good/chroma/internal/core/logger"
	"github.com/hacker-4-good/chroma/internal/core/plugin"
	"github.com/hacker-4-good/chroma/internal/core/state"
	"github.com/hacker-4-good/chroma/internal/sandbox"
	"github.com/hacker-4-good/chroma/pkg/errs"
)

// DefaultRunTimeout bounds a whole run when neither flag nor config set one.
const DefaultRunTimeout = 15 * time.Minute

// ProgressFunc receives user-facing pipeline lines. A nil func discards them.
type ProgressFunc func(format string, args ...any)

// Options configures one verification run.
type Options struct {
	// Runner executes the sandbox steps. Required.
	Runner sandbox.Runner
	// Sandbox carries provisioning settings (interpreter, image, host, keep).
	Sandbox sandbox.Options
	// Strict aborts the run when the artifact file does not exist.
	Strict bool
	// ImportName overrides the module name derived from the filename.
	ImportName string
	// Checks are appended after the kind-derived default check. When nil the
	// configured checks apply.
	Checks []v1.CheckSpec
	// Timeout bounds the whole run. Zero falls back to config, then the default.
	Timeout time.Duration
	// Progress receives pipeline lines for interactive output.
	Progress ProgressFunc
}

// Verifier owns the pipeline's collaborators.
type Verifier struct {
	cfg     *config.Config
	db      *state.DB
	plugins *plugin.Host
	engine  *checks.Engine
	log     *logger.Logger
}

// New constructs a Verifier.
func New(cfg *config.Config, db *state.DB, plugins *plugin.Host, log *logger.Logger) *Verifier {
	return &Verifier{
		cfg:     cfg,
		db:      db,
		plugins: plugins,
		engine:  checks.NewEngine(log),
		log:     log,
	}
}

// Verify runs the full pipeline for one artifact path and returns the run
// record. The record is always complete and persisted (when history is
// enabled) regardless of outcome; the returned error carries the failure for
// exit-code decisions.
func (v *Verifier) Verify(ctx context.Context, path string, opts Options) (v1.RunRecord, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = v.cfg.Sandbox.RunTimeout
	}
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := v1.RunRecord{
		ID:        uuid.NewString(),
		Runner:    opts.Runner.Kind(),
		Image:     opts.Sandbox.Image,
		StartedAt: time.Now().UTC(),
	}
	if opts.Sandbox.Host != nil {
		rec.Host = opts.Sandbox.Host.Spec.Name
	}

	runErr := v.run(runCtx, &rec, path, opts)

	rec.CompletedAt = time.Now().UTC()
	rec.DurationMS = rec.CompletedAt.Sub(rec.StartedAt).Milliseconds()
	v.record(ctx, &rec)
	return rec, runErr
}

// run executes the pipeline stages and fills rec. It returns the error that
// decides the process exit code; rec.Status is always set on return.
func (v *Verifier) run(ctx context.Context, rec *v1.RunRecord, path string, opts Options) error {
	progress := opts.Progress
	if progress == nil {
		progress = func(string, ...any) {}
	}

	importOverride := opts.ImportName
	if importOverride == "" {
		importOverride = v.cfg.Package.ImportName
	}

	info, err := artifact.Resolve(path, importOverride)
	if err != nil {
		return v.fail(rec, v1.RunError, err)
	}
	rec.Artifact = info

	if info.Exists {
		progress("Testing PIP package: %s", info.Path)
	} else {
		progress("Could not find PIP package: %s", info.Path)
		v.log.Warn("artifact missing", "path", info.Path)
		if opts.Strict {
			return v.fail(rec, v1.RunError,
				errs.Newf(errs.ErrArtifactNotFound, "verify.resolve",
					"could not find PIP package: %s", info.Path).
					WithArtifact(info.Base))
		}
	}

	if info.Exists {
		if md, mdErr := artifact.ReadMetadata(info.Path); mdErr == nil {
			if rec.Artifact.Version == "" {
				rec.Artifact.Version = md.Version
			}
			v.log.Debug("artifact metadata", "name", md.Name, "version", md.Version, "source", md.Source)
		} else {
			v.log.Debug("metadata unavailable", "artifact", info.Base, "err", mdErr)
		}
	}

	hctx := v.hookContext(rec, opts)
	if err := v.plugins.FireErr(ctx, plugin.HookPreInstall, hctx); err != nil {
		return v.fail(rec, v1.RunError, errs.Wrap(err, errs.ErrInternal, "verify.plugin"))
	}

	plan := v.buildPlan(rec.Artifact, opts)

	sbOpts := opts.Sandbox
	if sbOpts.StepTimeout <= 0 {
		sbOpts.StepTimeout = v.cfg.Sandbox.StepTimeout
	}
	if sbOpts.Root == "" {
		sbOpts.Root = v.cfg.Sandbox.Root
	}
	if p := servePort(plan); p > 0 {
		sbOpts.ServePort = p
	}

	progress("Provisioning %s sandbox", opts.Runner.Kind())
	env, err := opts.Runner.Provision(ctx, rec.Artifact, sbOpts)
	if err != nil {
		return v.fail(rec, v1.RunError, err)
	}
	defer func() {
		// release must run even when the run context is already gone
		closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if cerr := env.Close(closeCtx); cerr != nil {
			v.log.Warn("sandbox release failed", "workspace", env.Workspace(), "err", cerr)
		}
		if kept := env.KeptPath(); kept != "" {
			rec.KeptWorkspace = kept
			ws := v1.WorkspaceInfo{
				Path:      kept,
				RunID:     rec.ID,
				Runner:    rec.Runner,
				CreatedAt: rec.StartedAt,
				Reason:    "kept",
			}
			if werr := v.db.PutWorkspace(ws); werr != nil {
				v.log.Warn("workspace tracking failed", "path", kept, "err", werr)
			}
		}
	}()

	rec.PythonVersion = v.pythonVersion(ctx, env)

	progress("Installing %s", rec.Artifact.Base)
	res, err := env.Run(ctx, "install", v.installArgv(env)...)
	rec.InstallOutput = checks.Clip(res.Combined())
	if err != nil {
		return v.fail(rec, v1.RunError, err)
	}
	if res.ExitCode != 0 {
		return v.fail(rec, v1.RunFailed,
			errs.Newf(errs.ErrInstallFailed, "verify.install",
				"pip install exited %d", res.ExitCode).
				WithArtifact(rec.Artifact.Base).
				WithAdvice("inspect the stored output with 'pipsmoke runs show "+shortID(rec.ID)+"'"))
	}
	v.plugins.Fire(ctx, plugin.HookPostInstall, hctx)

	var firstFailed string
	for _, spec := range plan {
		if firstFailed != "" {
			rec.Checks = append(rec.Checks, checks.Skipped(spec))
			continue
		}
		progress("Running %s check", checkName(spec))
		result := v.engine.Run(ctx, env, spec)
		rec.Checks = append(rec.Checks, result)
		if result.Status != v1.CheckPassed {
			firstFailed = result.Name
		}
	}
	if firstFailed != "" {
		return v.fail(rec, v1.RunFailed,
			errs.Newf(errs.ErrCheckFailed, "verify.check",
				"%s check failed", firstFailed).
				WithArtifact(rec.Artifact.Base))
	}

	rec.Status = v1.RunPassed
	return nil
}

// buildPlan derives the default check from the artifact kind and appends the
// configured extras. Client artifacts get the version check, everything else
// the heartbeat check.
func (v *Verifier) buildPlan(info v1.ArtifactInfo, opts Options) []v1.CheckSpec {
	pkg := v.cfg.Package
	var plan []v1.CheckSpec
	if info.Kind == v1.KindClient {
		plan = append(plan, v1.CheckSpec{
			Name:      "version",
			Type:      "version",
			Module:    info.ImportName,
			Attribute: pkg.VersionAttribute,
		})
	} else {
		plan = append(plan, v1.CheckSpec{
			Name:    "heartbeat",
			Type:    "heartbeat",
			Module:  info.ImportName,
			Factory: pkg.Factory,
			Method:  pkg.Method,
		})
	}

	extra := opts.Checks
	if extra == nil {
		extra = v.cfg.Checks
	}
	for _, c := range extra {
		if c.Module == "" {
			c.Module = info.ImportName
		}
		plan = append(plan, c)
	}
	return plan
}

// installArgv builds the pip command line from installer config.
func (v *Verifier) installArgv(env sandbox.Env) []string {
	ic := v.cfg.Installer
	argv := []string{env.Pip(), "install"}
	if ic.NoCache {
		argv = append(argv, "--no-cache-dir")
	}
	if ic.Quiet {
		argv = append(argv, "--quiet")
	}
	if ic.IndexURL != "" {
		argv = append(argv, "--index-url", ic.IndexURL)
	}
	argv = append(argv, ic.ExtraArgs...)
	return append(argv, env.ArtifactPath())
}

// pythonVersion reports the sandbox interpreter version, best effort.
func (v *Verifier) pythonVersion(ctx context.Context, env sandbox.Env) string {
	res, err := env.Run(ctx, "python-version", env.Python(), "--version")
	if err != nil || res.ExitCode != 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(res.Combined(), "Python "))
}

// fail stamps the record with the outcome and returns err unchanged.
func (v *Verifier) fail(rec *v1.RunRecord, status v1.RunStatus, err error) error {
	rec.Status = status
	rec.Error = err.Error()
	return err
}

// record persists the run, prunes history and fires the completion hook.
func (v *Verifier) record(ctx context.Context, rec *v1.RunRecord) {
	if v.cfg.History.Enabled {
		if err := v.db.PutRun(*rec); err != nil {
			v.log.Warn("run record not stored", "run", rec.ID, "err", err)
		} else if v.cfg.History.Limit > 0 {
			if _, err := v.db.PruneRuns(v.cfg.History.Limit); err != nil {
				v.log.Warn("history prune failed", "err", err)
			}
		}
	}

	v.log.Audit(logger.AuditEntry{
		Timestamp: time.Now().UTC(),
		Op:        "verify",
		User:      os.Getenv("USER"),
		Artifact:  rec.Artifact.Base,
		Runner:    rec.Runner,
		Result:    auditResult(rec.Status),
		Meta:      map[string]string{"run_id": rec.ID, "status": string(rec.Status)},
	})

	v.plugins.Fire(ctx, plugin.HookRunComplete, v1.HookContext{
		Artifact: &rec.Artifact,
		Run:      rec,
		Runner:   rec.Runner,
		Metadata: map[string]string{},
	})

	v.log.Info("run complete",
		"run", shortID(rec.ID),
		"artifact", rec.Artifact.Base,
		"status", rec.Status,
		"duration_ms", rec.DurationMS,
	)
}

func (v *Verifier) hookContext(rec *v1.RunRecord, opts Options) v1.HookContext {
	hctx := v1.HookContext{
		Artifact: &rec.Artifact,
		Run:      rec,
		Runner:   rec.Runner,
		Metadata: map[string]string{},
	}
	if opts.Sandbox.Host != nil {
		hctx.Host = &opts.Sandbox.Host.Spec
	}
	return hctx
}

// servePort scans the plan for a serve check and returns the port the sandbox
// must expose, or 0 when none is planned.
func servePort(plan []v1.CheckSpec) int {
	for _, spec := range plan {
		if spec.Type == "serve" {
			return checks.ServePort(spec)
		}
	}
	return 0
}

func checkName(spec v1.CheckSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return spec.Type
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func auditResult(status v1.RunStatus) string {
	if status == v1.RunPassed {
		return "success"
	}
	return "failure"
}
