// Package v1 defines the public data types shared across all pipsmoke layers.
package v1

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Status enumerations
// ─────────────────────────────────────────────────────────────────────────────

// RunStatus represents the outcome of a verification run.
type RunStatus string

const (
	RunPassed RunStatus = "passed" // install and every check succeeded
	RunFailed RunStatus = "failed" // install or a check failed
	RunError  RunStatus = "error"  // the run never got as far as a verdict
)

// CheckStatus represents the outcome of a single check inside a run.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckFailed  CheckStatus = "failed"
	CheckSkipped CheckStatus = "skipped"
)

// HostStatus represents the connectivity state of a remote verification host.
type HostStatus string

const (
	HostOnline   HostStatus = "online"
	HostOffline  HostStatus = "offline"
	HostDegraded HostStatus = "degraded"
)

// ArtifactKind classifies an artifact by the release naming heuristic.
type ArtifactKind string

const (
	KindClient ArtifactKind = "client" // basename contains "client" → version check
	KindFull   ArtifactKind = "full"   // everything else → heartbeat check
)

// ─────────────────────────────────────────────────────────────────────────────
// Specification types (derived from pipsmoke.yaml)
// ─────────────────────────────────────────────────────────────────────────────

// CheckSpec is the declarative definition of a runtime check from pipsmoke.yaml.
type CheckSpec struct {
	Name         string        `yaml:"name"          mapstructure:"name"`
	Type         string        `yaml:"type"          mapstructure:"type"` // version | heartbeat | import | serve | cmd | http | tcp
	Module       string        `yaml:"module"        mapstructure:"module"`
	Attribute    string        `yaml:"attribute"     mapstructure:"attribute"` // version attribute, default __version__
	Factory      string        `yaml:"factory"       mapstructure:"factory"`   // client constructor, default Client
	Method       string        `yaml:"method"        mapstructure:"method"`    // liveness method, default heartbeat
	Command      string        `yaml:"command"       mapstructure:"command"`
	URL          string        `yaml:"url"           mapstructure:"url"`
	Port         int           `yaml:"port"          mapstructure:"port"`
	Entrypoint   string        `yaml:"entrypoint"    mapstructure:"entrypoint"` // serve: module run as `python -m`
	Args         []string      `yaml:"args"          mapstructure:"args"`       // serve: extra entrypoint arguments
	Timeout      time.Duration `yaml:"timeout"       mapstructure:"timeout"`
	Interval     time.Duration `yaml:"interval"      mapstructure:"interval"`
	Retries      int           `yaml:"retries"       mapstructure:"retries"`
	ExpectedCode int           `yaml:"expected_code" mapstructure:"expected_code"`
}

// HostSpec is the declarative definition of a remote verification host.
type HostSpec struct {
	Name   string `yaml:"name"   mapstructure:"name"`
	Host   string `yaml:"host"   mapstructure:"host"`
	User   string `yaml:"user"   mapstructure:"user"`
	Key    string `yaml:"key"    mapstructure:"key"`
	Port   int    `yaml:"port"   mapstructure:"port"`
	Python string `yaml:"python" mapstructure:"python"` // remote interpreter, default python3
}

// ─────────────────────────────────────────────────────────────────────────────
// Runtime state types (persisted in BoltDB)
// ─────────────────────────────────────────────────────────────────────────────

// ArtifactInfo is the resolved identity of one distribution artifact.
type ArtifactInfo struct {
	Path       string       `json:"path"` // absolute
	Base       string       `json:"base"`
	Exists     bool         `json:"exists"`
	Dist       string       `json:"dist"` // distribution name from the filename
	Version    string       `json:"version,omitempty"`
	Kind       ArtifactKind `json:"kind"`
	Wheel      bool         `json:"wheel,omitempty"`
	ImportName string       `json:"import_name"` // effective module imported by checks
	SizeBytes  int64        `json:"size_bytes,omitempty"`
}

// CheckResult is the recorded outcome of a single check.
type CheckResult struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Status     CheckStatus `json:"status"`
	Output     string      `json:"output,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// RunRecord is the immutable record of one verification run.
type RunRecord struct {
	ID            string        `json:"id"`
	Artifact      ArtifactInfo  `json:"artifact"`
	Runner        string        `json:"runner"` // venv | docker | ssh
	Host          string        `json:"host,omitempty"`
	Image         string        `json:"image,omitempty"`
	PythonVersion string        `json:"python_version,omitempty"`
	InstallOutput string        `json:"install_output,omitempty"`
	Checks        []CheckResult `json:"checks"`
	Status        RunStatus     `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
	DurationMS    int64         `json:"duration_ms"`
	Error         string        `json:"error,omitempty"`
	KeptWorkspace string        `json:"kept_workspace,omitempty"`
}

// WorkspaceInfo tracks a sandbox directory that outlived its run.
type WorkspaceInfo struct {
	Path      string    `json:"path"`
	RunID     string    `json:"run_id"`
	Runner    string    `json:"runner"`
	CreatedAt time.Time `json:"created_at"`
	Reason    string    `json:"reason"` // kept | debug
}

// HostInfo is the persisted runtime record for a registered host.
type HostInfo struct {
	Spec           HostSpec   `json:"spec"`
	Status         HostStatus `json:"status"`
	LastSeen       time.Time  `json:"last_seen"`
	KeyFingerprint string     `json:"key_fingerprint"`
	HostKey        string     `json:"host_key"` // base64-encoded known host line
	HostKeyKnown   bool       `json:"host_key_known"`
	FailCount      int        `json:"fail_count"`
	PythonVersion  string     `json:"python_version,omitempty"`
}
