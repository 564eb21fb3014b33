// Package config provides the pipsmoke configuration loader.
// Config is loaded by merging pipsmoke.yaml → ~/.pipsmoke/config.yaml → PIPSMOKE_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	v1 "github.com/hacker-4-good/chroma/api/v1"
)

// sensitiveKeyRegex matches config keys that should be redacted in log output.
var sensitiveKeyRegex = regexp.MustCompile(`(?i)(password|token|secret|key|passphrase)`)

// Defaults contains factory-default values applied before any config file is loaded.
var Defaults = map[string]any{
	"project.environment":       "development",
	"python.binary":             "python3",
	"installer.no_cache":        true,
	"sandbox.runner":            "venv",
	"sandbox.step_timeout":      "5m",
	"sandbox.run_timeout":       "15m",
	"docker.image":              "python:3.12-slim",
	"package.factory":           "Client",
	"package.method":            "heartbeat",
	"package.version_attribute": "__version__",
	"history.enabled":           true,
	"history.limit":             200,
	"watch.debounce":            "2s",
	"log.level":                 "info",
	"log.format":                "text",
}

// ─────────────────────────────────────────────────────────────────────────────
// Config types
// ─────────────────────────────────────────────────────────────────────────────

// Config is the fully-decoded project configuration.
type Config struct {
	Version   string          `mapstructure:"version"`
	Project   ProjectConfig   `mapstructure:"project"`
	Python    PythonConfig    `mapstructure:"python"`
	Installer InstallerConfig `mapstructure:"installer"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Package   PackageConfig   `mapstructure:"package"`
	Checks    []v1.CheckSpec  `mapstructure:"checks"`
	Hosts     []v1.HostSpec   `mapstructure:"hosts"`
	History   HistoryConfig   `mapstructure:"history"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Log       LogConfig       `mapstructure:"log"`
}

// ProjectConfig holds project-level metadata.
type ProjectConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// PythonConfig selects interpreters for the venv runner and matrix mode.
type PythonConfig struct {
	Binary   string   `mapstructure:"binary"`   // base interpreter, default python3
	Versions []string `mapstructure:"versions"` // matrix defaults, e.g. ["3.10", "3.12"]
}

// InstallerConfig controls how pip is invoked inside the sandbox.
type InstallerConfig struct {
	IndexURL  string   `mapstructure:"index_url"`
	ExtraArgs []string `mapstructure:"extra_args"`
	NoCache   bool     `mapstructure:"no_cache"`
	Quiet     bool     `mapstructure:"quiet"`
}

// SandboxConfig controls workspace provisioning and lifetimes.
type SandboxConfig struct {
	Runner      string        `mapstructure:"runner"` // venv | docker | ssh
	Root        string        `mapstructure:"root"`   // workspace parent dir, default os.TempDir()
	Keep        bool          `mapstructure:"keep"`
	StepTimeout time.Duration `mapstructure:"step_timeout"`
	RunTimeout  time.Duration `mapstructure:"run_timeout"`
}

// DockerConfig holds docker runner settings.
type DockerConfig struct {
	Image string `mapstructure:"image"`
	Host  string `mapstructure:"host"` // empty = environment / default socket
}

// PackageConfig overrides the naming heuristics for the package under test.
type PackageConfig struct {
	ImportName       string `mapstructure:"import_name"` // override derived module name
	Factory          string `mapstructure:"factory"`
	Method           string `mapstructure:"method"`
	VersionAttribute string `mapstructure:"version_attribute"`
}

// HistoryConfig controls run record persistence.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Limit   int  `mapstructure:"limit"` // prune beyond this many records
}

// WatchConfig controls directory watch mode.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
	Patterns []string      `mapstructure:"patterns"`
}

// LogConfig controls logging behaviour.
type LogConfig struct {
	Level  string `mapstructure:"level"` // debug | info | warn | error
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"` // json | text
}

// ─────────────────────────────────────────────────────────────────────────────
// Loader
// ─────────────────────────────────────────────────────────────────────────────

// Load discovers and loads the configuration, walking up directories to find
// pipsmoke.yaml, then merging it with the global config and environment variables.
func Load(explicitPath string) (*Config, error) {
	v := viper.New()

	// Apply defaults
	for k, val := range Defaults {
		v.SetDefault(k, val)
	}

	// Environment variable binding: PIPSMOKE_LOG_LEVEL → log.level
	v.SetEnvPrefix("PIPSMOKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load global config (~/.pipsmoke/config.yaml) if it exists
	globalCfg := filepath.Join(smokeHome(), "config.yaml")
	if _, err := os.Stat(globalCfg); err == nil {
		v.SetConfigFile(globalCfg)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read global config: %w", err)
		}
	}

	// Load project config
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		path, err := discoverProjectConfig()
		if err == nil {
			v.SetConfigFile(path)
		}
	}

	if v.ConfigFileUsed() != "" || explicitPath != "" {
		if err := v.MergeInConfig(); err != nil && explicitPath != "" {
			return nil, fmt.Errorf("read project config %q: %w", explicitPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Resolve env variable placeholders in string values
	expandEnvInConfig(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// HostByName returns the HostSpec with the given name, or nil.
func (c *Config) HostByName(name string) *v1.HostSpec {
	for i := range c.Hosts {
		if c.Hosts[i].Name == name {
			return &c.Hosts[i]
		}
	}
	return nil
}

// IsSensitiveKey returns true if key matches a known sensitive pattern.
func IsSensitiveKey(key string) bool {
	return sensitiveKeyRegex.MatchString(key)
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// discoverProjectConfig walks up from the CWD looking for pipsmoke.yaml.
func discoverProjectConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, "pipsmoke.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("pipsmoke.yaml not found (searched up from %s)", func() string { d, _ := os.Getwd(); return d }())
}

// expandEnvInConfig resolves ${VAR} placeholders in string values.
func expandEnvInConfig(cfg *Config) {
	cfg.Installer.IndexURL = os.ExpandEnv(cfg.Installer.IndexURL)
	cfg.Sandbox.Root = os.ExpandEnv(cfg.Sandbox.Root)
	for i := range cfg.Hosts {
		cfg.Hosts[i].Key = os.ExpandEnv(cfg.Hosts[i].Key)
	}
}

// validCheckTypes is the set of check types the engine can dispatch.
var validCheckTypes = map[string]bool{
	"version": true, "heartbeat": true, "import": true,
	"serve": true, "cmd": true, "http": true, "tcp": true,
}

// validate performs semantic validation on the loaded config.
func validate(cfg *Config) error {
	switch cfg.Sandbox.Runner {
	case "", "venv", "docker", "ssh":
	default:
		return fmt.Errorf("sandbox.runner must be venv, docker or ssh (got %q)", cfg.Sandbox.Runner)
	}

	seen := map[string]bool{}
	for _, h := range cfg.Hosts {
		if h.Name == "" {
			return fmt.Errorf("host with empty name is not allowed")
		}
		if seen[h.Name] {
			return fmt.Errorf("duplicate host name: %q", h.Name)
		}
		seen[h.Name] = true
		if h.Host == "" {
			return fmt.Errorf("host %q: host address is required", h.Name)
		}
	}

	for _, chk := range cfg.Checks {
		if !validCheckTypes[chk.Type] {
			return fmt.Errorf("check %q: unknown type %q", chk.Name, chk.Type)
		}
	}

	if cfg.History.Limit < 0 {
		return fmt.Errorf("history.limit must be >= 0")
	}
	return nil
}

// SmokeHome returns the pipsmoke home directory (~/.pipsmoke).
func smokeHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pipsmoke"
	}
	return filepath.Join(home, ".pipsmoke")
}

// SmokeHome is the exported variant for use by other packages.
func SmokeHome() string {
	return smokeHome()
}

// DefaultConfigTemplate is the content written by `pipsmoke init`.
const DefaultConfigTemplate = `# pipsmoke.yaml — Project manifest
# See: https://github.com/hacker-4-good/chroma/docs/cli-reference.md
version: "1"

project:
  name: my-package
  environment: release

python:
  binary: python3
  # versions used by ` + "`pipsmoke matrix`" + `:
  versions: ["3.10", "3.11", "3.12"]

installer:
  no_cache: true
  # index_url: https://test.pypi.org/simple/
  # extra_args: ["--pre"]

sandbox:
  runner: venv        # venv | docker | ssh
  step_timeout: 5m
  run_timeout: 15m

docker:
  image: python:3.12-slim

# package:
#   import_name: chromadb   # override the name derived from the artifact
#   factory: Client
#   method: heartbeat

# Extra checks appended after the default version/heartbeat check:
# checks:
#   - name: server boots
#     type: serve
#     entrypoint: chromadb.cli run
#     port: 8000
#     url: http://127.0.0.1:8000/api/v1/heartbeat
#     timeout: 60s
#     interval: 2s
#     retries: 30

# hosts:
#   - name: build-02
#     host: 192.168.1.20
#     user: smoke
#     key: ~/.ssh/pipsmoke_ed25519
#     port: 22

history:
  enabled: true
  limit: 200

log:
  level: info
  format: text
`
