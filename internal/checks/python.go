// Package checks: Python snippet builders for the interpreter-level checks.
package checks

import (
	"fmt"
	"regexp"

	"github.com/hacker-4-good/chroma/pkg/errs"
)

// Defaults matching the conventional client API surface.
const (
	DefaultVersionAttribute = "__version__"
	DefaultFactory          = "Client"
	DefaultMethod           = "heartbeat"
)

var (
	// dotted module path, each segment a Python identifier
	moduleRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
	// single Python identifier
	identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidateModule rejects module names that cannot be interpolated into a
// python -c snippet. Names come from filenames and config, so this is the
// gate between user input and the interpreter command line.
func ValidateModule(name string) error {
	if name == "" {
		return errs.Newf(errs.ErrCheckModuleName, "check.module", "module name is empty").
			WithAdvice("set --import-name or package.import_name in pipsmoke.yaml")
	}
	if !moduleRe.MatchString(name) {
		return errs.Newf(errs.ErrCheckModuleName, "check.module",
			"module name %q is not a valid Python module path", name).
			WithAdvice("set --import-name or package.import_name in pipsmoke.yaml")
	}
	return nil
}

func validateIdent(kind, name string) error {
	if !identRe.MatchString(name) {
		return errs.Newf(errs.ErrCheckModuleName, "check.module",
			"%s %q is not a valid Python identifier", kind, name)
	}
	return nil
}

// VersionSnippet builds the snippet printing module.<attribute>.
func VersionSnippet(module, attribute string) (string, error) {
	if attribute == "" {
		attribute = DefaultVersionAttribute
	}
	if err := ValidateModule(module); err != nil {
		return "", err
	}
	if err := validateIdent("attribute", attribute); err != nil {
		return "", err
	}
	return fmt.Sprintf("import %s; print(%s.%s)", module, module, attribute), nil
}

// HeartbeatSnippet builds the snippet constructing the client API and calling
// its liveness method: `import m; api = m.Client(); print(api.heartbeat())`.
func HeartbeatSnippet(module, factory, method string) (string, error) {
	if factory == "" {
		factory = DefaultFactory
	}
	if method == "" {
		method = DefaultMethod
	}
	if err := ValidateModule(module); err != nil {
		return "", err
	}
	if err := validateIdent("factory", factory); err != nil {
		return "", err
	}
	if err := validateIdent("method", method); err != nil {
		return "", err
	}
	return fmt.Sprintf("import %s; api = %s.%s(); print(api.%s())", module, module, factory, method), nil
}

// ImportSnippet builds the bare import probe.
func ImportSnippet(module string) (string, error) {
	if err := ValidateModule(module); err != nil {
		return "", err
	}
	return "import " + module, nil
}
