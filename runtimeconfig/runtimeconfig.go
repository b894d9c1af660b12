// Package runtimeconfig owns the policy a host applies when embedding
// either Atlas engine: which builtin.Permission names are granted, and
// the max call depth that bounds a program's host-stack usage, and the
// log level. Grounded on the rest of the
// example pack's YAML-configuration idiom (gopkg.in/yaml.v3) rather than
// on kristofer-smog, which has no configuration file at all — every
// tunable in smog is a compiled-in constant.
package runtimeconfig

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"atlas/pkg/builtin"
)

// Config is the on-disk shape of an Atlas host's runtime policy file.
type Config struct {
	// Permissions lists the builtin.Permission names granted to every
	// builtin call. Anything not listed here is denied.
	Permissions []string `yaml:"permissions"`

	// MaxCallDepth bounds live call frames for both engines (0 means
	// "use each engine's own default").
	MaxCallDepth int `yaml:"max_call_depth"`

	// LogLevel names the zerolog level internal/observ should use
	// ("debug", "info", "warn", "error").
	LogLevel string `yaml:"log_level"`
}

// Default returns the policy a host applies if no config file is given:
// no permissions granted, engine-default call depth, info logging.
func Default() Config {
	return Config{LogLevel: "info"}
}

// Load reads and parses a YAML config file at path. A missing file is
// not an error — it's equivalent to Default() — since most Atlas
// invocations (scripts, tests, the REPL) have no policy file at all;
// only a malformed file that exists is surfaced as an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, errors.Wrapf(err, "runtimeconfig: reading %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "runtimeconfig: parsing %s", path)
	}
	return cfg, nil
}

// PermissionChecker builds a builtin.Permission predicate from the
// granted list, the same function type both pkg/interp.WithPermissionChecker
// and pkg/vm.WithPermissionChecker accept.
func (c Config) PermissionChecker() func(builtin.Permission) bool {
	granted := make(map[builtin.Permission]bool, len(c.Permissions))
	for _, name := range c.Permissions {
		granted[builtin.Permission(name)] = true
	}
	return func(p builtin.Permission) bool { return granted[p] }
}
