// Package aegisconfig loads and validates the server configuration file
// that tells the tester how to spawn the MCP server under test.
package aegisconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// DefaultFileNames are the project-scoped config file names that resolve
// identically, per spec §6.2.
var DefaultFileNames = []string{"aegis.config.json", "conductor.config.json"}

// ServerConfig describes how to spawn and recognize readiness of the MCP
// server under test. Immutable after Load returns.
type ServerConfig struct {
	Name           string            `json:"name"`
	Command        string            `json:"command"`
	Args           []string          `json:"args"`
	Cwd            string            `json:"cwd,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	StartupTimeout int               `json:"startupTimeout,omitempty"`
	ReadyPattern   string            `json:"readyPattern,omitempty"`
}

// commandLine returns the full argv (command followed by args) used to
// spawn the process.
func (c *ServerConfig) commandLine() []string {
	return append([]string{c.Command}, c.Args...)
}

// CommandLine returns the resolved argv for pkg/stdio.ProcessManager.
func (c *ServerConfig) CommandLine() []string { return c.commandLine() }

// StartupTimeoutDuration returns StartupTimeout as a time.Duration,
// defaulting to 5000ms when unset.
func (c *ServerConfig) StartupTimeoutDuration() time.Duration {
	if c.StartupTimeout <= 0 {
		return 5000 * time.Millisecond
	}
	return time.Duration(c.StartupTimeout) * time.Millisecond
}

// Load reads a config file from path, tolerating HUJSON (comments and
// trailing commas) before strict JSON decoding, applies defaults, resolves
// cwd relative to the config file's directory, and validates the result.
func Load(path string) (*ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	standardized, err := hujson.Standardize(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing config JSON: %w", err)
	}

	var cfg ServerConfig
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config JSON: %w", err)
	}

	if cfg.Cwd == "" {
		cfg.Cwd, _ = os.Getwd()
	} else if !filepath.IsAbs(cfg.Cwd) {
		cfg.Cwd = filepath.Join(filepath.Dir(path), cfg.Cwd)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ResolveDefaultPath looks for a default-named config file in dir and
// returns its path, or an error if none is found.
func ResolveDefaultPath(dir string) (string, error) {
	for _, name := range DefaultFileNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config file found (looked for %v in %s)", DefaultFileNames, dir)
}
