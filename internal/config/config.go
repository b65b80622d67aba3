// Package config loads the optional cirun configuration file.
//
// The file lives at ci/cirun.jsonc under the project root and uses JSONC
// (JSON with Comments) so that pipeline maintainers can annotate why a
// path or toggle is overridden. Comments are stripped with
// github.com/tidwall/jsonc before parsing with encoding/json.
//
// Every field is optional. A missing file — the common case — yields the
// built-in defaults, which reproduce the historical pipeline behavior
// exactly.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"

	"github.com/mmr-tortoise/cirun/internal/model"
)

// DefaultPath is the config file location relative to the project root.
const DefaultPath = "ci/cirun.jsonc"

// Default collaborator and output locations, relative to the project root.
const (
	defaultBuildScript = "ci/build.sh"
	defaultTestScript  = "ci/run_integration_tests.sh"
	defaultLogDest     = "generated/daemon_logs"
	defaultReportPath  = "generated/run_report.yaml"
	defaultHistoryPath = "generated/cirun_history.db"
)

// Config holds the tunable parts of an orchestration run. Field values
// of "" / false mean "use the default"; Load applies defaults after
// parsing so callers never see an unset path.
type Config struct {
	// BuildScript is the path of the build collaborator, relative to
	// the project root.
	BuildScript string `json:"buildScript"`

	// TestScript is the path of the integration-test collaborator,
	// relative to the project root.
	TestScript string `json:"testScript"`

	// LogSource is the directory the daemon under test writes its logs
	// to. Empty means the platform default (the daemon subdirectory of
	// the user configuration directory).
	LogSource string `json:"logSource"`

	// LogDestination is the directory logs are collected into,
	// relative to the project root.
	LogDestination string `json:"logDestination"`

	// ReportPath is where the YAML run report is written, relative to
	// the project root.
	ReportPath string `json:"reportPath"`

	// HistoryPath is the SQLite run-history database location,
	// relative to the project root.
	HistoryPath string `json:"historyPath"`

	// SkipDiagnostics disables the informational diagnostics step.
	SkipDiagnostics bool `json:"skipDiagnostics"`

	// SkipReport disables writing the YAML run report.
	SkipReport bool `json:"skipReport"`

	// SkipHistory disables recording the run in the history database.
	SkipHistory bool `json:"skipHistory"`
}

// Load reads the config file under the given project root. A missing
// file is not an error — the defaults are returned. A file that exists
// but cannot be read or parsed is a fatal ExitConfigError: a maintainer
// wrote it expecting it to take effect, so silently ignoring it would
// be worse than failing.
func Load(projectRoot string) (*Config, error) {
	return LoadFile(filepath.Join(projectRoot, DefaultPath))
}

// LoadFile reads and parses a config file at an explicit path, applying
// defaults to every unset field.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to read config file %s", path), err)
		}
		// No file: run with defaults.
	} else {
		// jsonc.ToJSON strips // and /* */ comments plus trailing
		// commas, producing strict JSON for the standard decoder.
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse config file %s", path), err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills every unset path with its built-in default.
// LogSource stays empty here; it is resolved lazily by the logs package
// because the platform default depends on the runtime environment.
func (c *Config) applyDefaults() {
	if c.BuildScript == "" {
		c.BuildScript = defaultBuildScript
	}
	if c.TestScript == "" {
		c.TestScript = defaultTestScript
	}
	if c.LogDestination == "" {
		c.LogDestination = defaultLogDest
	}
	if c.ReportPath == "" {
		c.ReportPath = defaultReportPath
	}
	if c.HistoryPath == "" {
		c.HistoryPath = defaultHistoryPath
	}
}
