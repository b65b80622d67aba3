// Package report writes the YAML run report.
//
// The report is the machine-readable record of one orchestration run:
// which platform branch ran, what each step did (including tolerated
// failures, which a bare exit code of 0 would hide), and how long things
// took. CI archive steps pick the file up from generated/ alongside the
// collected daemon logs.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/mmr-tortoise/cirun/internal/diag"
	"github.com/mmr-tortoise/cirun/internal/model"
)

// Report is the full record of one orchestration run.
type Report struct {
	// RunID uniquely identifies this run. It also keys the run's rows
	// in the history database, so a report can be matched to its
	// history entry later.
	RunID string `yaml:"runId"`

	// Platform is the branch that ran.
	Platform model.Platform `yaml:"platform"`

	// ToolchainHome is the toolchain path that was forwarded to the
	// integration-test collaborator.
	ToolchainHome string `yaml:"toolchainHome"`

	// Outcome is "passed" or "failed". A run with only tolerated step
	// failures is "passed" — that is the contract the exit code keeps,
	// and the report must agree with the exit code.
	Outcome string `yaml:"outcome"`

	// StartedAt / FinishedAt bound the whole run.
	StartedAt  time.Time `yaml:"startedAt"`
	FinishedAt time.Time `yaml:"finishedAt"`

	// Steps holds the per-step results in execution order.
	Steps []model.StepResult `yaml:"steps"`

	// Diagnostics holds the informational probe results, when the
	// diagnostics step ran.
	Diagnostics []diag.Result `yaml:"diagnostics,omitempty"`
}

// New creates a report for a run that is about to start, stamping the
// run identifier and start time.
func New(platform model.Platform, toolchainHome string) *Report {
	return &Report{
		RunID:         uuid.NewString(),
		Platform:      platform,
		ToolchainHome: toolchainHome,
		StartedAt:     time.Now().UTC(),
	}
}

// Finish records the final step results and overall outcome.
func (r *Report) Finish(steps []model.StepResult, failed bool) {
	r.FinishedAt = time.Now().UTC()
	r.Steps = steps
	if failed {
		r.Outcome = "failed"
	} else {
		r.Outcome = "passed"
	}
}

// Write serializes the report as YAML to the given path, creating
// parent directories as needed.
func (r *Report) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to serialize run report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run report %s: %w", path, err)
	}
	return nil
}
