// Package runner implements the orchestration sequence: build, OS
// branch, diagnostics, integration tests, log collection.
//
// The sequence is strictly ordered and fully synchronous. The runner
// owns two invariants that every branch shares:
//   - the build collaborator runs first, unelevated — build artifacts
//     must never be produced under an elevated account
//   - the caller's working directory is restored on every exit path
//
// Branch differences (which steps run, which failures are tolerated)
// are read off the model.Platform enumeration, never re-derived from
// the environment.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/mmr-tortoise/cirun/internal/config"
	"github.com/mmr-tortoise/cirun/internal/diag"
	"github.com/mmr-tortoise/cirun/internal/elevate"
	"github.com/mmr-tortoise/cirun/internal/logs"
	"github.com/mmr-tortoise/cirun/internal/model"
)

// Step names as they appear in results, reports, and history rows.
const (
	StepBuild       = "build"
	StepDiagnostics = "diagnostics"
	StepTests       = "integration-tests"
	StepCollectLogs = "collect-logs"
)

// Runner executes the orchestration sequence for one platform branch.
type Runner struct {
	// Elevator wraps commands that need elevated privileges. Tests
	// point it at a stand-in binary; production uses sudo -E.
	Elevator elevate.Wrapper

	cfg         *config.Config
	platform    model.Platform
	projectRoot string
	logger      *zap.Logger
}

// Outcome is everything a run produced besides its error: the per-step
// results and the captured diagnostics.
type Outcome struct {
	Steps       []model.StepResult `json:"steps"`
	Diagnostics []diag.Result      `json:"diagnostics,omitempty"`
}

// Failed reports whether any step ended fatally.
func (o *Outcome) Failed() bool {
	for _, step := range o.Steps {
		if step.Failed() {
			return true
		}
	}
	return false
}

// New creates a Runner for the given platform branch. A nil logger is
// replaced with a no-op logger so call sites never need to nil-check.
func New(cfg *config.Config, p model.Platform, projectRoot string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Elevator:    elevate.Default(),
		cfg:         cfg,
		platform:    p,
		projectRoot: projectRoot,
		logger:      logger,
	}
}

// Run executes the full sequence and returns the per-step outcome.
//
// The returned error is non-nil only for fatal conditions: an
// unsupported platform, a build failure, or a test failure on a branch
// that propagates it. Tolerated failures appear in the outcome with
// StepTolerated status and a nil error — the caller's exit code stays
// zero, exactly as the pipeline contract requires.
func (r *Runner) Run(ctx context.Context, toolchainHome string) (*Outcome, error) {
	outcome := &Outcome{}

	// The platform gate comes before anything else: an unrecognized
	// identifier must not build, test, or touch the filesystem.
	if !r.platform.IsValid() {
		return outcome, model.NewCLIError(model.ExitUnsupportedPlatform,
			fmt.Sprintf("unsupported platform %q", r.platform))
	}

	restore, err := pushd(r.projectRoot)
	if err != nil {
		return outcome, model.WrapCLIError(model.ExitGeneralError,
			"failed to enter project root", err)
	}
	defer restore()

	r.logger.Info("starting run",
		zap.String("platform", r.platform.String()),
		zap.String("projectRoot", r.projectRoot),
		zap.String("toolchainHome", toolchainHome))

	// Step 1: build. Unelevated, fail-fast, before anything that might
	// run with elevated privileges.
	if err := r.buildStep(ctx, outcome); err != nil {
		return outcome, err
	}

	// Step 2: diagnostics. Informational only; the step never fails.
	r.diagnosticsStep(ctx, outcome)

	// Step 3: integration tests. Elevation and failure tolerance are
	// branch properties.
	if err := r.testsStep(ctx, outcome, toolchainHome); err != nil {
		return outcome, err
	}

	// Step 4: log collection, on branches that collect.
	r.collectLogsStep(outcome)

	r.logger.Info("run complete", zap.Bool("failed", outcome.Failed()))
	return outcome, nil
}

// buildStep runs the build collaborator in the project root.
func (r *Runner) buildStep(ctx context.Context, outcome *Outcome) error {
	r.logger.Info("running build", zap.String("script", r.cfg.BuildScript))
	started := time.Now()

	err := r.runScript(ctx, false, r.cfg.BuildScript)
	if err != nil {
		outcome.Steps = append(outcome.Steps, model.StepResult{
			Name:     StepBuild,
			Status:   model.StepFailed,
			Detail:   err.Error(),
			Duration: time.Since(started),
		})
		return model.WrapCLIError(model.ExitBuildFailed, "build failed", err)
	}

	outcome.Steps = append(outcome.Steps, model.StepResult{
		Name:     StepBuild,
		Status:   model.StepOK,
		Duration: time.Since(started),
	})
	return nil
}

// diagnosticsStep captures the platform's informational probes. The
// step's own status is always OK: individual probe failures are part of
// the captured information, not errors.
func (r *Runner) diagnosticsStep(ctx context.Context, outcome *Outcome) {
	if r.cfg.SkipDiagnostics {
		return
	}

	started := time.Now()
	results := diag.RunChecks(ctx, diag.ChecksFor(r.platform))

	// The container-based test nodes on macOS and Linux need a Docker
	// daemon; probe it so a wholesale test failure is explainable.
	if r.platform == model.PlatformMacOS || r.platform == model.PlatformLinux {
		results = append(results, diag.DockerDaemon(ctx))
	}

	if len(results) == 0 {
		return
	}

	failed := 0
	for _, result := range results {
		if result.OK {
			r.logger.Info("diagnostic", zap.String("name", result.Name))
		} else {
			failed++
			r.logger.Warn("diagnostic failed (ignored)",
				zap.String("name", result.Name),
				zap.String("detail", result.Detail))
		}
	}

	step := model.StepResult{
		Name:     StepDiagnostics,
		Status:   model.StepOK,
		Duration: time.Since(started),
	}
	if failed > 0 {
		step.Detail = fmt.Sprintf("%d of %d probes failed (informational)", failed, len(results))
	}
	outcome.Steps = append(outcome.Steps, step)
	outcome.Diagnostics = results
}

// testsStep runs the integration-test collaborator, elevated where the
// branch requires it, and applies the branch's failure policy.
func (r *Runner) testsStep(ctx context.Context, outcome *Outcome, toolchainHome string) error {
	elevated := r.platform.RequiresElevation()
	r.logger.Info("running integration tests",
		zap.String("script", r.cfg.TestScript),
		zap.Bool("elevated", elevated))

	started := time.Now()
	err := r.runScript(ctx, elevated, r.cfg.TestScript, toolchainHome)
	if err == nil {
		outcome.Steps = append(outcome.Steps, model.StepResult{
			Name:     StepTests,
			Status:   model.StepOK,
			Duration: time.Since(started),
		})
		return nil
	}

	if r.platform.ToleratesTestFailure() {
		// Recorded and logged, not propagated: the run continues to
		// log collection and exits zero.
		r.logger.Warn("integration tests failed (tolerated on this platform)",
			zap.Error(err))
		outcome.Steps = append(outcome.Steps, model.StepResult{
			Name:     StepTests,
			Status:   model.StepTolerated,
			Detail:   err.Error(),
			Duration: time.Since(started),
		})
		return nil
	}

	outcome.Steps = append(outcome.Steps, model.StepResult{
		Name:     StepTests,
		Status:   model.StepFailed,
		Detail:   err.Error(),
		Duration: time.Since(started),
	})
	return model.WrapCLIError(model.ExitTestsFailed, "integration tests failed", err)
}

// collectLogsStep copies the daemon's log directory into generated/.
// Every failure here is tolerated: a run whose tests passed must not
// turn red because the daemon wrote no logs.
func (r *Runner) collectLogsStep(outcome *Outcome) {
	if !r.platform.CollectsLogs() {
		return
	}

	started := time.Now()

	source := r.cfg.LogSource
	if source == "" {
		defaultSource, err := logs.DefaultSource()
		if err != nil {
			r.logger.Warn("log collection skipped", zap.Error(err))
			outcome.Steps = append(outcome.Steps, model.StepResult{
				Name:     StepCollectLogs,
				Status:   model.StepTolerated,
				Detail:   err.Error(),
				Duration: time.Since(started),
			})
			return
		}
		source = defaultSource
	}

	copied, err := logs.Collect(source, r.cfg.LogDestination)
	if err != nil {
		if errors.Is(err, logs.ErrSourceMissing) {
			r.logger.Warn("no daemon logs to collect", zap.String("source", source))
		} else {
			r.logger.Warn("log collection failed (tolerated)", zap.Error(err))
		}
		outcome.Steps = append(outcome.Steps, model.StepResult{
			Name:     StepCollectLogs,
			Status:   model.StepTolerated,
			Detail:   err.Error(),
			Duration: time.Since(started),
		})
		return
	}

	r.logger.Info("collected daemon logs",
		zap.Int("files", copied),
		zap.String("destination", r.cfg.LogDestination))
	outcome.Steps = append(outcome.Steps, model.StepResult{
		Name:     StepCollectLogs,
		Status:   model.StepOK,
		Detail:   fmt.Sprintf("%d files", copied),
		Duration: time.Since(started),
	})
}

// runScript executes a collaborator script with the process's stdout
// and stderr attached, so the collaborator's console output lands in
// the CI log unmodified. The script path is relative to the project
// root, which is the working directory for the whole sequence.
func (r *Runner) runScript(ctx context.Context, elevated bool, script string, args ...string) error {
	name, argv := script, args
	if elevated {
		name, argv = r.Elevator.Argv(script, args...)
	}

	// #nosec G204 — script paths come from config defaults or the
	// operator's own config file
	cmd := exec.CommandContext(ctx, name, argv...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
