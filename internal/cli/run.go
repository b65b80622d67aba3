// Package cli — run.go implements the "cirun run" command.
//
// The run command is the whole point of the tool: it executes the CI
// sequence (build → diagnostics → integration tests → log collection)
// for the platform branch selected from the OS identifier, then writes
// the run report and records the run in the history database.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mmr-tortoise/cirun/internal/config"
	"github.com/mmr-tortoise/cirun/internal/history"
	"github.com/mmr-tortoise/cirun/internal/model"
	"github.com/mmr-tortoise/cirun/internal/platform"
	"github.com/mmr-tortoise/cirun/internal/report"
	"github.com/mmr-tortoise/cirun/internal/runner"
)

// runFlags holds the flag values for the run command.
// These are bound to cobra flags in NewRunCommand.
type runFlags struct {
	platform    string // --platform: override OSTYPE detection
	projectRoot string // --project-root: override git-based root resolution
}

// NewRunCommand creates the "run" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewRunCommand() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <toolchain-home>",
		Short: "Build the project and run the integration-test pipeline",
		Long: `Run the full CI sequence for the current platform branch.

The sequence is: build (unelevated, fail-fast), environment diagnostics
(informational), integration tests (elevated via sudo -E on macOS/Linux),
and daemon-log collection (Windows branch only).

The toolchain home path is forwarded unmodified to the integration-test
script.

Examples:
  OSTYPE=linux-gnu cirun run /opt/toolchain
  cirun run --platform macos /usr/local/toolchain
  cirun run --project-root ~/src/daemon /opt/toolchain`,

		// Args validates that exactly one positional argument
		// (the toolchain home path) is provided. The path itself is
		// opaque: no format validation is performed.
		Args: cobra.ExactArgs(1),

		// RunE is used instead of Run so we can return errors. Cobra will
		// pass them to the Execute error handler in root.go.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.platform, "platform", "",
		"Platform branch to run: windows, macos, linux (default: detect from OSTYPE)")
	cmd.Flags().StringVar(&flags.projectRoot, "project-root", "",
		"Project root directory (default: resolve via git from the current directory)")

	return cmd
}

// runRun is the main orchestration function for the run command.
func runRun(ctx context.Context, toolchainHome string, flags *runFlags) error {
	log := Logger()

	// Step 1: Resolve the platform branch, exactly once. An unsupported
	// identifier terminates here: no collaborator is invoked, no file
	// is touched.
	plat, err := resolvePlatform(flags.platform)
	if err != nil {
		return err
	}
	if !plat.IsValid() {
		return model.NewCLIError(model.ExitUnsupportedPlatform,
			fmt.Sprintf("unsupported OS identifier %q (set OSTYPE or use --platform)",
				os.Getenv(platform.EnvVar)))
	}
	log.Debug("platform resolved", zap.String("platform", plat.String()))

	// Step 2: Resolve the project root.
	projectRoot, err := resolveProjectRoot(flags.projectRoot)
	if err != nil {
		return err
	}
	log.Debug("project root resolved", zap.String("projectRoot", projectRoot))

	// Step 3: Load the optional config file.
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return err // Load already returns CLIError with ExitConfigError
	}

	// Step 4: Execute the sequence. The runner restores the working
	// directory on every exit path, so the bookkeeping below runs with
	// the caller's original cwd.
	rep := report.New(plat, toolchainHome)
	log.Info("run id assigned", zap.String("runId", rep.RunID))

	outcome, runErr := runner.New(cfg, plat, projectRoot, log).Run(ctx, toolchainHome)

	// Step 5: Bookkeeping. The report and history row are written even
	// for a failed run — a red run with no record is the worst outcome
	// for whoever has to debug it. Bookkeeping failures are logged and
	// swallowed: they must never change the run's exit code.
	rep.Finish(outcome.Steps, runErr != nil)
	rep.Diagnostics = outcome.Diagnostics

	if !cfg.SkipReport {
		reportPath := filepath.Join(projectRoot, cfg.ReportPath)
		if writeErr := rep.Write(reportPath); writeErr != nil {
			log.Warn("failed to write run report", zap.Error(writeErr))
		} else {
			log.Debug("run report written", zap.String("path", reportPath))
		}
	}

	if !cfg.SkipHistory {
		recordHistory(ctx, filepath.Join(projectRoot, cfg.HistoryPath), rep, log)
	}

	// Step 6: Output the result, then propagate the runner's error (if
	// any) for exit-code translation.
	printRunResult(rep, outcome)
	return runErr
}

// recordHistory inserts the run into the history database, best-effort.
func recordHistory(ctx context.Context, path string, rep *report.Report, log *zap.Logger) {
	store, err := history.Open(path)
	if err != nil {
		log.Warn("failed to open history database", zap.Error(err))
		return
	}
	defer func() { _ = store.Close() }()

	if err := store.RecordRun(ctx, rep); err != nil {
		log.Warn("failed to record run in history", zap.Error(err))
	}
}

// printRunResult outputs the run summary in text or JSON format,
// depending on the global --json flag.
func printRunResult(rep *report.Report, outcome *runner.Outcome) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(rep, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Run %s (%s): %s\n", rep.RunID, rep.Platform, rep.Outcome)
	for _, step := range outcome.Steps {
		line := fmt.Sprintf("  %-20s %s", step.Name, step.Status)
		if step.Detail != "" {
			line += " (" + step.Detail + ")"
		}
		fmt.Println(line)
	}
}

// resolvePlatform returns the platform branch: the --platform flag when
// given, otherwise the OSTYPE environment variable. A flag value that
// parses to nothing is a usage error; an unrecognized environment value
// is returned as PlatformUnsupported for the caller to reject.
func resolvePlatform(flagValue string) (model.Platform, error) {
	if flagValue != "" {
		plat, err := model.ParsePlatform(flagValue)
		if err != nil {
			return model.PlatformUnsupported,
				model.WrapCLIError(model.ExitGeneralError, "invalid --platform flag", err)
		}
		return plat, nil
	}
	return platform.Detect(), nil
}

// resolveProjectRoot returns the project root: the --project-root flag
// when given (made absolute), otherwise git resolution from the current
// directory.
func resolveProjectRoot(flagValue string) (string, error) {
	if flagValue != "" {
		abs, err := filepath.Abs(flagValue)
		if err != nil {
			return "", model.WrapCLIError(model.ExitGeneralError,
				"failed to resolve --project-root", err)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", model.WrapCLIError(model.ExitGeneralError,
			"failed to get current directory", err)
	}
	return runner.ResolveProjectRoot(cwd)
}
