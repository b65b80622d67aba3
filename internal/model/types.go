// Package model defines the domain types for the cirun CLI.
//
// The types here are shared by every other internal package: the closed
// platform enumeration that drives branch selection, the step result
// types that make "tolerated failure" visible as a value rather than as
// control flow, and the CLIError type that carries process exit codes
// from domain code up to the cli layer.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Platform is the closed enumeration of operating systems the orchestrator
// knows how to drive. It is resolved exactly once at startup (from the
// OSTYPE environment variable or the --platform flag) and passed down to
// the runner; no other code re-inspects the environment.
//
// PlatformUnsupported is an explicit member rather than a zero-value
// accident so that the "none of the above" case is always handled on
// purpose.
type Platform string

const (
	// PlatformWindows covers msys/MinGW environments (OSTYPE beginning
	// with "msys"), i.e. Git Bash on Windows.
	PlatformWindows Platform = "windows"

	// PlatformMacOS covers Darwin environments (OSTYPE beginning with
	// "Darwin" or "darwin").
	PlatformMacOS Platform = "macos"

	// PlatformLinux covers GNU/Linux environments (OSTYPE exactly
	// "linux-gnu").
	PlatformLinux Platform = "linux"

	// PlatformUnsupported is every identifier the orchestrator does not
	// recognize. Selecting it is a fatal condition: no collaborator is
	// ever invoked for an unsupported platform.
	PlatformUnsupported Platform = "unsupported"
)

// String returns the string representation of the Platform.
// This satisfies fmt.Stringer for readable log and report output.
func (p Platform) String() string {
	return string(p)
}

// IsValid reports whether the Platform is one of the three supported
// members. PlatformUnsupported is deliberately NOT valid — it exists to
// be rejected, not to be run.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformWindows, PlatformMacOS, PlatformLinux:
		return true
	default:
		return false
	}
}

// RequiresElevation reports whether the integration-test collaborator
// must be invoked with elevated privileges on this platform. Elevation
// is required on macOS and Linux; on Windows the CI agent itself is
// assumed to already hold the necessary rights.
func (p Platform) RequiresElevation() bool {
	return p == PlatformMacOS || p == PlatformLinux
}

// ToleratesTestFailure reports whether a nonzero exit from the
// integration-test collaborator is recorded and logged rather than
// propagated. Only the Windows branch tolerates it; the asymmetry is
// inherited from the CI pipeline this tool replaces and is preserved
// on purpose.
func (p Platform) ToleratesTestFailure() bool {
	return p == PlatformWindows
}

// CollectsLogs reports whether the run finishes with the daemon-log
// collection step. Log collection is part of the Windows branch only.
func (p Platform) CollectsLogs() bool {
	return p == PlatformWindows
}

// ParsePlatform converts a CLI/flag string to a Platform.
// Returns an error if the string does not match any supported platform.
// This parses the enum's own names ("windows", "macos", "linux"), not
// OSTYPE identifiers — see the platform package for OSTYPE resolution.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(s))
	if !p.IsValid() {
		return PlatformUnsupported, fmt.Errorf("invalid platform %q (valid: windows, macos, linux)", s)
	}
	return p, nil
}

// StepStatus classifies the outcome of a single orchestration step.
// The three-way split is the point: a tolerated failure is not a
// success, but it must not be confused with a fatal one either.
type StepStatus string

const (
	// StepOK indicates the step completed successfully.
	StepOK StepStatus = "ok"

	// StepTolerated indicates the step failed but the run continues.
	// Only the Windows integration-test and log-collection steps can
	// produce this status.
	StepTolerated StepStatus = "tolerated"

	// StepFailed indicates the step failed fatally and aborted the run.
	StepFailed StepStatus = "failed"
)

// String returns the string representation of the StepStatus.
func (s StepStatus) String() string {
	return string(s)
}

// StepResult records the outcome of one orchestration step. The runner
// returns a slice of these alongside its error so that callers (report
// writer, history store, JSON output) see exactly what ran, what was
// tolerated, and what aborted.
type StepResult struct {
	// Name identifies the step ("build", "diagnostics",
	// "integration-tests", "collect-logs").
	Name string `json:"name" yaml:"name"`

	// Status is the three-way outcome classification.
	Status StepStatus `json:"status" yaml:"status"`

	// Detail is a human-readable note, populated for tolerated and
	// failed steps (typically the collaborator's error text).
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`

	// Duration is how long the step took, including subprocess time.
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Failed reports whether the step ended in a fatal failure.
func (r StepResult) Failed() bool {
	return r.Status == StepFailed
}

// ExitCode defines the CLI exit codes. Scripts and CI systems branch on
// these, so the values are part of the tool's contract and must not be
// renumbered.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully,
	// including runs where a tolerated step failed.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitUnsupportedPlatform indicates the OS identifier matched no
	// supported platform. Nothing was built or tested.
	ExitUnsupportedPlatform ExitCode = 2

	// ExitBuildFailed indicates the build collaborator exited nonzero.
	ExitBuildFailed ExitCode = 3

	// ExitTestsFailed indicates the integration-test collaborator
	// exited nonzero on a platform where that is fatal (macOS, Linux).
	ExitTestsFailed ExitCode = 4

	// ExitGitError indicates project-root resolution via git failed.
	ExitGitError ExitCode = 5

	// ExitConfigError indicates the config file exists but could not
	// be parsed.
	ExitConfigError ExitCode = 6

	// ExitLogCollectionFailed indicates the standalone collect-logs
	// command could not create or write the destination directory.
	// Within `run`, log-collection failures on Windows are tolerated
	// instead.
	ExitLogCollectionFailed ExitCode = 7
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
// This follows Go's error wrapping convention introduced in Go 1.13.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
