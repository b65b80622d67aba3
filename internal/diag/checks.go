package diag

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/mmr-tortoise/cirun/internal/model"
)

// Check is a single external diagnostic command. Checks are data, not
// code, so the per-platform sets below are easy to audit and extend.
type Check struct {
	// Name is the short identifier shown in output and reports.
	Name string

	// Argv is the command line to execute. Argv[0] is the binary.
	Argv []string
}

// Result is the captured outcome of one diagnostic.
type Result struct {
	// Name identifies the diagnostic that produced this result.
	Name string `json:"name"`

	// OK is false when the diagnostic command failed to run or exited
	// nonzero. A false value is advisory only.
	OK bool `json:"ok"`

	// Output is the combined stdout+stderr of the command, trimmed.
	Output string `json:"output,omitempty"`

	// Detail carries the execution error text when OK is false.
	Detail string `json:"detail,omitempty"`
}

// ChecksFor returns the diagnostic command set for a platform.
//
// Windows gets the full set the historical pipeline ran before the
// integration tests:
//   - netsh: restrict the http.sys listener to IPv4 so the daemon's
//     port probing is not confused by dual-stack bindings
//   - netstat: snapshot of listening ports
//   - tasklist: snapshot of running processes
//
// macOS and Linux have no command diagnostics; their branch relies on
// the Docker daemon probe (see DockerDaemon) instead.
func ChecksFor(p model.Platform) []Check {
	switch p {
	case model.PlatformWindows:
		return []Check{
			{Name: "http-listener-ipv4", Argv: []string{"netsh", "http", "add", "iplisten", "ipaddress=0.0.0.0"}},
			{Name: "listening-ports", Argv: []string{"netstat", "-an"}},
			{Name: "process-list", Argv: []string{"tasklist"}},
		}
	default:
		return nil
	}
}

// RunChecks executes each check in order and captures its outcome.
// It never returns an error: a diagnostic that cannot run is itself a
// (negative) result. Each command gets a bounded slice of time so a
// wedged diagnostic cannot stall the pipeline it is meant to inform.
func RunChecks(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		results = append(results, runCheck(ctx, check))
	}
	return results
}

// checkTimeout bounds a single diagnostic command. Diagnostics are
// snapshots; anything that takes longer than this is not worth waiting
// for.
const checkTimeout = 30 * time.Second

// runCheck executes one diagnostic command and captures its combined
// output.
func runCheck(ctx context.Context, check Check) Result {
	cmdCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	// #nosec G204 — argv comes from the static per-platform tables above
	cmd := exec.CommandContext(cmdCtx, check.Argv[0], check.Argv[1:]...)
	output, err := cmd.CombinedOutput()

	result := Result{
		Name:   check.Name,
		OK:     err == nil,
		Output: strings.TrimSpace(string(output)),
	}
	if err != nil {
		result.Detail = err.Error()
	}
	return result
}
