package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/cirun/internal/config"
	"github.com/mmr-tortoise/cirun/internal/elevate"
	"github.com/mmr-tortoise/cirun/internal/model"
)

// testProject is a temporary project root with stub collaborator
// scripts. Each script appends a line to the trace file when invoked,
// so tests can assert what ran, in what order, with what arguments.
type testProject struct {
	root      string
	tracePath string
}

// newTestProject creates the project root and its ci/ directory.
func newTestProject(t *testing.T) *testProject {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ci"), 0755))
	return &testProject{
		root:      root,
		tracePath: filepath.Join(root, "trace.txt"),
	}
}

// writeScript creates an executable stub script that logs its
// invocation to the trace file and exits with the given code.
func (p *testProject) writeScript(t *testing.T, relPath, label string, exitCode int) {
	t.Helper()

	body := fmt.Sprintf("#!/bin/sh\necho \"%s $@\" >> %q\nexit %d\n", label, p.tracePath, exitCode)
	path := filepath.Join(p.root, relPath)
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
}

// writeElevator creates a stand-in elevation binary that records its
// invocation, strips the -E flag, and executes the wrapped command.
func (p *testProject) writeElevator(t *testing.T) string {
	t.Helper()

	body := fmt.Sprintf(`#!/bin/sh
echo "elevator $@" >> %q
if [ "$1" = "-E" ]; then shift; fi
exec "$@"
`, p.tracePath)
	path := filepath.Join(p.root, "fake-sudo")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

// trace returns the recorded invocation lines, or nil when nothing ran.
func (p *testProject) trace(t *testing.T) []string {
	t.Helper()

	data, err := os.ReadFile(p.tracePath)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// config builds a runner config pointing at the stub scripts, with the
// bookkeeping extras disabled so tests exercise only the sequence.
func (p *testProject) config() *config.Config {
	return &config.Config{
		BuildScript:     "ci/build.sh",
		TestScript:      "ci/run_integration_tests.sh",
		LogSource:       filepath.Join(p.root, "daemon-logs"),
		LogDestination:  "generated/daemon_logs",
		SkipDiagnostics: true,
	}
}

// newRunner builds a Runner for the project with elevation routed
// through the stand-in binary.
func (p *testProject) newRunner(t *testing.T, platform model.Platform) *Runner {
	t.Helper()

	r := New(p.config(), platform, p.root, nil)
	r.Elevator = elevate.Wrapper{Path: p.writeElevator(t), PreserveEnv: true}
	return r
}

// stepStatus returns the status of the named step, failing the test if
// the step was not recorded.
func stepStatus(t *testing.T, outcome *Outcome, name string) model.StepStatus {
	t.Helper()

	for _, step := range outcome.Steps {
		if step.Name == name {
			return step.Status
		}
	}
	t.Fatalf("step %q not found in outcome %+v", name, outcome.Steps)
	return ""
}

// hasStep reports whether the named step was recorded at all.
func hasStep(outcome *Outcome, name string) bool {
	for _, step := range outcome.Steps {
		if step.Name == name {
			return true
		}
	}
	return false
}

// TestRunLinuxSuccess verifies the Linux branch end to end: build runs
// first and unelevated, then the test script runs through the elevator
// with the environment-preserving flag and the toolchain path.
func TestRunLinuxSuccess(t *testing.T) {
	p := newTestProject(t)
	p.writeScript(t, "ci/build.sh", "build", 0)
	p.writeScript(t, "ci/run_integration_tests.sh", "tests", 0)

	outcome, err := p.newRunner(t, model.PlatformLinux).Run(context.Background(), "/opt/toolchain")
	require.NoError(t, err)

	assert.Equal(t, model.StepOK, stepStatus(t, outcome, StepBuild))
	assert.Equal(t, model.StepOK, stepStatus(t, outcome, StepTests))
	assert.False(t, hasStep(outcome, StepCollectLogs), "log collection is Windows-only")

	trace := p.trace(t)
	require.Len(t, trace, 3)
	// Build first, bare (no elevator line precedes it).
	assert.True(t, strings.HasPrefix(trace[0], "build"), "build must run first, unelevated: %q", trace[0])
	// The test script goes through the elevator with -E and the
	// toolchain path forwarded.
	assert.Equal(t, "elevator -E ci/run_integration_tests.sh /opt/toolchain", trace[1])
	assert.Equal(t, "tests /opt/toolchain", trace[2])
}

// TestRunMacOSTestFailurePropagates verifies the macOS branch treats a
// nonzero test exit as fatal.
func TestRunMacOSTestFailurePropagates(t *testing.T) {
	p := newTestProject(t)
	p.writeScript(t, "ci/build.sh", "build", 0)
	p.writeScript(t, "ci/run_integration_tests.sh", "tests", 1)

	outcome, err := p.newRunner(t, model.PlatformMacOS).Run(context.Background(), "/opt/toolchain")
	require.Error(t, err)

	cliErr, ok := err.(*model.CLIError)
	require.True(t, ok)
	assert.Equal(t, model.ExitTestsFailed, cliErr.Code)
	assert.Equal(t, model.StepFailed, stepStatus(t, outcome, StepTests))
	assert.True(t, outcome.Failed())
}

// TestRunLinuxTestFailurePropagates verifies the Linux branch has the
// same shape as macOS: elevated invocation, failure propagated.
func TestRunLinuxTestFailurePropagates(t *testing.T) {
	p := newTestProject(t)
	p.writeScript(t, "ci/build.sh", "build", 0)
	p.writeScript(t, "ci/run_integration_tests.sh", "tests", 3)

	outcome, err := p.newRunner(t, model.PlatformLinux).Run(context.Background(), "/opt/toolchain")
	require.Error(t, err)

	cliErr, ok := err.(*model.CLIError)
	require.True(t, ok)
	assert.Equal(t, model.ExitTestsFailed, cliErr.Code)
	assert.Equal(t, model.StepFailed, stepStatus(t, outcome, StepTests))

	trace := p.trace(t)
	require.NotEmpty(t, trace)
	assert.True(t, strings.HasPrefix(trace[1], "elevator -E "), "test invocation must be elevated")
}

// TestRunWindowsToleratesTestFailure verifies the Windows branch exits
// cleanly when the tests fail AND the log source is missing — both are
// tolerated, recorded, and the run carries on to the end.
func TestRunWindowsToleratesTestFailure(t *testing.T) {
	p := newTestProject(t)
	p.writeScript(t, "ci/build.sh", "build", 0)
	p.writeScript(t, "ci/run_integration_tests.sh", "tests", 1)
	// p.config() points LogSource at a directory that does not exist.

	outcome, err := p.newRunner(t, model.PlatformWindows).Run(context.Background(), "/opt/toolchain")
	require.NoError(t, err, "Windows branch must tolerate test failure")

	assert.Equal(t, model.StepTolerated, stepStatus(t, outcome, StepTests))
	assert.Equal(t, model.StepTolerated, stepStatus(t, outcome, StepCollectLogs))
	assert.False(t, outcome.Failed(), "tolerated failures are not fatal")

	// The tests ran unelevated: no elevator line in the trace.
	for _, line := range p.trace(t) {
		assert.False(t, strings.HasPrefix(line, "elevator"), "Windows branch must not elevate")
	}

	// The log destination exists even though the source was missing.
	info, statErr := os.Stat(filepath.Join(p.root, "generated", "daemon_logs"))
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}

// TestRunWindowsCollectsLogs verifies that daemon logs present at the
// source are copied under generated/ in the project root.
func TestRunWindowsCollectsLogs(t *testing.T) {
	p := newTestProject(t)
	p.writeScript(t, "ci/build.sh", "build", 0)
	p.writeScript(t, "ci/run_integration_tests.sh", "tests", 0)

	sourceDir := filepath.Join(p.root, "daemon-logs")
	require.NoError(t, os.MkdirAll(sourceDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sourceDir, "daemon.log"), []byte("log line\n"), 0644))

	outcome, err := p.newRunner(t, model.PlatformWindows).Run(context.Background(), "/opt/toolchain")
	require.NoError(t, err)
	assert.Equal(t, model.StepOK, stepStatus(t, outcome, StepCollectLogs))

	data, err := os.ReadFile(filepath.Join(p.root, "generated", "daemon_logs", "daemon.log"))
	require.NoError(t, err)
	assert.Equal(t, "log line\n", string(data))
}

// TestRunUnsupportedPlatform verifies the distinct exit code and that
// no collaborator is ever invoked.
func TestRunUnsupportedPlatform(t *testing.T) {
	p := newTestProject(t)
	p.writeScript(t, "ci/build.sh", "build", 0)
	p.writeScript(t, "ci/run_integration_tests.sh", "tests", 0)

	outcome, err := p.newRunner(t, model.PlatformUnsupported).Run(context.Background(), "/opt/toolchain")
	require.Error(t, err)

	cliErr, ok := err.(*model.CLIError)
	require.True(t, ok)
	assert.Equal(t, model.ExitUnsupportedPlatform, cliErr.Code)

	assert.Empty(t, outcome.Steps, "no step may run on an unsupported platform")
	assert.Nil(t, p.trace(t), "no collaborator may be invoked")
}

// TestRunBuildFailureStopsRun verifies fail-fast build semantics on
// every branch: the test collaborator is never reached.
func TestRunBuildFailureStopsRun(t *testing.T) {
	for _, platform := range []model.Platform{model.PlatformWindows, model.PlatformMacOS, model.PlatformLinux} {
		t.Run(platform.String(), func(t *testing.T) {
			p := newTestProject(t)
			p.writeScript(t, "ci/build.sh", "build", 2)
			p.writeScript(t, "ci/run_integration_tests.sh", "tests", 0)

			outcome, err := p.newRunner(t, platform).Run(context.Background(), "/opt/toolchain")
			require.Error(t, err)

			cliErr, ok := err.(*model.CLIError)
			require.True(t, ok)
			assert.Equal(t, model.ExitBuildFailed, cliErr.Code)
			assert.Equal(t, model.StepFailed, stepStatus(t, outcome, StepBuild))
			assert.False(t, hasStep(outcome, StepTests))

			trace := p.trace(t)
			require.Len(t, trace, 1, "only the build may have run")
			assert.True(t, strings.HasPrefix(trace[0], "build"))
		})
	}
}

// TestRunRestoresWorkingDirectory verifies the scoped-acquisition
// contract: the caller's working directory survives success, fatal
// failure, and the unsupported-platform short-circuit.
func TestRunRestoresWorkingDirectory(t *testing.T) {
	before, err := os.Getwd()
	require.NoError(t, err)

	cases := []struct {
		name      string
		platform  model.Platform
		buildExit int
		testExit  int
	}{
		{"success", model.PlatformLinux, 0, 0},
		{"build failure", model.PlatformLinux, 1, 0},
		{"test failure", model.PlatformMacOS, 0, 1},
		{"unsupported", model.PlatformUnsupported, 0, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProject(t)
			p.writeScript(t, "ci/build.sh", "build", tc.buildExit)
			p.writeScript(t, "ci/run_integration_tests.sh", "tests", tc.testExit)

			_, _ = p.newRunner(t, tc.platform).Run(context.Background(), "/opt/toolchain")

			after, err := os.Getwd()
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

// TestRunDiagnosticsRecorded verifies that with diagnostics enabled the
// step is recorded as OK even when every probe fails — probe outcomes
// are information, not control flow.
func TestRunDiagnosticsRecorded(t *testing.T) {
	p := newTestProject(t)
	p.writeScript(t, "ci/build.sh", "build", 0)
	p.writeScript(t, "ci/run_integration_tests.sh", "tests", 0)

	cfg := p.config()
	cfg.SkipDiagnostics = false

	r := New(cfg, model.PlatformWindows, p.root, nil)
	r.Elevator = elevate.Wrapper{Path: p.writeElevator(t), PreserveEnv: true}

	outcome, err := r.Run(context.Background(), "/opt/toolchain")
	require.NoError(t, err)

	assert.Equal(t, model.StepOK, stepStatus(t, outcome, StepDiagnostics))
	assert.NotEmpty(t, outcome.Diagnostics)
}

// TestResolveProjectRoot verifies git-based root resolution from a
// nested directory, and the error for a path outside any repository.
func TestResolveProjectRoot(t *testing.T) {
	root := t.TempDir()
	out, err := exec.Command("git", "-C", root, "init").CombinedOutput()
	require.NoError(t, err, "git init: %s", out)

	nested := filepath.Join(root, "ci", "deep")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, err := ResolveProjectRoot(nested)
	require.NoError(t, err)

	// Resolve symlinks on both sides: macOS TempDir lives under /var,
	// which is a symlink to /private/var, and git reports the resolved
	// path.
	wantResolved, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, wantResolved, gotResolved)
}

// TestResolveProjectRootOutsideRepo verifies the git error surfaces as
// a CLIError with the git exit code.
func TestResolveProjectRootOutsideRepo(t *testing.T) {
	dir := t.TempDir()
	// A .git anywhere above the temp dir would make this pass
	// spuriously; temp dirs on the test hosts are not under a repo.
	_, err := ResolveProjectRoot(dir)
	if err == nil {
		t.Skip("temp directory is inside a Git repository on this host")
	}

	cliErr, ok := err.(*model.CLIError)
	require.True(t, ok)
	assert.Equal(t, model.ExitGitError, cliErr.Code)
}
