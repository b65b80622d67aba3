package diag

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/cirun/internal/model"
)

// TestChecksForWindows verifies the Windows diagnostic set: the
// http.sys listener configuration, the port snapshot, and the process
// snapshot, in that order.
func TestChecksForWindows(t *testing.T) {
	checks := ChecksFor(model.PlatformWindows)
	require.Len(t, checks, 3)

	assert.Equal(t, "http-listener-ipv4", checks[0].Name)
	assert.Equal(t, "netsh", checks[0].Argv[0])
	assert.Equal(t, "listening-ports", checks[1].Name)
	assert.Equal(t, []string{"netstat", "-an"}, checks[1].Argv)
	assert.Equal(t, "process-list", checks[2].Name)
	assert.Equal(t, []string{"tasklist"}, checks[2].Argv)
}

// TestChecksForUnix verifies that macOS and Linux have no command
// diagnostics.
func TestChecksForUnix(t *testing.T) {
	assert.Empty(t, ChecksFor(model.PlatformMacOS))
	assert.Empty(t, ChecksFor(model.PlatformLinux))
	assert.Empty(t, ChecksFor(model.PlatformUnsupported))
}

// TestRunChecksCapturesOutput runs a real (portable) command and
// verifies its output is captured.
func TestRunChecksCapturesOutput(t *testing.T) {
	results := RunChecks(context.Background(), []Check{
		{Name: "echo", Argv: []string{"echo", "hello"}},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].OK)
	assert.Equal(t, "hello", results[0].Output)
	assert.Empty(t, results[0].Detail)
}

// TestRunChecksToleratesFailure verifies that a failing or missing
// diagnostic command produces a negative result instead of an error —
// diagnostics must never break the run they inform.
func TestRunChecksToleratesFailure(t *testing.T) {
	results := RunChecks(context.Background(), []Check{
		{Name: "missing", Argv: []string{"cirun-no-such-binary-xyz"}},
		{Name: "after", Argv: []string{"echo", "still runs"}},
	})

	require.Len(t, results, 2)
	assert.False(t, results[0].OK)
	assert.NotEmpty(t, results[0].Detail)
	// A failed check does not prevent later checks from running.
	assert.True(t, results[1].OK)
	assert.Equal(t, "still runs", results[1].Output)
}

// TestSampleListeningPorts verifies that a port held open by the test
// shows up in the sample and a free neighbor does not.
func TestSampleListeningPorts(t *testing.T) {
	// Grab an ephemeral port and hold it for the duration of the test.
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	port := listener.Addr().(*net.TCPAddr).Port

	used := SampleListeningPorts(port, port)
	assert.Equal(t, []int{port}, used)
}

// TestSampleListeningPortsEmptyRange verifies an inverted range yields
// no results rather than panicking.
func TestSampleListeningPortsEmptyRange(t *testing.T) {
	assert.Empty(t, SampleListeningPorts(20000, 19999))
}
