// Package elevate builds privilege-elevated command invocations.
//
// The integration-test collaborator needs root on macOS and Linux (it
// manipulates the firewall and binds privileged ports), and it needs the
// caller's environment to survive the elevation — toolchain paths and CI
// variables are passed by environment. That combination is `sudo -E`.
//
// The wrapper is a value type with exported fields so that tests can
// point Path at a stand-in binary, or disable wrapping entirely, without
// any global state.
package elevate

// Wrapper describes how to elevate a command invocation.
type Wrapper struct {
	// Path is the elevation binary. An empty Path disables wrapping:
	// Argv returns the command unchanged. This is the escape hatch for
	// tests and for agents that already run the whole pipeline as root.
	Path string

	// PreserveEnv passes -E so the elevated process inherits the
	// caller's environment instead of sudo's sanitized one.
	PreserveEnv bool
}

// Default returns the production wrapper: `sudo -E`.
func Default() Wrapper {
	return Wrapper{Path: "sudo", PreserveEnv: true}
}

// Argv rewrites a command line under the wrapper. It returns the binary
// to execute and its arguments, ready for exec.Command. With an empty
// Path the input is returned unchanged.
func (w Wrapper) Argv(name string, args ...string) (string, []string) {
	if w.Path == "" {
		return name, args
	}

	wrapped := make([]string, 0, len(args)+2)
	if w.PreserveEnv {
		wrapped = append(wrapped, "-E")
	}
	wrapped = append(wrapped, name)
	wrapped = append(wrapped, args...)
	return w.Path, wrapped
}
