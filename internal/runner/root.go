package runner

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/mmr-tortoise/cirun/internal/model"
)

// ResolveProjectRoot returns the top-level directory of the repository
// containing startDir, via `git rev-parse --show-toplevel`.
//
// The historical pipeline located the project root relative to its own
// script file; the Go equivalent of "independent of the caller's cwd"
// is asking git, which also works when the binary is installed outside
// the repository and invoked from any subdirectory.
func ResolveProjectRoot(startDir string) (string, error) {
	// -C makes git operate relative to startDir without touching the
	// process working directory.
	// #nosec G204 — args are constructed internally, not from user input
	cmd := exec.Command("git", "-C", startDir, "rev-parse", "--show-toplevel")

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := "failed to resolve project root (not inside a Git repository?)"
		if detail := strings.TrimSpace(stderr.String()); detail != "" {
			message = fmt.Sprintf("%s: %s", message, detail)
		}
		return "", model.WrapCLIError(model.ExitGitError, message, err)
	}

	return strings.TrimSpace(stdout.String()), nil
}
