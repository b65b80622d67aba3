package runner

import (
	"fmt"
	"os"
)

// pushd changes the process working directory to dir and returns a
// restore function that changes it back. The pair implements the scoped
// working-directory acquisition the orchestration contract requires:
// callers defer the restore immediately, so the caller's directory
// survives every exit path, success or failure.
//
// The restore func swallows its own chdir error deliberately — by the
// time it runs we are already unwinding, and there is nothing sensible
// to do if the original directory has vanished.
func pushd(dir string) (restore func(), err error) {
	previous, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to read current directory: %w", err)
	}

	if err := os.Chdir(dir); err != nil {
		return nil, fmt.Errorf("failed to change directory to %s: %w", dir, err)
	}

	return func() { _ = os.Chdir(previous) }, nil
}
