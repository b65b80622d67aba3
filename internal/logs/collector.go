// Package logs collects the daemon-under-test's log directory into the
// project's generated/ output tree after an integration-test run.
//
// Collection is a plain recursive copy. It deliberately has relaxed
// failure semantics at the source end: the daemon may never have started,
// in which case there is nothing to copy and the run should still
// succeed. The destination end is stricter — if we cannot create the
// target directory the operator asked for, that is a real error.
package logs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrSourceMissing is returned by Collect when the source directory does
// not exist. Callers on the tolerant path (the orchestrated Windows
// branch) log it and move on; the standalone collect-logs command
// reports it to the operator.
var ErrSourceMissing = errors.New("log source directory does not exist")

// DefaultSource returns the platform's default daemon log directory:
// the "daemon/logs" subdirectory of the user configuration directory
// (%AppData% on Windows, ~/Library/Application Support on macOS,
// ~/.config on Linux). This matches where the daemon under test writes
// when it is not told otherwise.
func DefaultSource() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	return filepath.Join(base, "daemon", "logs"), nil
}

// Collect copies the source directory tree into the destination
// directory, creating the destination (and any parents) first. It
// returns the number of regular files copied.
//
// The destination is created before the source is checked so that the
// generated/ directory exists even for a run where the daemon produced
// no logs — downstream archive steps expect the directory to be there.
func Collect(source, destination string) (int, error) {
	if err := os.MkdirAll(destination, 0755); err != nil {
		return 0, fmt.Errorf("failed to create log destination %s: %w", destination, err)
	}

	info, err := os.Stat(source)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrSourceMissing, source)
		}
		return 0, fmt.Errorf("failed to stat log source %s: %w", source, err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("log source %s is not a directory", source)
	}

	copied := 0
	err = filepath.WalkDir(source, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, relErr := filepath.Rel(source, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(destination, rel)

		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}

		// Skip anything that is not a regular file (sockets, pipes).
		// The daemon only writes plain log files; anything else in the
		// directory is noise we should not try to open.
		if !d.Type().IsRegular() {
			return nil
		}

		if copyErr := copyFile(path, target); copyErr != nil {
			return copyErr
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("failed to copy logs from %s: %w", source, err)
	}

	return copied, nil
}

// copyFile copies a single regular file, truncating the target if it
// already exists from a previous run.
func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
