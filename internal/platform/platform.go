// Package platform resolves the operating-system identifier into the
// closed model.Platform enumeration.
//
// The identifier is the shell's OSTYPE value, which is how the CI agents
// this tool runs on describe themselves ("msys" under Git Bash on
// Windows, "darwin21.0" on macOS, "linux-gnu" on GNU/Linux). Resolution
// happens exactly once at startup; everything downstream works with the
// enum and never re-reads the environment.
package platform

import (
	"os"
	"strings"

	"github.com/mmr-tortoise/cirun/internal/model"
)

// EnvVar is the environment variable holding the OS identifier.
// OSTYPE is a shell variable, not normally exported, so CI pipelines
// invoking this tool must export it (or use the --platform flag).
const EnvVar = "OSTYPE"

// Resolve maps an OS-identifier string to a Platform.
//
// The matching rules are deliberately narrow and case-sensitive, mirroring
// the identifiers the supported CI agents actually produce:
//   - "msys" prefix            → PlatformWindows (Git Bash / MSYS2)
//   - "Darwin"/"darwin" prefix → PlatformMacOS (the capitalized form
//     appears on older macOS agents)
//   - exactly "linux-gnu"      → PlatformLinux
//
// Everything else — including musl-based Linux ("linux-musl"), the BSDs,
// and an empty identifier — resolves to PlatformUnsupported. There is no
// fuzzy fallback: an agent we have never tested on should fail loudly,
// not run a branch written for a different OS.
func Resolve(osType string) model.Platform {
	switch {
	case strings.HasPrefix(osType, "msys"):
		return model.PlatformWindows
	case strings.HasPrefix(osType, "Darwin"), strings.HasPrefix(osType, "darwin"):
		return model.PlatformMacOS
	case osType == "linux-gnu":
		return model.PlatformLinux
	default:
		return model.PlatformUnsupported
	}
}

// Detect reads the OS identifier from the process environment and
// resolves it. An unset or empty OSTYPE resolves to PlatformUnsupported,
// same as any unrecognized value.
func Detect() model.Platform {
	return Resolve(os.Getenv(EnvVar))
}
