package diag

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"time"

	"github.com/docker/docker/client"
)

// pingTimeout is the maximum wait for a Docker daemon response. Five
// seconds is generous even for Docker Desktop on macOS, which responds
// slower than native Linux Docker.
const pingTimeout = 5 * time.Second

// DockerDaemon probes whether a Docker daemon is reachable. The
// integration-test collaborator on Linux and macOS launches its test
// nodes as containers, so an unreachable daemon is the most common
// reason for a wholesale test failure — worth surfacing before the
// tests run, even though the probe itself decides nothing.
//
// Host detection order:
//  1. DOCKER_HOST environment variable, used as-is when set
//  2. platform default socket paths (Linux/macOS unix sockets,
//     the Windows named pipe)
func DockerDaemon(ctx context.Context) Result {
	result := Result{Name: "docker-daemon"}

	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		detected, err := detectDockerHost()
		if err != nil {
			result.Detail = err.Error()
			return result
		}
		host = detected
	}

	// WithAPIVersionNegotiation lets the probe work against any daemon
	// version without pinning an API version here.
	c, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		result.Detail = fmt.Sprintf("failed to create Docker client for host %q: %v", host, err)
		return result
	}
	defer func() { _ = c.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ping, err := c.Ping(pingCtx)
	if err != nil {
		result.Detail = fmt.Sprintf("Docker daemon at %s is not responding: %v", host, err)
		return result
	}

	result.OK = true
	result.Output = fmt.Sprintf("daemon reachable at %s (API %s)", host, ping.APIVersion)
	return result
}

// detectDockerHost determines the Docker socket address for the current
// platform by probing known locations. Existence is checked rather than
// connectivity — the Ping above is what verifies the daemon actually
// answers.
func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
		})

	case "darwin":
		// Docker Desktop symlinks /var/run/docker.sock, but newer
		// versions only create the per-user socket.
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return detectUnixSocket([]string{
				"/var/run/docker.sock",
			})
		}
		return detectUnixSocket([]string{
			"/var/run/docker.sock",
			homeDir + "/.docker/run/docker.sock",
		})

	case "windows":
		// os.Stat does not work on Windows named pipes, so reachability
		// is probed with a short dial instead.
		pipePath := `//./pipe/docker_engine`
		conn, err := net.DialTimeout("pipe", pipePath, 1*time.Second)
		if err == nil {
			conn.Close()
			return "npipe://" + pipePath, nil
		}
		return "", fmt.Errorf("Docker named pipe not found at %s: %w", pipePath, err)

	default:
		return "", fmt.Errorf("no known Docker socket location for %s", runtime.GOOS)
	}
}

// detectUnixSocket returns the Docker host URI for the first socket path
// that exists on the filesystem, in preference order.
func detectUnixSocket(paths []string) (string, error) {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v — is Docker running?", paths)
}
