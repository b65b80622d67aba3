// Package diag runs pre-test environment diagnostics.
//
// Everything in this package is informational: results are captured for
// the operator (console, report, history) but never affect control flow.
// A CI run proceeds identically whether a diagnostic passed, failed, or
// could not run at all — the value is in the console output when a test
// failure needs to be explained after the fact.
//
// Three kinds of diagnostics are provided:
//   - external command probes (netsh/netstat/tasklist on Windows)
//   - a Docker daemon reachability probe (Linux/macOS, where the
//     integration tests run their nodes in containers)
//   - an in-process listening-port sample via net.Listen
package diag
