// Package cli — doctor.go implements the "cirun doctor" command.
//
// Doctor runs the environment diagnostics on their own, without
// building or testing anything. It is what an operator reaches for when
// a CI agent starts failing runs: the same probes the run command
// captures, printed directly.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/cirun/internal/diag"
	"github.com/mmr-tortoise/cirun/internal/model"
)

// doctorFlags holds the flag values for the doctor command.
type doctorFlags struct {
	platform  string // --platform: override OSTYPE detection
	portStart int    // --port-start: first port of the sample range
	portEnd   int    // --port-end: last port of the sample range
}

// doctorOutput is the JSON shape of the doctor command's result.
type doctorOutput struct {
	Platform model.Platform `json:"platform"`
	Probes   []diag.Result  `json:"probes"`
	Ports    []int          `json:"listeningPorts,omitempty"`
}

// NewDoctorCommand creates the "doctor" cobra command.
// It is called from NewRootCommand to register as a subcommand.
func NewDoctorCommand() *cobra.Command {
	flags := &doctorFlags{}

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run the environment diagnostics without building or testing",
		Long: `Run the CI environment diagnostics on their own.

This executes the same informational probes the run command captures
(platform command diagnostics plus a Docker daemon reachability check)
and optionally samples which TCP ports in a range are already in use.

Unlike run, doctor accepts an unsupported platform: the portable probes
still work there, and a broken agent is exactly when you want them.

Examples:
  cirun doctor
  cirun doctor --port-start 18540 --port-end 18560
  cirun doctor --platform windows --json`,

		Args: cobra.NoArgs,

		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.platform, "platform", "",
		"Platform whose diagnostics to run (default: detect from OSTYPE)")
	cmd.Flags().IntVar(&flags.portStart, "port-start", 0, "First TCP port of the usage sample range")
	cmd.Flags().IntVar(&flags.portEnd, "port-end", 0, "Last TCP port of the usage sample range")

	return cmd
}

// runDoctor is the main logic function for the doctor command.
func runDoctor(ctx context.Context, flags *doctorFlags) error {
	plat, err := resolvePlatform(flags.platform)
	if err != nil {
		return err
	}

	out := doctorOutput{Platform: plat}

	// Platform command probes (empty outside Windows), then the Docker
	// daemon probe, which is useful on every platform doctor runs on.
	out.Probes = diag.RunChecks(ctx, diag.ChecksFor(plat))
	out.Probes = append(out.Probes, diag.DockerDaemon(ctx))

	// The port sample only runs when a range was asked for: scanning is
	// cheap but not free, and the useful range is project-specific.
	if flags.portStart > 0 && flags.portEnd >= flags.portStart {
		out.Ports = diag.SampleListeningPorts(flags.portStart, flags.portEnd)
	}

	printDoctorResult(out)
	return nil
}

// printDoctorResult outputs the probe results in text or JSON format,
// depending on the global --json flag.
func printDoctorResult(out doctorOutput) {
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Platform: %s\n", out.Platform)
	for _, probe := range out.Probes {
		status := "ok"
		if !probe.OK {
			status = "FAILED"
		}
		fmt.Printf("  %-20s %s\n", probe.Name, status)
		if probe.Detail != "" {
			fmt.Printf("    %s\n", probe.Detail)
		}
	}
	if len(out.Ports) > 0 {
		fmt.Printf("Ports in use: %v\n", out.Ports)
	}
}
