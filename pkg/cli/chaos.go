package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/serialmock/pkg/chaos"
	"github.com/getmockd/serialmock/pkg/cli/internal/output"
)

func newChaosCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaos",
		Short: "Inspect fault injection profiles",
		Long: `Fault injection delays, drops, corrupts or truncates answers. Enable it with
'serve --chaos-profile NAME', the --latency and --drop-rate flags, or the
chaos section of the config file.`,
	}
	cmd.AddCommand(newChaosProfilesCmd(g))
	return cmd
}

func newChaosProfilesCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in chaos profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles := chaos.ListProfiles()
			w := cmd.OutOrStdout()
			if g.jsonOutput {
				return output.JSON(w, profiles)
			}

			tw := output.Table(w)
			fmt.Fprintln(tw, "NAME\tFAULTS\tDESCRIPTION")
			for _, p := range profiles {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, describeFaults(p.Faults), p.Description)
			}
			return tw.Flush()
		},
	}
}

func describeFaults(f chaos.Faults) string {
	var parts []string
	if f.Latency != nil {
		parts = append(parts, fmt.Sprintf("latency %s-%s", f.Latency.Min, f.Latency.Max))
	}
	if f.Drop != nil {
		parts = append(parts, fmt.Sprintf("drop %.0f%%", f.Drop.Probability*100))
	}
	if f.Corrupt != nil {
		parts = append(parts, fmt.Sprintf("corrupt %.0f%%", f.Corrupt.Probability*100))
	}
	if f.Truncate != nil {
		parts = append(parts, fmt.Sprintf("truncate %.0f%%", f.Truncate.Probability*100))
	}
	return strings.Join(parts, ", ")
}
