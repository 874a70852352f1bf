package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	logLevel   string
	logFormat  string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "serialmock",
		Short: "serialmock answers serial protocol frames from a repeat file",
		Long: `serialmock emulates a serial device. It reads a repeat file of ask/answer
line pairs and answers every incoming frame that matches an ask with the
synthesized answer, filling in captured bytes, checksums and random values.

Frames arrive over raw TCP, WebSocket messages or MQTT publishes.`,
		SilenceUsage:  true,
		SilenceErrors: true, // Execute prints the error
	}

	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "", "Log format: text or json (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "Output command results in JSON format")

	rootCmd.AddCommand(
		newServeCmd(g),
		newValidateCmd(g),
		newLookupCmd(g),
		newChecksumCmd(g),
		newChaosCmd(g),
		newCertCmd(g),
		newInitCmd(g),
		newVersionCmd(g),
	)
	return rootCmd
}

// Run executes the command line in args with the given output streams.
func Run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// Execute runs the command line from os.Args. This is called by main.main().
func Execute() {
	if err := Run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
