package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/getmockd/serialmock/pkg/chaos"
	"github.com/getmockd/serialmock/pkg/cli/internal/output"
	"github.com/getmockd/serialmock/pkg/config"
)

var transportNames = []string{"tcp", "websocket", "mqtt", "quic", "pty"}

// initAnswers are the choices behind a generated config file.
type initAnswers struct {
	RepeatFile   string
	Transports   []string
	Watch        bool
	ChaosProfile string
}

func newInitCmd(g *globalFlags) *cobra.Command {
	var (
		outPath     string
		force       bool
		interactive bool
		transports  string
	)
	a := &initAnswers{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a starter config file",
		Long: `Write a serialmock config file with the defaults for every setting.

With -i the repeat file, transports and watch mode are asked for.`,
		Example: `  serialmock init
  serialmock init -r meter.txt --transports tcp,mqtt --watch
  serialmock init -i -o device.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(outPath); err == nil && !force {
				return fmt.Errorf("file already exists: %s (use --force to overwrite)", outPath)
			}

			a.Transports = splitList(transports)
			if interactive {
				if err := initForm(a).Run(); err != nil {
					return err
				}
			}

			cfg, err := buildInitConfig(a)
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			data = append([]byte("# serialmock configuration, see 'serialmock serve --help'\n"), data...)
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return output.JSON(out, map[string]any{
					"path":       outPath,
					"transports": cfg.Transports(),
				})
			}
			fmt.Fprintf(out, "wrote %s (%s)\n", outPath, strings.Join(cfg.Transports(), ", "))
			repeatPath := cfg.RepeatFile
			if !filepath.IsAbs(repeatPath) {
				repeatPath = filepath.Join(filepath.Dir(outPath), repeatPath)
			}
			if _, err := os.Stat(repeatPath); err != nil {
				output.Warn(out, "repeat file %s does not exist yet", cfg.RepeatFile)
			}
			fmt.Fprintf(out, "run: serialmock serve -c %s\n", outPath)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&outPath, "output", "o", "serialmock.yaml", "Output filename")
	fl.BoolVar(&force, "force", false, "Overwrite an existing file")
	fl.BoolVarP(&interactive, "interactive", "i", false, "Prompt for the settings")
	fl.StringVarP(&a.RepeatFile, "repeat-file", "r", "device.txt", "Repeat file to serve")
	fl.StringVar(&transports, "transports", "tcp", "Comma-separated transports: "+strings.Join(transportNames, ", "))
	fl.BoolVar(&a.Watch, "watch", false, "Reload the repeat file when it changes")
	fl.StringVar(&a.ChaosProfile, "chaos-profile", "", "Enable fault injection with a built-in profile")

	return cmd
}

func initForm(a *initAnswers) *huh.Form {
	profiles := []huh.Option[string]{huh.NewOption("none", "")}
	for _, p := range chaos.ListProfiles() {
		profiles = append(profiles, huh.NewOption(p.Name+" - "+p.Description, p.Name))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Which repeat file should be served?").
				Placeholder("device.txt").
				Value(&a.RepeatFile).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("repeat file is required")
					}
					return nil
				}),
			huh.NewMultiSelect[string]().
				Title("Which transports should answer frames?").
				Options(huh.NewOptions(transportNames...)...).
				Value(&a.Transports).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return errors.New("pick at least one transport")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Reload the repeat file when it changes?").
				Value(&a.Watch),
			huh.NewSelect[string]().
				Title("Inject faults?").
				Options(profiles...).
				Value(&a.ChaosProfile),
		),
	)
}

// buildInitConfig applies a to the defaults and validates the result.
func buildInitConfig(a *initAnswers) (*config.Config, error) {
	cfg := config.Default()
	cfg.RepeatFile = strings.TrimSpace(a.RepeatFile)
	cfg.Watch = a.Watch

	for _, name := range a.Transports {
		if !slices.Contains(transportNames, name) {
			return nil, fmt.Errorf("unknown transport %q (have %s)", name, strings.Join(transportNames, ", "))
		}
	}
	cfg.TCP.Enabled = slices.Contains(a.Transports, "tcp")
	cfg.WebSocket.Enabled = slices.Contains(a.Transports, "websocket")
	cfg.MQTT.Enabled = slices.Contains(a.Transports, "mqtt")
	cfg.QUIC.Enabled = slices.Contains(a.Transports, "quic")
	cfg.PTY.Enabled = slices.Contains(a.Transports, "pty")

	if a.ChaosProfile != "" {
		cfg.Chaos.Enabled = true
		cfg.Chaos.Profile = a.ChaosProfile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
