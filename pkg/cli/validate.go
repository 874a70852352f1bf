package cli

import (
	"errors"
	"fmt"

	"github.com/getmockd/serialmock/pkg/cli/internal/output"
	"github.com/getmockd/serialmock/pkg/config"
	"github.com/getmockd/serialmock/pkg/repeatfile"
	"github.com/spf13/cobra"
)

// ValidateResult is the outcome for one file.
type ValidateResult struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Grammar string `json:"grammar,omitempty"`
	Pairs   int    `json:"pairs,omitempty"`
	Error   string `json:"error,omitempty"`
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate [REPEAT_FILE...]",
		Short: "Check repeat files and config without serving",
		Long: `Parse repeat files and report their grammar and pair count, or the first
problem with its line number. Arguments may be glob patterns, including **.

With -c the config file is validated too, and its repeat file is checked
when no repeat files are given.`,
		Example: `  serialmock validate device.txt
  serialmock validate 'protocols/**/*.txt'
  serialmock validate -c serialmock.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && configPath == "" {
				return errors.New("nothing to validate: give repeat files or -c")
			}

			var results []ValidateResult

			if configPath != "" {
				res := ValidateResult{Path: configPath, Kind: "config"}
				cfg, err := config.Load(configPath)
				if err != nil {
					res.Error = err.Error()
				} else if len(args) == 0 {
					args = []string{cfg.RepeatFile}
				}
				results = append(results, res)
			}

			paths, err := repeatfile.Expand(args)
			if err != nil {
				return err
			}
			for _, path := range paths {
				results = append(results, validateRepeatFile(path))
			}

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				if err := output.JSON(w, results); err != nil {
					return err
				}
			} else {
				printValidate(cmd, results)
			}

			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files invalid", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file to validate")
	return cmd
}

func validateRepeatFile(path string) ValidateResult {
	res := ValidateResult{Path: path, Kind: "repeat"}
	f, err := repeatfile.Load(path)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Grammar = f.Grammar.String()
	res.Pairs = f.Len()
	return res
}

func printValidate(cmd *cobra.Command, results []ValidateResult) {
	tw := output.Table(cmd.OutOrStdout())
	for _, r := range results {
		switch {
		case r.Error != "":
			fmt.Fprintf(tw, "FAIL\t%s\t%s\n", r.Path, r.Error)
		case r.Kind == "config":
			fmt.Fprintf(tw, "ok\t%s\tconfig\n", r.Path)
		default:
			fmt.Fprintf(tw, "ok\t%s\t%d pairs, %s\n", r.Path, r.Pairs, r.Grammar)
		}
	}
	_ = tw.Flush()
}
