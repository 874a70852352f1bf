package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/getmockd/serialmock/internal/matching"
	"github.com/getmockd/serialmock/pkg/cli/internal/output"
	"github.com/getmockd/serialmock/pkg/function"
	"github.com/getmockd/serialmock/pkg/logging"
	"github.com/getmockd/serialmock/pkg/repeatfile"
	"github.com/getmockd/serialmock/pkg/table"
	"github.com/getmockd/serialmock/pkg/template"
	"github.com/spf13/cobra"
)

// errUnknownAsk makes the lookup command exit non-zero on a miss.
var errUnknownAsk = errors.New("unknown ask")

// LookupOutput is the JSON form of the lookup command.
type LookupOutput struct {
	Frame      string              `json:"frame"`
	Matched    bool                `json:"matched"`
	Answer     string              `json:"answer,omitempty"`
	NearMisses []matching.NearMiss `json:"nearMisses,omitempty"`
}

func newLookupCmd(g *globalFlags) *cobra.Command {
	var (
		repeatFile string
		seed       uint64
		near       int
	)

	cmd := &cobra.Command{
		Use:   "lookup FRAME...",
		Short: "Answer one frame from a repeat file",
		Long: `Look up a frame the way the daemon would and print the answer.

For hex repeat files the frame is given as hex bytes. For ASCII repeat files
the arguments are joined with spaces and matched as text. On a miss the
closest asks are listed with the first difference.`,
		Example: `  serialmock lookup -r device.txt 0x10 0x58 0xFC 0x5B 0x16
  serialmock lookup -r device.txt 1058FC5B16 --seed 7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := repeatfile.Load(repeatFile)
			if err != nil {
				return err
			}

			var res LookupOutput
			if f.Grammar == template.GrammarASCII {
				res = lookupASCII(f, strings.Join(args, " "))
			} else {
				frame, err := parseFrame(args)
				if err != nil {
					return err
				}
				if res, err = lookupHex(f, frame, seed, near); err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				if err := output.JSON(w, res); err != nil {
					return err
				}
			} else {
				printLookup(cmd, res)
			}
			if !res.Matched {
				return errUnknownAsk
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&repeatFile, "repeat-file", "r", "", "Repeat file to look the frame up in")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for @rand (0 = unseeded)")
	cmd.Flags().IntVar(&near, "near", 3, "Number of near misses to show on a miss")
	_ = cmd.MarkFlagRequired("repeat-file")

	return cmd
}

func lookupHex(f *repeatfile.File, frame []byte, seed uint64, near int) (LookupOutput, error) {
	tbl := table.New()
	if err := tbl.Replace(f.Pairs); err != nil {
		return LookupOutput{}, err
	}
	if seed != 0 {
		tbl.SetRand(function.NewRand(seed))
	}

	res := LookupOutput{Frame: logging.HexDump(frame)}
	if answer, ok := tbl.Lookup(frame); ok {
		res.Matched = true
		res.Answer = logging.HexDump(answer)
		return res, nil
	}
	res.NearMisses = tbl.NearMisses(frame, near)
	return res, nil
}

func lookupASCII(f *repeatfile.File, text string) LookupOutput {
	res := LookupOutput{Frame: text}
	for _, p := range f.ASCII {
		if p.Ask == text {
			res.Matched = true
			res.Answer = p.Answer
			break
		}
	}
	return res
}

func printLookup(cmd *cobra.Command, res LookupOutput) {
	w := cmd.OutOrStdout()
	if res.Matched {
		fmt.Fprintln(w, res.Answer)
		return
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "unknown ask: %s\n", res.Frame)
	if len(res.NearMisses) == 0 {
		return
	}
	tw := output.Table(w)
	fmt.Fprintln(tw, "PAIR\tMATCH\tASK\tREASON")
	for _, m := range res.NearMisses {
		fmt.Fprintf(tw, "%d\t%d%%\t%s\t%s\n", m.Index+1, m.MatchPercentage, m.Ask, m.Reason)
	}
	_ = tw.Flush()
}
