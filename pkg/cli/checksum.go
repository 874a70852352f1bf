package cli

import (
	"fmt"

	"github.com/getmockd/serialmock/pkg/cli/internal/output"
	"github.com/getmockd/serialmock/pkg/function"
	"github.com/spf13/cobra"
)

// ChecksumOutput is the JSON form of the checksum command.
type ChecksumOutput struct {
	Length int    `json:"length"`
	Sum8   byte   `json:"sum8"`
	CRC8   byte   `json:"crc8"`
	CRC16  uint16 `json:"crc16"`

	// Set with --verify: whether the trailing bytes already hold the checksum.
	TrailerCRC8  *bool `json:"trailerCrc8,omitempty"`
	TrailerCRC16 *bool `json:"trailerCrc16,omitempty"`
}

func newChecksumCmd(g *globalFlags) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:     "checksum FRAME...",
		Aliases: []string{"crc"},
		Short:   "Print Sum, CRC8 and CRC16 of a frame",
		Long: `Print the checksums serialmock computes for @sum, @crc8 and @crc16 over
the given bytes. CRC16 is CRC-16/MODBUS and is sent low byte first.

With --verify the frame is treated as complete and its trailing bytes are
checked against CRC8 and CRC16 of the rest.`,
		Example: `  serialmock checksum 01 03 00 00 00 0A
  serialmock checksum --verify 01030000000AC5CD`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := parseFrame(args)
			if err != nil {
				return err
			}

			out := ChecksumOutput{
				Length: len(frame),
				Sum8:   function.Sum8(frame),
				CRC8:   function.CRC8(frame),
				CRC16:  function.CRC16(frame),
			}
			if verify {
				ok8 := function.VerifyCRC8(frame)
				ok16 := function.VerifyCRC16(frame)
				out.TrailerCRC8, out.TrailerCRC16 = &ok8, &ok16
			}

			w := cmd.OutOrStdout()
			if g.jsonOutput {
				return output.JSON(w, out)
			}

			tw := output.Table(w)
			fmt.Fprintf(tw, "length\t%d\n", out.Length)
			fmt.Fprintf(tw, "sum8\t0x%02X\n", out.Sum8)
			fmt.Fprintf(tw, "crc8\t0x%02X\n", out.CRC8)
			fmt.Fprintf(tw, "crc16\t0x%04X\t(wire %02X %02X)\n", out.CRC16, byte(out.CRC16), byte(out.CRC16>>8))
			if verify {
				fmt.Fprintf(tw, "trailer crc8\t%s\n", okString(*out.TrailerCRC8))
				fmt.Fprintf(tw, "trailer crc16\t%s\n", okString(*out.TrailerCRC16))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Check the trailing bytes against CRC8 and CRC16")
	return cmd
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "mismatch"
}
