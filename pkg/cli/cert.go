package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/serialmock/pkg/cli/internal/output"
	"github.com/getmockd/serialmock/pkg/tls"
)

func newCertCmd(g *globalFlags) *cobra.Command {
	var (
		certPath string
		keyPath  string
		hosts    string
		validFor time.Duration
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Write a self-signed TLS certificate for the transports",
		Long: `Generate a self-signed certificate and key for use with --tls-cert and
--tls-key or the tls block of a config file.`,
		Example: `  serialmock cert
  serialmock cert --hosts meter.local,10.0.0.5 --cert meter.crt --key meter.key`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := tls.DefaultCertificateConfig()
			if hosts != "" {
				cfg.Hosts = splitList(hosts)
				cfg.CommonName = cfg.Hosts[0]
			}
			cfg.ValidFor = validFor

			gen, err := tls.GenerateSelfSignedCert(cfg)
			if err != nil {
				return err
			}
			if err := tls.SaveCertificate(gen, certPath, keyPath, force); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if g.jsonOutput {
				return output.JSON(out, map[string]any{
					"cert":     certPath,
					"key":      keyPath,
					"hosts":    cfg.Hosts,
					"notAfter": gen.Certificate.NotAfter,
				})
			}
			fmt.Fprintf(out, "wrote %s and %s\n", certPath, keyPath)
			fmt.Fprintf(out, "  hosts     %s\n", strings.Join(cfg.Hosts, ", "))
			fmt.Fprintf(out, "  expires   %s\n", gen.Certificate.NotAfter.Format(time.RFC3339))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&certPath, "cert", "serialmock.crt", "Certificate output path")
	fl.StringVar(&keyPath, "key", "serialmock.key", "Private key output path")
	fl.StringVar(&hosts, "hosts", "", "Comma-separated DNS names and IPs (default localhost,127.0.0.1,::1)")
	fl.DurationVar(&validFor, "valid-for", 365*24*time.Hour, "Certificate lifetime")
	fl.BoolVarP(&force, "force", "f", false, "Overwrite existing files")

	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
