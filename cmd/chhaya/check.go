package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/chhaya/internal/config"
	"github.com/nao1215/chhaya/internal/tor"
)

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the Tor proxy is reachable",
		Long: `Check performs a SOCKS5 handshake with the configured Tor proxy and reports
whether it answers like Tor does. Use it before crawling through an
existing proxy.

Examples:
  chhaya check
  chhaya check --tor-proxy 127.0.0.1:9150`,
		Args: cobra.NoArgs,
		RunE: runCheckCmd,
	}

	addConfigFlag(cmd)
	cmd.Flags().String("tor-proxy", config.DefaultTorProxyAddress,
		"Address of the Tor SOCKS5 proxy")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Connection timeout")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	client, err := tor.NewClient(cfg.TorProxyAddress, cfg.Timeout)
	if err != nil {
		return err
	}

	status := client.CheckConnection(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "Tor proxy %s: %s\n", cfg.TorProxyAddress, status)
	if err := status.Err(); err != nil {
		return fmt.Errorf("tor proxy check failed: %w", err)
	}
	return nil
}
