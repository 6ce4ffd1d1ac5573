package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for chhaya.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chhaya",
		Short: "Dark-web crawl job orchestrator",
		Long: `chhaya discovers .onion pages for a search query through several dark-web
search engines, fetches them through Tor and stores their text. With
--analyze every fetched page is assessed by a language model and the
verdicts are collected into a threat report.

By default, chhaya starts an embedded Tor daemon automatically.
Use --external-tor or --tor-proxy to use an existing Tor proxy instead.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
