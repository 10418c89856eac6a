// Command gcart-demo walks a G-Cart server through one JV formation.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SBCM-Alliance/G-Cart/internal/demo"
	"github.com/SBCM-Alliance/G-Cart/pkg/logger"
)

const defaultRunTimeout = 2 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &demo.Config{}
	var (
		logFormat  string
		runTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "gcart-demo",
		Short: "Run a scripted joint venture formation against a G-Cart server",
		Long: `gcart-demo opens a session, selects a project, offers partners until the
team can cover the budget and confirms the bid. Without --partner the
server's recommendations are offered in order.`,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			if cfg.Verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()
			cfg.Out = cmd.OutOrStdout()
			_, err := demo.Run(ctx, cfg)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&cfg.BaseURL, "url", "u", demo.DefaultBaseURL, "Base URL of the service")
	flags.IntVarP(&cfg.ProjectID, "project", "p", demo.DefaultProjectID, "Project to form a team for")
	flags.StringArrayVar(&cfg.Partners, "partner", nil, "Partner to offer, repeatable (default: recommended candidates)")
	flags.DurationVar(&cfg.Timeout, "timeout", demo.DefaultTimeout, "HTTP request timeout")
	flags.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "Overall run timeout")
	flags.BoolVar(&cfg.KeepSession, "keep", false, "Keep the session open after the run")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&logFormat, "log-format", logger.FormatText, "Log format: text or json")

	return cmd
}
