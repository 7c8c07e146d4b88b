package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/hyena-client/internal/bootstrap"
	"github.com/kirillkom/hyena-client/internal/config"
	"github.com/kirillkom/hyena-client/internal/observability/logging"
)

const serviceName = "hyena-cli"

// cli carries the lazily built application shared by every subcommand.
type cli struct {
	cfg config.Config
	app *bootstrap.App
	out io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	var (
		baseURL   string
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:           "hyena",
		Short:         "Ask questions over financial reports and manage their ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.APIBaseURL = baseURL
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			c.cfg = cfg
			c.out = cmd.OutOrStdout()
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.app != nil {
				c.app.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "api", "", "backend base URL (overrides API_BASE_URL)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text")

	root.AddCommand(
		newAskCmd(c),
		newUploadCmd(c),
		newDocsCmd(c),
		newPollCmd(c),
		newResumeCmd(c),
		newWatchCmd(c),
		newHealthCmd(c),
		newEventsCmd(c),
		newServeCmd(c),
	)
	return root
}

// application builds the App on first use. CLI logs go to stderr so that
// command output stays clean.
func (c *cli) application(cmd *cobra.Command) (*bootstrap.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	logger := logging.New(os.Stderr, serviceName, c.cfg.LogLevel, c.cfg.LogFormat)
	app, err := bootstrap.New(cmd.Context(), c.cfg, serviceName, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	c.app = app
	return app, nil
}
