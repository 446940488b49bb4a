package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/invoicedesk/invoicedesk/internal/app"
)

var version = "dev"

// env is populated by the root command before any subcommand runs.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	rt := &env{}
	var envFile string

	root := &cobra.Command{
		Use:           "invoicedesk",
		Short:         "InvoiceDesk invoicing server and worker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			rt.cfg = cfg
			rt.logger = app.NewLogger(cfg)
			slog.SetDefault(rt.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before configuration")

	root.AddCommand(
		newServeCommand(rt),
		newWorkerCommand(rt),
		newMigrateCommand(rt),
		newJobsCommand(rt),
	)
	return root
}
