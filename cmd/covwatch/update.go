package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/inodb/covwatch/internal/update"
)

func newCheckUpdatesCmd(a *app) *cobra.Command {
	var (
		command string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check-updates",
		Short: "Check pangolin and pangoLEARN for newer releases",
		Long: `Compare the installed pangolin and pangoLEARN versions with their latest
GitHub releases and print an upgrade command when a newer one exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			c := update.NewChecker()
			c.Command = command
			c.SetLogger(a.logger)

			statuses, err := c.Check(ctx, update.Components)
			if err != nil {
				return err
			}
			return update.WriteReport(cmd.OutOrStdout(), statuses)
		},
	}

	f := cmd.Flags()
	f.StringVar(&command, "pangolin", "pangolin", "pangolin executable")
	f.DurationVar(&timeout, "timeout", time.Minute, "Overall time limit")

	return cmd
}
