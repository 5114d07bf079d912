package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the input folders and process files as they arrive",
	Long: `Watch runs the ingestion continuously: the input folders are swept on
the configured poll interval (INTERCHANGE_POLL_INTERVAL, default 1m) until
the process receives SIGINT or SIGTERM.

Examples:
  interchange watch
  interchange watch --env-file /etc/interchange/.env`,

	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := buildPipeline(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	err = p.Watch(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Shutting down\n")
		return nil
	}
	return err
}
