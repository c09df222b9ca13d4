package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "snailtrap",
		Short:         "Drive Snailtrap disposable inboxes from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(setupLogger(opts.logLevel))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.apiKey, "api-key", "", "API key (overrides SNAILTRAP_API_KEY)")
	pf.StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides SNAILTRAP_BASE_URL)")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Logging level: debug, info, warn, error")

	cmd.AddCommand(newInboxCmd(opts))
	cmd.AddCommand(newWaitCmd(opts))
	cmd.AddCommand(newLinksCmd(opts))
	cmd.AddCommand(newExportCmd(opts))
	return cmd
}

// setupLogger builds the process logger. Logs go to stderr so stdout
// stays clean for command output.
func setupLogger(logLevel string) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)

	switch logLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}
