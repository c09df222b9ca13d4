package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		inboxPath string
		out       string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export an inbox's messages as an mbox archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(root)
			if err != nil {
				return err
			}
			defer client.Close()

			inbox, err := client.ImportInboxFromFile(cmd.Context(), inboxPath)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				if err := inbox.ExportMbox(cmd.Context(), os.Stdout); err != nil {
					return fmt.Errorf("export mbox: %w", err)
				}
				return nil
			}
			if err := inbox.ExportMboxToFile(cmd.Context(), out); err != nil {
				return fmt.Errorf("export mbox: %w", err)
			}
			slog.Info("exported inbox", "address", inbox.Address(), "path", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&inboxPath, "inbox", "", "Path to an exported inbox file (required)")
	cmd.Flags().StringVar(&out, "out", "", "Destination mbox file (stdout when unset)")
	_ = cmd.MarkFlagRequired("inbox")
	return cmd
}
