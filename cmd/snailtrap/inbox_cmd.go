package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	snailtrap "github.com/snailtrap/client-go"
)

func newInboxCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Create and delete disposable inboxes",
	}
	cmd.AddCommand(newInboxCreateCmd(root))
	cmd.AddCommand(newInboxDeleteCmd(root))
	return cmd
}

func newInboxCreateCmd(root *rootOptions) *cobra.Command {
	var (
		ttl     time.Duration
		address string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an inbox and print its exported form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(root)
			if err != nil {
				return err
			}
			defer client.Close()

			var inboxOpts []snailtrap.InboxOption
			if ttl > 0 {
				inboxOpts = append(inboxOpts, snailtrap.WithTTL(ttl))
			}
			if address != "" {
				inboxOpts = append(inboxOpts, snailtrap.WithAddress(address))
			}

			inbox, err := client.CreateInbox(cmd.Context(), inboxOpts...)
			if err != nil {
				return fmt.Errorf("create inbox: %w", err)
			}

			if out != "" {
				if err := client.ExportInboxToFile(inbox, out); err != nil {
					return err
				}
				fmt.Println(inbox.Address())
				return nil
			}
			return writeJSON(os.Stdout, inbox.Export())
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Inbox lifetime (server default when unset)")
	cmd.Flags().StringVar(&address, "address", "", "Requested address (server assigns one when unset)")
	cmd.Flags().StringVar(&out, "out", "", "Write the exported inbox to this file instead of stdout")
	return cmd
}

func newInboxDeleteCmd(root *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "delete [address]",
		Short: "Delete an inbox, or every inbox the key owns with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return errors.New("--all does not take an address")
			}
			if !all && len(args) == 0 {
				return errors.New("address required unless --all is set")
			}

			client, err := newClient(root)
			if err != nil {
				return err
			}
			defer client.Close()

			if all {
				n, err := client.DeleteAllInboxes(cmd.Context())
				if err != nil {
					return fmt.Errorf("delete all inboxes: %w", err)
				}
				fmt.Printf("deleted %d inboxes\n", n)
				return nil
			}

			if err := client.DeleteInbox(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete inbox %s: %w", args[0], err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Delete every inbox the key owns")
	return cmd
}
