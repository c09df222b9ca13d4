package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snailtrap/client-go/linkscan"
)

type linksOptions struct {
	inboxPath string
	messageID string
	keywords  []string
	output    string
}

func newLinksCmd(root *rootOptions) *cobra.Command {
	var opts linksOptions

	cmd := &cobra.Command{
		Use:   "links",
		Short: "Print the links in a message, action links first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "json" && opts.output != "text" {
				return fmt.Errorf("invalid --output %q: want json or text", opts.output)
			}

			client, err := newClient(root)
			if err != nil {
				return err
			}
			defer client.Close()

			inbox, err := client.ImportInboxFromFile(cmd.Context(), opts.inboxPath)
			if err != nil {
				return err
			}

			id := opts.messageID
			if id == "" {
				stubs, err := inbox.ListMessages(cmd.Context())
				if err != nil {
					return fmt.Errorf("list messages: %w", err)
				}
				if len(stubs) == 0 {
					return errors.New("inbox is empty")
				}
				id = stubs[len(stubs)-1].ID
			}

			msg, err := inbox.GetMessage(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get message %s: %w", id, err)
			}

			var scanOpts []linkscan.Option
			if len(opts.keywords) > 0 {
				scanOpts = append(scanOpts, linkscan.WithKeywords(opts.keywords...))
			}
			links := msg.Links(scanOpts...)
			if len(links) == 0 {
				return fmt.Errorf("no ranked links in message %s", id)
			}

			if opts.output == "json" {
				return writeJSON(os.Stdout, links)
			}
			for _, l := range links {
				if l.MatchedKeyword != "" {
					fmt.Printf("%s\t[%s]\n", l.URL, l.MatchedKeyword)
				} else {
					fmt.Println(l.URL)
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.inboxPath, "inbox", "", "Path to an exported inbox file (required)")
	flags.StringVar(&opts.messageID, "message", "", "Message ID (newest message when unset)")
	flags.StringSliceVar(&opts.keywords, "keyword", nil, "Action keywords for link ranking (overrides the default set)")
	flags.StringVar(&opts.output, "output", "text", "Output format: json or text")
	_ = cmd.MarkFlagRequired("inbox")
	return cmd
}
