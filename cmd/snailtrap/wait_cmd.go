package main

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	snailtrap "github.com/snailtrap/client-go"
)

type waitOptions struct {
	inboxPath    string
	subject      string
	subjectRegex string
	timeout      time.Duration
	interval     time.Duration
	keywords     []string
	output       string
}

// waitOutput is the JSON shape of a finished wait.
type waitOutput struct {
	Outcome   string `json:"outcome"`
	MessageID string `json:"messageId,omitempty"`
	Subject   string `json:"subject,omitempty"`
	From      string `json:"from,omitempty"`
	Link      string `json:"link,omitempty"`
	Keyword   string `json:"matchedKeyword,omitempty"`
	Attempts  int    `json:"attempts"`
	Elapsed   string `json:"elapsed"`
	Error     string `json:"error,omitempty"`
}

func newWaitCmd(root *rootOptions) *cobra.Command {
	var opts waitOptions

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for a matching message and print its action link",
		Long: `Wait polls an inbox until a message matching the given criteria
arrives, then prints the message and its top-ranked action link. The
process exits non-zero when the wait times out or aborts, so the
command can gate a CI step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.output != "json" && opts.output != "text" {
				return fmt.Errorf("invalid --output %q: want json or text", opts.output)
			}

			var subjectRe *regexp.Regexp
			if opts.subjectRegex != "" {
				re, err := regexp.Compile(opts.subjectRegex)
				if err != nil {
					return fmt.Errorf("invalid --subject-regex: %w", err)
				}
				subjectRe = re
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

			result, err := inbox.WaitForMessage(cmd.Context(), snailtrap.VerificationRequest{
				Subject:       opts.subject,
				SubjectRegexp: subjectRe,
				Timeout:       opts.timeout,
				PollInterval:  opts.interval,
				Keywords:      opts.keywords,
			})
			if err != nil {
				return fmt.Errorf("wait for message: %w", err)
			}
			return printWaitResult(result, opts.output)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.inboxPath, "inbox", "", "Path to an exported inbox file (required)")
	flags.StringVar(&opts.subject, "subject", "", "Match the subject exactly")
	flags.StringVar(&opts.subjectRegex, "subject-regex", "", "Match the subject by regular expression")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Overall wait budget (default 60s)")
	flags.DurationVar(&opts.interval, "interval", 0, "Pause between polls (default 2s)")
	flags.StringSliceVar(&opts.keywords, "keyword", nil, "Action keywords for link ranking (overrides the default set)")
	flags.StringVar(&opts.output, "output", "text", "Output format: json or text")
	_ = cmd.MarkFlagRequired("inbox")
	return cmd
}

func printWaitResult(result *snailtrap.VerificationResult, format string) error {
	out := waitOutput{
		Outcome:  string(result.Outcome),
		Attempts: result.AttemptsMade,
		Elapsed:  result.Elapsed.Round(time.Millisecond).String(),
	}
	if result.Message != nil {
		out.MessageID = result.Message.ID
		out.Subject = result.Message.Subject
		out.From = result.Message.From
	}
	if result.Link != nil {
		out.Link = result.Link.URL
		out.Keyword = result.Link.MatchedKeyword
	}
	if result.Err != nil {
		out.Error = result.Err.Error()
	}

	if format == "json" {
		if err := writeJSON(os.Stdout, out); err != nil {
			return err
		}
	} else {
		printWaitText(out)
	}

	switch result.Outcome {
	case snailtrap.OutcomeTimedOut:
		return fmt.Errorf("no matching message after %d polls (%s)", result.AttemptsMade, out.Elapsed)
	case snailtrap.OutcomeAborted:
		return fmt.Errorf("wait aborted: %w", result.Err)
	}
	return nil
}

func printWaitText(out waitOutput) {
	switch out.Outcome {
	case string(snailtrap.OutcomeFound):
		fmt.Printf("found %q from %s after %d polls (%s)\n", out.Subject, out.From, out.Attempts, out.Elapsed)
		if out.Link != "" {
			fmt.Printf("link: %s\n", out.Link)
		} else {
			fmt.Println("link: none ranked")
		}
	default:
		fmt.Printf("%s after %d polls (%s)\n", out.Outcome, out.Attempts, out.Elapsed)
	}
}
