package cli

import (
	"bufio"
	"context"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
)

func newChatCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start a conversational session. Every answer streams in as it is generated and earlier
messages are sent along as context.

Type 'exit' or 'quit' to end the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conv, err := opts.conversation()
			if err != nil {
				return err
			}
			widget, ok, err := opts.widget()
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
			conv.Subscribe(p.handle)
			if ok {
				p.header(widget)
			}

			stop := cancelOnInterrupt(conv, cmd.OutOrStdout())
			defer stop()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				p.prompt()
				if !scanner.Scan() {
					break
				}

				input := strings.TrimSpace(scanner.Text())
				if input == "" {
					continue
				}
				if input == "exit" || input == "quit" {
					break
				}

				p.report(opts.submit(cmd.Context(), conv, input))
			}

			return scanner.Err()
		},
	}
}

func (o *options) submit(ctx context.Context, conv *transcript.Conversation, text string) error {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return conv.Submit(ctx, text)
}
