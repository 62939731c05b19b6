package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := opts.conversation()
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
			conv.Subscribe(p.handle)

			stop := cancelOnInterrupt(conv, cmd.OutOrStdout())
			defer stop()

			return opts.submit(cmd.Context(), conv, strings.Join(args, " "))
		},
	}
}
