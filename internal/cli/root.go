// Package cli implements the chatcli terminal client, which streams answers from a completion endpoint
// into the terminal.
package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tejaswanthparasa/chatbot/internal/logging"
	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/stream"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
)

type options struct {
	endpoint string
	timeout  time.Duration
	noColor  bool
	profile  string
	logFile  string
	logLevel string
}

const defaultEndpoint = "http://localhost:8080/api/chat"

// NewRootCmd builds the chatcli command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Chat with a streaming completion endpoint from the terminal",
		Long: `chatcli sends your messages to a completion endpoint and prints the answer as it streams in.

Examples:
  chatcli chat
  chatcli ask "What is your return policy?"
  chatcli --profile support chat

Press Ctrl-C while an answer is streaming to stop it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.endpoint, "endpoint", defaultEndpoint, "Completion endpoint URL")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Give up on an answer after this long (0 waits forever)")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.StringVar(&opts.profile, "profile", "", "Widget profile whose welcome message and suggestions to show")
	flags.StringVar(&opts.logFile, "log-file", "", "Write logs to this file")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newChatCmd(opts))
	rootCmd.AddCommand(newAskCmd(opts))

	return rootCmd
}

// Execute is the entry point called from main.
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *options) conversation() (*transcript.Conversation, error) {
	logger, err := logging.New(logging.Options{Level: o.logLevel, File: o.logFile})
	if err != nil {
		return nil, err
	}

	return transcript.New(
		stream.NewHTTPTransport(o.endpoint, &http.Client{}),
		transcript.WithLogger(logger),
	), nil
}

func (o *options) widget() (models.WidgetConfig, bool, error) {
	if o.profile == "" {
		return models.WidgetConfig{}, false, nil
	}
	if o.profile == models.DefaultProfile {
		return models.DefaultWidgetConfig(), true, nil
	}
	preset, ok := models.PresetWidgetConfigs()[o.profile]
	if !ok {
		return models.WidgetConfig{}, false, fmt.Errorf("%w: %s", models.ErrProfileNotFound, o.profile)
	}
	return models.DefaultWidgetConfig().Merge(preset), true, nil
}

// cancelOnInterrupt makes Ctrl-C cancel the streaming answer. With nothing streaming, it exits.
func cancelOnInterrupt(conv *transcript.Conversation, out io.Writer) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-sigs:
				if !conv.Cancel() {
					fmt.Fprintln(out)
					os.Exit(130)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
