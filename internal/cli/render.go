package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/stream"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
)

// printer writes transcript events to the terminal. It shows a spinner until the first delta of an
// answer arrives and then prints each delta as it is appended.
type printer struct {
	out  io.Writer
	spin *spinner.Spinner

	bot  *color.Color
	user *color.Color
	fail *color.Color
	dim  *color.Color

	answer  int
	printed int
	failed  bool
}

func newPrinter(out, errOut io.Writer) *printer {
	s := spinner.New(spinner.CharSets[14], 80*time.Millisecond, spinner.WithWriter(errOut))
	s.Suffix = "  Thinking..."
	_ = s.Color("cyan")

	return &printer{
		out:    out,
		spin:   s,
		bot:    color.New(color.FgCyan, color.Bold),
		user:   color.New(color.FgGreen),
		fail:   color.New(color.FgRed),
		dim:    color.New(color.FgHiBlack),
		answer: -1,
	}
}

func (p *printer) header(widget models.WidgetConfig) {
	fmt.Fprintln(p.out)
	p.bot.Fprintf(p.out, "  %s\n", widget.AgentName)
	if greeting := widget.Greeting(); greeting != "" {
		fmt.Fprintf(p.out, "  %s\n", greeting)
	}
	if len(widget.SuggestedQuestions) > 0 {
		p.dim.Fprintln(p.out, "  Try asking:")
		for _, q := range widget.SuggestedQuestions {
			p.dim.Fprintf(p.out, "    • %s\n", q)
		}
	}
	fmt.Fprintln(p.out)
}

func (p *printer) prompt() {
	p.user.Fprint(p.out, "  you → ")
}

func (p *printer) handle(e transcript.Event) {
	msg := e.Message
	if msg.Role != models.RoleAssistant {
		return
	}

	switch {
	case e.Kind == transcript.EventAppend && msg.Status == models.StatusPending:
		p.answer = e.Index
		p.printed = 0
		p.failed = false
		p.bot.Fprint(p.out, "  bot → ")
		p.spin.Start()

	case e.Kind == transcript.EventAppend:
		// A complete assistant message appended after a failed answer is the apology.
		if p.failed {
			p.fail.Fprintf(p.out, "  %s\n", msg.Content)
		} else {
			p.bot.Fprintf(p.out, "  %s\n", msg.Content)
		}

	case e.Index == p.answer:
		p.spin.Stop()
		if len(msg.Content) > p.printed {
			fmt.Fprint(p.out, msg.Content[p.printed:])
			p.printed = len(msg.Content)
		}
		switch msg.Status {
		case models.StatusComplete:
			fmt.Fprint(p.out, "\n\n")
		case models.StatusErrored:
			p.failed = true
			p.fail.Fprintln(p.out, " ✗")
		}
	}
}

// report prints the error a session settled with.
func (p *printer) report(err error) {
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		p.fail.Fprintf(p.out, "  ✗ timed out\n\n")
	case errors.Is(err, stream.ErrCanceled):
		p.dim.Fprintf(p.out, "  stopped\n\n")
	default:
		p.fail.Fprintf(p.out, "  ✗ %v\n\n", err)
	}
}
