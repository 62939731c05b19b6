package transcript

import (
	"errors"
	"log/slog"

	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/stream"
)

// State is the streaming state of a conversation.
type State int32

// reducer is the only code that mutates a Store. It applies deltas to the assistant message of the
// open session and settles that message when the stream ends.
type reducer struct {
	store   *Store
	apology string
	logger  *slog.Logger
}

const (
	// StateIdle means no session is open and a new submission is accepted.
	StateIdle State = iota
	// StateAwaitingFirstDelta means the placeholder assistant message exists but has no content yet.
	StateAwaitingFirstDelta
	// StateStreaming means content is being appended to the assistant message.
	StateStreaming
	// StateSettled means the assistant message reached a terminal status and the session is closing.
	StateSettled
)

// DefaultApology is the text of the message appended after a failed or cancelled answer.
const DefaultApology = "Sorry, I encountered an error. Please try again."

func (r reducer) begin(s *Session, text string) {
	r.store.append(models.NewMessage(models.RoleUser, text, models.StatusComplete))
	s.turns = models.OutboundTurns(r.store.Messages())

	placeholder := models.NewMessage(models.RoleAssistant, "", models.StatusPending)
	s.messageID = placeholder.ID
	s.index = r.store.append(placeholder)
}

// apply folds one delta into the session's message and reports whether it ended the answer.
func (r reducer) apply(s *Session, d stream.Delta) bool {
	switch d.Kind {
	case stream.DeltaEnd:
		r.complete(s)
		return true
	case stream.DeltaContent:
		if s.State() == StateAwaitingFirstDelta {
			s.setState(StateStreaming)
			r.store.setStatus(s.index, models.StatusStreaming)
		}
		if err := r.store.appendContent(s.index, d.Text); err != nil {
			r.logger.Error("Failed to apply delta", slog.String(errLoggerKey, err.Error()))
		}
	}
	return false
}

func (r reducer) complete(s *Session) {
	s.setState(StateSettled)
	r.store.setStatus(s.index, models.StatusComplete)
}

// fail marks the session's message errored, keeping the content received so far, and appends the
// apology as a separate message.
func (r reducer) fail(s *Session, err error) {
	if errors.Is(err, stream.ErrCanceled) {
		r.logger.Info("Stream canceled", slog.String("messageID", s.messageID))
	} else {
		r.logger.Error("Stream failed",
			slog.String("messageID", s.messageID),
			slog.String(errLoggerKey, err.Error()))
	}

	s.setState(StateSettled)
	r.store.setStatus(s.index, models.StatusErrored)

	if r.apology != "" {
		r.store.append(models.NewMessage(models.RoleAssistant, r.apology, models.StatusComplete))
	}
}

func (st State) String() string {
	switch st {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstDelta:
		return "awaiting_first_delta"
	case StateStreaming:
		return "streaming"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}
