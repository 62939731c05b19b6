package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tejaswanthparasa/chatbot/internal/stream"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
)

// HandleChats accepts a user message through the "message" form field and starts streaming the answer.
// The user message and the empty assistant placeholder are rendered in the response, while the answer
// itself reaches the browser through the messages SSE topic.
//
// A blank message is rejected with 400, and a submission while another answer is still streaming is
// rejected with 409.
func (m Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// The session outlives this request, so it is not bound to the request context.
	s, err := m.conv.Begin(context.Background(), r.FormValue("message"))
	if errors.Is(err, transcript.ErrEmptyInput) {
		m.logger.Error("Message is required")
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}
	if errors.Is(err, transcript.ErrSessionOpen) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		m.logger.Error("Failed to begin session", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	go m.chat(s)

	// The session may already have appended more messages, so the pair is located by ID.
	messages := m.conv.Messages()
	aiIdx := -1
	for i := range messages {
		if messages[i].ID == s.MessageID() {
			aiIdx = i
			break
		}
	}
	if aiIdx < 1 {
		http.Error(w, "Message not found", http.StatusInternalServerError)
		return
	}

	for _, msg := range messages[aiIdx-1 : aiIdx+1] {
		rm, err := renderMessage(msg)
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.String("messageID", msg.ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := m.templates.ExecuteTemplate(w, "message", rm); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
}

// HandleCancel cancels the answer that is currently streaming. It responds with 204 when an answer was
// cancelled and 409 when there was nothing to cancel.
func (m Main) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !m.conv.Cancel() {
		http.Error(w, "No response is streaming", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSSE serves Server-Sent Events (SSE) for the transcript. Every append and content update is
// published as a "messages" event carrying the message ID, role, status and rendered HTML.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) chat(s *transcript.Session) {
	err := s.Run()
	switch {
	case err == nil:
		m.logger.Debug("Answer completed", slog.String("messageID", s.MessageID()))
	case errors.Is(err, stream.ErrCanceled):
		m.logger.Info("Answer canceled", slog.String("messageID", s.MessageID()))
	default:
		m.logger.Error("Answer failed",
			slog.String("messageID", s.MessageID()),
			slog.String(errLoggerKey, err.Error()))
	}
}
