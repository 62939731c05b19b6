package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tmaxmax/go-sse"
)

type completionRequest struct {
	Messages json.RawMessage `json:"messages"`
}

type completionTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const doneData = "[DONE]"

// HandleCompletion relays a completion request to the LLM and streams the answer back as server-sent
// events. Each text increment is written as a "data:" frame holding a chat.completion.chunk envelope,
// and the stream ends with "data: [DONE]".
//
// The request body must be a JSON object whose optional "messages" field is an array of role and content
// pairs. Turns with blank content are dropped, and every role other than "assistant" is sent as "user".
// A malformed body is rejected with 400. An LLM failure before the first increment is answered with 500;
// after it, the connection is aborted so the client sees a truncated stream.
func (m Main) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	turns, err := decodeCompletionRequest(r)
	if err != nil {
		m.logger.Error("Invalid completion request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess, err := sse.Upgrade(w, r)
	if err != nil {
		m.logger.Error("Failed to upgrade completion request", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	started := false
	send := func(data string) error {
		if !started {
			sess.Res.Header().Set("Cache-Control", "no-cache")
			started = true
		}
		e := &sse.Message{}
		e.AppendData(data)
		if err := sess.Send(e); err != nil {
			return err
		}
		return sess.Flush()
	}

	for text, err := range m.llm.Chat(r.Context(), turns) {
		if err != nil {
			m.logger.Error("Error from llm provider", slog.String(errLoggerKey, err.Error()))
			if !started {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			panic(http.ErrAbortHandler)
		}
		if text == "" {
			continue
		}

		frame, err := completionFrame(text)
		if err != nil {
			m.logger.Error("Failed to marshal completion chunk", slog.String(errLoggerKey, err.Error()))
			panic(http.ErrAbortHandler)
		}
		if err := send(string(frame)); err != nil {
			m.logger.Debug("Client went away", slog.String(errLoggerKey, err.Error()))
			return
		}
	}

	if err := send(doneData); err != nil {
		m.logger.Debug("Client went away", slog.String(errLoggerKey, err.Error()))
	}
}

func decodeCompletionRequest(r *http.Request) ([]models.Turn, error) {
	var req completionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}

	var in []completionTurn
	if len(req.Messages) > 0 && string(req.Messages) != "null" {
		if err := json.Unmarshal(req.Messages, &in); err != nil {
			return nil, errors.New("messages must be an array of role and content pairs")
		}
	}

	turns := make([]models.Turn, 0, len(in))
	for _, t := range in {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		role := models.RoleUser
		if t.Role == string(models.RoleAssistant) {
			role = models.RoleAssistant
		}
		turns = append(turns, models.Turn{Role: role, Content: t.Content})
	}
	return turns, nil
}

func completionFrame(text string) ([]byte, error) {
	return json.Marshal(openai.ChatCompletionStreamResponse{
		Object: "chat.completion.chunk",
		Choices: []openai.ChatCompletionStreamChoice{
			{
				Delta: openai.ChatCompletionStreamChoiceDelta{
					Role:    openai.ChatMessageRoleAssistant,
					Content: text,
				},
			},
		},
	})
}
