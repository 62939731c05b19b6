package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"iter"
	"log/slog"
	"time"

	chatbot "github.com/tejaswanthparasa/chatbot"
	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
	"github.com/tmaxmax/go-sse"
)

// LLM represents a large language model that answers a conversation. It accepts a context and the
// conversation turns, returning an iterator that yields text increments and potential errors.
type LLM interface {
	Chat(ctx context.Context, turns []models.Turn) iter.Seq2[string, error]
}

// ProfileStore provides the named widget configurations the web surface can display.
type ProfileStore interface {
	Profiles(ctx context.Context) ([]string, error)
	Profile(ctx context.Context, name string) (models.WidgetConfig, error)
}

// WidgetSettings selects the widget configuration of the home page: a stored profile, with Override
// merged on top of it.
type WidgetSettings struct {
	Profile  string
	Override models.WidgetConfig
}

// Main handles the web surface of the chat widget. It serves the widget page, accepts submissions into
// the conversation, pushes every transcript mutation to browsers through server-sent events, and relays
// completion requests to the LLM.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	conv     *transcript.Conversation
	llm      LLM
	profiles ProfileStore
	widget   WidgetSettings

	logger *slog.Logger
}

type message struct {
	ID     string
	Role   string
	Status string
	HTML   template.HTML
}

type messageEvent struct {
	Index  int    `json:"index"`
	ID     string `json:"id"`
	Role   string `json:"role"`
	Status string `json:"status"`
	HTML   string `json:"html"`
}

const (
	messagesSSETopic = "messages"
	errLoggerKey     = "error"
)

var messagesSSEType = sse.Type("messages")

// NewMain creates a new Main instance serving conv. It parses the HTML templates from the embedded
// filesystem, configures the SSE server, and subscribes to conv so that each append or content update
// is published to the connected browsers.
func NewMain(
	conv *transcript.Conversation,
	llm LLM,
	profiles ProfileStore,
	widget WidgetSettings,
	logger *slog.Logger,
) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		chatbot.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	if widget.Profile == "" {
		widget.Profile = models.DefaultProfile
	}

	m := Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, messagesSSETopic},
				}, true
			},
		},
		templates: tmpl,
		conv:      conv,
		llm:       llm,
		profiles:  profiles,
		widget:    widget,
		logger:    logger.With(slog.String("module", "handlers")),
	}

	conv.Subscribe(m.publishEvent)

	return m, nil
}

func (m Main) publishEvent(e transcript.Event) {
	msg, err := renderMessage(e.Message)
	if err != nil {
		m.logger.Error("Failed to render message",
			slog.String("messageID", e.Message.ID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	payload, err := json.Marshal(messageEvent{
		Index:  e.Index,
		ID:     msg.ID,
		Role:   msg.Role,
		Status: msg.Status,
		HTML:   string(msg.HTML),
	})
	if err != nil {
		m.logger.Error("Failed to marshal message event", slog.String(errLoggerKey, err.Error()))
		return
	}

	ev := sse.Message{Type: messagesSSEType}
	ev.AppendData(string(payload))
	if err := m.sseSrv.Publish(&ev, messagesSSETopic); err != nil {
		m.logger.Error("Failed to publish message",
			slog.String("messageID", e.Message.ID),
			slog.String(errLoggerKey, err.Error()))
	}
}

func renderMessage(msg models.Message) (message, error) {
	html, err := models.RenderContent(msg.Content)
	if err != nil {
		return message{}, err
	}
	return message{
		ID:     msg.ID,
		Role:   string(msg.Role),
		Status: string(msg.Status),
		// RenderContent omits raw HTML from the markdown source.
		HTML: template.HTML(html),
	}, nil
}

// Shutdown gracefully terminates the Main instance's SSE server. It cancels the streaming answer, if
// any, broadcasts a close message to all connected clients and waits up to 5 seconds for connections to
// terminate. After the timeout, any remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	m.conv.Cancel()

	e := &sse.Message{Type: sse.Type("closeChat")}
	// An SSE event without data is not dispatched by browsers
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
