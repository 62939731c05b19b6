package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
)

type homePageData struct {
	Widget   models.WidgetConfig
	Messages []message
	Busy     bool
}

// HandleHome renders the widget page with the configured profile and the transcript so far.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	widget, err := m.widgetConfig(r, m.widget.Profile)
	if err != nil {
		m.logger.Error("Failed to load widget profile",
			slog.String("profile", m.widget.Profile),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	messages := m.conv.Messages()
	msgs := make([]message, len(messages))
	for i := range messages {
		msgs[i], err = renderMessage(messages[i])
		if err != nil {
			m.logger.Error("Failed to render message",
				slog.String("messageID", messages[i].ID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	data := homePageData{
		Widget:   widget,
		Messages: msgs,
		Busy:     m.conv.State() != transcript.StateIdle,
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleConfig writes the widget configuration of the profile named by the "profile" query parameter,
// or of the configured profile when the parameter is absent, as JSON.
func (m Main) HandleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("profile")
	if name == "" {
		name = m.widget.Profile
	}

	widget, err := m.widgetConfig(r, name)
	if errors.Is(err, models.ErrProfileNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		m.logger.Error("Failed to load widget profile",
			slog.String("profile", name),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, widget)
}

// HandleProfiles writes the names of the stored widget profiles as a JSON array.
func (m Main) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names, err := m.profiles.Profiles(r.Context())
	if err != nil {
		m.logger.Error("Failed to list widget profiles", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, names)
}

func (m Main) widgetConfig(r *http.Request, name string) (models.WidgetConfig, error) {
	widget, err := m.profiles.Profile(r.Context(), name)
	if err != nil {
		return models.WidgetConfig{}, err
	}
	if name == m.widget.Profile {
		widget = widget.Merge(m.widget.Override)
	}
	return widget, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
