package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/tejaswanthparasa/chatbot/internal/handlers"
	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/stream"
	"github.com/tejaswanthparasa/chatbot/internal/transcript"
	"github.com/tmaxmax/go-sse"
)

type mockLLM struct {
	responses []string
	err       error
	// errAfterResponses yields err once every response was yielded.
	errAfterResponses bool

	mu    sync.Mutex
	turns []models.Turn
}

type mockProfiles struct {
	profiles map[string]models.WidgetConfig
	err      error
}

// mockTransport answers every request with chunks, or blocks until the request is cancelled when block
// is set.
type mockTransport struct {
	chunks []string
	block  bool
}

type mockReader struct {
	ctx    context.Context
	chunks []string
	block  bool
}

func TestNewMain(t *testing.T) {
	main, err := handlers.NewMain(transcript.New(&mockTransport{}), &mockLLM{}, newMockProfiles(),
		handlers.WidgetSettings{}, discardLogger())
	if err != nil {
		t.Fatalf("NewMain() error = %v", err)
	}

	if main.Shutdown(context.Background()) != nil {
		t.Error("Shutdown() should not return error")
	}
}

func TestHandleHome(t *testing.T) {
	widget := models.DefaultWidgetConfig()
	conv := transcript.New(&mockTransport{}, transcript.WithGreeting(widget.Greeting()))

	main, err := handlers.NewMain(conv, &mockLLM{}, newMockProfiles(), handlers.WidgetSettings{
		Override: models.WidgetConfig{AgentName: "Acme Bot"},
	}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "Home page",
			url:        "/",
			wantStatus: http.StatusOK,
			wantBody:   []string{"Acme Bot", "Hi! I am Chatclone AI", "What is Chatbase?", "Powered by chatclone"},
		},
		{
			name:       "Unknown path",
			url:        "/unknown",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			w := httptest.NewRecorder()

			main.HandleHome(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleHome() status = %v, want %v", w.Code, tt.wantStatus)
			}

			for _, want := range tt.wantBody {
				if !strings.Contains(w.Body.String(), want) {
					t.Errorf("HandleHome() body = %v, want to contain %v", w.Body.String(), want)
				}
			}
		})
	}
}

func TestHandleConfig(t *testing.T) {
	main, err := handlers.NewMain(transcript.New(&mockTransport{}), &mockLLM{}, newMockProfiles(),
		handlers.WidgetSettings{
			Profile:  "support",
			Override: models.WidgetConfig{WatermarkText: "Acme Support"},
		}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		method     string
		url        string
		wantStatus int
		wantBody   []string
	}{
		{
			name:       "Configured profile with override",
			method:     http.MethodGet,
			url:        "/config",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"agentName":"Support Agent"`, `"watermarkText":"Acme Support"`},
		},
		{
			name:       "Other profile without override",
			method:     http.MethodGet,
			url:        "/config?profile=business",
			wantStatus: http.StatusOK,
			wantBody:   []string{`"agentName":"Business Assistant"`, `"watermarkText":"Powered by Your Business"`},
		},
		{
			name:       "Unknown profile",
			method:     http.MethodGet,
			url:        "/config?profile=missing",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Invalid method",
			method:     http.MethodPost,
			url:        "/config",
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, nil)
			w := httptest.NewRecorder()

			main.HandleConfig(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleConfig() status = %v, want %v", w.Code, tt.wantStatus)
			}

			for _, want := range tt.wantBody {
				if !strings.Contains(w.Body.String(), want) {
					t.Errorf("HandleConfig() body = %v, want to contain %v", w.Body.String(), want)
				}
			}
		})
	}
}

func TestHandleProfiles(t *testing.T) {
	main, err := handlers.NewMain(transcript.New(&mockTransport{}), &mockLLM{}, newMockProfiles(),
		handlers.WidgetSettings{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/config/profiles", nil)
	w := httptest.NewRecorder()

	main.HandleProfiles(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("HandleProfiles() status = %v, want %v", w.Code, http.StatusOK)
	}
	want := `["business","default","ecommerce","support"]`
	if got := strings.TrimSpace(w.Body.String()); got != want {
		t.Errorf("HandleProfiles() body = %v, want %v", got, want)
	}

	failing, err := handlers.NewMain(transcript.New(&mockTransport{}), &mockLLM{},
		&mockProfiles{err: errors.New("disk on fire")}, handlers.WidgetSettings{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	failing.HandleProfiles(w, httptest.NewRequest(http.MethodGet, "/config/profiles", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("HandleProfiles() status = %v, want %v", w.Code, http.StatusInternalServerError)
	}
}

func TestHandleChats(t *testing.T) {
	conv := transcript.New(&mockTransport{chunks: []string{"0:AI response\n"}})
	main, err := handlers.NewMain(conv, &mockLLM{}, newMockProfiles(), handlers.WidgetSettings{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		method     string
		message    string
		wantStatus int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Empty message",
			method:     http.MethodPost,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Blank message",
			method:     http.MethodPost,
			message:    "+++",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Message",
			method:     http.MethodPost,
			message:    "Hello",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := strings.NewReader("message=" + tt.message)
			req := httptest.NewRequest(tt.method, "/chats", form)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			main.HandleChats(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleChats() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}

			body := w.Body.String()
			for _, want := range []string{"message-user", "Hello", "message-assistant"} {
				if !strings.Contains(body, want) {
					t.Errorf("HandleChats() body = %v, want to contain %v", body, want)
				}
			}
		})
	}

	waitIdle(t, conv)

	messages := conv.Messages()
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[1].Content != "AI response" || messages[1].Status != models.StatusComplete {
		t.Errorf("answer = %q (%s), want %q (complete)", messages[1].Content, messages[1].Status, "AI response")
	}
}

func TestHandleChatsBusyAndCancel(t *testing.T) {
	conv := transcript.New(&mockTransport{block: true}, transcript.WithApology(""))
	main, err := handlers.NewMain(conv, &mockLLM{}, newMockProfiles(), handlers.WidgetSettings{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	post := func(handler http.HandlerFunc, url, body string) int {
		req := httptest.NewRequest(http.MethodPost, url, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		handler(w, req)
		return w.Code
	}

	if code := post(main.HandleCancel, "/chats/cancel", ""); code != http.StatusConflict {
		t.Errorf("HandleCancel() without session status = %v, want %v", code, http.StatusConflict)
	}
	if code := post(main.HandleChats, "/chats", "message=first"); code != http.StatusOK {
		t.Fatalf("HandleChats() status = %v, want %v", code, http.StatusOK)
	}
	if code := post(main.HandleChats, "/chats", "message=second"); code != http.StatusConflict {
		t.Errorf("HandleChats() while streaming status = %v, want %v", code, http.StatusConflict)
	}
	if code := post(main.HandleCancel, "/chats/cancel", ""); code != http.StatusNoContent {
		t.Errorf("HandleCancel() status = %v, want %v", code, http.StatusNoContent)
	}

	waitIdle(t, conv)

	messages := conv.Messages()
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Content != "first" {
		t.Errorf("user message = %q, want %q", messages[0].Content, "first")
	}
	if messages[1].Status != models.StatusErrored {
		t.Errorf("answer status = %s, want %s", messages[1].Status, models.StatusErrored)
	}
}

func TestHandleCompletion(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		llm        *mockLLM
		wantStatus int
		wantBody   []string
		wantTurns  []models.Turn
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			llm:        &mockLLM{},
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Malformed body",
			method:     http.MethodPost,
			body:       `{"messages":`,
			llm:        &mockLLM{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Messages not an array",
			method:     http.MethodPost,
			body:       `{"messages":"hello"}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "Streams answer",
			method: http.MethodPost,
			body: `{"messages":[{"role":"user","content":"hi"},{"role":"assistant","content":"  "},` +
				`{"role":"system","content":"be brief"},{"role":"assistant","content":"ok"}]}`,
			llm:        &mockLLM{responses: []string{"Hello", "", " world"}},
			wantStatus: http.StatusOK,
			wantBody:   []string{`"content":"Hello"`, `"content":" world"`, "data: [DONE]\n\n"},
			wantTurns: []models.Turn{
				{Role: models.RoleUser, Content: "hi"},
				{Role: models.RoleUser, Content: "be brief"},
				{Role: models.RoleAssistant, Content: "ok"},
			},
		},
		{
			name:       "Missing messages",
			method:     http.MethodPost,
			body:       `{}`,
			llm:        &mockLLM{},
			wantStatus: http.StatusOK,
			wantBody:   []string{"data: [DONE]\n\n"},
			wantTurns:  []models.Turn{},
		},
		{
			name:       "LLM error before first chunk",
			method:     http.MethodPost,
			body:       `{"messages":[{"role":"user","content":"hi"}]}`,
			llm:        &mockLLM{err: errors.New("model not found")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main, err := handlers.NewMain(transcript.New(&mockTransport{}), tt.llm, newMockProfiles(),
				handlers.WidgetSettings{}, discardLogger())
			if err != nil {
				t.Fatal(err)
			}

			req := httptest.NewRequest(tt.method, "/api/chat", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			main.HandleCompletion(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleCompletion() status = %v, want %v", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
					t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
				}
				if strings.Count(w.Body.String(), "data: ") != len(tt.wantBody) {
					t.Errorf("HandleCompletion() body = %v, want %d frames", w.Body.String(), len(tt.wantBody))
				}
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(w.Body.String(), want) {
					t.Errorf("HandleCompletion() body = %v, want to contain %q", w.Body.String(), want)
				}
			}
			if tt.wantTurns != nil && fmt.Sprint(tt.llm.received()) != fmt.Sprint(tt.wantTurns) {
				t.Errorf("turns = %v, want %v", tt.llm.received(), tt.wantTurns)
			}
		})
	}
}

func TestHandleCompletionEventStream(t *testing.T) {
	main, err := handlers.NewMain(transcript.New(&mockTransport{}), &mockLLM{responses: []string{"Hi", " there"}},
		newMockProfiles(), handlers.WidgetSettings{}, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"messages":[{"role":"user","content":"hi"}]}`))
	w := httptest.NewRecorder()

	main.HandleCompletion(w, req)

	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want %q", cc, "no-cache")
	}

	var data []string
	for ev, err := range sse.Read(w.Body, nil) {
		if err != nil {
			t.Fatalf("failed to read event stream: %v", err)
		}
		data = append(data, ev.Data)
	}
	if len(data) != 3 || data[2] != "[DONE]" {
		t.Fatalf("events = %q, want two chunks and [DONE]", data)
	}

	var got []string
	for _, d := range data[:2] {
		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(d), &chunk); err != nil {
			t.Fatalf("failed to decode chunk %q: %v", d, err)
		}
		if chunk.Object != "chat.completion.chunk" || len(chunk.Choices) != 1 {
			t.Fatalf("chunk = %+v, want one chat.completion.chunk choice", chunk)
		}
		got = append(got, chunk.Choices[0].Delta.Content)
	}
	if !slices.Equal(got, []string{"Hi", " there"}) {
		t.Errorf("deltas = %q, want %q", got, []string{"Hi", " there"})
	}
}

func TestCompletionRelayFeedsConversation(t *testing.T) {
	tests := []struct {
		name        string
		llm         *mockLLM
		wantContent string
		wantStatus  models.Status
		wantErr     bool
	}{
		{
			name:        "Complete answer",
			llm:         &mockLLM{responses: []string{"Hello", " ", "wörld 🎉"}},
			wantContent: "Hello wörld 🎉",
			wantStatus:  models.StatusComplete,
		},
		{
			name:        "Failure after first chunk",
			llm:         &mockLLM{responses: []string{"partial "}, err: errors.New("backend crashed"), errAfterResponses: true},
			wantContent: "partial ",
			wantStatus:  models.StatusErrored,
			wantErr:     true,
		},
		{
			name:       "Failure before first chunk",
			llm:        &mockLLM{err: errors.New("backend down")},
			wantStatus: models.StatusErrored,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			main, err := handlers.NewMain(transcript.New(&mockTransport{}), tt.llm, newMockProfiles(),
				handlers.WidgetSettings{}, discardLogger())
			if err != nil {
				t.Fatal(err)
			}

			srv := httptest.NewServer(http.HandlerFunc(main.HandleCompletion))
			defer srv.Close()

			conv := transcript.New(stream.NewHTTPTransport(srv.URL, srv.Client()), transcript.WithApology(""))
			err = conv.Submit(context.Background(), "hi")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Submit() error = %v, wantErr %v", err, tt.wantErr)
			}

			messages := conv.Messages()
			if len(messages) != 2 {
				t.Fatalf("got %d messages, want 2", len(messages))
			}
			if messages[1].Content != tt.wantContent {
				t.Errorf("answer = %q, want %q", messages[1].Content, tt.wantContent)
			}
			if messages[1].Status != tt.wantStatus {
				t.Errorf("answer status = %s, want %s", messages[1].Status, tt.wantStatus)
			}
			if want := []models.Turn{{Role: models.RoleUser, Content: "hi"}}; !slices.Equal(tt.llm.received(), want) {
				t.Errorf("turns = %v, want %v", tt.llm.received(), want)
			}
		})
	}
}

func newMockProfiles() *mockProfiles {
	profiles := map[string]models.WidgetConfig{
		models.DefaultProfile: models.DefaultWidgetConfig(),
	}
	for name, preset := range models.PresetWidgetConfigs() {
		profiles[name] = models.DefaultWidgetConfig().Merge(preset)
	}
	return &mockProfiles{profiles: profiles}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitIdle(t *testing.T, conv *transcript.Conversation) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for conv.State() != transcript.StateIdle {
		if time.Now().After(deadline) {
			t.Fatal("conversation did not settle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (m *mockLLM) Chat(_ context.Context, turns []models.Turn) iter.Seq2[string, error] {
	m.mu.Lock()
	m.turns = turns
	m.mu.Unlock()
	return func(yield func(string, error) bool) {
		if m.err != nil && !m.errAfterResponses {
			yield("", m.err)
			return
		}
		for _, resp := range m.responses {
			if !yield(resp, nil) {
				return
			}
		}
		if m.err != nil {
			yield("", m.err)
		}
	}
}

func (m *mockLLM) received() []models.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns
}

func (m *mockProfiles) Profiles(_ context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	names := make([]string, 0, len(m.profiles))
	for name := range m.profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

func (m *mockProfiles) Profile(_ context.Context, name string) (models.WidgetConfig, error) {
	if m.err != nil {
		return models.WidgetConfig{}, m.err
	}
	cfg, ok := m.profiles[name]
	if !ok {
		return models.WidgetConfig{}, fmt.Errorf("%w: %s", models.ErrProfileNotFound, name)
	}
	return cfg, nil
}

func (m *mockTransport) Open(ctx context.Context, _ models.ChatRequest) (stream.ChunkReader, error) {
	return &mockReader{ctx: ctx, chunks: m.chunks, block: m.block}, nil
}

func (r *mockReader) Read() ([]byte, error) {
	if r.block {
		<-r.ctx.Done()
		return nil, fmt.Errorf("%w: %w", stream.ErrCanceled, r.ctx.Err())
	}
	if len(r.chunks) == 0 {
		return nil, io.EOF
	}
	chunk := r.chunks[0]
	r.chunks = r.chunks[1:]
	return []byte(chunk), nil
}

func (r *mockReader) Close() error {
	return nil
}
