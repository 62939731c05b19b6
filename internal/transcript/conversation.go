package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tejaswanthparasa/chatbot/internal/models"
	"github.com/tejaswanthparasa/chatbot/internal/stream"
)

// Conversation ties a Store to a Transport. It accepts one submission at a time: each submission opens
// a Session that streams the answer into a new assistant message.
type Conversation struct {
	store     *Store
	transport stream.Transport
	reducer   reducer
	logger    *slog.Logger

	mu      sync.Mutex
	session *Session
	state   atomic.Int32
}

// Session is the transient state of one outstanding request: its cancellation handle, the outbound
// turns and the index of the one message it may mutate.
type Session struct {
	conv   *Conversation
	ctx    context.Context
	cancel context.CancelFunc

	turns     []models.Turn
	index     int
	messageID string

	once sync.Once
	done chan struct{}
	err  error
}

// Option configures a Conversation.
type Option func(*Conversation)

var (
	// ErrSessionOpen is returned by Begin while another answer is still streaming.
	ErrSessionOpen = errors.New("a response is already streaming")
	// ErrEmptyInput is returned by Begin for blank input.
	ErrEmptyInput = errors.New("message is empty")
)

const errLoggerKey = "error"

// WithApology sets the text of the message appended after a failed or cancelled answer. An empty text
// disables the extra message. The default is DefaultApology.
func WithApology(text string) Option {
	return func(c *Conversation) {
		c.reducer.apology = text
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) {
		c.logger = logger
	}
}

// WithGreeting appends a complete assistant message before the first turn, such as a widget's welcome
// text.
func WithGreeting(text string) Option {
	return func(c *Conversation) {
		if text != "" {
			c.store.append(models.NewMessage(models.RoleAssistant, text, models.StatusComplete))
		}
	}
}

// New creates a conversation that sends its turns through transport.
func New(transport stream.Transport, opts ...Option) *Conversation {
	c := &Conversation{
		store:     NewStore(),
		transport: transport,
		logger:    slog.Default(),
	}
	c.reducer.apology = DefaultApology
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("module", "transcript"))
	c.reducer.store = c.store
	c.reducer.logger = c.logger
	return c
}

// Store returns the read-only view of the conversation.
func (c *Conversation) Store() *Store {
	return c.store
}

// Messages returns a snapshot of the transcript.
func (c *Conversation) Messages() []models.Message {
	return c.store.Messages()
}

// Subscribe registers fn to be called after every mutation of the transcript.
func (c *Conversation) Subscribe(fn func(Event)) func() {
	return c.store.Subscribe(fn)
}

// State returns the current streaming state.
func (c *Conversation) State() State {
	return State(c.state.Load())
}

// Begin appends the user message and an empty assistant placeholder and opens a session for the answer.
// It does not contact the endpoint; call Run on the returned session for that. Begin fails with
// ErrSessionOpen while another session is open, leaving the transcript untouched.
//
// The session stays open until its Run returns, so Run must always be called. Cancelling ctx cancels
// the session.
func (c *Conversation) Begin(ctx context.Context, text string) (*Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		conv:   c,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	if c.session != nil {
		c.mu.Unlock()
		cancel()
		return nil, ErrSessionOpen
	}
	c.session = s
	c.state.Store(int32(StateAwaitingFirstDelta))
	c.mu.Unlock()

	// The reducer notifies subscribers; c.mu must not be held here.
	c.reducer.begin(s, text)

	c.logger.Debug("Session opened",
		slog.String("messageID", s.messageID),
		slog.Int("turns", len(s.turns)))

	return s, nil
}

// Submit begins a session for text and runs it to completion. It returns the error that settled the
// answer, if any; the transcript reflects the outcome either way.
func (c *Conversation) Submit(ctx context.Context, text string) error {
	s, err := c.Begin(ctx, text)
	if err != nil {
		return err
	}
	return s.Run()
}

// Cancel aborts the open session, if any, and reports whether there was one. The answer keeps the
// content received so far and is marked errored.
func (c *Conversation) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return false
	}
	c.session.cancel()
	return true
}

func (c *Conversation) release(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == s {
		c.session = nil
		c.state.Store(int32(StateIdle))
	}
}

// Run streams the answer into the session's assistant message and returns once it is settled. The
// returned error is nil when the answer completed, wraps stream.ErrCanceled after a cancellation, and
// is a *stream.TransportError (possibly wrapped) after a transport failure. Calling Run again returns
// the same result without streaming again.
func (s *Session) Run() error {
	s.once.Do(func() {
		s.err = s.run()
		close(s.done)
	})
	<-s.done
	return s.err
}

func (s *Session) run() error {
	c := s.conv
	defer c.release(s)
	defer s.cancel()

	r, err := c.transport.Open(s.ctx, models.ChatRequest{Messages: s.turns})
	if err != nil {
		err = fmt.Errorf("error opening stream: %w", err)
		c.reducer.fail(s, err)
		return err
	}
	defer r.Close()

	for d, err := range stream.Deltas(r, c.logger) {
		if err != nil {
			err = fmt.Errorf("error reading stream: %w", err)
			c.reducer.fail(s, err)
			return err
		}
		if c.reducer.apply(s, d) {
			return nil
		}
	}

	// Transport end-of-stream without a sentinel also completes the answer.
	c.reducer.complete(s)
	return nil
}

// Done is closed once the session settled.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// MessageID returns the ID of the assistant message the session populates.
func (s *Session) MessageID() string {
	return s.messageID
}

// Turns returns the outbound request turns of the session.
func (s *Session) Turns() []models.Turn {
	return s.turns
}

// State returns the conversation state as seen by this session.
func (s *Session) State() State {
	return s.conv.State()
}

func (s *Session) setState(st State) {
	s.conv.state.Store(int32(st))
}
