// Package transcript holds the conversation state of a chat widget and the state machine that folds a
// streamed answer into it.
package transcript

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/tejaswanthparasa/chatbot/internal/models"
)

// EventKind is the kind of mutation an Event reports.
type EventKind int

// Event describes one mutation of the store. Message is a copy taken right after the mutation.
type Event struct {
	Kind    EventKind
	Index   int
	Message models.Message
}

// Store is the ordered, append-only list of messages of one conversation. Readers get copies; only the
// reducer mutates it. Subscribers are called synchronously, in mutation order, without the lock held.
type Store struct {
	mu       sync.RWMutex
	messages []models.Message

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int
}

const (
	// EventAppend reports a new message at the end of the store.
	EventAppend EventKind = iota
	// EventUpdate reports a change of content or status of an existing message.
	EventUpdate
)

var errNotStreaming = errors.New("message is not streaming")

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		subs: make(map[int]func(Event)),
	}
}

// Messages returns a snapshot of all messages in chronological order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.messages)
}

// Message returns the message at index i.
func (s *Store) Message(i int) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.messages) {
		return models.Message{}, false
	}
	return s.messages[i], true
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

// Subscribe registers fn to be called after every mutation. The returned function removes it.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) append(msg models.Message) int {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	idx := len(s.messages) - 1
	s.mu.Unlock()

	s.publish(Event{Kind: EventAppend, Index: idx, Message: msg})
	return idx
}

func (s *Store) setStatus(i int, status models.Status) {
	s.mu.Lock()
	s.messages[i].Status = status
	msg := s.messages[i]
	s.mu.Unlock()

	s.publish(Event{Kind: EventUpdate, Index: i, Message: msg})
}

func (s *Store) appendContent(i int, text string) error {
	s.mu.Lock()
	if s.messages[i].Status != models.StatusStreaming {
		status := s.messages[i].Status
		s.mu.Unlock()
		return fmt.Errorf("%w: message %d is %s", errNotStreaming, i, status)
	}
	s.messages[i].Content += text
	msg := s.messages[i]
	s.mu.Unlock()

	s.publish(Event{Kind: EventUpdate, Index: i, Message: msg})
	return nil
}

func (s *Store) publish(e Event) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), len(ids))
	for i, id := range ids {
		fns[i] = s.subs[id]
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
