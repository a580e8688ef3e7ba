// Package conversation holds the active debate session as a pure reducer:
// (State, Event) -> State. Messages are an append-only log.
package conversation

import (
	"slices"
	"sync"
)

type State struct {
	// Active is nil until a session is created or loaded.
	Active *Session
}

type Event interface {
	apply(State) State
}

// SessionCreated replaces the active session with an empty one.
type SessionCreated struct {
	SessionID    string
	Participants []string
}

// SessionLoaded replaces the active session wholesale.
type SessionLoaded struct {
	Session Session
}

// MessagesAppended appends to the active session. Events for any other
// session id are dropped; they are late responses for a session the user has
// navigated away from.
type MessagesAppended struct {
	SessionID string
	Messages  []Message
}

func Reduce(s State, e Event) State {
	if e == nil {
		return s
	}
	return e.apply(s)
}

func (e SessionCreated) apply(State) State {
	return State{Active: &Session{
		ID:           e.SessionID,
		Messages:     []Message{},
		Participants: slices.Clone(e.Participants),
	}}
}

func (e SessionLoaded) apply(State) State {
	sess := Session{
		ID:           e.Session.ID,
		Messages:     cloneMessages(e.Session.Messages),
		Participants: slices.Clone(e.Session.Participants),
	}
	if sess.Messages == nil {
		sess.Messages = []Message{}
	}
	return State{Active: &sess}
}

func (e MessagesAppended) apply(s State) State {
	if s.Active == nil || s.Active.ID != e.SessionID || len(e.Messages) == 0 {
		return s
	}
	next := *s.Active
	next.Messages = make([]Message, 0, len(s.Active.Messages)+len(e.Messages))
	next.Messages = append(next.Messages, s.Active.Messages...)
	next.Messages = append(next.Messages, cloneMessages(e.Messages)...)
	return State{Active: &next}
}

// ActiveID returns "" when no session is active.
func (s State) ActiveID() string {
	if s.Active == nil {
		return ""
	}
	return s.Active.ID
}

// LatestResponseFor returns the assistant message from model with the
// greatest timestamp. ok is false when the model has not answered yet; that is
// a display fallback, not an error.
func (s State) LatestResponseFor(model string) (msg Message, ok bool) {
	if s.Active == nil {
		return Message{}, false
	}
	for _, m := range s.Active.Messages {
		if m.Role != RoleAssistant || m.AIName != model {
			continue
		}
		if !ok || m.Timestamp.After(msg.Timestamp) {
			msg, ok = m, true
		}
	}
	return msg, ok
}

func cloneMessages(in []Message) []Message {
	if in == nil {
		return nil
	}
	out := make([]Message, len(in))
	for i, m := range in {
		m.KeyTakeaways = slices.Clone(m.KeyTakeaways)
		out[i] = m
	}
	return out
}

// Store serializes dispatches and notifies listeners with the event and the
// resulting state.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners []func(Event, State)
}

func NewStore() *Store {
	return &Store{}
}

func (st *Store) Dispatch(e Event) State {
	st.mu.Lock()
	st.state = Reduce(st.state, e)
	s := st.state
	listeners := slices.Clone(st.listeners)
	st.mu.Unlock()

	for _, l := range listeners {
		l(e, s)
	}
	return s
}

// Snapshot returns the current state. Callers must not modify it.
func (st *Store) Snapshot() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Reset drops the active session.
func (st *Store) Reset() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = State{}
}

func (st *Store) Subscribe(l func(Event, State)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.listeners = append(st.listeners, l)
}
