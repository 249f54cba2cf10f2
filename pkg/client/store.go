package client

import "sync"

// State is an immutable snapshot of the client's application state.
// Setters return a modified copy.
type State struct {
	profile  *Profile
	session  *Session
	messages []Message
	sending  bool
}

func (s State) Profile() *Profile { return s.profile }
func (s State) Session() *Session { return s.session }
func (s State) Sending() bool     { return s.sending }

// Messages returns a copy; callers may modify it freely.
func (s State) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s State) WithProfile(p *Profile) State {
	if p != nil {
		cp := *p
		p = &cp
	}
	s.profile = p
	return s
}

// WithSession switches the active session and clears its messages.
func (s State) WithSession(sess *Session) State {
	if sess != nil {
		cp := *sess
		sess = &cp
	}
	s.session = sess
	s.messages = nil
	return s
}

func (s State) WithMessages(msgs []Message) State {
	s.messages = make([]Message, len(msgs))
	copy(s.messages, msgs)
	return s
}

func (s State) WithSending(sending bool) State {
	s.sending = sending
	return s
}

// Store holds the current State and notifies subscribers on every update.
type Store struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]func(State)
}

func NewStore(initial State) *Store {
	return &Store{state: initial, subs: make(map[int]func(State))}
}

func (st *Store) Snapshot() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Update applies fn atomically and returns the new state.
func (st *Store) Update(fn func(State) State) State {
	st.mu.Lock()
	st.state = fn(st.state)
	next := st.state
	subs := make([]func(State), 0, len(st.subs))
	for _, sub := range st.subs {
		subs = append(subs, sub)
	}
	st.mu.Unlock()

	for _, sub := range subs {
		sub(next)
	}
	return next
}

// Subscribe registers fn and returns a function that removes it.
func (st *Store) Subscribe(fn func(State)) func() {
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = fn
	st.mu.Unlock()

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}
