package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jaminalder/hotseat-tic-tac-toe/internal/domain"
	"github.com/rs/zerolog"
)

// Errors exposed by the service layer.
var ErrNotFound = errors.New("match not found")

// MatchState is a point-in-time copy of a match, safe to hand to renderers.
type MatchState struct {
	ID      string
	Board   [domain.Size]domain.Mark
	Players [2]domain.Player
	Current domain.Player
	State   domain.State
	Outcome domain.Outcome
	Winner  string
	Message string
	Moves   int
	Created time.Time
	Updated time.Time
}

// Broadcast carries the events produced by one request, in order, with the state they led to.
type Broadcast struct {
	Events  []domain.Event
	State   MatchState
	Payload []byte
}

// Renderer turns a state into the payload pushed to subscribers.
type Renderer func(MatchState) []byte

// Options configures a Service. Zero values get defaults; empty player
// defaults fall back to domain.DefaultPlayer1 and domain.DefaultPlayer2.
type Options struct {
	Logger           *zerolog.Logger
	Player1Default   string
	Player2Default   string
	SubscriberBuffer int
}

type session struct {
	id      string
	match   *domain.Match
	pending []domain.Event
	created time.Time
	updated time.Time
}

type subscriber struct {
	ch        chan Broadcast
	closeOnce sync.Once
}

func (s *subscriber) close() { s.closeOnce.Do(func() { close(s.ch) }) }

// Service owns every match and serializes the events delivered to each one.
type Service struct {
	mu      sync.Mutex
	matches map[string]*session
	subs    map[string]map[*subscriber]struct{}
	render  Renderer
	log     zerolog.Logger
	name1   string
	name2   string
	bufSize int
}

// NewService creates a service with a renderer that produces no payload.
func NewService(opts Options) *Service {
	s := &Service{
		matches: make(map[string]*session),
		subs:    make(map[string]map[*subscriber]struct{}),
		render:  func(MatchState) []byte { return nil },
		log:     zerolog.Nop(),
		name1:   opts.Player1Default,
		name2:   opts.Player2Default,
		bufSize: opts.SubscriberBuffer,
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "match-service").Logger()
	}
	if s.name1 == "" {
		s.name1 = domain.DefaultPlayer1
	}
	if s.name2 == "" {
		s.name2 = domain.DefaultPlayer2
	}
	if s.bufSize < 1 {
		s.bufSize = 1
	}
	return s
}

// NewServiceWithRenderer allows injecting a renderer for broadcast payloads.
func NewServiceWithRenderer(opts Options, renderer Renderer) *Service {
	s := NewService(opts)
	s.SetRenderer(renderer)
	return s
}

// SetRenderer replaces the broadcast renderer function.
func (s *Service) SetRenderer(renderer Renderer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if renderer == nil {
		s.render = func(MatchState) []byte { return nil }
		return
	}
	s.render = renderer
}

// CreateMatch registers a new match that has not started yet.
func (s *Service) CreateMatch() (*MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sess := &session{id: uuid.NewString(), created: now, updated: now}
	sess.match = domain.NewMatch(func(ev domain.Event) { sess.pending = append(sess.pending, ev) })
	s.matches[sess.id] = sess
	s.log.Info().Str("match", sess.id).Msg("match created")
	st := snapshot(sess)
	return &st, nil
}

// Get returns a copy of the match state if present.
func (s *Service) Get(id string) (*MatchState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.matches[id]
	if !ok {
		return nil, false
	}
	st := snapshot(sess)
	return &st, true
}

// Start seats two players and begins play. Blank names take the configured defaults.
func (s *Service) Start(id, name1, name2 string) (*MatchState, error) {
	name1, name2 = orDefault(name1, s.name1), orDefault(name2, s.name2)
	return s.apply(id, func(m *domain.Match) error {
		if err := m.Start(name1, name2); err != nil {
			return err
		}
		s.log.Info().Str("match", id).Str("x", name1).Str("o", name2).Msg("match started")
		return nil
	})
}

// Select delivers a cell selection. Ignored selections return the unchanged state.
func (s *Service) Select(id string, index int) (*MatchState, error) {
	return s.apply(id, func(m *domain.Match) error {
		applied, err := m.SubmitMove(index)
		if err != nil {
			return err
		}
		if !applied {
			s.log.Debug().Str("match", id).Int("index", index).Str("state", m.State().String()).Msg("selection ignored")
		}
		return nil
	})
}

// Restart clears the board and keeps the current players.
func (s *Service) Restart(id string) (*MatchState, error) {
	return s.apply(id, func(m *domain.Match) error {
		m.Restart()
		s.log.Info().Str("match", id).Msg("match restarted")
		return nil
	})
}

// apply runs fn against one match and fans out whatever events it produced, all under the lock.
func (s *Service) apply(id string, fn func(*domain.Match) error) (*MatchState, error) {
	s.mu.Lock()
	sess, ok := s.matches[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	sess.pending = sess.pending[:0]
	err := fn(sess.match)
	events := append([]domain.Event(nil), sess.pending...)
	if len(events) > 0 {
		sess.updated = time.Now()
	}
	st := snapshot(sess)
	if err != nil || len(events) == 0 {
		s.mu.Unlock()
		return &st, err
	}

	for _, ev := range events {
		switch ev.Type {
		case domain.EventWin:
			s.log.Info().Str("match", id).Str("winner", ev.WinnerName).Msg("match won")
		case domain.EventTie:
			s.log.Info().Str("match", id).Msg("match tied")
		default:
			s.log.Debug().Str("match", id).Str("event", string(ev.Type)).Msg("match event")
		}
	}

	b := Broadcast{Events: events, State: st, Payload: s.render(st)}
	s.fanOutLocked(id, b)
	s.mu.Unlock()
	return &st, nil
}

// fanOutLocked delivers b without blocking; slow subscribers are closed and dropped.
// Sends and closes both happen under s.mu, so a send never races an unsubscribe.
func (s *Service) fanOutLocked(id string, b Broadcast) {
	dropped := 0
	for sub := range s.subs[id] {
		select {
		case sub.ch <- b:
		default:
			sub.close()
			delete(s.subs[id], sub)
			dropped++
		}
	}
	if dropped > 0 {
		s.log.Warn().Str("match", id).Int("dropped", dropped).Msg("dropped slow subscribers")
	}
}

// Subscribe registers a subscriber for a match. The channel closes when ctx ends,
// when unsubscribe is called, or when the subscriber falls behind.
func (s *Service) Subscribe(ctx context.Context, id string) (<-chan Broadcast, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.matches[id]; !ok {
		return nil, func() {}, ErrNotFound
	}
	set := s.subs[id]
	if set == nil {
		set = make(map[*subscriber]struct{})
		s.subs[id] = set
	}
	sub := &subscriber{ch: make(chan Broadcast, s.bufSize)}
	set[sub] = struct{}{}

	unsubOnce := &sync.Once{}
	unsub := func() {
		unsubOnce.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if set, ok := s.subs[id]; ok {
				delete(set, sub)
			}
			sub.close()
		})
	}
	go func() {
		<-ctx.Done()
		unsub()
	}()
	return sub.ch, unsub, nil
}

func snapshot(sess *session) MatchState {
	m := sess.match
	st := MatchState{
		ID:      sess.id,
		Board:   m.Board(),
		Players: m.Players(),
		Current: m.Current(),
		State:   m.State(),
		Outcome: m.Outcome(),
		Message: m.Message(),
		Moves:   m.Moves(),
		Created: sess.created,
		Updated: sess.updated,
	}
	if w, ok := m.Winner(); ok {
		st.Winner = w.Name
	}
	return st
}

func orDefault(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
