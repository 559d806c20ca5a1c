// Package session manages concurrent named searches for the demo HTTP
// server: one Orchestrator per session, keyed by a uuid so multiple
// clients can drive independent searches against the same process. The
// session table is a map guarded by sync.RWMutex; Get and Stop return
// a plain error on a missing key.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"chessmcts/internal/game"
	"chessmcts/internal/game/refchess"
	"chessmcts/internal/nn"
	"chessmcts/internal/search"
)

// ErrNotFound is returned by Get and Stop for an unknown session ID.
var ErrNotFound = errors.New("session: not found")

// Session is one in-progress or finished search.
type Session struct {
	ID           string
	CreatedAt    time.Time
	Orchestrator *search.Orchestrator

	mu       sync.Mutex
	lastInfo search.Info
	best     *search.BestMove
}

// Manager owns every live session in this process.
type Manager struct {
	eval nn.Evaluator

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a manager that drives every search through eval.
func NewManager(eval nn.Evaluator) *Manager {
	return &Manager{eval: eval, sessions: make(map[string]*Session)}
}

// New starts a fresh search session over the standard starting position
// and returns it immediately; the search itself runs asynchronously.
func (m *Manager) New(opts search.Options, limits search.Limits) *Session {
	root := refchess.NewInitialPosition()
	return m.newSession(root, opts, limits)
}

// NewFromBoard starts a session over an arbitrary root position.
func (m *Manager) NewFromBoard(root game.Board, opts search.Options, limits search.Limits) *Session {
	return m.newSession(root, opts, limits)
}

func (m *Manager) newSession(root game.Board, opts search.Options, limits search.Limits) *Session {
	s := &Session{ID: uuid.NewString(), CreatedAt: time.Now()}

	cb := search.Callbacks{
		OnInfo: func(i search.Info) {
			s.mu.Lock()
			s.lastInfo = i
			s.mu.Unlock()
		},
		OnBestMove: func(bm search.BestMove) {
			s.mu.Lock()
			s.best = &bm
			s.mu.Unlock()
		},
	}
	s.Orchestrator = search.New(root, m.eval, nil, opts, cb)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	go func() {
		_ = s.Orchestrator.Run(context.Background(), limits)
	}()

	return s
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Stop requests a clean stop of the session's search.
func (m *Manager) Stop(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.Orchestrator.Stop()
	return nil
}

// LastInfo returns the most recent progress report for the session, and
// the best move if the search has finished.
func (s *Session) LastInfo() (search.Info, *search.BestMove) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInfo, s.best
}
