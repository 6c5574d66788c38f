package walk

import (
	"context"
	"fmt"
	"sync"

	"github.com/biancann/footfolio/internal/location"
	"github.com/biancann/footfolio/internal/metrics"
	"github.com/biancann/footfolio/internal/render"
	"github.com/biancann/footfolio/internal/tracking"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecorderFactory builds the recorder for a new walk.
type RecorderFactory func(sessionID string, provider location.Provider) Recorder

// Manager owns live walks by id and keeps at most one per wallet.
type Manager struct {
	source      location.Source
	newRecorder RecorderFactory
	deps        Deps
	log         *zap.Logger

	mu      sync.RWMutex
	byID    map[string]*Session
	byOwner map[string]string
	closed  bool
}

// NewManager wires walks to a location source. Recorders get opts, typically
// the stream hub as centerer and broadcaster.
func NewManager(source location.Source, deps Deps, opts ...tracking.Option) *Manager {
	deps.defaults()
	opts = append([]tracking.Option{tracking.WithLogger(deps.Log)}, opts...)
	return &Manager{
		source: source,
		newRecorder: func(sessionID string, provider location.Provider) Recorder {
			return tracking.NewRecorder(sessionID, provider, opts...)
		},
		deps:    deps,
		log:     deps.Log,
		byID:    map[string]*Session{},
		byOwner: map[string]string{},
	}
}

// WithRecorderFactory swaps how recorders are built.
func (m *Manager) WithRecorderFactory(f RecorderFactory) *Manager {
	m.newRecorder = f
	return m
}

// Start creates a fresh walk for owner, discarding the owner's previous one.
// The walk is returned even when starting fails so its failure can be shown.
func (m *Manager) Start(ctx context.Context, owner, deviceID, color string) (*Session, error) {
	if color == "" {
		color = render.DefaultColor
	}
	canonical, ok := render.CanonicalColor(color)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColor, color)
	}

	if owner == "" {
		return nil, ErrNoIdentity
	}
	if err := m.source.Claim(ctx, deviceID, owner); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: shutting down", ErrInvalidTransition)
	}
	if prevID, ok := m.byOwner[owner]; ok {
		prev := m.byID[prevID]
		if err := prev.Cancel(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
		delete(m.byID, prevID)
		m.log.Info("previous walk discarded", zap.String("walk", prevID), zap.String("owner", owner))
	}

	id := uuid.NewString()
	s := newSession(id, owner, deviceID, canonical, m.newRecorder(id, m.source.Provider(deviceID)), &m.deps)
	m.byID[id] = s
	m.byOwner[owner] = id
	metrics.SetActiveWalks(len(m.byID))
	m.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		m.log.Info("walk failed to start", zap.String("walk", id), zap.Error(err))
		return s, err
	}
	m.log.Info("walk started", zap.String("walk", id), zap.String("owner", owner), zap.String("device", deviceID))
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// ForOwner returns the owner's current walk.
func (m *Manager) ForOwner(owner string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byOwner[owner]
	if !ok {
		return nil, ErrNotFound
	}
	return m.byID[id], nil
}

// Discard cancels a walk and forgets it.
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	if err := s.Cancel(); err != nil {
		return err
	}
	delete(m.byID, id)
	if m.byOwner[s.owner] == id {
		delete(m.byOwner, s.owner)
	}
	metrics.SetActiveWalks(len(m.byID))
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Close releases every location subscription. Further starts are refused.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, s := range m.byID {
		s.release()
		delete(m.byID, id)
	}
	m.byOwner = map[string]string{}
	metrics.SetActiveWalks(0)
}
