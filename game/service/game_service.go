package service

import (
	"context"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
)

// RoverService defines all rover-related operations
type RoverService interface {
	// Session Management
	CreateSession(ctx context.Context, layoutID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Mission Operations
	LoadLayout(ctx context.Context, sessionID string, l *layout.Layout) (*SessionInfo, error)
	FetchLayout(ctx context.Context, sessionID string) (*SessionInfo, error)
	Execute(ctx context.Context, sessionID, commands string, opts ExecOptions) (*RunResult, error)
	Cancel(ctx context.Context, sessionID string) error
	FireLaser(ctx context.Context, sessionID string) (*LaserResult, error)
	Reset(ctx context.Context, sessionID string) (*engine.RoverState, error)

	// Rover State
	GetState(ctx context.Context, sessionID string) (*engine.RoverState, error)
	GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Layout presets
	ListLayouts(ctx context.Context) ([]*LayoutInfo, error)
	GetLayout(ctx context.Context, layoutID string) (*layout.Layout, error)
	SaveLayout(ctx context.Context, layoutID string, l *layout.Layout) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, layoutID string, l *layout.Layout) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, layoutID string, l *layout.Layout) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// LayoutStore handles layout preset loading
type LayoutStore interface {
	LoadLayout(name string) (*layout.Layout, error)
	ListLayouts() ([]*LayoutInfo, error)
	GetDefault() *layout.Layout
	SaveLayout(name string, l *layout.Layout) error
}

// Journal records runs and their steps
type Journal interface {
	StartRun(ctx context.Context, sessionID, commands string) (int64, error)
	RecordStep(ctx context.Context, runID int64, step engine.StepResult) error
	FinishRun(ctx context.Context, runID int64, status engine.RunStatus, executed int) error
	RecordLaser(ctx context.Context, sessionID string, cell engine.Position) error
	History(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)
}

// LayoutProvider supplies a mission layout from somewhere outside the process
type LayoutProvider interface {
	Fetch(ctx context.Context) (*layout.Layout, error)
}

// EventPublisher receives session events as they happen
type EventPublisher interface {
	Publish(event Event)
}

// Session represents an active rover session
type Session struct {
	ID             string
	Simulator      *engine.GridSimulator
	CreatedAt      time.Time
	LastAccessedAt time.Time

	mu       sync.Mutex
	layout   *layout.Layout
	layoutID string
	cancel   context.CancelFunc
}

// NewSession wraps a simulator that already carries l
func NewSession(id string, sim *engine.GridSimulator, layoutID string, l *layout.Layout) *Session {
	now := time.Now()
	return &Session{
		ID:             id,
		Simulator:      sim,
		CreatedAt:      now,
		LastAccessedAt: now,
		layout:         l.Clone(),
		layoutID:       layoutID,
	}
}

// Layout returns the session's current layout and its identifier
func (s *Session) Layout() (*layout.Layout, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.Clone(), s.layoutID
}

// SetLayout records the layout most recently placed on the simulator
func (s *Session) SetLayout(layoutID string, l *layout.Layout) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layout = l.Clone()
	s.layoutID = layoutID
}

// beginAsync claims the session for a background run
func (s *Session) beginAsync(cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}
	s.cancel = cancel
	return true
}

func (s *Session) endAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = nil
}

// CancelRun stops the background run, reporting whether one was active
func (s *Session) CancelRun() bool {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Running reports whether a background run owns the session
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
