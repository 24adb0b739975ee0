package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
)

var (
	ErrLayoutNotFound = errors.New("layout not found")
	ErrNoProvider     = errors.New("no layout provider configured")
	ErrNoActiveRun    = errors.New("no command stream in progress")
	ErrHQ             = errors.New("cannot contact HQ")
)

// Rover chatter shown to operators
const (
	MessageCantGo      = "Hey, I can't go that way!"
	MessageBoulder     = "Wait! I can destroy this boulder with my laser!"
	MessageContactHQ   = "Hang on! I'm trying to contact HQ..."
	MessageHQFailed    = "Oh! Seems I can't contact HQ."
	MessageBusy        = "I said hang on! I'm not a multi-tasker..."
	MessageLaser       = "Boulder destroyed!"
	MessageCompleted   = "Commands executed."
	MessageCancelled   = "Command stream cancelled."
	MessageReset       = "Rover back at the start point."
	MessageLayoutReady = "Layout received. Ready for commands."
)

// roverServiceImpl implements the RoverService interface
type roverServiceImpl struct {
	sessions  SessionManager
	layouts   LayoutStore
	journal   Journal
	provider  LayoutProvider
	publisher EventPublisher
	stepDelay time.Duration
	mu        sync.RWMutex
	runs      sync.WaitGroup
}

// Option configures the rover service
type Option func(*roverServiceImpl)

// WithJournal records every run in j
func WithJournal(j Journal) Option {
	return func(s *roverServiceImpl) { s.journal = j }
}

// WithProvider sets where FetchLayout pulls layouts from
func WithProvider(p LayoutProvider) Option {
	return func(s *roverServiceImpl) { s.provider = p }
}

// WithPublisher sends step and state events to p
func WithPublisher(p EventPublisher) Option {
	return func(s *roverServiceImpl) { s.publisher = p }
}

// WithStepDelay paces asynchronous runs
func WithStepDelay(d time.Duration) Option {
	return func(s *roverServiceImpl) { s.stepDelay = d }
}

// NewRoverService creates a new rover service instance
func NewRoverService(sessions SessionManager, layouts LayoutStore, opts ...Option) RoverService {
	s := &roverServiceImpl{
		sessions:  sessions,
		layouts:   layouts,
		journal:   discardJournal{},
		publisher: discardPublisher{},
		stepDelay: engine.DefaultStepDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new rover session placed on a layout preset
func (s *roverServiceImpl) CreateSession(ctx context.Context, layoutID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var l *layout.Layout
	var err error
	if layoutID != "" {
		l, err = s.layouts.LoadLayout(layoutID)
		if err != nil {
			return nil, s.layoutLoadError(layoutID, err)
		}
	} else {
		l = s.layouts.GetDefault()
		layoutID = l.Name
	}

	sess, err := s.sessions.Create("", layoutID, l)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return sessionInfo(sess), nil
}

func (s *roverServiceImpl) layoutLoadError(layoutID string, err error) error {
	if !errors.Is(err, ErrLayoutNotFound) {
		return fmt.Errorf("failed to load layout %s: %w", layoutID, err)
	}
	available, listErr := s.layouts.ListLayouts()
	if listErr == nil && len(available) > 0 {
		ids := make([]string, 0, len(available))
		for _, info := range available {
			ids = append(ids, info.LayoutID)
		}
		return fmt.Errorf("layout '%s' not found. Available layouts: %s: %w", layoutID, strings.Join(ids, ", "), err)
	}
	return fmt.Errorf("layout '%s' not found. Use /api/layouts to list available layouts: %w", layoutID, err)
}

// GetSession retrieves session information
func (s *roverServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *roverServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession cancels any running stream and removes the session
func (s *roverServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, err := s.sessions.Get(sessionID); err == nil {
		sess.CancelRun()
	}
	return s.sessions.Delete(sessionID)
}

// LoadLayout resets the rover and places it on l
func (s *roverServiceImpl) LoadLayout(ctx context.Context, sessionID string, l *layout.Layout) (*SessionInfo, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: empty layout", layout.ErrInvalidLayout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Running() {
		return nil, engine.ErrBusy
	}
	if err := l.Apply(sess.Simulator); err != nil {
		return nil, err
	}

	layoutID := l.Name
	if layoutID == "" {
		layoutID = "custom"
	}
	sess.SetLayout(layoutID, l)
	s.save(sessionID)

	state := sess.Simulator.State()
	s.publisher.Publish(Event{SessionID: sess.ID, Type: EventStateUpdate, State: &state, Message: MessageLayoutReady})
	return sessionInfo(sess), nil
}

// FetchLayout asks the layout provider for a new mission and loads it
func (s *roverServiceImpl) FetchLayout(ctx context.Context, sessionID string) (*SessionInfo, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}

	s.publisher.Publish(Event{SessionID: sessionID, Type: EventStateUpdate, Message: MessageContactHQ})
	l, err := s.provider.Fetch(ctx)
	if err != nil {
		log.Printf("[HQ] session=%s fetch failed: %v", sessionID, err)
		return nil, fmt.Errorf("%w: %v", ErrHQ, err)
	}
	if l.Name == "" {
		l.Name = "hq"
	}
	return s.LoadLayout(ctx, sessionID, l)
}

// Execute runs a command string on the session's rover.
// An empty command string runs the command carried by the current layout.
func (s *roverServiceImpl) Execute(ctx context.Context, sessionID, commands string, opts ExecOptions) (*RunResult, error) {
	s.mu.RLock()
	sess, err := s.session(sessionID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	if commands == "" {
		l, _ := sess.Layout()
		if l != nil {
			commands = l.Command
		}
	}
	if opts.Strict {
		if err := engine.ValidateCommands(commands); err != nil {
			return nil, err
		}
	}
	cmds, err := engine.ParseCommands(commands)
	if err != nil {
		return nil, err
	}

	if opts.Async {
		return s.executeAsync(sess, commands, len(cmds), opts)
	}

	if sess.Running() {
		return nil, engine.ErrBusy
	}
	result := s.newRunResult(ctx, sess, commands, len(cmds))
	err = s.run(ctx, sess, result, engine.NoPacer, true)
	if errors.Is(err, engine.ErrBusy) {
		return nil, err
	}
	return result, nil
}

func (s *roverServiceImpl) executeAsync(sess *Session, commands string, requested int, opts ExecOptions) (*RunResult, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	if !sess.beginAsync(cancel) {
		cancel()
		return nil, engine.ErrBusy
	}
	if sess.Simulator.Status() == engine.StatusRunning {
		sess.endAsync()
		cancel()
		return nil, engine.ErrBusy
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = s.stepDelay
	}

	result := s.newRunResult(runCtx, sess, commands, requested)
	ack := *result
	ack.Status = engine.StatusRunning

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer cancel()
		defer sess.endAsync()

		if err := s.run(runCtx, sess, result, engine.TimerPacer(delay), false); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[RUN] session=%s run=%d error: %v", sess.ID, result.RunID, err)
		}
	}()

	return &ack, nil
}

func (s *roverServiceImpl) newRunResult(ctx context.Context, sess *Session, commands string, requested int) *RunResult {
	runID, err := s.journal.StartRun(ctx, sess.ID, commands)
	if err != nil {
		log.Printf("Warning: failed to journal run for session %s: %v", sess.ID, err)
	}
	s.sessions.UpdateLastAccessed(sess.ID)

	return &RunResult{
		RunID:          runID,
		Commands:       commands,
		RequestedSteps: requested,
		Start:          sess.Simulator.State().Position,
		Steps:          []engine.StepResult{},
	}
}

// run drains the command stream into result and publishes every step
func (s *roverServiceImpl) run(ctx context.Context, sess *Session, result *RunResult, pacer engine.Pacer, keepSteps bool) error {
	var runErr error
	for step, err := range sess.Simulator.ProcessCommandsWithPacer(ctx, result.Commands, pacer) {
		if err != nil {
			runErr = err
			break
		}
		result.StepsExecuted++
		if keepSteps {
			result.Steps = append(result.Steps, step)
		}
		if err := s.journal.RecordStep(context.WithoutCancel(ctx), result.RunID, step); err != nil {
			log.Printf("Warning: failed to journal step %d of run %d: %v", step.Index, result.RunID, err)
		}
		stepCopy := step
		s.publisher.Publish(Event{SessionID: sess.ID, Type: EventStep, Step: &stepCopy})

		if step.Kind == engine.StepBlocked {
			result.StoppedOnStep = step.Index + 1
			result.StopReason = step.Reason
		}
	}

	if errors.Is(runErr, engine.ErrBusy) {
		// Another stream owns the rover; close the journal run without steps
		result.Status = engine.StatusCancelled
		result.Error = runErr.Error()
		result.Message = MessageBusy
		if err := s.journal.FinishRun(context.WithoutCancel(ctx), result.RunID, result.Status, 0); err != nil {
			log.Printf("Warning: failed to finish journal run %d: %v", result.RunID, err)
		}
	} else {
		s.finishRun(ctx, sess, result, runErr)
	}
	return runErr
}

func (s *roverServiceImpl) finishRun(ctx context.Context, sess *Session, result *RunResult, runErr error) {
	state := sess.Simulator.State()
	result.Status = state.Status
	result.End = state.Position
	result.PendingObstacle = state.PendingObstacle
	result.CanFireLaser = state.CanFireLaser()
	result.State = state
	if runErr != nil {
		result.Error = runErr.Error()
	}

	switch {
	case result.StopReason == engine.ReasonObstacle:
		result.Message = MessageBoulder
	case result.StopReason == engine.ReasonOutOfBounds:
		result.Message = MessageCantGo
	case result.Status == engine.StatusCancelled:
		result.Message = MessageCancelled
	default:
		result.Message = MessageCompleted
	}

	if err := s.journal.FinishRun(context.WithoutCancel(ctx), result.RunID, result.Status, result.StepsExecuted); err != nil {
		log.Printf("Warning: failed to finish journal run %d: %v", result.RunID, err)
	}
	s.save(sess.ID)

	log.Printf("[RUN] session=%s run=%d status=%s steps=%d/%d pos=%s", sess.ID, result.RunID, result.Status, result.StepsExecuted, result.RequestedSteps, result.End)

	finished := *result
	finished.Steps = nil
	s.publisher.Publish(Event{SessionID: sess.ID, Type: EventRunFinished, Result: &finished, State: &state, Message: result.Message})
}

// Cancel stops the session's background run
func (s *roverServiceImpl) Cancel(ctx context.Context, sessionID string) error {
	s.mu.RLock()
	sess, err := s.session(sessionID)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if !sess.CancelRun() {
		return ErrNoActiveRun
	}
	return nil
}

// FireLaser destroys the boulder that stopped the last run
func (s *roverServiceImpl) FireLaser(ctx context.Context, sessionID string) (*LaserResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	cell, err := sess.Simulator.FireLaser()
	if err != nil {
		return nil, err
	}
	if err := s.journal.RecordLaser(ctx, sess.ID, cell); err != nil {
		log.Printf("Warning: failed to journal laser shot for session %s: %v", sess.ID, err)
	}
	s.save(sessionID)

	state := sess.Simulator.State()
	step := engine.StepResult{
		Kind:     engine.StepCleared,
		Position: state.Position,
		Heading:  state.Heading,
		Cell:     &cell,
	}
	s.publisher.Publish(Event{SessionID: sess.ID, Type: EventCleared, Step: &step, State: &state, Message: MessageLaser})
	log.Printf("[LASER] session=%s cleared=%s", sess.ID, cell)

	return &LaserResult{Cleared: cell, Message: MessageLaser, State: state}, nil
}

// Reset puts the rover back on its current layout
func (s *roverServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.RoverState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Running() {
		return nil, engine.ErrBusy
	}

	l, _ := sess.Layout()
	if l == nil {
		l = s.layouts.GetDefault()
	}
	if err := l.Apply(sess.Simulator); err != nil {
		return nil, err
	}
	s.save(sessionID)

	state := sess.Simulator.State()
	s.publisher.Publish(Event{SessionID: sess.ID, Type: EventStateUpdate, State: &state, Message: MessageReset})
	return &state, nil
}

// GetState retrieves the current rover state
func (s *roverServiceImpl) GetState(ctx context.Context, sessionID string) (*engine.RoverState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	state := sess.Simulator.State()
	return &state, nil
}

// GetHistory returns paginated step history from the journal
func (s *roverServiceImpl) GetHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	sess, err := s.session(sessionID)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return s.journal.History(ctx, sess.ID, opts.Normalize())
}

// ListLayouts returns available layout presets
func (s *roverServiceImpl) ListLayouts(ctx context.Context) ([]*LayoutInfo, error) {
	return s.layouts.ListLayouts()
}

// GetLayout loads a specific layout preset
func (s *roverServiceImpl) GetLayout(ctx context.Context, layoutID string) (*layout.Layout, error) {
	return s.layouts.LoadLayout(layoutID)
}

// SaveLayout saves a layout preset to disk
func (s *roverServiceImpl) SaveLayout(ctx context.Context, layoutID string, l *layout.Layout) error {
	return s.layouts.SaveLayout(layoutID, l)
}

// Wait blocks until every background run has finished
func (s *roverServiceImpl) Wait() {
	s.runs.Wait()
}

func (s *roverServiceImpl) session(id string) (*Session, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(id)
	return sess, nil
}

func (s *roverServiceImpl) save(sessionID string) {
	if err := s.sessions.Save(sessionID); err != nil {
		log.Printf("Warning: Failed to persist session %s: %v", sessionID, err)
	}
}

func sessionInfo(sess *Session) *SessionInfo {
	l, layoutID := sess.Layout()
	return &SessionInfo{
		ID:             sess.ID,
		LayoutID:       layoutID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          sess.Simulator.State(),
		Layout:         l,
	}
}

type discardJournal struct{}

func (discardJournal) StartRun(context.Context, string, string) (int64, error) { return 0, nil }
func (discardJournal) RecordStep(context.Context, int64, engine.StepResult) error {
	return nil
}
func (discardJournal) FinishRun(context.Context, int64, engine.RunStatus, int) error { return nil }
func (discardJournal) RecordLaser(context.Context, string, engine.Position) error    { return nil }
func (discardJournal) History(_ context.Context, _ string, opts HistoryOptions) (*HistoryResponse, error) {
	return NewHistoryResponse(nil, 0, opts), nil
}

type discardPublisher struct{}

func (discardPublisher) Publish(Event) {}
