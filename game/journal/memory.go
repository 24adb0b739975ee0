package journal

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/service"
)

// Memory is an in-process journal. Records are lost on restart.
type Memory struct {
	mu     sync.RWMutex
	runs   []service.RunRecord
	steps  map[int64][]service.StepRecord
	lasers map[string][]engine.Position
	now    func() time.Time
}

// NewMemory creates an empty in-process journal
func NewMemory() *Memory {
	return &Memory{
		steps:  make(map[int64][]service.StepRecord),
		lasers: make(map[string][]engine.Position),
		now:    time.Now,
	}
}

// Close is a no-op
func (m *Memory) Close() error { return nil }

func (m *Memory) StartRun(_ context.Context, sessionID, commands string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := int64(len(m.runs) + 1)
	m.runs = append(m.runs, service.RunRecord{
		ID:        id,
		SessionID: sessionID,
		Commands:  commands,
		Status:    engine.StatusRunning,
		StartedAt: m.now(),
	})
	return id, nil
}

func (m *Memory) RecordStep(_ context.Context, runID int64, step engine.StepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.run(runID); !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	m.steps[runID] = append(m.steps[runID], service.StepRecord{
		RunID:      runID,
		Index:      step.Index,
		Command:    step.Command,
		Kind:       step.Kind,
		Position:   step.Position,
		Heading:    step.Heading,
		Reason:     step.Reason,
		RecordedAt: m.now(),
	})
	return nil
}

func (m *Memory) FinishRun(_ context.Context, runID int64, status engine.RunStatus, executed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.run(runID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	finished := m.now()
	rec.Status = status
	rec.StepsExecuted = executed
	rec.FinishedAt = &finished
	return nil
}

func (m *Memory) RecordLaser(_ context.Context, sessionID string, cell engine.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lasers[sessionID] = append(m.lasers[sessionID], cell)
	return nil
}

// LaserShots counts boulders destroyed in a session
func (m *Memory) LaserShots(_ context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lasers[sessionID]), nil
}

func (m *Memory) History(_ context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	opts = opts.Normalize()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		steps []service.StepRecord
		runs  []service.RunRecord
	)
	for _, rec := range m.runs {
		if rec.SessionID != sessionID || (opts.RunID != 0 && rec.ID != opts.RunID) {
			continue
		}
		steps = append(steps, m.steps[rec.ID]...)
		runs = append(runs, rec)
	}

	if opts.Order == "desc" {
		slices.Reverse(steps)
	}
	slices.Reverse(runs)
	if len(runs) > recentRuns {
		runs = runs[:recentRuns]
	}

	total := len(steps)
	start := min(opts.Offset(), total)
	end := min(start+opts.Limit, total)

	resp := service.NewHistoryResponse(slices.Clone(steps[start:end]), total, opts)
	resp.Runs = runs
	return resp, nil
}

// run finds a run by ID; callers hold m.mu
func (m *Memory) run(id int64) (*service.RunRecord, bool) {
	if id < 1 || id > int64(len(m.runs)) {
		return nil, false
	}
	return &m.runs[id-1], true
}
