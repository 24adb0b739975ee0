package service

import (
	"time"

	"github.com/wricardo/mcp-training/marsrover/game/engine"
	"github.com/wricardo/mcp-training/marsrover/game/layout"
)

// SessionInfo provides information about a rover session
type SessionInfo struct {
	ID             string            `json:"id"`
	LayoutID       string            `json:"layout_id"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	State          engine.RoverState `json:"state"`
	Layout         *layout.Layout    `json:"layout"`
}

// ExecOptions controls how a command string is run
type ExecOptions struct {
	Async  bool          `json:"async"`
	Strict bool          `json:"strict"`          // Reject unknown runes instead of skipping them
	Delay  time.Duration `json:"delay,omitempty"` // Async pacing override; zero uses the service default
}

// RunResult contains the outcome of a command stream
type RunResult struct {
	RunID          int64              `json:"run_id,omitempty"`
	Commands       string             `json:"commands"`
	Status         engine.RunStatus   `json:"status"`
	RequestedSteps int                `json:"requested_steps"`
	StepsExecuted  int                `json:"steps_executed"`
	StoppedOnStep  int                `json:"stopped_on_step,omitempty"` // 1-based index of the blocked step
	StopReason     engine.BlockReason `json:"stop_reason,omitempty"`
	Message        string             `json:"message,omitempty"`
	Error          string             `json:"error,omitempty"`

	Start engine.Position `json:"start"`
	End   engine.Position `json:"end"`

	// Per-step trace (empty for async runs, which stream steps instead)
	Steps []engine.StepResult `json:"steps,omitempty"`

	PendingObstacle *engine.Position  `json:"pending_obstacle,omitempty"`
	CanFireLaser    bool              `json:"can_fire_laser"`
	State           engine.RoverState `json:"state"`
}

// LaserResult contains the outcome of a laser shot
type LaserResult struct {
	Cleared engine.Position   `json:"cleared"`
	Message string            `json:"message"`
	State   engine.RoverState `json:"state"`
}

// EventType names the messages pushed to observers
type EventType string

const (
	EventStep        EventType = "step"
	EventCleared     EventType = "cleared"
	EventRunFinished EventType = "run_finished"
	EventStateUpdate EventType = "state_update"
)

// Event is a single notification about a session
type Event struct {
	SessionID string             `json:"session_id"`
	Type      EventType          `json:"event"`
	Step      *engine.StepResult `json:"step,omitempty"`
	Result    *RunResult         `json:"result,omitempty"`
	State     *engine.RoverState `json:"state,omitempty"`
	Message   string             `json:"message,omitempty"`
}

// HistoryOptions configures step history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
	RunID int64  `json:"run_id,omitempty"`
}

// StepRecord is a journaled step
type StepRecord struct {
	RunID      int64              `json:"run_id"`
	Index      int                `json:"idx"`
	Command    string             `json:"command"`
	Kind       engine.StepKind    `json:"kind"`
	Position   engine.Position    `json:"position"`
	Heading    engine.Heading     `json:"heading"`
	Reason     engine.BlockReason `json:"reason,omitempty"`
	RecordedAt time.Time          `json:"recorded_at"`
}

// RunRecord summarizes a journaled run
type RunRecord struct {
	ID            int64            `json:"id"`
	SessionID     string           `json:"session_id"`
	Commands      string           `json:"commands"`
	Status        engine.RunStatus `json:"status"`
	StepsExecuted int              `json:"steps_executed"`
	StartedAt     time.Time        `json:"started_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`
}

// HistoryResponse contains paginated step history
type HistoryResponse struct {
	Steps       []StepRecord `json:"steps"`
	Runs        []RunRecord  `json:"runs,omitempty"`
	TotalSteps  int          `json:"total_steps"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	TotalPages  int          `json:"total_pages"`
	HasNext     bool         `json:"has_next"`
	HasPrevious bool         `json:"has_previous"`
}

// LayoutInfo provides information about a layout preset
type LayoutInfo struct {
	Filename    string `json:"filename"`
	LayoutID    string `json:"layout_id"` // The identifier to use for session creation
	Name        string `json:"name"`
	Description string `json:"description"`
	Weirs       int    `json:"weirs"`
	CommandLen  int    `json:"command_length"`
}
