package run

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusKilled    Status = "killed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusKilled
}

// IsActive reports whether the run counts against the concurrency limit.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// canTransition encodes pending → running → (completed | error | killed).
// A pending run may also fail or be killed before it starts.
func (s Status) canTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusRunning || to.IsTerminal()
	case StatusRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// Strategy names a dispatch strategy.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyFanOut   Strategy = "fan-out"
	StrategyPipeline Strategy = "pipeline"
)

// ParseStrategy maps a wire name to a Strategy; empty selects StrategyAuto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyFanOut:
		return StrategyFanOut, nil
	case StrategyPipeline:
		return StrategyPipeline, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want auto, fan-out or pipeline)", s)
	}
}

const (
	// TaskDisplayLimit bounds the stored task text.
	TaskDisplayLimit = 80
	// PreviewLimit bounds Record.ResultPreview.
	PreviewLimit = 120

	idPrefix    = "run-"
	labelPrefix = "auto-"
)

// Record is one tracked orchestrate invocation.
type Record struct {
	RunID         string    `json:"runId"`
	Label         string    `json:"label"`
	Task          string    `json:"task"`
	Strategy      Strategy  `json:"strategy"`
	Agents        []string  `json:"agents"`
	Status        Status    `json:"status"`
	Background    bool      `json:"background"`
	Depth         int       `json:"depth"`
	CreatedAt     time.Time `json:"createdAt"`
	StartedAt     time.Time `json:"startedAt,omitzero"`
	FinishedAt    time.Time `json:"finishedAt,omitzero"`
	DurationMs    int64     `json:"durationMs,omitempty"`
	Routed        string    `json:"routed,omitempty"`
	Result        any       `json:"result,omitempty"`
	Error         string    `json:"error,omitempty"`
	ResultPreview string    `json:"resultPreview,omitempty"`
}

// Summary is the list view of a run.
type Summary struct {
	RunID         string `json:"runId"`
	Label         string `json:"label"`
	Task          string `json:"task"`
	Status        Status `json:"status"`
	ResultPreview string `json:"resultPreview,omitempty"`
}

// Summary returns the list view of r.
func (r Record) Summary() Summary {
	return Summary{
		RunID:         r.RunID,
		Label:         r.Label,
		Task:          r.Task,
		Status:        r.Status,
		ResultPreview: r.ResultPreview,
	}
}

func (r Record) clone() Record {
	if r.Agents != nil {
		r.Agents = append([]string(nil), r.Agents...)
	}
	return r
}

// NewID generates a run id. The fixed prefix keeps ids from being mistaken
// for positional indexes during resolution.
func NewID() string {
	return idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewLabel generates an auto label.
func NewLabel() string {
	return labelPrefix + uuid.NewString()[:6]
}

// Truncate shortens s to limit runes, appending an ellipsis marker when cut.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
