package run

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alanyang/nlq-bench/internal/domain/agent"
	"github.com/alanyang/nlq-bench/internal/domain/pipeline"
)

var (
	ErrNotFound = errors.New("run not found")

	// ErrStatusConflict is returned by a status CAS when the stored status is
	// not the expected one.
	ErrStatusConflict = errors.New("run status conflict")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:   {StatusCompleted, StatusFailed, StatusCancelled},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	allowed, ok := validTransitions[s]
	return ok && len(allowed) == 0
}

func (s Status) CanTransitionTo(target Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Kind is the benchmark being run over a dataset.
type Kind string

const (
	KindAmbiguity Kind = "ambiguity"
	KindNLQSQL    Kind = "nlq_sql"
	KindNLQ       Kind = "nlq"
	KindSQL       Kind = "sql"
)

func (k Kind) Valid() bool {
	switch k {
	case KindAmbiguity, KindNLQSQL, KindNLQ, KindSQL:
		return true
	}
	return false
}

// InstructionKeys selects the instruction per agent task. Empty means the
// task default.
type InstructionKeys struct {
	Ambiguity string `json:"ambiguity,omitempty"`
	NLQ       string `json:"nlq,omitempty"`
	SQL       string `json:"sql,omitempty"`
}

// Case is one test row loaded from a dataset.
type Case struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// CaseResult is the scored outcome of one case. Match fields are nil when the
// case had no expected value.
type CaseResult struct {
	Index        int              `json:"index"`
	Input        string           `json:"input"`
	Expected     string           `json:"expected"`
	Predicted    string           `json:"predicted"`
	ExactMatch   *bool            `json:"exact_match"`
	PartialMatch *bool            `json:"partial_match"`
	Similarity   *float64         `json:"similarity"`
	LatencyMS    int64            `json:"latency_ms"`
	Error        string           `json:"error,omitempty"`
	Agent        *agent.Result    `json:"agent,omitempty"`
	Pipeline     *pipeline.Result `json:"pipeline,omitempty"`
}

// Skipped reports whether the case had no ground truth to score against.
func (c CaseResult) Skipped() bool { return c.ExactMatch == nil }

// Summary aggregates the case results of a run.
type Summary struct {
	Total          int                          `json:"total"`
	Passed         int                          `json:"passed"`
	Failed         int                          `json:"failed"`
	Errors         int                          `json:"errors"`
	Skipped        int                          `json:"skipped"`
	ExactMatch     int                          `json:"exact_match"`
	PartialMatch   int                          `json:"partial_match"`
	AvgSimilarity  float64                      `json:"avg_similarity"`
	AvgLatencyMS   float64                      `json:"avg_latency_ms"`
	TotalLatencyMS int64                        `json:"total_latency_ms"`
	Distribution   map[agent.Classification]int `json:"classification_distribution,omitempty"`
}

// Run is the persisted report of one benchmark over one dataset and model.
type Run struct {
	ID           uuid.UUID       `json:"id"`
	Model        string          `json:"model"`
	Kind         Kind            `json:"task"`
	Dataset      string          `json:"dataset"`
	Instructions InstructionKeys `json:"instructions"`
	Status       Status          `json:"status"`
	Summary      Summary         `json:"summary"`
	Cases        []CaseResult    `json:"details"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func New(model string, kind Kind, dataset string, keys InstructionKeys) Run {
	return Run{
		ID:           uuid.New(),
		Model:        model,
		Kind:         kind,
		Dataset:      dataset,
		Instructions: keys,
		Status:       StatusPending,
		Cases:        []CaseResult{},
		CreatedAt:    time.Now().UTC(),
	}
}

type ListFilters struct {
	Model  *string
	Kind   *Kind
	Status *Status
	Limit  int
}

// ModelOutcome is one model's line in a multi-model comparison.
type ModelOutcome struct {
	Model          string   `json:"model"`
	Status         Status   `json:"status"`
	RunID          string   `json:"run_id,omitempty"`
	TimeTaken      float64  `json:"time_taken,omitempty"`
	NLQInstruction string   `json:"nlq_instruction,omitempty"`
	SQLInstruction string   `json:"sql_instruction,omitempty"`
	ReportPath     string   `json:"report_path,omitempty"`
	Summary        *Summary `json:"summary,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Comparison is the summary written after benchmarking several models on
// the same dataset.
type Comparison struct {
	StartTime        time.Time      `json:"start_time"`
	EndTime          time.Time      `json:"end_time"`
	Dataset          string         `json:"dataset"`
	Kind             Kind           `json:"task"`
	TotalTimeSeconds float64        `json:"total_time_seconds"`
	Models           []ModelOutcome `json:"models"`
}

// Completed counts the models that finished.
func (c Comparison) Completed() int {
	n := 0
	for _, m := range c.Models {
		if m.Status == StatusCompleted {
			n++
		}
	}
	return n
}
