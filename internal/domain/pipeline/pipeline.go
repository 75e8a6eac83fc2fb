package pipeline

import (
	"github.com/alanyang/nlq-bench/internal/domain/agent"
)

// Stage names a step of the NLQ → SQL chain.
type Stage string

const (
	StageNLQ Stage = "nlq"
	StageSQL Stage = "sql"
)

// StageAction describes which agent runs at a stage and how its input is fed.
type StageAction struct {
	// Task is the agent task executed at this stage.
	Task agent.Task

	// FromPrevious means the stage input is the previous stage's extracted
	// output rather than the original user query.
	FromPrevious bool

	// WithOrigin means the stage context carries the original query.
	WithOrigin bool
}

// Config maps each stage to its action.
type Config map[Stage]StageAction

// DefaultConfig is the two-stage refinement chain: the NLQ agent refines the
// user query, and its refined query is the SQL agent's input.
var DefaultConfig = Config{
	StageNLQ: {
		Task: agent.TaskNLQRefinement,
	},
	StageSQL: {
		Task:         agent.TaskSQLGeneration,
		FromPrevious: true,
		WithOrigin:   true,
	},
}

// Order is the execution order of DefaultConfig. Stage N+1 never starts
// before stage N has returned.
var Order = []Stage{StageNLQ, StageSQL}

// Stages holds the per-stage agent results. They are shared, not copied.
type Stages struct {
	NLQ *agent.Result `json:"nlq"`
	SQL *agent.Result `json:"sql"`
}

// Result is the outcome of one NLQ → SQL pipeline execution.
type Result struct {
	OriginalQuery string `json:"original_query"`
	RefinedQuery  string `json:"refined_query"`
	SQL           string `json:"sql"`
	Stages        Stages `json:"stages"`
}

// OriginContext builds the SQL-stage context: the literal "Refined from: "
// note, followed by the schema description after a blank line when one is set.
func OriginContext(originalQuery, schemaContext string) string {
	ctx := "Refined from: " + originalQuery
	if schemaContext != "" {
		ctx += "\n\n" + schemaContext
	}
	return ctx
}
