package agent

// Task identifies which agent produced a result.
type Task string

const (
	TaskAmbiguityDetection Task = "ambiguity_detection"
	TaskNLQRefinement      Task = "nlq_refinement"
	TaskSQLGeneration      Task = "sql_generation"
)

// Classification is the ambiguity agent's verdict.
type Classification string

const (
	ClassificationAmbiguous Classification = "Ambiguous"
	ClassificationClear     Classification = "Clear"
	ClassificationUnknown   Classification = "Unknown"
)

// Result is what one agent invocation returns. Exactly one of Classification,
// RefinedQuery or SQL is populated, depending on Task.
type Result struct {
	Input          string         `json:"input"`
	Task           Task           `json:"task"`
	FullResponse   string         `json:"full_response"`
	Context        string         `json:"context,omitempty"`
	InstructionKey string         `json:"instruction_key,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	RefinedQuery   string         `json:"refined_query,omitempty"`
	SQL            string         `json:"sql,omitempty"`
}

// Output returns the task-specific extracted field as text, which is what
// gets scored against an expected value.
func (r *Result) Output() string {
	switch r.Task {
	case TaskAmbiguityDetection:
		return string(r.Classification)
	case TaskNLQRefinement:
		return r.RefinedQuery
	case TaskSQLGeneration:
		return r.SQL
	default:
		return r.FullResponse
	}
}

// ParseTask maps a task name to its Task, accepting only the three known values.
func ParseTask(s string) (Task, bool) {
	switch t := Task(s); t {
	case TaskAmbiguityDetection, TaskNLQRefinement, TaskSQLGeneration:
		return t, true
	}
	return "", false
}
