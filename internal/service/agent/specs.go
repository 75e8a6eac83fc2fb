package agent

import (
	domainagent "github.com/alanyang/nlq-bench/internal/domain/agent"
	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	portgenerator "github.com/alanyang/nlq-bench/internal/port/generator"
)

// Token budgets per agent kind.
const (
	AmbiguityMaxNewTokens = 256
	NLQMaxNewTokens       = 256
	SQLMaxNewTokens       = 200
)

var AmbiguitySpec = Spec{
	Task:         domainagent.TaskAmbiguityDetection,
	DefaultKey:   domaininstruction.KeyAmbiguityDetection,
	MaxNewTokens: AmbiguityMaxNewTokens,
	Fallback:     ambiguityFallback,
	Extract: func(r *domainagent.Result, response string) {
		r.Classification = ExtractClassification(response)
	},
}

var NLQSpec = Spec{
	Task:         domainagent.TaskNLQRefinement,
	DefaultKey:   domaininstruction.KeyNLQRefinement,
	MaxNewTokens: NLQMaxNewTokens,
	Fallback:     nlqFallback,
	Extract: func(r *domainagent.Result, response string) {
		r.RefinedQuery = ExtractRefinedQuery(response)
	},
}

var SQLSpec = Spec{
	Task:         domainagent.TaskSQLGeneration,
	DefaultKey:   domaininstruction.KeySQLGeneration,
	MaxNewTokens: SQLMaxNewTokens,
	Fallback:     sqlFallback,
	Extract: func(r *domainagent.Result, response string) {
		r.SQL = ExtractSQL(response)
	},
}

func NewAmbiguityAgent(gen portgenerator.Generator, instructions Instructions, opts ...Option) *Agent {
	return New(gen, instructions, AmbiguitySpec, opts...)
}

func NewNLQAgent(gen portgenerator.Generator, instructions Instructions, opts ...Option) *Agent {
	return New(gen, instructions, NLQSpec, opts...)
}

func NewSQLAgent(gen portgenerator.Generator, instructions Instructions, opts ...Option) *Agent {
	return New(gen, instructions, SQLSpec, opts...)
}

// SpecFor returns the spec of the agent that performs task.
func SpecFor(task domainagent.Task) (Spec, bool) {
	switch task {
	case domainagent.TaskAmbiguityDetection:
		return AmbiguitySpec, true
	case domainagent.TaskNLQRefinement:
		return NLQSpec, true
	case domainagent.TaskSQLGeneration:
		return SQLSpec, true
	}
	return Spec{}, false
}

func ambiguityFallback(input, _ string) string {
	return "Analyze if this query is ambiguous or clear:\n\n" +
		"Query: " + input + "\n\n" +
		"Is this ambiguous? Provide classification (Ambiguous/Clear) and brief reason."
}

func nlqFallback(input, context string) string {
	return "Refine this user query to make it clearer and more specific:\n\n" +
		"Original Query: " + input + "\n\n" +
		contextLine(context) + "\n\n" +
		"Provide a refined version of the query that is:\n" +
		"- More specific and complete\n" +
		"- Includes necessary details\n" +
		"- Clear about intent\n\n" +
		"Refined Query:"
}

func sqlFallback(input, context string) string {
	return "Generate a SQL query for this request:\n\n" +
		"Request: " + input + "\n\n" +
		contextLine(context) + "\n\n" +
		"Rules:\n" +
		"- Generate valid SQL syntax\n" +
		"- Include appropriate clauses (WHERE, GROUP BY, ORDER BY as needed)\n" +
		"- Return only the SQL query without explanations\n\n" +
		"SQL Query:"
}

func contextLine(context string) string {
	if context == "" {
		return ""
	}
	return "Context: " + context
}
