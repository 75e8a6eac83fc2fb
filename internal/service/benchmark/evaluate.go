package benchmark

import (
	"strings"

	domainagent "github.com/alanyang/nlq-bench/internal/domain/agent"
	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
)

// Evaluation scores one prediction. All fields are nil when there was no
// expected value to compare against.
type Evaluation struct {
	ExactMatch   *bool
	PartialMatch *bool
	Similarity   *float64
}

func (e Evaluation) Skipped() bool { return e.ExactMatch == nil }

// Evaluate compares predicted against expected after lower-casing and
// trimming both. Similarity is the share of distinct expected tokens found in
// the prediction.
func Evaluate(predicted, expected string) Evaluation {
	exp := strings.ToLower(strings.TrimSpace(expected))
	if exp == "" {
		return Evaluation{}
	}
	pred := strings.ToLower(strings.TrimSpace(predicted))

	exact := pred == exp
	partial := strings.Contains(pred, exp)

	predTokens := tokenSet(pred)
	expTokens := tokenSet(exp)
	var similarity float64
	if len(predTokens) > 0 && len(expTokens) > 0 {
		overlap := 0
		for tok := range expTokens {
			if _, ok := predTokens[tok]; ok {
				overlap++
			}
		}
		similarity = float64(overlap) / float64(len(expTokens))
	} else if exact {
		similarity = 1
	}

	return Evaluation{ExactMatch: &exact, PartialMatch: &partial, Similarity: &similarity}
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Summarize aggregates case results. A case counts once among passed
// (exact), partial or failed; skipped cases count in none of them.
func Summarize(cases []domainrun.CaseResult) domainrun.Summary {
	s := domainrun.Summary{Total: len(cases)}
	var simSum float64
	scored := 0

	for _, c := range cases {
		s.TotalLatencyMS += c.LatencyMS
		if c.Error != "" {
			s.Errors++
		}
		if c.Agent != nil && c.Agent.Task == domainagent.TaskAmbiguityDetection {
			if s.Distribution == nil {
				s.Distribution = make(map[domainagent.Classification]int)
			}
			s.Distribution[c.Agent.Classification]++
		}

		if c.Skipped() {
			s.Skipped++
			continue
		}
		scored++
		simSum += *c.Similarity
		switch {
		case *c.ExactMatch:
			s.Passed++
			s.ExactMatch++
		case *c.PartialMatch:
			s.PartialMatch++
		default:
			s.Failed++
		}
	}

	if scored > 0 {
		s.AvgSimilarity = simSum / float64(scored)
	}
	if s.Total > 0 {
		s.AvgLatencyMS = float64(s.TotalLatencyMS) / float64(s.Total)
	}
	return s
}
