package agent

import (
	"strings"

	domainagent "github.com/alanyang/nlq-bench/internal/domain/agent"
)

// sqlPrefixes are tried in order; only the first match is stripped.
var sqlPrefixes = []string{"SQL:", "sql:", "QUERY:", "Query:", "SELECT", "select"}

// ExtractClassification maps a free-text assessment to a verdict.
// "not ambiguous" always wins over a bare "ambiguous".
func ExtractClassification(response string) domainagent.Classification {
	lower := strings.ToLower(response)
	notAmbiguous := strings.Contains(lower, "not ambiguous")

	switch {
	case strings.Contains(lower, "ambiguous") && !notAmbiguous:
		return domainagent.ClassificationAmbiguous
	case strings.Contains(lower, "clear") || notAmbiguous:
		return domainagent.ClassificationClear
	default:
		return domainagent.ClassificationUnknown
	}
}

func ExtractRefinedQuery(response string) string {
	return strings.TrimSpace(response)
}

// ExtractSQL returns the first line of the response after removing one
// leading label. A leading SELECT keyword counts as a label and is removed
// too, and only the first line survives.
func ExtractSQL(response string) string {
	s := strings.TrimSpace(response)
	for _, prefix := range sqlPrefixes {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}
	first, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(first)
}
