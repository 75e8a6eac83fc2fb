package agent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainagent "github.com/alanyang/nlq-bench/internal/domain/agent"
	agentsvc "github.com/alanyang/nlq-bench/internal/service/agent"
)

func TestExtractClassification(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     domainagent.Classification
	}{
		{name: "ambiguous", response: "This query is AMBIGUOUS because the time period is missing", want: domainagent.ClassificationAmbiguous},
		{name: "not ambiguous wins", response: "The query is not ambiguous.", want: domainagent.ClassificationClear},
		{name: "not ambiguous alongside ambiguous", response: "Ambiguous? No, it is not ambiguous.", want: domainagent.ClassificationClear},
		{name: "clear", response: "Classification: Clear", want: domainagent.ClassificationClear},
		{name: "clear lower", response: "it's clear enough", want: domainagent.ClassificationClear},
		{name: "neither", response: "I cannot determine this.", want: domainagent.ClassificationUnknown},
		{name: "empty", response: "", want: domainagent.ClassificationUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agentsvc.ExtractClassification(tt.response))
		})
	}
}

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{name: "sql label then multi-line", response: "SQL:\nSELECT * FROM t\nWHERE x=1", want: "SELECT * FROM t"},
		{name: "leading select keyword stripped", response: "select name from users", want: "name from users"},
		{name: "leading SELECT keyword stripped", response: "SELECT COUNT(*) FROM upi", want: "COUNT(*) FROM upi"},
		{name: "query label", response: "Query: SELECT 1", want: "SELECT 1"},
		{name: "QUERY label", response: "QUERY:   SELECT 2  ", want: "SELECT 2"},
		{name: "lower sql label", response: "sql: with t as (select 1) select * from t", want: "with t as (select 1) select * from t"},
		{name: "only one prefix stripped", response: "SQL: SQL: x", want: "SQL: x"},
		{name: "prefix not at start is kept", response: "Here: SQL: select 1", want: "Here: SQL: select 1"},
		{name: "surrounding whitespace", response: "\n\n  WITH a AS (x) SELECT 1\nmore", want: "WITH a AS (x) SELECT 1"},
		{name: "empty", response: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agentsvc.ExtractSQL(tt.response))
		})
	}
}

func TestExtractRefinedQuery(t *testing.T) {
	assert.Equal(t, "Fetch top 10 merchants by txnamount", agentsvc.ExtractRefinedQuery("  Fetch top 10 merchants by txnamount\n"))
}
