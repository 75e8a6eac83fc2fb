package pipeline

import (
	"context"
	"fmt"

	domainagent "github.com/alanyang/nlq-bench/internal/domain/agent"
	domainpipeline "github.com/alanyang/nlq-bench/internal/domain/pipeline"
	agentsvc "github.com/alanyang/nlq-bench/internal/service/agent"
)

// Processor is one agent as seen by a pipeline.
type Processor interface {
	Process(ctx context.Context, input string, opts agentsvc.ProcessOptions) (*domainagent.Result, error)
}

type Option func(*NLQSQLPipeline)

// WithSchemaContext appends schema to the SQL stage context after the
// "Refined from:" line.
func WithSchemaContext(schema string) Option {
	return func(p *NLQSQLPipeline) { p.schema = schema }
}

// NLQSQLPipeline refines a user query, then generates SQL from the refined
// query. It keeps no state between calls.
// [SRP] Stage sequencing only; prompt handling belongs to the agents.
type NLQSQLPipeline struct {
	stages map[domainpipeline.Stage]Processor
	config domainpipeline.Config
	schema string
}

func NewNLQSQLPipeline(nlq, sql Processor, opts ...Option) *NLQSQLPipeline {
	p := &NLQSQLPipeline{
		stages: map[domainpipeline.Stage]Processor{
			domainpipeline.StageNLQ: nlq,
			domainpipeline.StageSQL: sql,
		},
		config: domainpipeline.DefaultConfig,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs the stages in order. A stage starts only after the previous
// one returned, and a stage error aborts the call.
func (p *NLQSQLPipeline) Execute(ctx context.Context, query, nlqKey, sqlKey string) (*domainpipeline.Result, error) {
	keys := map[domainpipeline.Stage]string{
		domainpipeline.StageNLQ: nlqKey,
		domainpipeline.StageSQL: sqlKey,
	}

	results := make(map[domainpipeline.Stage]*domainagent.Result, len(domainpipeline.Order))
	var prev *domainagent.Result
	for _, stage := range domainpipeline.Order {
		action := p.config[stage]

		input := query
		if action.FromPrevious && prev != nil {
			input = prev.Output()
		}
		opts := agentsvc.ProcessOptions{InstructionKey: keys[stage]}
		if action.WithOrigin {
			opts.Context = domainpipeline.OriginContext(query, p.schema)
		}

		res, err := p.stages[stage].Process(ctx, input, opts)
		if err != nil {
			return nil, fmt.Errorf("%s stage: %w", stage, err)
		}
		results[stage] = res
		prev = res
	}

	nlq, sql := results[domainpipeline.StageNLQ], results[domainpipeline.StageSQL]
	return &domainpipeline.Result{
		OriginalQuery: query,
		RefinedQuery:  nlq.RefinedQuery,
		SQL:           sql.SQL,
		Stages: domainpipeline.Stages{
			NLQ: nlq,
			SQL: sql,
		},
	}, nil
}

// AmbiguityPipeline is the single-stage ambiguity check. It shares nothing
// with NLQSQLPipeline.
type AmbiguityPipeline struct {
	agent Processor
}

func NewAmbiguityPipeline(agent Processor) *AmbiguityPipeline {
	return &AmbiguityPipeline{agent: agent}
}

func (p *AmbiguityPipeline) Execute(ctx context.Context, query, key string) (*domainagent.Result, error) {
	res, err := p.agent.Process(ctx, query, agentsvc.ProcessOptions{InstructionKey: key})
	if err != nil {
		return nil, fmt.Errorf("ambiguity stage: %w", err)
	}
	return res, nil
}
