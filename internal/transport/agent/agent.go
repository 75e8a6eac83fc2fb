package agent

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	agentsvc "github.com/alanyang/nlq-bench/internal/service/agent"
	"github.com/alanyang/nlq-bench/internal/service/benchmark"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
)

// Register exposes each agent for single-query calls. schema is the SQL
// agent's context when the request carries none.
func Register(rg *gin.RouterGroup, agents benchmark.Agents, schema string) {
	rg.POST("/ambiguity", process(agents.Ambiguity, ""))
	rg.POST("/nlq", process(agents.NLQ, ""))
	rg.POST("/sql", process(agents.SQL, schema))
}

type processReq struct {
	Input          string `json:"input" binding:"required"`
	InstructionKey string `json:"instruction_key"`
	Context        string `json:"context"`
}

func process(p pipelinesvc.Processor, defaultContext string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req processReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Context == "" {
			req.Context = defaultContext
		}

		res, err := p.Process(c.Request.Context(), req.Input, agentsvc.ProcessOptions{
			InstructionKey: req.InstructionKey,
			Context:        req.Context,
		})
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// errorStatus blames the model server unless the instruction itself is broken.
func errorStatus(err error) int {
	if errors.Is(err, domaininstruction.ErrMalformedTemplate) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
