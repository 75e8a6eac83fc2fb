package pipeline

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	pipelinesvc "github.com/alanyang/nlq-bench/internal/service/pipeline"
)

func Register(rg *gin.RouterGroup, nlqsql *pipelinesvc.NLQSQLPipeline, ambiguity *pipelinesvc.AmbiguityPipeline) {
	rg.POST("/nlq-sql", runNLQSQL(nlqsql))
	rg.POST("/ambiguity", runAmbiguity(ambiguity))
}

type nlqSQLReq struct {
	Query             string `json:"query" binding:"required"`
	NLQInstructionKey string `json:"nlq_instruction_key"`
	SQLInstructionKey string `json:"sql_instruction_key"`
}

func runNLQSQL(p *pipelinesvc.NLQSQLPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req nlqSQLReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := p.Execute(c.Request.Context(), req.Query, req.NLQInstructionKey, req.SQLInstructionKey)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type ambiguityReq struct {
	Query          string `json:"query" binding:"required"`
	InstructionKey string `json:"instruction_key"`
}

func runAmbiguity(p *pipelinesvc.AmbiguityPipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ambiguityReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		res, err := p.Execute(c.Request.Context(), req.Query, req.InstructionKey)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func errorStatus(err error) int {
	if errors.Is(err, domaininstruction.ErrMalformedTemplate) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
