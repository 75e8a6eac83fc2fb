package instruction

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domaininstruction "github.com/alanyang/nlq-bench/internal/domain/instruction"
	instructionsvc "github.com/alanyang/nlq-bench/internal/service/instruction"
)

func Register(rg *gin.RouterGroup, svc *instructionsvc.Service) {
	rg.GET("", listInstructions(svc))
	rg.POST("", addInstruction(svc))
	rg.GET("/:key", getInstruction(svc))
	rg.POST("/:key/render", renderInstruction(svc))
}

func listInstructions(svc *instructionsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.List())
	}
}

type instructionResp struct {
	Key string `json:"key"`
	domaininstruction.Instruction
}

func getInstruction(svc *instructionsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		ins, err := svc.Get(key)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, instructionResp{Key: key, Instruction: ins})
	}
}

type addInstructionReq struct {
	Name               string `json:"name" binding:"required"`
	SystemPrompt       string `json:"system_prompt" binding:"required"`
	UserPromptTemplate string `json:"user_prompt_template" binding:"required"`
	Description        string `json:"description"`
}

func addInstruction(svc *instructionsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addInstructionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		key, err := svc.AddCustom(c.Request.Context(), req.Name, req.SystemPrompt, req.UserPromptTemplate, req.Description)
		if err != nil {
			if errors.Is(err, instructionsvc.ErrInvalidName) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if key != "" {
				// Registered for this process but not stored.
				c.JSON(http.StatusAccepted, gin.H{"key": key, "warning": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"key": key})
	}
}

type renderReq struct {
	Input   string `json:"input" binding:"required"`
	Context string `json:"context"`
}

func renderInstruction(svc *instructionsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req renderReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rendered, err := svc.Render(c.Param("key"), req.Input, req.Context)
		switch {
		case errors.Is(err, instructionsvc.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domaininstruction.ErrMalformedTemplate):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusOK, rendered)
		}
	}
}
