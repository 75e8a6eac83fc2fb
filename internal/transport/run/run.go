package run

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainrun "github.com/alanyang/nlq-bench/internal/domain/run"
	runsvc "github.com/alanyang/nlq-bench/internal/service/run"
)

func Register(rg *gin.RouterGroup, svc *runsvc.Service) {
	rg.POST("", startRun(svc))
	rg.GET("", listRuns(svc))
	rg.GET("/:id", getRun(svc))
	rg.POST("/:id/cancel", cancelRun(svc))
}

type startRunReq struct {
	Task         domainrun.Kind            `json:"task" binding:"required"`
	Model        string                    `json:"model"`
	Dataset      string                    `json:"dataset"`
	Cases        []domainrun.Case          `json:"cases"`
	Instructions domainrun.InstructionKeys `json:"instructions"`
}

func startRun(svc *runsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startRunReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rn, err := svc.Start(c.Request.Context(), runsvc.StartRequest{
			Model:        req.Model,
			Kind:         req.Task,
			Dataset:      req.Dataset,
			Cases:        req.Cases,
			Instructions: req.Instructions,
		})
		if err != nil {
			if errors.Is(err, runsvc.ErrInvalidKind) || errors.Is(err, runsvc.ErrNoCases) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, rn)
	}
}

func listRuns(svc *runsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filters domainrun.ListFilters

		if v := c.Query("model"); v != "" {
			filters.Model = &v
		}
		if v := c.Query("task"); v != "" {
			k := domainrun.Kind(v)
			if !k.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task"})
				return
			}
			filters.Kind = &k
		}
		if v := c.Query("status"); v != "" {
			s := domainrun.Status(v)
			filters.Status = &s
		}
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			filters.Limit = n
		}

		runs, err := svc.List(c.Request.Context(), filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if runs == nil {
			runs = []domainrun.Run{}
		}
		c.JSON(http.StatusOK, runs)
	}
}

func getRun(svc *runsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		rn, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, domainrun.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rn)
	}
}

func cancelRun(svc *runsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		if err := svc.Cancel(c.Request.Context(), id); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusAccepted)
	}
}
