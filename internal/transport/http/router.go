package pipelinehttp

import (
	"errors"
	"net/http"
	"time"

	"tribune/internal/orchestrator"
	"tribune/internal/signal"

	"github.com/gin-gonic/gin"
)

// Router exposes the decision pipeline: signal intake, read-only decision and
// audit queries, and the abandon control for failed runs.
type Router struct {
	orch *orchestrator.Orchestrator
}

func NewRouter(orch *orchestrator.Orchestrator) *Router {
	return &Router{orch: orch}
}

// Register mounts the pipeline routes onto the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/signals", r.handleSubmit)
	group.GET("/signals/:id/decision", r.handleDecision)
	group.GET("/signals/:id/audit", r.handleAudit)
	group.POST("/signals/:id/abandon", r.handleAbandon)
}

func (r *Router) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sig, err := req.toSignal(time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := r.orch.Submit(c.Request.Context(), sig)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, renderDecision(d))
	case orchestrator.IsDuplicate(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		var failed *orchestrator.FailedError
		if errors.As(err, &failed) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "pipeline failed",
				"reason": failed.Reason,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

func (r *Router) handleDecision(c *gin.Context) {
	id := c.Param("id")
	d, ok := r.orch.Decision(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no decision for signal " + id})
		return
	}
	c.JSON(http.StatusOK, renderDecision(d))
}

func (r *Router) handleAudit(c *gin.Context) {
	id := c.Param("id")
	records, err := r.orch.AuditTrail(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audit trail for signal " + id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signal_id": id, "records": renderAudit(records)})
}

func (r *Router) handleAbandon(c *gin.Context) {
	id := c.Param("id")
	err := r.orch.Abandon(c.Request.Context(), id)
	switch {
	case err == nil:
		c.Status(http.StatusNoContent)
	case errors.Is(err, signal.ErrUnknownSignal):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}
