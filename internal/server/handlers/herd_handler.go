package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/service/reconciliation"
)

// HerdSummarizer builds per-animal summaries.
type HerdSummarizer interface {
	Summary(ctx context.Context, animalID int64, now time.Time) (models.AnimalSummary, error)
}

// Reconciler runs a lactation reconciliation.
type Reconciler interface {
	Run(ctx context.Context, opts reconciliation.RunOptions) (models.RunReport, error)
}

// HerdHandler serves animal summaries and manual reconciliation runs.
type HerdHandler struct {
	herd       HerdSummarizer
	reconciler Reconciler
	logger     *zap.Logger
	now        func() time.Time
}

// NewHerdHandler constructs the HTTP handler adapter.
func NewHerdHandler(herd HerdSummarizer, reconciler Reconciler, logger *zap.Logger) *HerdHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HerdHandler{herd: herd, reconciler: reconciler, logger: logger, now: time.Now}
}

// GetSummary returns the lactation summary of an animal.
func (h *HerdHandler) GetSummary(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid animal id"})
		return
	}

	summary, err := h.herd.Summary(c.Request.Context(), id, h.now())
	if err != nil {
		respondError(c, h.logger, "failed to summarize animal", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// manualRunTimeout bounds a reconciliation started over HTTP. The run is
// detached from the request so a client disconnect does not abort it.
const manualRunTimeout = 30 * time.Minute

type reconcileRequest struct {
	Limit int `json:"limit" binding:"min=0"`
}

// Reconcile runs a reconciliation synchronously and returns its report.
func (h *HerdHandler) Reconcile(c *gin.Context) {
	var req reconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), manualRunTimeout)
	defer cancel()

	report, err := h.reconciler.Run(ctx, reconciliation.RunOptions{Limit: req.Limit})
	if err != nil {
		if report.RunID == "" {
			respondError(c, h.logger, "failed to start reconciliation", err)
			return
		}
		h.logger.Error("reconciliation aborted", zap.String("run_id", report.RunID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation aborted", "report": report})
		return
	}
	c.JSON(http.StatusOK, report)
}
