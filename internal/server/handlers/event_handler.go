package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/milkwatch/internal/domain/models"
	"github.com/mamadbah2/milkwatch/internal/service/ingest"
)

const (
	defaultPageLimit = 30
	maxPageLimit     = 100
)

// EventRecorder stores incoming animals and events.
type EventRecorder interface {
	RegisterAnimal(ctx context.Context, req ingest.NewAnimalRequest) (models.Animal, error)
	RecordEvent(ctx context.Context, req ingest.NewEventRequest) (models.AnimalEvent, error)
}

// YieldMaterializer attaches yield records to milking events.
type YieldMaterializer interface {
	Materialize(ctx context.Context, milkingID int64) (models.MilkingView, error)
	MaterializePage(ctx context.Context, offset, limit int) ([]models.MilkingView, error)
}

// AlarmNotifier pushes low-yield alerts.
type AlarmNotifier interface {
	NotifyYieldAlarm(ctx context.Context, view models.MilkingView) error
}

// EventHandler serves event ingestion and milk yield reads.
type EventHandler struct {
	recorder     EventRecorder
	materializer YieldMaterializer
	notifier     AlarmNotifier
	logger       *zap.Logger
}

// NewEventHandler constructs the HTTP handler adapter.
func NewEventHandler(recorder EventRecorder, materializer YieldMaterializer, notifier AlarmNotifier, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{recorder: recorder, materializer: materializer, notifier: notifier, logger: logger}
}

// CreateAnimal registers an animal.
func (h *EventHandler) CreateAnimal(c *gin.Context) {
	var req ingest.NewAnimalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid animal payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	animal, err := h.recorder.RegisterAnimal(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "failed to register animal", err)
		return
	}
	c.JSON(http.StatusCreated, animal)
}

// CreateEvent records an animal event.
func (h *EventHandler) CreateEvent(c *gin.Context) {
	var req ingest.NewEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid event payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	event, err := h.recorder.RecordEvent(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "failed to record event", err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

// ListMilkingEvents returns a page of milking events with their yield records.
func (h *EventHandler) ListMilkingEvents(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be an integer"})
		return
	}
	limit, err := queryInt(c, "limit", defaultPageLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
		return
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	views, err := h.materializer.MaterializePage(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, h.logger, "failed to list milking events", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offset": offset, "limit": limit, "items": views})
}

// GetMilkYield materializes the yield record of one milking event. With
// notify=true an ALARM record is pushed to the farm manager.
func (h *EventHandler) GetMilkYield(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid milking event id"})
		return
	}

	view, err := h.materializer.Materialize(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, "failed to evaluate milk yield", err)
		return
	}

	if c.Query("notify") == "true" && h.notifier != nil {
		if err := h.notifier.NotifyYieldAlarm(c.Request.Context(), view); err != nil {
			h.logger.Warn("failed to send yield alarm", zap.Int64("milking_event_id", id), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, view)
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
