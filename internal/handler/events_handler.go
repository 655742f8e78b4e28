package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rcmos/commons/error_handler"
	"rcmos/commons/handler"
	"rcmos/internal/domain"
	eventbus "rcmos/internal/eventbus/iface"
	"rcmos/internal/logger"

	"github.com/gin-gonic/gin"
)

const defaultHeartbeat = 15 * time.Second

// EventsHandler streams bus events to the client as server-sent events.
type EventsHandler struct {
	logger    logger.Logger
	bus       eventbus.Bus
	heartbeat time.Duration
}

func NewEventsHandler(log logger.Logger, bus eventbus.Bus, heartbeat time.Duration) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &EventsHandler{
		logger:    log.With(logger.String("component", "events_handler")),
		bus:       bus,
		heartbeat: heartbeat,
	}
}

func (h *EventsHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	filter := domain.EventFilter{
		RunID:   c.Query("run_id"),
		BatchID: c.Query("batch_id"),
	}

	sub, err := h.bus.Subscribe(ctx, filter)
	if err != nil {
		h.logger.Error("failed to subscribe to events", logger.Error(err))
		handler.SendErrorResponse(c, struct{}{}, error_handler.FromError(err))
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	h.logger.Debug("event stream opened",
		logger.String("run_id", filter.RunID),
		logger.String("batch_id", filter.BatchID))

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("event stream closed by client")
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			raw, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("dropping unencodable event", logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", raw); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}
