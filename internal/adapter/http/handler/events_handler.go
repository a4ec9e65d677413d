package handler

import (
	"errors"
	"io"
	"time"

	"secure-escrow/internal/adapter/http/dto"
	"secure-escrow/internal/core/ports"
	"secure-escrow/pkg/apperror"
	"secure-escrow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultHeartbeat = 25 * time.Second

var errStreamDisabled = errors.New("event stream not configured")

// EventsHandler streams escrow changes as server-sent events so clients
// can re-render without polling.
type EventsHandler struct {
	escrowSvc ports.EscrowService
	events    ports.EventSubscriber
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventsHandler creates a new EventsHandler. A nil subscriber makes the
// stream answer COL_001.
func NewEventsHandler(escrowSvc ports.EscrowService, events ports.EventSubscriber, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{
		escrowSvc: escrowSvc,
		events:    events,
		heartbeat: defaultHeartbeat,
		log:       log,
	}
}

// Watch handles GET /api/v1/escrows/:id/events. The first event is a
// snapshot of the escrow; each later one carries the type and new version.
func (h *EventsHandler) Watch(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, ok := escrowID(c)
	if !ok {
		return
	}
	if h.events == nil {
		response.Error(c, apperror.ErrCollaboratorUnavailable("event stream", errStreamDisabled))
		return
	}

	ctx := c.Request.Context()
	// Access check before subscribing; strangers get the usual 403/404.
	escrow, err := h.escrowSvc.Get(ctx, id, caller)
	if err != nil {
		response.Error(c, err)
		return
	}

	events, cancel, err := h.events.Subscribe(ctx, id)
	if err != nil {
		h.log.Warn().Err(err).Str("escrow_id", id.String()).Msg("event subscribe failed")
		response.Error(c, apperror.ErrCollaboratorUnavailable("event stream", err))
		return
	}
	defer cancel()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent("snapshot", dto.NewEscrowResponse(escrow))
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-heartbeat.C:
			c.SSEvent("heartbeat", time.Now().Unix())
			return true
		}
	})
}
