package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/earlyreg-backend/internal/middleware"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/repository"
	"github.com/stemsi/earlyreg-backend/internal/service"
	ws "github.com/stemsi/earlyreg-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// EventSubscriber opens a subscription to the enrollment event channel.
// *repository.EventRepository implements it.
type EventSubscriber interface {
	Subscribe(ctx context.Context) repository.Subscription
}

// WSHandler streams live enrollment counts to connected students.
type WSHandler struct {
	events         EventSubscriber
	subjectService *service.SubjectService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(events EventSubscriber, subjectService *service.SubjectService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		events:         events,
		subjectService: subjectService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SubjectStream godoc
// WS /ws/v1/subjects/stream
// Sends a catalog snapshot, then one message per accepted registration.
func (h *WSHandler) SubjectStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	wsLog := h.log.With().Str("student_id", claims.StudentID).Logger()

	sub := h.events.Subscribe(ctx)
	defer sub.Close()

	if err := ws.WriteTyped(conn, ws.SnapshotResponse{
		Event:    ws.EventSnapshot,
		Subjects: h.subjectService.Details(),
	}); err != nil {
		wsLog.Debug().Err(err).Msg("Snapshot write failed")
		return
	}

	wsLog.Info().Msg("Student connected to subject stream")

	// All writes happen on this goroutine; the reader only forwards actions.
	actions := make(chan ws.Action, 1)
	go h.readLoop(conn, wsLog, actions, cancel)

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return

		case action := <-actions:
			var err error
			if action == ws.ActionPing {
				err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			} else {
				err = ws.WriteError(conn, "unknown action: "+string(action))
			}
			if err != nil {
				return
			}

		case msg, ok := <-msgs:
			if !ok {
				_ = ws.WriteClose(conn, "stream closed")
				return
			}
			var evt model.EnrollmentEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed enrollment event")
				continue
			}
			if err := ws.WriteTyped(conn, ws.EnrollmentResponse{Event: ws.EventEnrollment, Data: evt}); err != nil {
				wsLog.Debug().Err(err).Msg("Event write failed")
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, wsLog zerolog.Logger, actions chan<- ws.Action, cancel context.CancelFunc) {
	defer cancel()
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		// Drop the action when a reply is already pending.
		select {
		case actions <- msg.Action:
		default:
			wsLog.Debug().Str("action", string(msg.Action)).Msg("Dropping action, reply pending")
		}
	}
}
