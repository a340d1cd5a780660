package websocket

import "github.com/stemsi/earlyreg-backend/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError      Event = "error"
	EventSnapshot   Event = "snapshot"
	EventEnrollment Event = "enrollment"
	EventPong       Event = "pong"
)

// SnapshotResponse is sent once on connect with the current catalog.
type SnapshotResponse struct {
	Event    Event                 `json:"event"`
	Subjects []model.SubjectDetail `json:"subjects"`
}

// EnrollmentResponse forwards one accepted registration.
type EnrollmentResponse struct {
	Event Event                 `json:"event"`
	Data  model.EnrollmentEvent `json:"data"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
