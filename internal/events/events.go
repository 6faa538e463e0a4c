// Package events publishes exam and proctoring events to a RabbitMQ topic
// exchange.
package events

import (
	"time"

	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
)

const DefaultExchange = "integriguard.events"

type EventType string

const (
	EventExamSubmitted  EventType = "exam.submitted"
	EventExamTerminated EventType = "exam.terminated"
	EventProctorWarning EventType = "proctor.warning"
)

type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId"`
	ExamID    string    `json:"examId"`
	StudentID string    `json:"studentId"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

type SubmittedPayload struct {
	Outcome   proctor.Outcome  `json:"outcome"`
	Counters  proctor.Counters `json:"counters"`
	TimeSpent int              `json:"timeSpent"`
	Error     string           `json:"error,omitempty"`
}

type WarningPayload struct {
	Code     string           `json:"code"`
	Title    string           `json:"title"`
	Message  string           `json:"message"`
	Risk     int              `json:"riskScore"`
	Counters proctor.Counters `json:"counters"`
}
