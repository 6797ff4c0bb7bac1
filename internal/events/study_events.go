package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the kinds of study events the service emits
type EventType string

const (
	EventSessionCompleted  EventType = "session.completed"
	EventSessionDeleted    EventType = "session.deleted"
	EventSessionReconciled EventType = "session.reconciled"
)

const (
	eventSource  = "study-service"
	eventVersion = "1.0"
)

// StudyEvent is the envelope shared by all study events
type StudyEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	UserID    string                 `json:"user_id"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Session event payloads

type SessionCompletedEvent struct {
	SessionID     uint      `json:"session_id"`
	ModuleID      uint      `json:"module_id"`
	Score         int       `json:"score"`
	CorrectCount  int       `json:"correct_count"`
	QuestionCount int       `json:"question_count"`
	TimeSpent     int       `json:"time_spent"`
	EndTime       time.Time `json:"end_time"`
}

type SessionDeletedEvent struct {
	SessionID uint      `json:"session_id"`
	ModuleID  uint      `json:"module_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

type SessionReconciledEvent struct {
	SessionID     uint      `json:"session_id"`
	ModuleID      uint      `json:"module_id"`
	Score         int       `json:"score"`
	QuestionCount int       `json:"question_count"`
	EndTime       time.Time `json:"end_time"`
}

// Event factory functions

func NewSessionCompletedEvent(userID string, data SessionCompletedEvent) *StudyEvent {
	return newStudyEvent(EventSessionCompleted, userID, data)
}

func NewSessionDeletedEvent(userID string, data SessionDeletedEvent) *StudyEvent {
	return newStudyEvent(EventSessionDeleted, userID, data)
}

func NewSessionReconciledEvent(userID string, data SessionReconciledEvent) *StudyEvent {
	return newStudyEvent(EventSessionReconciled, userID, data)
}

func newStudyEvent(eventType EventType, userID string, data interface{}) *StudyEvent {
	return &StudyEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		UserID:    userID,
		Data:      data,
	}
}

// GenerateEventID returns a new random event id
func GenerateEventID() string {
	return uuid.NewString()
}
