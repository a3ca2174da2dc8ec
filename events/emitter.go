package events

import (
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/rohit-constellation/retro-core/db"
	"go.uber.org/zap"
)

// EventType discriminates the payloads flowing to session subscribers.
type EventType string

const (
	EventQuestionReady     EventType = "QUESTION_READY"
	EventParticipantStatus EventType = "PARTICIPANT_STATUS"
	EventSessionCompleted  EventType = "SESSION_COMPLETED"
	EventProcessingError   EventType = "PROCESSING_ERROR"
)

// Event is the envelope pushed to every subscriber of a session.
type Event struct {
	Type          EventType    `json:"type"`
	SessionID     string       `json:"sessionId"`
	ParticipantID string       `json:"participantId,omitempty"`
	Question      *db.Question `json:"question,omitempty"`

	ParticipantState  db.ParticipantStatus `json:"participantState,omitempty"`
	CurrentQuestionID string               `json:"currentQuestionId,omitempty"`
	CurrentSectionID  string               `json:"currentSectionId,omitempty"`

	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// LogEmitter satisfies the engine notification port with structured logs
// only. It is the emitter of last resort when no delivery layer is attached,
// and the Broker embeds it so every published event also lands in the log.
type LogEmitter struct{}

func (LogEmitter) QuestionReady(sessionID, participantID string, question db.Question) {
	logger.Info("Question ready",
		zap.String("session", sessionID),
		zap.String("participant", participantID),
		zap.String("question", question.ID),
		zap.String("intent", string(question.Intent)))
}

func (LogEmitter) ParticipantStatus(sessionID, participantID string, status db.ParticipantStatus, currentQuestionID, currentSectionID string) {
	logger.Info("Participant status changed",
		zap.String("session", sessionID),
		zap.String("participant", participantID),
		zap.String("status", string(status)),
		zap.String("currentQuestion", currentQuestionID),
		zap.String("currentSection", currentSectionID))
}

func (LogEmitter) SessionCompleted(sessionID string) {
	logger.Info("Session completed", zap.String("session", sessionID))
}

func (LogEmitter) ProcessingError(sessionID, participantID, code, message string) {
	logger.Error("Processing error notified",
		zap.String("session", sessionID),
		zap.String("participant", participantID),
		zap.String("code", code),
		zap.String("message", message))
}
