package engine

import (
	"context"
	"errors"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/rohit-constellation/retro-core/db"
	"go.uber.org/zap"
)

// GetNextQuestion is the idempotent, read-mostly resume path: it returns the
// participant's current question and re-emits it. When it discovers the
// participant is actually at the end of the queue it performs the same
// COMPLETED transition as answer processing, persisted under conflict retry.
func (o *Orchestrator) GetNextQuestion(ctx context.Context, sessionID, participantID string) *db.Question {
	session, err := o.sessions.Load(ctx, sessionID)
	if err != nil || session == nil {
		logger.Error("Session not found, cannot get next question",
			zap.String("session", sessionID), zap.Error(err))
		o.events.ProcessingError(sessionID, participantID, "SESSION_NOT_FOUND", "Session could not be found.")
		return nil
	}

	participant := session.FindParticipant(participantID)
	if participant == nil {
		logger.Error("Participant not found in session, cannot get next question",
			zap.String("session", sessionID), zap.String("participant", participantID))
		o.events.ProcessingError(sessionID, participantID, "PARTICIPANT_NOT_FOUND",
			"You were not found in this session.")
		return nil
	}

	if participant.Status == db.ParticipantCompleted {
		o.events.ParticipantStatus(sessionID, participantID, db.ParticipantCompleted, "", "")
		return nil
	}

	queue := o.queues.Get(sessionID, participantID)
	if queue == nil || len(queue.Questions) == 0 {
		queue = NewParticipantQueue(session)
		if queue == nil {
			logger.Error("No questions available for participant",
				zap.String("session", sessionID), zap.String("participant", participantID))
			o.events.ParticipantStatus(sessionID, participantID, participant.Status,
				participant.CurrentQuestion, participant.CurrentSection)
			return nil
		}
		o.queues.Set(sessionID, participantID, queue)
	}

	if next := queue.CurrentQuestion(); next != nil {
		participant.Status = db.ParticipantActive
		participant.CurrentQuestion = next.ID
		participant.CurrentSection = next.SectionID

		// Read path: the transient pointer update above only shapes the
		// emitted event, persistence happens on the next answer.
		o.events.QuestionReady(sessionID, participantID, *next)
		return next
	}

	// Cursor is past the end but the participant is not marked completed yet.
	logger.Info("Participant is at end of queue, marking completed",
		zap.String("session", sessionID), zap.String("participant", participantID))
	o.completeParticipantAtQueueEnd(ctx, sessionID, participantID, queue)
	return nil
}

func (o *Orchestrator) completeParticipantAtQueueEnd(ctx context.Context, sessionID, participantID string, queue *ParticipantQueue) {
	for attempt := 1; attempt <= maxProcessAnswerRetries; attempt++ {
		session, err := o.sessions.Load(ctx, sessionID)
		if err != nil || session == nil {
			logger.Error("Failed to reload session while completing participant",
				zap.String("session", sessionID), zap.Error(err))
			return
		}

		participant := session.FindParticipant(participantID)
		if participant == nil {
			return
		}
		if participant.Status == db.ParticipantCompleted {
			o.events.ParticipantStatus(sessionID, participantID, db.ParticipantCompleted, "", "")
			return
		}

		participant.Status = db.ParticipantCompleted
		participant.CompletedOn = time.Now().Unix()
		participant.CurrentQuestion = ""
		participant.CurrentSection = ""

		if _, err := o.sessions.Save(ctx, session, session.Version); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				o.sessions.Invalidate(sessionID)
				continue
			}
			logger.Error("Failed to persist participant completion",
				zap.String("session", sessionID), zap.String("participant", participantID), zap.Error(err))
			return
		}
		o.queues.Set(sessionID, participantID, queue)

		o.events.ParticipantStatus(sessionID, participantID, db.ParticipantCompleted, "", "")

		if session.AllParticipantsDone() {
			if err := o.completer.CompleteSession(ctx, sessionID); err != nil {
				logger.Error("Failed to complete session", zap.String("session", sessionID), zap.Error(err))
			}
		}
		return
	}

	logger.Error("Could not persist participant completion after conflict retries",
		zap.String("session", sessionID), zap.String("participant", participantID))
	o.events.ProcessingError(sessionID, participantID, "PROCESSING_CONFLICT",
		"Could not record your completion due to concurrent updates. Please try again.")
}
