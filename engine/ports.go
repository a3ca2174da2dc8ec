package engine

import (
	"context"
	"errors"

	"github.com/rohit-constellation/retro-core/db"
)

// ErrVersionConflict is returned by SessionRepository.Save when the stored
// session version no longer matches the expected one. The caller retries the
// whole pipeline; the write itself never happened.
var ErrVersionConflict = errors.New("session version conflict")

// SessionRepository loads and saves the session aggregate. Load returns a
// private copy the caller may freely mutate; Save is a compare-and-swap on the
// version token and persists expectedVersion+1 on success.
type SessionRepository interface {
	Load(ctx context.Context, sessionID string) (*db.SessionModel, error)
	Save(ctx context.Context, session *db.SessionModel, expectedVersion int64) (*db.SessionModel, error)
	Invalidate(sessionID string)
}

// QueueCache stores per-participant queues with a TTL. Both directions
// exchange private clones; an entry expiring only resets that participant's
// in-flight follow-up budget.
type QueueCache interface {
	Get(sessionID, participantID string) *ParticipantQueue
	Set(sessionID, participantID string, queue *ParticipantQueue)
}

// EvaluationInput carries everything the sufficiency judgment needs.
type EvaluationInput struct {
	SessionTitle       string
	SessionDescription string
	ParticipantRole    db.ParticipantRole

	Question         db.Question
	BaseQuestionText string // ultimate base question text when Question is a follow-up
	SectionGoal      string

	Response string
}

// EvaluationResult is the sufficiency verdict. Implementations must always
// return a structurally valid result; external failures degrade to a safe
// insufficient-with-generic-feedback default instead of surfacing.
type EvaluationResult struct {
	IsSufficient          bool
	ParticipantFeedback   string
	AnalyticalFeedback    string
	SuggestedFollowUpType db.DisplayHint
}

type Evaluator interface {
	Evaluate(ctx context.Context, in EvaluationInput) EvaluationResult
}

// FollowUpPrompt is the context handed to follow-up generation.
type FollowUpPrompt struct {
	SessionTitle       string
	SessionDescription string
	ParticipantRole    db.ParticipantRole

	BaseQuestionText   string
	AnsweredQuestion   db.Question
	Response           string
	AnalyticalFeedback string

	SimilarAnswers []SimilarAnswerContext
	Modality       db.DisplayHint
}

// FollowUpGenerator produces the raw tagged follow-up text ("[YES_NO] ...").
// It may fail; the synthesizer owns the fallback.
type FollowUpGenerator interface {
	GenerateFollowUp(ctx context.Context, prompt FollowUpPrompt) (string, error)
}

// SimilarAnswer is one raw hit from the vector lookup.
type SimilarAnswer struct {
	Answer   db.AnswerModel
	Distance float64
}

// SimilaritySearcher is the best-effort cross-participant lookup. May return
// an empty slice; any error is swallowed by the engine.
type SimilaritySearcher interface {
	FindSimilar(ctx context.Context, embedding []float32, limit int, sessionID, excludeAnswerID, excludeParticipantID string) ([]SimilarAnswer, error)
}

// SimilarAnswerContext is a resolved, score-converted hit ready for prompting.
type SimilarAnswerContext struct {
	QuestionText    string
	ResponseText    string
	ParticipantRole db.ParticipantRole
	SimilarityScore float64
}

type AnswerReader interface {
	FindOne(ctx context.Context, answerID string) (*db.AnswerModel, error)
}

// SessionCompleter closes out a session once every remaining participant has
// completed. Report generation happens behind this port.
type SessionCompleter interface {
	CompleteSession(ctx context.Context, sessionID string) error
}

// Emitter is the fire-and-forget notification port toward the delivery
// boundary (WebSocket gateway or equivalent). At-least-once, no acks.
type Emitter interface {
	QuestionReady(sessionID, participantID string, question db.Question)
	ParticipantStatus(sessionID, participantID string, status db.ParticipantStatus, currentQuestionID, currentSectionID string)
	SessionCompleted(sessionID string)
	ProcessingError(sessionID, participantID, code, message string)
}
