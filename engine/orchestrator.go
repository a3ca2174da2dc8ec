package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/rohit-constellation/retro-core/db"
	"go.uber.org/zap"
)

const (
	// MaxFollowUps bounds generated follow-ups per base question, regardless
	// of how deep the clarification chain goes.
	MaxFollowUps = 3

	// maxProcessAnswerRetries bounds the validate-to-persist pipeline retries
	// on optimistic-concurrency conflicts.
	maxProcessAnswerRetries = 10

	// defaultSimilarAnswerLimit is the vector-search result cap used when the
	// configured limit is absent or non-positive.
	defaultSimilarAnswerLimit = 5
)

// Orchestrator is the participant progression engine. One instance serves all
// sessions; every answer submission runs the full validate, evaluate, branch,
// persist, notify pipeline against its own private session and queue copies,
// serialized only by the session's optimistic version token.
type Orchestrator struct {
	sessions           SessionRepository
	queues             QueueCache
	evaluator          Evaluator
	synthesizer        *Synthesizer
	answers            AnswerReader
	similarity         SimilaritySearcher
	completer          SessionCompleter
	events             Emitter
	similarAnswerLimit int
}

func NewOrchestrator(
	sessions SessionRepository,
	queues QueueCache,
	evaluator Evaluator,
	synthesizer *Synthesizer,
	answers AnswerReader,
	similarity SimilaritySearcher,
	completer SessionCompleter,
	events Emitter,
	similarAnswerLimit int,
) *Orchestrator {
	if similarAnswerLimit <= 0 {
		similarAnswerLimit = defaultSimilarAnswerLimit
	}
	return &Orchestrator{
		sessions:           sessions,
		queues:             queues,
		evaluator:          evaluator,
		synthesizer:        synthesizer,
		answers:            answers,
		similarity:         similarity,
		completer:          completer,
		events:             events,
		similarAnswerLimit: similarAnswerLimit,
	}
}

// ProcessAnswer consumes one "participant answered question X" event. All
// outcomes reach the caller through the notification port, never a return
// value. Version conflicts retry the whole pipeline with a fresh session read;
// exhausting the retries is terminal for this submission only.
func (o *Orchestrator) ProcessAnswer(ctx context.Context, sessionID, participantID, questionID, response, answerID string) {
	for attempt := 1; attempt <= maxProcessAnswerRetries; attempt++ {
		err := o.processOnce(ctx, sessionID, participantID, questionID, response, answerID)
		if err == nil {
			return
		}

		if errors.Is(err, ErrVersionConflict) {
			logger.Info("Session version conflict, invalidating cache and retrying",
				zap.String("session", sessionID),
				zap.String("participant", participantID),
				zap.Int("attempt", attempt))
			o.sessions.Invalidate(sessionID)
			continue
		}

		logger.Error("Unexpected error processing answer",
			zap.String("session", sessionID),
			zap.String("participant", participantID),
			zap.String("question", questionID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		o.events.ProcessingError(sessionID, participantID, "UNEXPECTED_PROCESSING_ERROR",
			"An unexpected error occurred while processing your answer.")
		return
	}

	logger.Error("Answer processing failed after exhausting conflict retries",
		zap.String("session", sessionID),
		zap.String("participant", participantID),
		zap.String("question", questionID))
	o.events.ProcessingError(sessionID, participantID, "PROCESSING_CONFLICT",
		"Could not process your answer due to a concurrent update. Please try again.")
}

// processOnce runs a single pipeline attempt. Validation rejections are not
// errors: they re-notify the participant's true state and return nil.
func (o *Orchestrator) processOnce(ctx context.Context, sessionID, participantID, questionID, response, answerID string) error {
	session, err := o.sessions.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		logger.Error("Session not found, cannot process answer", zap.String("session", sessionID))
		o.events.ProcessingError(sessionID, participantID, "SESSION_NOT_FOUND", "Session could not be found.")
		return nil
	}

	participant := session.FindParticipant(participantID)
	if participant == nil {
		logger.Error("Participant not found in session",
			zap.String("session", sessionID), zap.String("participant", participantID))
		o.events.ProcessingError(sessionID, participantID, "PARTICIPANT_NOT_FOUND",
			"Participant could not be found in this session.")
		return nil
	}

	queue := o.loadOrInitQueue(session, participantID)
	if queue == nil {
		o.events.ProcessingError(sessionID, participantID, "QUEUE_INIT_FAILED",
			"Could not initialize the question queue.")
		return nil
	}

	current := queue.CurrentQuestion()

	if participant.Status == db.ParticipantCompleted {
		logger.Info("Participant already completed, ignoring answer",
			zap.String("session", sessionID), zap.String("participant", participantID))
		if current != nil {
			o.events.QuestionReady(sessionID, participantID, *current)
		} else {
			o.events.ParticipantStatus(sessionID, participantID, db.ParticipantCompleted, "", "")
		}
		return nil
	}

	if current == nil || current.ID != questionID {
		// Stale client: answered something that is not the current question.
		// Re-send true state, mutate nothing.
		logger.Info("Answered question does not match queue head, re-sending current question",
			zap.String("session", sessionID),
			zap.String("participant", participantID),
			zap.String("answered", questionID))
		if current != nil {
			o.events.QuestionReady(sessionID, participantID, *current)
		} else {
			o.events.ParticipantStatus(sessionID, participantID, participant.Status,
				participant.CurrentQuestion, participant.CurrentSection)
		}
		return nil
	}

	evaluation := o.evaluator.Evaluate(ctx, o.buildEvaluationInput(session, participant, *current, response))

	var nextQuestion *db.Question
	participantCompleted := false

	if evaluation.IsSufficient {
		nextQuestion, participantCompleted = queue.Advance()
	} else {
		nextQuestion, participantCompleted = o.handleInsufficient(ctx, session, participant, queue, *current, response, evaluation, answerID)
	}

	if participantCompleted {
		participant.Status = db.ParticipantCompleted
		participant.CompletedOn = time.Now().Unix()
		participant.CurrentQuestion = ""
		participant.CurrentSection = ""
	} else if nextQuestion != nil {
		participant.Status = db.ParticipantActive
		participant.CurrentQuestion = nextQuestion.ID
		participant.CurrentSection = nextQuestion.SectionID
	}

	if _, err := o.sessions.Save(ctx, session, session.Version); err != nil {
		return err
	}
	o.queues.Set(sessionID, participantID, queue)

	o.events.ParticipantStatus(sessionID, participantID, participant.Status,
		participant.CurrentQuestion, participant.CurrentSection)

	if participantCompleted {
		logger.Info("Participant completed all questions",
			zap.String("session", sessionID), zap.String("participant", participantID))
		if session.AllParticipantsDone() {
			if err := o.completer.CompleteSession(ctx, sessionID); err != nil {
				logger.Error("Failed to complete session", zap.String("session", sessionID), zap.Error(err))
			}
		}
	} else if nextQuestion != nil {
		o.events.QuestionReady(sessionID, participantID, *nextQuestion)
	} else {
		logger.Error("Participant neither completed nor has a next question",
			zap.String("session", sessionID), zap.String("participant", participantID))
	}

	return nil
}

// handleInsufficient either synthesizes a follow-up (within the per-base
// budget) or, budget exhausted, jumps to the next base question / completes.
func (o *Orchestrator) handleInsufficient(
	ctx context.Context,
	session *db.SessionModel,
	participant *db.Participant,
	queue *ParticipantQueue,
	answered db.Question,
	response string,
	evaluation EvaluationResult,
	answerID string,
) (next *db.Question, completed bool) {
	baseID, baseOrder, baseText := resolveBaseQuestion(session, answered)

	if queue.FollowUpCounts[baseID] < MaxFollowUps {
		similarContext := o.similarAnswerContext(ctx, session, participant.ID, answerID)

		followUp := o.synthesizer.SynthesizeFollowUp(ctx, session, FollowUpPrompt{
			SessionTitle:       session.Title,
			SessionDescription: session.Description,
			ParticipantRole:    participant.Role,
			BaseQuestionText:   baseText,
			AnsweredQuestion:   answered,
			Response:           response,
			AnalyticalFeedback: evaluation.AnalyticalFeedback,
			SimilarAnswers:     similarContext,
			Modality:           evaluation.SuggestedFollowUpType,
		}, baseID, baseOrder, queue.FollowUpCounts[baseID], participant.ID)

		queue.InsertFollowUp(followUp)
		return queue.CurrentQuestion(), false
	}

	logger.Info("Follow-up budget exhausted for base question, moving on",
		zap.String("session", session.ID),
		zap.String("participant", participant.ID),
		zap.String("baseQuestion", baseID))

	nextBase := queue.NextBaseAfter(baseID)
	if nextBase == nil {
		return nil, true
	}
	if !queue.JumpTo(nextBase.ID) {
		// Base order and live list disagree; end gracefully instead of
		// leaving the participant stuck.
		logger.Error("Next base question missing from live queue, completing participant",
			zap.String("session", session.ID),
			zap.String("participant", participant.ID),
			zap.String("nextBase", nextBase.ID))
		return nil, true
	}
	return queue.CurrentQuestion(), false
}

func (o *Orchestrator) loadOrInitQueue(session *db.SessionModel, participantID string) *ParticipantQueue {
	if queue := o.queues.Get(session.ID, participantID); queue != nil {
		return queue
	}

	queue := NewParticipantQueue(session)
	if queue == nil {
		return nil
	}
	o.queues.Set(session.ID, participantID, queue)
	return queue
}

func (o *Orchestrator) buildEvaluationInput(session *db.SessionModel, participant *db.Participant, answered db.Question, response string) EvaluationInput {
	in := EvaluationInput{
		SessionTitle:       session.Title,
		SessionDescription: session.Description,
		ParticipantRole:    participant.Role,
		Question:           answered,
		Response:           response,
	}

	if answered.Intent == db.IntentFollowUp && answered.ParentQuestionID != "" {
		if base := session.FindQuestion(answered.ParentQuestionID); base != nil {
			in.BaseQuestionText = base.Text
		}
	}
	if section := session.FindSection(answered.SectionID); section != nil {
		in.SectionGoal = section.Goal
	}

	return in
}

// resolveBaseQuestion walks ParentQuestionID exactly one hop: follow-ups are
// never parented to other follow-ups, so one hop always lands on the base.
func resolveBaseQuestion(session *db.SessionModel, answered db.Question) (baseID string, baseOrder float64, baseText string) {
	if answered.Intent != db.IntentFollowUp || answered.ParentQuestionID == "" {
		return answered.ID, answered.Order, answered.Text
	}

	base := session.FindQuestion(answered.ParentQuestionID)
	if base == nil {
		logger.Error("Base question of follow-up not found in session, using defaults",
			zap.String("session", session.ID),
			zap.String("parentQuestion", answered.ParentQuestionID))
		return answered.ParentQuestionID, answered.Order - 0.01, "the original question"
	}
	return base.ID, base.Order, base.Text
}

// similarAnswerContext enriches follow-up generation with the most similar
// prior answers of other participants. Strictly best-effort: any failure or
// unresolvable hit degrades to less context, never to an error.
func (o *Orchestrator) similarAnswerContext(ctx context.Context, session *db.SessionModel, participantID, answerID string) []SimilarAnswerContext {
	if answerID == "" {
		return nil
	}

	answer, err := o.answers.FindOne(ctx, answerID)
	if err != nil || answer == nil {
		logger.Error("Could not load answer for similarity context",
			zap.String("session", session.ID), zap.String("answer", answerID), zap.Error(err))
		return nil
	}
	if len(answer.Embedding) == 0 || allZero(answer.Embedding) {
		return nil
	}

	hits, err := o.similarity.FindSimilar(ctx, answer.Embedding, o.similarAnswerLimit, session.ID, answerID, participantID)
	if err != nil {
		logger.Error("Similarity search failed, continuing without context",
			zap.String("session", session.ID), zap.String("answer", answerID), zap.Error(err))
		return nil
	}

	var out []SimilarAnswerContext
	for _, hit := range hits {
		question := session.FindQuestion(hit.Answer.QuestionID)
		if question == nil {
			// Stale hit from a question no longer in this session snapshot.
			continue
		}
		participant := session.FindParticipant(hit.Answer.ParticipantID)
		if participant == nil {
			continue
		}

		out = append(out, SimilarAnswerContext{
			QuestionText:    question.Text,
			ResponseText:    hit.Answer.Response,
			ParticipantRole: participant.Role,
			SimilarityScore: similarityScore(hit.Distance),
		})
	}
	return out
}

// similarityScore maps a distance into a bounded (0, 1] score.
func similarityScore(distance float64) float64 {
	score := 1 / (1 + math.Max(0, distance))
	return math.Round(score*10000) / 10000
}

func allZero(embedding []float32) bool {
	for _, v := range embedding {
		if v != 0 {
			return false
		}
	}
	return true
}
