package services

import (
	"context"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"github.com/rohit-constellation/retro-core/prompts"
	"go.uber.org/zap"
)

const insufficientFallbackFeedback = "Thanks for sharing. Could you add a bit more detail so we capture your full perspective?"

// EvaluationService judges answer sufficiency with the LLM. It never returns
// an error to the pipeline: any model failure or malformed verdict degrades to
// insufficient with generic feedback, so the participant gets a follow-up
// rather than a stall.
type EvaluationService struct {
	llmClient prompts.InferenceClient
}

func ProvideEvaluationService(llmClient prompts.InferenceClient) *EvaluationService {
	return &EvaluationService{llmClient: llmClient}
}

var _ engine.Evaluator = (*EvaluationService)(nil)

func (s *EvaluationService) Evaluate(ctx context.Context, in engine.EvaluationInput) engine.EvaluationResult {
	data := prompts.EvaluateAnswerPromptData{
		SessionTitle:       in.SessionTitle,
		SessionDescription: in.SessionDescription,
		ParticipantRole:    string(in.ParticipantRole),
		QuestionText:       in.Question.Text,
		QuestionGoal:       in.Question.Goal,
		IsFollowUp:         in.Question.Intent == db.IntentFollowUp,
		BaseQuestionText:   in.BaseQuestionText,
		SectionGoal:        in.SectionGoal,
		Response:           in.Response,
	}

	evaluation, err := async.Await(prompts.EvaluateAnswer(ctx, s.llmClient, data))
	if err != nil || evaluation == nil {
		logger.Error("Answer evaluation failed, defaulting to insufficient",
			zap.String("question", in.Question.ID), zap.Error(err))
		return fallbackEvaluation()
	}

	result := engine.EvaluationResult{
		IsSufficient:          evaluation.IsSufficient,
		ParticipantFeedback:   evaluation.Feedback,
		AnalyticalFeedback:    evaluation.AnalyticalFeedback,
		SuggestedFollowUpType: normalizeFollowUpType(evaluation.SuggestedFollowUpType),
	}
	if result.ParticipantFeedback == "" {
		result.ParticipantFeedback = insufficientFallbackFeedback
	}
	return result
}

// normalizeFollowUpType maps the model's free-text modality suggestion onto a
// known display hint, defaulting to TEXT.
func normalizeFollowUpType(suggested string) db.DisplayHint {
	switch db.DisplayHint(suggested) {
	case db.HintYesNo:
		return db.HintYesNo
	case db.HintRating1To5:
		return db.HintRating1To5
	default:
		return db.HintText
	}
}

func fallbackEvaluation() engine.EvaluationResult {
	return engine.EvaluationResult{
		IsSufficient:          false,
		ParticipantFeedback:   insufficientFallbackFeedback,
		AnalyticalFeedback:    "Evaluation unavailable; answer treated as insufficient.",
		SuggestedFollowUpType: db.HintText,
	}
}
