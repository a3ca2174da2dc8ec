package services

import (
	"context"

	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"github.com/rohit-constellation/retro-core/prompts"
)

// FollowUpService turns the engine's follow-up context into an LLM prompt and
// returns the raw tagged question text. Fallback wording for failures lives in
// the synthesizer, not here.
type FollowUpService struct {
	llmClient prompts.InferenceClient
}

func ProvideFollowUpService(llmClient prompts.InferenceClient) *FollowUpService {
	return &FollowUpService{llmClient: llmClient}
}

var _ engine.FollowUpGenerator = (*FollowUpService)(nil)

func (s *FollowUpService) GenerateFollowUp(ctx context.Context, prompt engine.FollowUpPrompt) (string, error) {
	similar := make([]prompts.SimilarAnswerLine, 0, len(prompt.SimilarAnswers))
	for _, hit := range prompt.SimilarAnswers {
		similar = append(similar, prompts.SimilarAnswerLine{
			QuestionText:    hit.QuestionText,
			ResponseText:    hit.ResponseText,
			ParticipantRole: string(hit.ParticipantRole),
			SimilarityScore: hit.SimilarityScore,
		})
	}

	data := prompts.FollowUpPromptData{
		SessionTitle:         prompt.SessionTitle,
		SessionDescription:   prompt.SessionDescription,
		ParticipantRole:      string(prompt.ParticipantRole),
		Modality:             string(prompt.Modality),
		RequiredPrefix:       modalityPrefix(prompt.Modality),
		BaseQuestionText:     prompt.BaseQuestionText,
		IsFollowUp:           prompt.AnsweredQuestion.Intent == db.IntentFollowUp,
		PreviousQuestionText: prompt.AnsweredQuestion.Text,
		Response:             prompt.Response,
		AnalyticalFeedback:   prompt.AnalyticalFeedback,
		SimilarAnswers:       similar,
	}

	return async.Await(prompts.GenerateFollowUp(ctx, s.llmClient, data))
}

func modalityPrefix(modality db.DisplayHint) string {
	switch modality {
	case db.HintYesNo:
		return "[YES_NO]"
	case db.HintRating1To5:
		return "[RATING_1_5]"
	default:
		return "[TEXT]"
	}
}
