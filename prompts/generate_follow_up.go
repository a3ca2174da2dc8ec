package prompts

import (
	"context"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/llm"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"go.uber.org/zap"
)

// SimilarAnswerLine is one piece of cross-participant context rendered into
// the follow-up generation prompt.
type SimilarAnswerLine struct {
	QuestionText    string
	ResponseText    string
	ParticipantRole string
	SimilarityScore float64
}

type FollowUpPromptData struct {
	SessionTitle       string
	SessionDescription string
	ParticipantRole    string

	// Modality is the requested response modality (TEXT, YES_NO, RATING_1_5);
	// RequiredPrefix is the tag the model must emit, e.g. "[YES_NO]".
	Modality       string
	RequiredPrefix string

	BaseQuestionText     string
	IsFollowUp           bool   // the answered question was itself a follow-up
	PreviousQuestionText string // the question that was actually answered
	Response             string
	AnalyticalFeedback   string

	SimilarAnswers []SimilarAnswerLine
}

// GenerateFollowUp asks the model for a single tagged follow-up question and
// returns the raw tagged text. Tag parsing and all fallbacks belong to the
// question synthesizer.
func GenerateFollowUp(ctx context.Context, client InferenceClient, data FollowUpPromptData) <-chan async.Result[string] {
	return async.Go(func() (string, error) {
		systemPrompt, err := loadPrompt("templates/generate_follow_up_system.md", data)
		if err != nil {
			logger.Error("Failed to load follow-up system prompt", zap.Error(err))
			return "", err
		}

		userPrompt, err := loadPrompt("templates/generate_follow_up_user.md", data)
		if err != nil {
			return "", err
		}

		request := llm.AnthropicRequest{
			Model:       inferenceModel,
			MaxTokens:   512,
			System:      systemPrompt,
			Temperature: 0.5,
			Messages: []llm.Message{
				{
					Role:    "user",
					Content: userPrompt,
				},
			},
		}

		response, err := async.Await(client.GenerateInference(ctx, &request))
		if err != nil {
			logger.Error("Failed to generate follow-up inference", zap.Error(err))
			return "", err
		}

		return strings.TrimSpace(response), nil
	})
}
