package prompts

import (
	"context"
	"encoding/json"

	"github.com/SaiNageswarS/go-api-boot/llm"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"go.uber.org/zap"
)

type EvaluateAnswerPromptData struct {
	SessionTitle       string
	SessionDescription string
	ParticipantRole    string

	QuestionText     string
	QuestionGoal     string
	IsFollowUp       bool
	BaseQuestionText string // text of the ultimate base question when IsFollowUp
	SectionGoal      string

	Response string
}

// AnswerEvaluation is the structured verdict parsed from the model response.
type AnswerEvaluation struct {
	IsSufficient          bool   `json:"isSufficient"`
	Feedback              string `json:"feedback"`
	AnalyticalFeedback    string `json:"analyticalFeedback"`
	SuggestedFollowUpType string `json:"suggestedFollowUpType"`
}

func EvaluateAnswer(ctx context.Context, client InferenceClient, data EvaluateAnswerPromptData) <-chan async.Result[*AnswerEvaluation] {
	return async.Go(func() (*AnswerEvaluation, error) {
		systemPrompt, err := loadPrompt("templates/evaluate_answer_system.md", data)
		if err != nil {
			logger.Error("Failed to load evaluation system prompt", zap.Error(err))
			return nil, err
		}

		userPrompt, err := loadPrompt("templates/evaluate_answer_user.md", data)
		if err != nil {
			return nil, err
		}

		request := llm.AnthropicRequest{
			Model:       inferenceModel,
			MaxTokens:   1024,
			System:      systemPrompt,
			Temperature: 0.3,
			Messages: []llm.Message{
				{
					Role:    "user",
					Content: userPrompt,
				},
			},
		}

		response, err := async.Await(client.GenerateInference(ctx, &request))
		if err != nil {
			logger.Error("Failed to generate evaluation inference", zap.Error(err))
			return nil, err
		}

		return ParseAnswerEvaluation(response)
	})
}

// ParseAnswerEvaluation decodes a raw model response into a verdict. The
// caller owns the fallback policy when parsing fails.
func ParseAnswerEvaluation(raw string) (*AnswerEvaluation, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	out := &AnswerEvaluation{}
	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return nil, err
	}

	return out, nil
}
