package prompts

import (
	"context"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/llm"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"go.uber.org/zap"
)

type ReportAnswerLine struct {
	QuestionText    string
	ParticipantRole string
	Response        string
}

type ReportSection struct {
	Name    string
	Goal    string
	Answers []ReportAnswerLine
}

type SessionReportPromptData struct {
	SessionTitle       string
	SessionDescription string
	Sections           []ReportSection
}

// GenerateSessionReport produces a markdown summary of a completed session.
func GenerateSessionReport(ctx context.Context, client InferenceClient, data SessionReportPromptData) <-chan async.Result[string] {
	return async.Go(func() (string, error) {
		systemPrompt, err := loadPrompt("templates/generate_session_report_system.md", data)
		if err != nil {
			logger.Error("Failed to load report system prompt", zap.Error(err))
			return "", err
		}

		userPrompt, err := loadPrompt("templates/generate_session_report_user.md", data)
		if err != nil {
			return "", err
		}

		request := llm.AnthropicRequest{
			Model:       inferenceModel,
			MaxTokens:   4000,
			System:      systemPrompt,
			Temperature: 0.4,
			Messages: []llm.Message{
				{
					Role:    "user",
					Content: userPrompt,
				},
			},
		}

		response, err := async.Await(client.GenerateInference(ctx, &request))
		if err != nil {
			logger.Error("Failed to generate session report", zap.Error(err))
			return "", err
		}

		return strings.TrimSpace(response), nil
	})
}
