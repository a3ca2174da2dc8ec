package services

import (
	"context"
	"testing"

	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"github.com/stretchr/testify/assert"
)

func TestGenerateFollowUpPassesThroughTaggedText(t *testing.T) {
	client := &fakeInferenceClient{response: "[YES_NO] Did the pipeline change help your team?\n"}
	service := ProvideFollowUpService(client)

	raw, err := service.GenerateFollowUp(context.Background(), engine.FollowUpPrompt{
		SessionTitle:     "Sprint 12 Retro",
		ParticipantRole:  db.RoleParticipant,
		BaseQuestionText: "What went well this sprint?",
		AnsweredQuestion: db.Question{ID: "q1", Text: "What went well this sprint?", Intent: db.IntentBase},
		Response:         "things were ok",
		Modality:         db.HintYesNo,
	})

	assert.NoError(t, err)
	assert.Equal(t, "[YES_NO] Did the pipeline change help your team?", raw)
}

func TestGenerateFollowUpRendersContextIntoPrompt(t *testing.T) {
	client := &fakeInferenceClient{response: "[TEXT] ok"}
	service := ProvideFollowUpService(client)

	_, err := service.GenerateFollowUp(context.Background(), engine.FollowUpPrompt{
		AnsweredQuestion:   db.Question{Text: "How was the release?", Intent: db.IntentFollowUp},
		Response:           "stressful",
		AnalyticalFeedback: "No root cause named.",
		Modality:           db.HintRating1To5,
		SimilarAnswers: []engine.SimilarAnswerContext{
			{QuestionText: "How was the release?", ResponseText: "Rollback took an hour", SimilarityScore: 0.8123},
		},
	})

	assert.NoError(t, err)
	assert.Len(t, client.requests, 1)
	userPrompt := client.requests[0].Messages[0].Content
	assert.Contains(t, userPrompt, "[RATING_1_5]")
	assert.Contains(t, userPrompt, "Rollback took an hour")
	assert.Contains(t, userPrompt, "No root cause named.")
}

func TestModalityPrefix(t *testing.T) {
	assert.Equal(t, "[TEXT]", modalityPrefix(db.HintText))
	assert.Equal(t, "[YES_NO]", modalityPrefix(db.HintYesNo))
	assert.Equal(t, "[RATING_1_5]", modalityPrefix(db.HintRating1To5))
	assert.Equal(t, "[TEXT]", modalityPrefix(""))
}
