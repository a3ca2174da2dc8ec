package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rohit-constellation/retro-core/db"
	"github.com/stretchr/testify/assert"
)

type stubGenerator struct {
	raw string
	err error
}

func (g *stubGenerator) GenerateFollowUp(ctx context.Context, prompt FollowUpPrompt) (string, error) {
	return g.raw, g.err
}

func synthesizeOn(t *testing.T, raw string, err error, modality db.DisplayHint) (*db.SessionModel, db.Question) {
	t.Helper()

	session := twoSectionSession()
	answered := *session.FindQuestion("q1")

	s := NewSynthesizer(&stubGenerator{raw: raw, err: err})
	followUp := s.SynthesizeFollowUp(context.Background(), session, FollowUpPrompt{
		SessionTitle:     session.Title,
		ParticipantRole:  db.RoleParticipant,
		BaseQuestionText: answered.Text,
		AnsweredQuestion: answered,
		Response:         "it was fine",
		Modality:         modality,
	}, answered.ID, answered.Order, 0, "p1")

	return session, followUp
}

func TestSynthesizeTaggedTextQuestion(t *testing.T) {
	_, followUp := synthesizeOn(t, "[TEXT] What specifically went well for you?", nil, db.HintText)

	assert.Equal(t, db.HintText, followUp.DisplayHint)
	assert.Equal(t, "What specifically went well for you?", followUp.Text)
	assert.Nil(t, followUp.Options)
	assert.Equal(t, db.IntentFollowUp, followUp.Intent)
	assert.Equal(t, "q1", followUp.ParentQuestionID)
	assert.Equal(t, "p1", followUp.GeneratedForParticipantID)
	assert.InDelta(t, 1.01, followUp.Order, 1e-9)
}

func TestSynthesizeYesNoQuestion(t *testing.T) {
	_, followUp := synthesizeOn(t, "[YES_NO] Did the new deployment process help?", nil, db.HintYesNo)

	assert.Equal(t, db.HintYesNo, followUp.DisplayHint)
	assert.Equal(t, "Did the new deployment process help?", followUp.Text)
	assert.Equal(t, []string{"Yes", "No"}, followUp.Options)
}

func TestSynthesizeRatingQuestion(t *testing.T) {
	_, followUp := synthesizeOn(t, "[RATING_1_5] How would you rate the pairing sessions?", nil, db.HintRating1To5)

	assert.Equal(t, db.HintRating1To5, followUp.DisplayHint)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, followUp.Options)
}

func TestSynthesizeUntaggedOutputBecomesText(t *testing.T) {
	_, followUp := synthesizeOn(t, `"Tell me more about the release"`, nil, db.HintYesNo)

	assert.Equal(t, db.HintText, followUp.DisplayHint)
	assert.Equal(t, "Tell me more about the release", followUp.Text)
	assert.Nil(t, followUp.Options)
}

func TestSynthesizeGeneratorErrorFallsBack(t *testing.T) {
	_, followUp := synthesizeOn(t, "", errors.New("model unavailable"), db.HintYesNo)

	assert.Equal(t, db.HintYesNo, followUp.DisplayHint)
	assert.Contains(t, followUp.Text, "Please elaborate further")
	assert.Equal(t, []string{"Yes", "No"}, followUp.Options)
}

func TestSynthesizeEmptyAfterTagStripFallsBack(t *testing.T) {
	_, followUp := synthesizeOn(t, "[TEXT]   ", nil, db.HintText)

	assert.Equal(t, db.HintText, followUp.DisplayHint)
	assert.Contains(t, followUp.Text, "Please elaborate further")
}

func TestSynthesizeOrderSequence(t *testing.T) {
	session := twoSectionSession()
	answered := *session.FindQuestion("q1")
	s := NewSynthesizer(&stubGenerator{raw: "[TEXT] more?"})

	orders := []float64{}
	for existing := 0; existing < 3; existing++ {
		fu := s.SynthesizeFollowUp(context.Background(), session, FollowUpPrompt{
			AnsweredQuestion: answered,
			Modality:         db.HintText,
		}, answered.ID, answered.Order, existing, "p1")
		orders = append(orders, fu.Order)
	}

	assert.InDelta(t, 1.01, orders[0], 1e-9)
	assert.InDelta(t, 1.02, orders[1], 1e-9)
	assert.InDelta(t, 1.03, orders[2], 1e-9)
}

func TestSynthesizeRegistersInSessionSection(t *testing.T) {
	session, followUp := synthesizeOn(t, "[TEXT] And what else?", nil, db.HintText)

	section := session.FindSection("sec-1")
	assert.Len(t, section.Questions, 3)
	assert.NotNil(t, session.FindQuestion(followUp.ID))

	// Ordered within the section right after its base question.
	assert.Equal(t, "q1", section.Questions[0].ID)
	assert.Equal(t, followUp.ID, section.Questions[1].ID)
	assert.Equal(t, "q2", section.Questions[2].ID)
}

func TestRegisterInSessionIsIdempotent(t *testing.T) {
	session := twoSectionSession()
	s := NewSynthesizer(&stubGenerator{})

	followUp := db.Question{ID: "fu1", SectionID: "sec-1", Order: 1.01, Intent: db.IntentFollowUp}
	s.registerInSession(session, followUp)
	s.registerInSession(session, followUp)

	assert.Len(t, session.FindSection("sec-1").Questions, 3)
}

func TestParseTaggedQuestion(t *testing.T) {
	hint, text, options := parseTaggedQuestion("  [YES_NO]  Was it useful? ")
	assert.Equal(t, db.HintYesNo, hint)
	assert.Equal(t, "Was it useful?", text)
	assert.Equal(t, []string{"Yes", "No"}, options)

	hint, text, options = parseTaggedQuestion("plain question")
	assert.Equal(t, db.HintText, hint)
	assert.Equal(t, "plain question", text)
	assert.Nil(t, options)
}

func TestRoundOrder(t *testing.T) {
	assert.InDelta(t, 2.03, roundOrder(2.0+3.0/100), 1e-9)
	assert.InDelta(t, 1.2346, roundOrder(1.23456789), 1e-9)
}
