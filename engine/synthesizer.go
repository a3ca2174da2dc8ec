package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/google/uuid"
	"github.com/rohit-constellation/retro-core/db"
	"go.uber.org/zap"
)

// Synthesizer turns an insufficient answer into exactly one follow-up
// question of the requested modality. Generation failure is recoverable: the
// deterministic templated fallback is the only way a follow-up step "fails",
// so SynthesizeFollowUp always returns a usable question.
type Synthesizer struct {
	generator FollowUpGenerator
}

func NewSynthesizer(generator FollowUpGenerator) *Synthesizer {
	return &Synthesizer{generator: generator}
}

func requiredPrefix(modality db.DisplayHint) string {
	switch modality {
	case db.HintYesNo:
		return "[YES_NO]"
	case db.HintRating1To5:
		return "[RATING_1_5]"
	default:
		return "[TEXT]"
	}
}

// SynthesizeFollowUp generates the follow-up, splices nothing itself (queue
// insertion is the orchestrator's job) but does register the new question into
// the owning durable section, idempotently, so a retried pipeline never
// duplicates it.
func (s *Synthesizer) SynthesizeFollowUp(
	ctx context.Context,
	session *db.SessionModel,
	prompt FollowUpPrompt,
	baseQuestionID string,
	baseQuestionOrder float64,
	existingFollowUps int,
	participantID string,
) db.Question {
	prefix := requiredPrefix(prompt.Modality)

	raw, err := s.generator.GenerateFollowUp(ctx, prompt)
	if err != nil {
		logger.Error("Follow-up generation call failed, falling back to templated question",
			zap.String("session", session.ID),
			zap.String("participant", participantID),
			zap.String("baseQuestion", baseQuestionID),
			zap.Error(err))
		raw = ""
	}

	if strings.TrimSpace(raw) == "" {
		raw = prefix + " " + s.fallbackText(prompt)
	}

	hint, text, options := parseTaggedQuestion(raw)

	if text == "" {
		logger.Info("Generated follow-up was empty after stripping its tag, using fallback text",
			zap.String("session", session.ID),
			zap.String("baseQuestion", baseQuestionID))
		hint, text, options = db.HintText, s.fallbackText(prompt), nil
	}

	order := roundOrder(baseQuestionOrder + float64(existingFollowUps+1)/100)

	followUp := db.Question{
		ID:                        uuid.New().String(),
		Text:                      text,
		SectionID:                 prompt.AnsweredQuestion.SectionID,
		Order:                     order,
		Intent:                    db.IntentFollowUp,
		ParentQuestionID:          baseQuestionID, // always the ultimate base question, single hop
		GeneratedForParticipantID: participantID,
		DisplayHint:               hint,
		Options:                   options,
		Goal:                      fmt.Sprintf("To clarify or expand upon the previous insufficient answer related to: %s", truncate(prompt.BaseQuestionText, 70)),
	}

	s.registerInSession(session, followUp)
	return followUp
}

// parseTaggedQuestion strips the modality tag from the raw model output.
// Untagged output falls back to free text with the full response as question.
func parseTaggedQuestion(raw string) (hint db.DisplayHint, text string, options []string) {
	raw = strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(raw, "[TEXT]"):
		return db.HintText, strings.TrimSpace(strings.TrimPrefix(raw, "[TEXT]")), nil
	case strings.HasPrefix(raw, "[YES_NO]"):
		return db.HintYesNo, strings.TrimSpace(strings.TrimPrefix(raw, "[YES_NO]")), []string{"Yes", "No"}
	case strings.HasPrefix(raw, "[RATING_1_5]"):
		return db.HintRating1To5, strings.TrimSpace(strings.TrimPrefix(raw, "[RATING_1_5]")), []string{"1", "2", "3", "4", "5"}
	default:
		return db.HintText, strings.Trim(raw, `"`), nil
	}
}

func (s *Synthesizer) fallbackText(prompt FollowUpPrompt) string {
	detail := "Please provide more detail."
	if prompt.AnalyticalFeedback != "" {
		detail = "Specifically, consider: " + prompt.AnalyticalFeedback
	}
	return fmt.Sprintf("Please elaborate further on your previous answer regarding %q. %s",
		truncate(prompt.AnsweredQuestion.Text, 50), detail)
}

// registerInSession adds the follow-up to its durable section, skipping when a
// question with that id is already present so that pipeline retries cannot
// insert it twice.
func (s *Synthesizer) registerInSession(session *db.SessionModel, followUp db.Question) {
	section := session.FindSection(followUp.SectionID)
	if section == nil {
		logger.Error("Section for generated follow-up not found, session persists without it",
			zap.String("session", session.ID),
			zap.String("section", followUp.SectionID),
			zap.String("question", followUp.ID))
		return
	}

	for i := range section.Questions {
		if section.Questions[i].ID == followUp.ID {
			return
		}
	}

	section.Questions = append(section.Questions, followUp)
	sort.SliceStable(section.Questions, func(i, j int) bool {
		return section.Questions[i].Order < section.Questions[j].Order
	})
}

func roundOrder(order float64) float64 {
	return math.Round(order*10000) / 10000
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
