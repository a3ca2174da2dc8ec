package engine

import (
	"sort"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/rohit-constellation/retro-core/db"
	"go.uber.org/zap"
)

// ParticipantQueue is the per-participant, cache-resident question queue. It
// starts as all base questions of the session sorted by (section order,
// question order) and grows by splice-insertion of generated follow-ups. It is
// derived state: losing it only resets the in-flight follow-up budget, the
// durable session stays the source of truth for which questions exist.
type ParticipantQueue struct {
	Questions            []db.Question  `json:"questions"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	FollowUpCounts       map[string]int `json:"followUpCounts"` // keyed by base question id

	// BaseQuestionOrder freezes the original base-question id order. Splices
	// shift positions in the live list, so "the next base question" must be
	// answered from this list, never from live indices.
	BaseQuestionOrder []string `json:"baseQuestionOrder"`
}

// NewParticipantQueue builds the initial queue for a participant. Returns nil
// when the session holds no base questions at all.
func NewParticipantQueue(session *db.SessionModel) *ParticipantQueue {
	sections := make([]db.Section, len(session.Sections))
	copy(sections, session.Sections)
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	var baseQuestions []db.Question
	for _, section := range sections {
		questions := make([]db.Question, len(section.Questions))
		copy(questions, section.Questions)
		sort.SliceStable(questions, func(i, j int) bool { return questions[i].Order < questions[j].Order })

		for _, q := range questions {
			if q.Intent == db.IntentBase {
				baseQuestions = append(baseQuestions, q)
			}
		}
	}

	if len(baseQuestions) == 0 {
		logger.Error("Session has no base questions; nothing to ask", zap.String("session", session.ID))
		return nil
	}

	baseOrder := make([]string, len(baseQuestions))
	for i, q := range baseQuestions {
		baseOrder[i] = q.ID
	}

	return &ParticipantQueue{
		Questions:            baseQuestions,
		CurrentQuestionIndex: 0,
		FollowUpCounts:       map[string]int{},
		BaseQuestionOrder:    baseOrder,
	}
}

// CurrentQuestion returns the question at the cursor, or nil past the end.
func (q *ParticipantQueue) CurrentQuestion() *db.Question {
	if q.CurrentQuestionIndex < 0 || q.CurrentQuestionIndex >= len(q.Questions) {
		return nil
	}
	return &q.Questions[q.CurrentQuestionIndex]
}

// Advance moves the cursor forward and returns the question there, or
// completed=true when the queue is exhausted.
func (q *ParticipantQueue) Advance() (next *db.Question, completed bool) {
	q.CurrentQuestionIndex++
	if q.CurrentQuestionIndex < len(q.Questions) {
		return &q.Questions[q.CurrentQuestionIndex], false
	}
	return nil, true
}

// InsertFollowUp splices the follow-up in right after the cursor, bumps the
// per-base-question counter and moves the cursor onto the new question.
func (q *ParticipantQueue) InsertFollowUp(followUp db.Question) {
	at := q.CurrentQuestionIndex + 1
	q.Questions = append(q.Questions, db.Question{})
	copy(q.Questions[at+1:], q.Questions[at:])
	q.Questions[at] = followUp

	if q.FollowUpCounts == nil {
		q.FollowUpCounts = map[string]int{}
	}
	q.FollowUpCounts[followUp.ParentQuestionID]++
	q.CurrentQuestionIndex = at
}

// NextBaseAfter finds the base question following baseQuestionID in the
// original base order and resolves it in the live (possibly spliced) list.
func (q *ParticipantQueue) NextBaseAfter(baseQuestionID string) *db.Question {
	baseIdx := -1
	for i, id := range q.BaseQuestionOrder {
		if id == baseQuestionID {
			baseIdx = i
			break
		}
	}
	if baseIdx == -1 || baseIdx == len(q.BaseQuestionOrder)-1 {
		return nil
	}

	nextBaseID := q.BaseQuestionOrder[baseIdx+1]
	for i := range q.Questions {
		if q.Questions[i].ID == nextBaseID && q.Questions[i].Intent == db.IntentBase {
			return &q.Questions[i]
		}
	}
	return nil
}

// JumpTo moves the cursor onto the question with the given id.
func (q *ParticipantQueue) JumpTo(questionID string) bool {
	for i := range q.Questions {
		if q.Questions[i].ID == questionID {
			q.CurrentQuestionIndex = i
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Queue cache implementations exchange clones so a
// retried processing attempt never observes another attempt's mutations.
func (q *ParticipantQueue) Clone() *ParticipantQueue {
	out := &ParticipantQueue{
		Questions:            make([]db.Question, len(q.Questions)),
		CurrentQuestionIndex: q.CurrentQuestionIndex,
		FollowUpCounts:       make(map[string]int, len(q.FollowUpCounts)),
		BaseQuestionOrder:    append([]string(nil), q.BaseQuestionOrder...),
	}
	copy(out.Questions, q.Questions)
	for k, v := range q.FollowUpCounts {
		out.FollowUpCounts[k] = v
	}
	return out
}
