package services

import (
	"context"
	"testing"

	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type memSessionStore struct {
	stored        *db.SessionModel
	conflicts     int
	invalidations int
}

func (s *memSessionStore) Load(ctx context.Context, sessionID string) (*db.SessionModel, error) {
	if s.stored == nil || s.stored.ID != sessionID {
		return nil, nil
	}
	return s.stored.Clone(), nil
}

func (s *memSessionStore) Save(ctx context.Context, session *db.SessionModel, expectedVersion int64) (*db.SessionModel, error) {
	if s.conflicts > 0 {
		s.conflicts--
		s.stored.Version++
		return nil, engine.ErrVersionConflict
	}
	if expectedVersion != s.stored.Version {
		return nil, engine.ErrVersionConflict
	}

	next := session.Clone()
	next.Version = expectedVersion + 1
	s.stored = next
	return next.Clone(), nil
}

func (s *memSessionStore) Create(ctx context.Context, session *db.SessionModel) (*db.SessionModel, error) {
	s.stored = session.Clone()
	return session, nil
}

func (s *memSessionStore) Invalidate(sessionID string) {
	s.invalidations++
}

type memAnswers struct {
	answers []db.AnswerModel
}

func (a *memAnswers) FindBySession(ctx context.Context, sessionID string) ([]db.AnswerModel, error) {
	return a.answers, nil
}

type recordEmitter struct {
	statusEvents    int
	completedEvents int
}

func (e *recordEmitter) QuestionReady(sessionID, participantID string, question db.Question) {}
func (e *recordEmitter) ParticipantStatus(sessionID, participantID string, status db.ParticipantStatus, currentQuestionID, currentSectionID string) {
	e.statusEvents++
}
func (e *recordEmitter) SessionCompleted(sessionID string) { e.completedEvents++ }
func (e *recordEmitter) ProcessingError(sessionID, participantID, code, message string) {}

func newSessionFixture(stored *db.SessionModel) (*SessionService, *memSessionStore, *recordEmitter) {
	store := &memSessionStore{stored: stored}
	emitter := &recordEmitter{}
	service := ProvideSessionService(store, &memAnswers{}, nil, emitter, false)
	return service, store, emitter
}

func draftSession() *db.SessionModel {
	return &db.SessionModel{
		ID:      "session-1",
		Version: 1,
		Status:  db.SessionDraft,
		Title:   "Sprint 12 Retro",
		Sections: []db.Section{
			{ID: "sec-1", Name: "What went well", Order: 1, Questions: []db.Question{
				{ID: "q1", Text: "What went well?", SectionID: "sec-1", Order: 1, Intent: db.IntentBase},
			}},
		},
	}
}

func TestCreateSessionNormalizesTemplate(t *testing.T) {
	service, store, _ := newSessionFixture(nil)

	created, err := service.CreateSession(context.Background(), CreateSessionRequest{
		Template: "sprint-retro",
		Title:    "Sprint 12 Retro",
		Sections: []db.Section{
			{Name: "What went well", Questions: []db.Question{
				{Text: "What went well?"},
				{Text: "What are you proud of?", DisplayHint: db.HintRating1To5},
			}},
			{Name: "What could improve", Questions: []db.Question{
				{Text: "What slowed you down?"},
			}},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, db.SessionDraft, created.Status)
	assert.Equal(t, int64(1), created.Version)
	assert.NotEmpty(t, created.ID)

	first := created.Sections[0]
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, 2, created.Sections[1].Order)

	q1 := first.Questions[0]
	assert.NotEmpty(t, q1.ID)
	assert.Equal(t, first.ID, q1.SectionID)
	assert.Equal(t, db.IntentBase, q1.Intent)
	assert.Equal(t, db.HintText, q1.DisplayHint)
	assert.InDelta(t, 1.0, q1.Order, 1e-9)
	assert.InDelta(t, 2.0, first.Questions[1].Order, 1e-9)
	assert.Equal(t, db.HintRating1To5, first.Questions[1].DisplayHint)

	assert.NotNil(t, store.stored)
}

func TestCreateSessionValidation(t *testing.T) {
	service, _, _ := newSessionFixture(nil)

	_, err := service.CreateSession(context.Background(), CreateSessionRequest{Sections: []db.Section{{}}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = service.CreateSession(context.Background(), CreateSessionRequest{Title: "t"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStartSession(t *testing.T) {
	service, store, _ := newSessionFixture(draftSession())

	started, err := service.StartSession(context.Background(), "session-1")
	assert.NoError(t, err)
	assert.Equal(t, db.SessionActive, started.Status)
	assert.Equal(t, int64(2), store.stored.Version)

	// Starting again is a no-op, not an error.
	_, err = service.StartSession(context.Background(), "session-1")
	assert.NoError(t, err)

	store.stored.Status = db.SessionCompleted
	_, err = service.StartSession(context.Background(), "session-1")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestStartSessionUnknown(t *testing.T) {
	service, _, _ := newSessionFixture(draftSession())

	_, err := service.StartSession(context.Background(), "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestAddParticipant(t *testing.T) {
	session := draftSession()
	session.Status = db.SessionActive
	service, store, emitter := newSessionFixture(session)

	participant, err := service.AddParticipant(context.Background(), "session-1", "Priya", db.RoleHost)

	assert.NoError(t, err)
	assert.NotEmpty(t, participant.ID)
	assert.Equal(t, db.RoleHost, participant.Role)
	assert.Equal(t, db.ParticipantActive, participant.Status)
	assert.NotZero(t, participant.JoinedOn)

	assert.Len(t, store.stored.Participants, 1)
	assert.Equal(t, 1, emitter.statusEvents)
}

func TestAddParticipantRejectsInactiveSession(t *testing.T) {
	service, _, _ := newSessionFixture(draftSession())

	_, err := service.AddParticipant(context.Background(), "session-1", "Priya", db.RoleParticipant)
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = service.AddParticipant(context.Background(), "session-1", "", db.RoleParticipant)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestAddParticipantDefaultsRole(t *testing.T) {
	session := draftSession()
	session.Status = db.SessionActive
	service, _, _ := newSessionFixture(session)

	participant, err := service.AddParticipant(context.Background(), "session-1", "Sam", "")
	assert.NoError(t, err)
	assert.Equal(t, db.RoleParticipant, participant.Role)
}

func TestCompleteSession(t *testing.T) {
	session := draftSession()
	session.Status = db.SessionActive
	service, store, emitter := newSessionFixture(session)

	assert.NoError(t, service.CompleteSession(context.Background(), "session-1"))
	assert.Equal(t, db.SessionCompleted, store.stored.Status)
	assert.Equal(t, 1, emitter.completedEvents)

	// Completing twice notifies only once.
	assert.NoError(t, service.CompleteSession(context.Background(), "session-1"))
	assert.Equal(t, 1, emitter.completedEvents)
}

func TestUpdateRetriesVersionConflicts(t *testing.T) {
	service, store, _ := newSessionFixture(draftSession())
	store.conflicts = 2

	started, err := service.StartSession(context.Background(), "session-1")

	assert.NoError(t, err)
	assert.Equal(t, db.SessionActive, started.Status)
	assert.Equal(t, 2, store.invalidations)
}

func TestBuildReportDataGroupsBySection(t *testing.T) {
	session := draftSession()
	session.Sections = append(session.Sections, db.Section{
		ID: "sec-2", Name: "What could improve", Order: 2,
		Questions: []db.Question{{ID: "q2", Text: "What slowed you down?", SectionID: "sec-2", Order: 1, Intent: db.IntentBase}},
	})
	session.Participants = []db.Participant{{ID: "p1", Role: db.RoleHost}}

	data := buildReportData(session, []db.AnswerModel{
		{AnswerID: "a2", ParticipantID: "p1", QuestionID: "q2", Response: "Review latency", CreatedOn: 2},
		{AnswerID: "a1", ParticipantID: "p1", QuestionID: "q1", Response: "CI got faster", CreatedOn: 1},
		{AnswerID: "a3", ParticipantID: "p1", QuestionID: "unknown", Response: "dropped", CreatedOn: 3},
	})

	assert.Len(t, data.Sections, 2)
	assert.Equal(t, "What went well", data.Sections[0].Name)
	assert.Equal(t, "CI got faster", data.Sections[0].Answers[0].Response)
	assert.Equal(t, "HOST", data.Sections[0].Answers[0].ParticipantRole)
	assert.Equal(t, "Review latency", data.Sections[1].Answers[0].Response)
}
