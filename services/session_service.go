package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/google/uuid"
	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"github.com/rohit-constellation/retro-core/prompts"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	maxUpdateRetries = 10
	reportTimeout    = 2 * time.Minute
)

// SessionStore is the persistence surface the session lifecycle needs: the
// versioned repository plus first-time creation.
type SessionStore interface {
	engine.SessionRepository
	Create(ctx context.Context, session *db.SessionModel) (*db.SessionModel, error)
}

// SessionAnswers reads back the answers needed for report assembly.
type SessionAnswers interface {
	FindBySession(ctx context.Context, sessionID string) ([]db.AnswerModel, error)
}

// CreateSessionRequest describes a new session built from a template of
// sections and base questions. IDs may be omitted and will be generated.
type CreateSessionRequest struct {
	Template    string
	Title       string
	Description string
	CreatedBy   string
	IsAnonymous bool
	Sections    []db.Section
}

// SessionService owns the session lifecycle: creation from a template,
// activation, participant enrollment and completion with report generation.
// It implements the completion port of the progression pipeline.
type SessionService struct {
	store     SessionStore
	answers   SessionAnswers
	llmClient prompts.InferenceClient
	events    engine.Emitter
	reportsOn bool
}

func ProvideSessionService(store SessionStore, answers SessionAnswers, llmClient prompts.InferenceClient, events engine.Emitter, reportsOn bool) *SessionService {
	return &SessionService{
		store:     store,
		answers:   answers,
		llmClient: llmClient,
		events:    events,
		reportsOn: reportsOn,
	}
}

var _ engine.SessionCompleter = (*SessionService)(nil)

// CreateSession materializes a DRAFT session from the request template. Every
// question becomes a base question with an integer order; display hints
// default to free text.
func (s *SessionService) CreateSession(ctx context.Context, req CreateSessionRequest) (*db.SessionModel, error) {
	if req.Title == "" {
		return nil, status.Error(codes.InvalidArgument, "session title is required")
	}
	if len(req.Sections) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one section is required")
	}

	session := &db.SessionModel{
		ID:          uuid.New().String(),
		Version:     1,
		Status:      db.SessionDraft,
		Template:    req.Template,
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		IsAnonymous: req.IsAnonymous,
		Sections:    normalizeSections(req.Sections),
		CreatedOn:   time.Now().UnixMilli(),
	}

	return s.store.Create(ctx, session)
}

func normalizeSections(sections []db.Section) []db.Section {
	normalized := make([]db.Section, len(sections))
	copy(normalized, sections)

	for si := range normalized {
		section := &normalized[si]
		if section.ID == "" {
			section.ID = uuid.New().String()
		}
		if section.Order == 0 {
			section.Order = si + 1
		}

		questions := make([]db.Question, len(section.Questions))
		copy(questions, section.Questions)
		for qi := range questions {
			question := &questions[qi]
			if question.ID == "" {
				question.ID = uuid.New().String()
			}
			if question.Order == 0 {
				question.Order = float64(qi + 1)
			}
			question.SectionID = section.ID
			question.Intent = db.IntentBase
			question.ParentQuestionID = ""
			if question.DisplayHint == "" {
				question.DisplayHint = db.HintText
			}
		}
		section.Questions = questions
	}
	return normalized
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*db.SessionModel, error) {
	session, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, status.Error(codes.NotFound, fmt.Sprintf("session %s not found", sessionID))
	}
	return session, nil
}

// StartSession flips a DRAFT session to ACTIVE. Starting an already active
// session is a no-op; any other state is rejected.
func (s *SessionService) StartSession(ctx context.Context, sessionID string) (*db.SessionModel, error) {
	return s.update(ctx, sessionID, func(session *db.SessionModel) error {
		switch session.Status {
		case db.SessionDraft:
			session.Status = db.SessionActive
			return nil
		case db.SessionActive:
			return nil
		default:
			return status.Error(codes.FailedPrecondition, "session is already completed")
		}
	})
}

// AddParticipant enrolls a participant into an active session and announces
// the enrollment to subscribers.
func (s *SessionService) AddParticipant(ctx context.Context, sessionID, name string, role db.ParticipantRole) (*db.Participant, error) {
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "participant name is required")
	}
	if role == "" {
		role = db.RoleParticipant
	}

	participant := db.Participant{
		ID:       uuid.New().String(),
		Name:     name,
		Role:     role,
		Status:   db.ParticipantActive,
		JoinedOn: time.Now().UnixMilli(),
	}

	_, err := s.update(ctx, sessionID, func(session *db.SessionModel) error {
		if session.Status != db.SessionActive {
			return status.Error(codes.FailedPrecondition, "session is not accepting participants")
		}
		session.Participants = append(session.Participants, participant)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.ParticipantStatus(sessionID, participant.ID, participant.Status, "", "")
	return &participant, nil
}

// CompleteSession marks the session COMPLETED, notifies subscribers and kicks
// off report generation in the background. Completing twice is a no-op.
func (s *SessionService) CompleteSession(ctx context.Context, sessionID string) error {
	alreadyCompleted := false
	session, err := s.update(ctx, sessionID, func(session *db.SessionModel) error {
		if session.Status == db.SessionCompleted {
			alreadyCompleted = true
			return nil
		}
		session.Status = db.SessionCompleted
		return nil
	})
	if err != nil {
		return err
	}
	if alreadyCompleted {
		return nil
	}

	s.events.SessionCompleted(sessionID)

	if s.reportsOn && s.llmClient != nil && session.Report == "" {
		go s.generateReport(sessionID)
	}
	return nil
}

// update runs a read-mutate-save cycle under optimistic concurrency, retrying
// lost races with fresh state.
func (s *SessionService) update(ctx context.Context, sessionID string, mutate func(*db.SessionModel) error) (*db.SessionModel, error) {
	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		session, err := s.store.Load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, status.Error(codes.NotFound, fmt.Sprintf("session %s not found", sessionID))
		}

		if err := mutate(session); err != nil {
			return nil, err
		}

		saved, err := s.store.Save(ctx, session, session.Version)
		if errors.Is(err, engine.ErrVersionConflict) {
			s.store.Invalidate(sessionID)
			continue
		}
		if err != nil {
			return nil, err
		}
		return saved, nil
	}
	return nil, status.Error(codes.Aborted, "session update lost too many version races")
}

// generateReport builds the markdown report from every recorded answer and
// persists it on the session. Best effort: a failure leaves the session
// completed without a report.
func (s *SessionService) generateReport(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	session, err := s.store.Load(ctx, sessionID)
	if err != nil || session == nil {
		logger.Error("Skipping report, session unavailable", zap.String("session", sessionID), zap.Error(err))
		return
	}

	answers, err := s.answers.FindBySession(ctx, sessionID)
	if err != nil {
		logger.Error("Skipping report, answers unavailable", zap.String("session", sessionID), zap.Error(err))
		return
	}
	if len(answers) == 0 {
		logger.Info("Skipping report, no answers recorded", zap.String("session", sessionID))
		return
	}

	report, err := async.Await(prompts.GenerateSessionReport(ctx, s.llmClient, buildReportData(session, answers)))
	if err != nil || report == "" {
		logger.Error("Report generation failed", zap.String("session", sessionID), zap.Error(err))
		return
	}

	if _, err := s.update(ctx, sessionID, func(session *db.SessionModel) error {
		session.Report = report
		return nil
	}); err != nil {
		logger.Error("Failed to persist report", zap.String("session", sessionID), zap.Error(err))
		return
	}
	logger.Info("Session report stored", zap.String("session", sessionID))
}

// buildReportData groups answers by section, preserving section order and
// answer chronology.
func buildReportData(session *db.SessionModel, answers []db.AnswerModel) prompts.SessionReportPromptData {
	sections := make([]db.Section, len(session.Sections))
	copy(sections, session.Sections)
	sort.Slice(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	sort.Slice(answers, func(i, j int) bool { return answers[i].CreatedOn < answers[j].CreatedOn })

	bySection := make(map[string][]prompts.ReportAnswerLine)
	for _, answer := range answers {
		question := session.FindQuestion(answer.QuestionID)
		if question == nil || answer.Response == "" {
			continue
		}

		role := db.RoleParticipant
		if participant := session.FindParticipant(answer.ParticipantID); participant != nil {
			role = participant.Role
		}

		bySection[question.SectionID] = append(bySection[question.SectionID], prompts.ReportAnswerLine{
			QuestionText:    question.Text,
			ParticipantRole: string(role),
			Response:        answer.Response,
		})
	}

	data := prompts.SessionReportPromptData{
		SessionTitle:       session.Title,
		SessionDescription: session.Description,
	}
	for _, section := range sections {
		lines := bySection[section.ID]
		if len(lines) == 0 {
			continue
		}
		data.Sections = append(data.Sections, prompts.ReportSection{
			Name:    section.Name,
			Goal:    section.Goal,
			Answers: lines,
		})
	}
	return data
}
