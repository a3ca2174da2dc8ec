package db

import (
	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionDraft     SessionStatus = "DRAFT"
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
)

type ParticipantStatus string

const (
	ParticipantActive    ParticipantStatus = "ACTIVE"
	ParticipantInactive  ParticipantStatus = "INACTIVE"
	ParticipantCompleted ParticipantStatus = "COMPLETED"
)

type ParticipantRole string

const (
	RoleParticipant ParticipantRole = "PARTICIPANT"
	RoleHost        ParticipantRole = "HOST"
)

type QuestionIntent string

const (
	IntentBase     QuestionIntent = "BASE"
	IntentFollowUp QuestionIntent = "FOLLOW_UP"
)

// DisplayHint tells the client how to render a question's answer input.
type DisplayHint string

const (
	HintText       DisplayHint = "TEXT"
	HintYesNo      DisplayHint = "YES_NO"
	HintRating1To5 DisplayHint = "RATING_1_5"
)

type Question struct {
	ID   string `json:"id" bson:"id"`
	Text string `json:"text" bson:"text"`

	SectionID string  `json:"sectionId" bson:"sectionId"`
	Order     float64 `json:"order" bson:"order"` // base questions get integer orders; follow-ups baseOrder + n/100

	Intent QuestionIntent `json:"intent" bson:"intent"`
	// ParentQuestionID is set iff Intent == FOLLOW_UP and always points at the
	// ultimate BASE question, never at an intermediate follow-up.
	ParentQuestionID          string `json:"parentQuestionId,omitempty" bson:"parentQuestionId,omitempty"`
	GeneratedForParticipantID string `json:"generatedForParticipantId,omitempty" bson:"generatedForParticipantId,omitempty"`

	DisplayHint DisplayHint `json:"displayHint,omitempty" bson:"displayHint,omitempty"`
	Options     []string    `json:"options,omitempty" bson:"options,omitempty"`
	Goal        string      `json:"goal,omitempty" bson:"goal,omitempty"`
}

type Section struct {
	ID        string     `json:"id" bson:"id"`
	Name      string     `json:"name" bson:"name"`
	Order     int        `json:"order" bson:"order"`
	Goal      string     `json:"goal,omitempty" bson:"goal,omitempty"`
	Questions []Question `json:"questions" bson:"questions"`
}

type Participant struct {
	ID     string            `json:"id" bson:"id"`
	Name   string            `json:"name" bson:"name"`
	Role   ParticipantRole   `json:"role" bson:"role"`
	Status ParticipantStatus `json:"status" bson:"status"`

	// CurrentSection and CurrentQuestion are empty once the participant completed.
	CurrentSection  string `json:"currentSection" bson:"currentSection"`
	CurrentQuestion string `json:"currentQuestion" bson:"currentQuestion"`

	JoinedOn    int64 `json:"joinedOn" bson:"joinedOn"`
	CompletedOn int64 `json:"completedOn,omitempty" bson:"completedOn,omitempty"`
}

// SessionModel is the single shared aggregate mutated by concurrent answer
// submissions. Version is the optimistic-concurrency token: it increases by
// exactly one on every successful save, and a save against a stale version
// fails with a conflict instead of overwriting.
type SessionModel struct {
	ID      string        `json:"id" bson:"_id"`
	Version int64         `json:"version" bson:"version"`
	Status  SessionStatus `json:"status" bson:"status"`

	Template    string `json:"template" bson:"template"`
	Title       string `json:"title" bson:"title"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	CreatedBy   string `json:"createdBy" bson:"createdBy"`
	IsAnonymous bool   `json:"isAnonymous" bson:"isAnonymous"`

	Sections     []Section     `json:"sections" bson:"sections"`
	Participants []Participant `json:"participants" bson:"participants"`

	Report    string `json:"report,omitempty" bson:"report,omitempty"`
	CreatedOn int64  `json:"createdOn" bson:"createdOn"`
}

func (m SessionModel) Id() string {
	if len(m.ID) == 0 {
		return uuid.New().String()
	}
	return m.ID
}

func (m SessionModel) CollectionName() string { return "sessions" }

// FindQuestion looks a question up across all sections.
func (m *SessionModel) FindQuestion(questionID string) *Question {
	if questionID == "" {
		return nil
	}
	for si := range m.Sections {
		for qi := range m.Sections[si].Questions {
			if m.Sections[si].Questions[qi].ID == questionID {
				return &m.Sections[si].Questions[qi]
			}
		}
	}
	return nil
}

func (m *SessionModel) FindSection(sectionID string) *Section {
	for i := range m.Sections {
		if m.Sections[i].ID == sectionID {
			return &m.Sections[i]
		}
	}
	return nil
}

func (m *SessionModel) FindParticipant(participantID string) *Participant {
	for i := range m.Participants {
		if m.Participants[i].ID == participantID {
			return &m.Participants[i]
		}
	}
	return nil
}

// AllParticipantsDone reports whether every participant that did not drop out
// has completed, and at least one actually completed.
func (m *SessionModel) AllParticipantsDone() bool {
	anyCompleted := false
	for i := range m.Participants {
		switch m.Participants[i].Status {
		case ParticipantCompleted:
			anyCompleted = true
		case ParticipantInactive:
			// left or never joined properly, does not block completion
		default:
			return false
		}
	}
	return anyCompleted
}

// Clone returns a deep copy. The session store hands out copies so that
// concurrent answer-processing attempts never mutate a shared cached instance.
func (m *SessionModel) Clone() *SessionModel {
	out := *m

	out.Sections = make([]Section, len(m.Sections))
	for i, sec := range m.Sections {
		secCopy := sec
		secCopy.Questions = make([]Question, len(sec.Questions))
		copy(secCopy.Questions, sec.Questions)
		for qi := range secCopy.Questions {
			if opts := secCopy.Questions[qi].Options; opts != nil {
				secCopy.Questions[qi].Options = append([]string(nil), opts...)
			}
		}
		out.Sections[i] = secCopy
	}

	out.Participants = make([]Participant, len(m.Participants))
	copy(out.Participants, m.Participants)

	return &out
}
