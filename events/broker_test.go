package events

import (
	"testing"

	"github.com/rohit-constellation/retro-core/db"
	"github.com/stretchr/testify/assert"
)

func TestBrokerDeliversToSessionSubscribers(t *testing.T) {
	broker := NewBroker(4)

	ch, cancel := broker.Subscribe("session-1")
	defer cancel()
	other, cancelOther := broker.Subscribe("session-2")
	defer cancelOther()

	broker.QuestionReady("session-1", "p1", db.Question{ID: "q1", Text: "What went well?"})

	event := <-ch
	assert.Equal(t, EventQuestionReady, event.Type)
	assert.Equal(t, "p1", event.ParticipantID)
	assert.Equal(t, "q1", event.Question.ID)

	select {
	case unexpected := <-other:
		t.Fatalf("subscriber of another session received %v", unexpected)
	default:
	}
}

func TestBrokerFansOut(t *testing.T) {
	broker := NewBroker(4)

	first, cancelFirst := broker.Subscribe("session-1")
	defer cancelFirst()
	second, cancelSecond := broker.Subscribe("session-1")
	defer cancelSecond()

	broker.SessionCompleted("session-1")

	assert.Equal(t, EventSessionCompleted, (<-first).Type)
	assert.Equal(t, EventSessionCompleted, (<-second).Type)
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	broker := NewBroker(1)

	ch, cancel := broker.Subscribe("session-1")
	defer cancel()

	broker.ProcessingError("session-1", "p1", "SESSION_NOT_FOUND", "gone")
	broker.ProcessingError("session-1", "p1", "SESSION_NOT_FOUND", "dropped")

	event := <-ch
	assert.Equal(t, "gone", event.ErrorMessage)

	select {
	case unexpected := <-ch:
		t.Fatalf("expected second event to be dropped, got %v", unexpected)
	default:
	}
}

func TestBrokerCancelClosesChannel(t *testing.T) {
	broker := NewBroker(4)

	ch, cancel := broker.Subscribe("session-1")
	cancel()

	_, open := <-ch
	assert.False(t, open)

	// Publishing after the last unsubscribe must not panic.
	broker.ParticipantStatus("session-1", "p1", db.ParticipantCompleted, "", "")
}

func TestBrokerStatusEventPayload(t *testing.T) {
	broker := NewBroker(4)
	ch, cancel := broker.Subscribe("session-1")
	defer cancel()

	broker.ParticipantStatus("session-1", "p1", db.ParticipantActive, "q2", "sec-1")

	event := <-ch
	assert.Equal(t, EventParticipantStatus, event.Type)
	assert.Equal(t, db.ParticipantActive, event.ParticipantState)
	assert.Equal(t, "q2", event.CurrentQuestionID)
	assert.Equal(t, "sec-1", event.CurrentSectionID)
}
