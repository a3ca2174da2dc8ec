package events

import (
	"sync"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/rohit-constellation/retro-core/db"
	"go.uber.org/zap"
)

const defaultSubscriberBuffer = 16

// Broker fans events out to per-session subscribers over buffered channels.
// Publish never blocks; a subscriber whose buffer is full loses the event and
// a warning is logged. Clients are expected to re-sync via GetNextQuestion
// after a drop, so delivery here is best effort.
type Broker struct {
	LogEmitter

	mu          sync.RWMutex
	subscribers map[string]map[int]chan Event
	nextID      int
	buffer      int
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Broker{
		subscribers: make(map[string]map[int]chan Event),
		buffer:      buffer,
	}
}

// Subscribe registers a listener for one session. The returned cancel func
// closes the channel and must be called exactly once.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[sessionID] == nil {
		b.subscribers[sessionID] = make(map[int]chan Event)
	}

	id := b.nextID
	b.nextID++

	ch := make(chan Event, b.buffer)
	b.subscribers[sessionID][id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if subs := b.subscribers[sessionID]; subs != nil {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(b.subscribers, sessionID)
			}
		}
	}
	return ch, cancel
}

func (b *Broker) publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subscribers[event.SessionID] {
		select {
		case ch <- event:
		default:
			logger.Error("Dropping event for slow subscriber",
				zap.String("session", event.SessionID),
				zap.Int("subscriber", id),
				zap.String("type", string(event.Type)))
		}
	}
}

func (b *Broker) QuestionReady(sessionID, participantID string, question db.Question) {
	b.LogEmitter.QuestionReady(sessionID, participantID, question)
	b.publish(Event{
		Type:          EventQuestionReady,
		SessionID:     sessionID,
		ParticipantID: participantID,
		Question:      &question,
	})
}

func (b *Broker) ParticipantStatus(sessionID, participantID string, status db.ParticipantStatus, currentQuestionID, currentSectionID string) {
	b.LogEmitter.ParticipantStatus(sessionID, participantID, status, currentQuestionID, currentSectionID)
	b.publish(Event{
		Type:              EventParticipantStatus,
		SessionID:         sessionID,
		ParticipantID:     participantID,
		ParticipantState:  status,
		CurrentQuestionID: currentQuestionID,
		CurrentSectionID:  currentSectionID,
	})
}

func (b *Broker) SessionCompleted(sessionID string) {
	b.LogEmitter.SessionCompleted(sessionID)
	b.publish(Event{Type: EventSessionCompleted, SessionID: sessionID})
}

func (b *Broker) ProcessingError(sessionID, participantID, code, message string) {
	b.LogEmitter.ProcessingError(sessionID, participantID, code, message)
	b.publish(Event{
		Type:          EventProcessingError,
		SessionID:     sessionID,
		ParticipantID: participantID,
		ErrorCode:     code,
		ErrorMessage:  message,
	})
}
