package store

import (
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/rohit-constellation/retro-core/engine"
)

const queueKeyPrefix = "pqueue_"

// QueueStore keeps per-participant question queues in a process-local TTL
// cache. Get and Set exchange deep copies, so an in-flight mutation that is
// later abandoned by a version-conflict retry never leaks into the cache.
type QueueStore struct {
	cache *cache.Cache
}

func NewQueueStore(ttl time.Duration) *QueueStore {
	return &QueueStore{cache: cache.New(ttl, cacheCleanupInterval)}
}

func queueKey(sessionID, participantID string) string {
	return queueKeyPrefix + sessionID + "_" + participantID
}

// Get returns the cached queue for the participant, or nil on a miss.
func (s *QueueStore) Get(sessionID, participantID string) *engine.ParticipantQueue {
	cached, ok := s.cache.Get(queueKey(sessionID, participantID))
	if !ok {
		return nil
	}
	return cached.(*engine.ParticipantQueue).Clone()
}

func (s *QueueStore) Set(sessionID, participantID string, queue *engine.ParticipantQueue) {
	s.cache.Set(queueKey(sessionID, participantID), queue.Clone(), cache.DefaultExpiration)
}
