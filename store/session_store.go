package store

import (
	"context"
	"errors"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/SaiNageswarS/go-collection-boot/async"
	cache "github.com/patrickmn/go-cache"
	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

const cacheCleanupInterval = 10 * time.Minute

// SessionStore persists the session aggregate with optimistic versioning,
// fronted by a process-local TTL cache. Loads hand out deep copies; a cached
// instance is never shared with a caller that may mutate it.
type SessionStore struct {
	mongo  *mongo.Client
	tenant string
	cache  *cache.Cache
}

func NewSessionStore(mongoClient *mongo.Client, tenant string, ttl time.Duration) *SessionStore {
	return &SessionStore{
		mongo:  mongoClient,
		tenant: tenant,
		cache:  cache.New(ttl, cacheCleanupInterval),
	}
}

// Load returns the session, cache first, or nil when it does not exist.
func (s *SessionStore) Load(ctx context.Context, sessionID string) (*db.SessionModel, error) {
	if cached, ok := s.cache.Get(sessionID); ok {
		return cached.(*db.SessionModel).Clone(), nil
	}

	logger.Info("Session cache miss, fetching from store", zap.String("session", sessionID))
	session, err := async.Await(odm.CollectionOf[db.SessionModel](s.mongo, s.tenant).FindOneByID(ctx, sessionID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	s.cache.Set(sessionID, session.Clone(), cache.DefaultExpiration)
	return session, nil
}

// Save is the compare-and-swap write: it replaces the stored document only if
// its version still equals expectedVersion, persisting expectedVersion+1. A
// lost race returns engine.ErrVersionConflict with the cache entry evicted, so
// the retry re-reads fresh state instead of conflicting again.
func (s *SessionStore) Save(ctx context.Context, session *db.SessionModel, expectedVersion int64) (*db.SessionModel, error) {
	next := session.Clone()
	next.Version = expectedVersion + 1

	collection := s.mongo.Database(s.tenant).Collection(db.SessionModel{}.CollectionName())
	result, err := collection.ReplaceOne(ctx,
		bson.M{"_id": next.ID, "version": expectedVersion}, next)
	if err != nil {
		return nil, err
	}

	if result.MatchedCount == 0 {
		s.cache.Delete(next.ID)
		return nil, engine.ErrVersionConflict
	}

	s.cache.Set(next.ID, next.Clone(), cache.DefaultExpiration)
	return next, nil
}

// Create inserts a brand-new session, seeding the version token.
func (s *SessionStore) Create(ctx context.Context, session *db.SessionModel) (*db.SessionModel, error) {
	if session.Version == 0 {
		session.Version = 1
	}

	_, err := async.Await(odm.CollectionOf[db.SessionModel](s.mongo, s.tenant).Save(ctx, *session))
	if err != nil {
		return nil, err
	}

	s.cache.Set(session.ID, session.Clone(), cache.DefaultExpiration)
	return session, nil
}

func (s *SessionStore) Invalidate(sessionID string) {
	s.cache.Delete(sessionID)
}
