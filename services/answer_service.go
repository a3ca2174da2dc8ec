package services

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/SaiNageswarS/go-collection-boot/async"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"
	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"github.com/rohit-constellation/retro-core/prompts"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const embedTimeout = 30 * time.Second

// AnswerProcessor consumes a stored answer and runs the progression pipeline.
type AnswerProcessor interface {
	ProcessAnswer(ctx context.Context, sessionID, participantID, questionID, response, answerID string)
}

// AnswerService persists raw answers, attaches embeddings asynchronously and
// serves the vector-similarity lookups used for follow-up context.
type AnswerService struct {
	mongo        *mongo.Client
	ollamaClient *api.Client
	tenant       string
	processor    AnswerProcessor
}

func ProvideAnswerService(mongo *mongo.Client, ollamaClient *api.Client, tenant string) *AnswerService {
	return &AnswerService{mongo: mongo, ollamaClient: ollamaClient, tenant: tenant}
}

var _ engine.AnswerReader = (*AnswerService)(nil)
var _ engine.SimilaritySearcher = (*AnswerService)(nil)

// AttachProcessor wires the progression pipeline after construction. The
// pipeline reads answers back through this service, so the two are built
// separately and joined here.
func (s *AnswerService) AttachProcessor(processor AnswerProcessor) {
	s.processor = processor
}

// Submit stores the answer immediately and returns it. Embedding generation
// and answer processing continue in the background; neither can fail the
// submission itself.
func (s *AnswerService) Submit(ctx context.Context, sessionID, participantID, questionID, response string) (*db.AnswerModel, error) {
	if sessionID == "" || participantID == "" || questionID == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionId, participantId and questionId are required")
	}

	answer := &db.AnswerModel{
		AnswerID:      uuid.New().String(),
		SessionID:     sessionID,
		ParticipantID: participantID,
		QuestionID:    questionID,
		Response:      response,
		CreatedOn:     time.Now().UnixMilli(),
	}

	if _, err := async.Await(odm.CollectionOf[db.AnswerModel](s.mongo, s.tenant).Save(ctx, *answer)); err != nil {
		logger.Error("Failed to save answer", zap.String("session", sessionID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to save answer")
	}

	go s.attachEmbedding(*answer)

	if s.processor != nil {
		go s.processor.ProcessAnswer(context.Background(), sessionID, participantID, questionID, response, answer.AnswerID)
	}

	return answer, nil
}

// attachEmbedding computes the answer embedding and re-saves the document.
// Failures leave the answer without an embedding, which only excludes it from
// similarity context.
func (s *AnswerService) attachEmbedding(answer db.AnswerModel) {
	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()

	embedding, err := prompts.EmbedAnswerText(ctx, s.ollamaClient, answer.Response)
	if err != nil {
		logger.Error("Failed to embed answer",
			zap.String("answer", answer.AnswerID), zap.Error(err))
		return
	}

	answer.Embedding = embedding
	if _, err := async.Await(odm.CollectionOf[db.AnswerModel](s.mongo, s.tenant).Save(ctx, answer)); err != nil {
		logger.Error("Failed to persist answer embedding",
			zap.String("answer", answer.AnswerID), zap.Error(err))
	}
}

// FindBySession returns every answer recorded for the session, used when
// assembling the final report.
func (s *AnswerService) FindBySession(ctx context.Context, sessionID string) ([]db.AnswerModel, error) {
	return async.Await(odm.CollectionOf[db.AnswerModel](s.mongo, s.tenant).
		Find(ctx, bson.M{"sessionId": sessionID}, nil, 0, 0))
}

func (s *AnswerService) FindOne(ctx context.Context, answerID string) (*db.AnswerModel, error) {
	answer, err := async.Await(odm.CollectionOf[db.AnswerModel](s.mongo, s.tenant).FindOneByID(ctx, answerID))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return answer, nil
}

// FindSimilar runs the ANN lookup over answer embeddings, filters the hits to
// the session with the submitter's own answers excluded, and re-scores the
// survivors with an exact cosine distance so callers get a stable ordering.
func (s *AnswerService) FindSimilar(ctx context.Context, embedding []float32, limit int, sessionID, excludeAnswerID, excludeParticipantID string) ([]engine.SimilarAnswer, error) {
	if limit <= 0 || len(embedding) == 0 {
		return nil, nil
	}

	// Over-fetch so exclusion filtering still leaves enough hits.
	hits, err := async.Await(odm.CollectionOf[db.AnswerModel](s.mongo, s.tenant).
		VectorSearch(ctx, embedding, odm.VectorSearchParams{
			IndexName:     "answerEmbeddingIndex",
			Path:          "embedding",
			NumCandidates: limit * 10,
			K:             limit * 4,
		}))
	if err != nil {
		return nil, err
	}

	similar := make([]engine.SimilarAnswer, 0, limit)
	for _, hit := range hits {
		answer := hit.Doc
		if answer.SessionID != sessionID ||
			answer.AnswerID == excludeAnswerID ||
			answer.ParticipantID == excludeParticipantID ||
			len(answer.Embedding) == 0 {
			continue
		}
		similar = append(similar, engine.SimilarAnswer{
			Answer:   answer,
			Distance: cosineDistance(embedding, answer.Embedding),
		})
	}

	sort.Slice(similar, func(i, j int) bool { return similar[i].Distance < similar[j].Distance })
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar, nil
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
