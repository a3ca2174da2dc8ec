package db

import (
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/rohit-constellation/retro-core/prompts"
)

// AnswerModel is immutable once created except for the asynchronous embedding
// attachment; the embedding feeds the cross-participant similarity lookup.
type AnswerModel struct {
	AnswerID      string    `json:"id" bson:"_id"`
	SessionID     string    `json:"sessionId" bson:"sessionId"`
	ParticipantID string    `json:"participantId" bson:"participantId"`
	QuestionID    string    `json:"questionId" bson:"questionId"`
	Response      string    `json:"response" bson:"response"`
	Embedding     []float32 `json:"-" bson:"embedding,omitempty"`
	CreatedOn     int64     `json:"createdOn" bson:"createdOn"`
}

func (m AnswerModel) Id() string { return m.AnswerID }

func (m AnswerModel) CollectionName() string { return "answers" }

// Indexes
func (m AnswerModel) VectorIndexSpecs() []odm.VectorIndexSpec {
	return []odm.VectorIndexSpec{
		{
			Name:          "answerEmbeddingIndex",
			Path:          "embedding",
			Type:          "vector",
			NumDimensions: prompts.EmbeddingDimensions,
			Similarity:    "cosine",
			Quantization:  "scalar",
		},
	}
}
