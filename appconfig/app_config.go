package appconfig

import (
	"github.com/SaiNageswarS/go-api-boot/config"
)

type AppConfig struct {
	config.BootConfig `ini:",extends"`

	MongoURI             string `env:"MONGO-URI" ini:"mongo_uri"`
	Tenant               string `env:"TENANT" ini:"tenant"`
	SessionCacheTTLMins  int    `env:"SESSION-CACHE-TTL-MINS" ini:"session_cache_ttl_mins"`
	QueueCacheTTLMins    int    `env:"QUEUE-CACHE-TTL-MINS" ini:"queue_cache_ttl_mins"`
	SimilarAnswerLimit   int    `env:"SIMILAR-ANSWER-LIMIT" ini:"similar_answer_limit"`
	ReportGenerationOn   bool   `env:"REPORT-GENERATION-ON" ini:"report_generation_on"`
	EventBufferPerClient int    `env:"EVENT-BUFFER-PER-CLIENT" ini:"event_buffer_per_client"`
}
