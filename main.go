package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SaiNageswarS/go-api-boot/config"
	"github.com/SaiNageswarS/go-api-boot/dotenv"
	"github.com/SaiNageswarS/go-api-boot/llm"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/SaiNageswarS/go-api-boot/odm"
	"github.com/ollama/ollama/api"
	"github.com/rohit-constellation/retro-core/appconfig"
	"github.com/rohit-constellation/retro-core/db"
	"github.com/rohit-constellation/retro-core/engine"
	"github.com/rohit-constellation/retro-core/events"
	"github.com/rohit-constellation/retro-core/services"
	"github.com/rohit-constellation/retro-core/store"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

const defaultCacheTTLMins = 60

func main() {
	dotenv.LoadEnv()

	// load config file
	ccfgg := &appconfig.AppConfig{}
	err := config.LoadConfig("config.ini", ccfgg)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	claude, err := llm.ProvideAnthropicClient()
	if err != nil {
		logger.Fatal("Failed to create Claude client", zap.Error(err))
	}

	ollamaClient, err := api.ClientFromEnvironment()
	if err != nil {
		logger.Fatal("Failed to create Ollama client", zap.Error(err))
	}

	mongoClient := odm.ProvideMongoClient().(*mongo.Client)

	ctx := getCancellableContext()

	tenant := ccfgg.Tenant
	if tenant == "" {
		tenant = "retrocore"
	}
	if err := db.InitRetroCoreDB(ctx, mongoClient, tenant); err != nil {
		logger.Fatal("Failed to ensure database indexes", zap.Error(err))
	}

	sessionStore := store.NewSessionStore(mongoClient, tenant, cacheTTL(ccfgg.SessionCacheTTLMins))
	queueStore := store.NewQueueStore(cacheTTL(ccfgg.QueueCacheTTLMins))
	broker := events.NewBroker(ccfgg.EventBufferPerClient)

	answerService := services.ProvideAnswerService(mongoClient, ollamaClient, tenant)
	sessionService := services.ProvideSessionService(sessionStore, answerService, claude, broker, ccfgg.ReportGenerationOn)

	orchestrator := engine.NewOrchestrator(
		sessionStore,
		queueStore,
		services.ProvideEvaluationService(claude),
		engine.NewSynthesizer(services.ProvideFollowUpService(claude)),
		answerService,
		answerService,
		sessionService,
		broker,
		ccfgg.SimilarAnswerLimit,
	)
	answerService.AttachProcessor(orchestrator)

	logger.Info("Progression engine ready", zap.String("tenant", tenant))

	// Delivery transports subscribe to the broker and feed answers through
	// answerService.Submit; the engine itself has no listening surface.
	<-ctx.Done()
	logger.Info("Shutting down")
}

func cacheTTL(mins int) time.Duration {
	if mins <= 0 {
		mins = defaultCacheTTLMins
	}
	return time.Duration(mins) * time.Minute
}

func getCancellableContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		cancel()
	}()

	return ctx
}
