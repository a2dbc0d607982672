package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/botdesk/config"
	"github.com/yoockh/botdesk/internal/api/handlers"
	"github.com/yoockh/botdesk/internal/api/middleware"
	"github.com/yoockh/botdesk/internal/api/routes"
	"github.com/yoockh/botdesk/internal/cache"
	"github.com/yoockh/botdesk/internal/chatbot"
	"github.com/yoockh/botdesk/internal/events"
	"github.com/yoockh/botdesk/internal/knowledge"
	"github.com/yoockh/botdesk/internal/logger"
	"github.com/yoockh/botdesk/internal/providers/embedding"
	"github.com/yoockh/botdesk/internal/providers/llm"
	"github.com/yoockh/botdesk/internal/providers/stt"
	mongorepo "github.com/yoockh/botdesk/internal/repositories/mongo"
	pgrepo "github.com/yoockh/botdesk/internal/repositories/postgres"
	"github.com/yoockh/botdesk/internal/repositories/supabase"
	"github.com/yoockh/botdesk/internal/services"
	"github.com/yoockh/botdesk/internal/storage"
	"github.com/yoockh/botdesk/internal/telemetry"
	"github.com/yoockh/botdesk/internal/workers"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config error: %v", err)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracer("botdesk", cfg.Server.TraceStdout, log)
	if err != nil {
		log.Fatalf("tracer init error: %v", err)
	}

	if err := config.InitPostgres(cfg.Postgres); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	log.Info("PostgreSQL connected")

	if err := config.InitMongo(cfg.Mongo); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(cfg.Mongo.DB); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	log.Info("MongoDB connected")

	if err := config.InitRedis(cfg.Redis); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	log.Info("Redis connected")

	mdb := config.MongoClient.Database(cfg.Mongo.DB)

	// Repositories
	chatbotRepo := pgrepo.NewChatbotRepo(config.PostgresDB)
	convRepo := pgrepo.NewConversationRepo(config.PostgresDB)
	leadRepo := pgrepo.NewLeadRepo(config.PostgresDB)
	chunkRepo := pgrepo.NewChunkRepo(config.PostgresDB)
	sessionRepo := mongorepo.NewChatSessionRepo(mdb)
	bufferRepo := mongorepo.NewBufferRepo(mdb)

	var store chatbot.Store = pgrepo.NewStore(convRepo, leadRepo)
	if cfg.Store.Driver == "supabase" {
		sb, err := supabase.New(supabase.Config{URL: cfg.Supabase.URL, APIKey: cfg.Supabase.Key})
		if err != nil {
			log.Fatalf("supabase init error: %v", err)
		}
		store = sb
	}

	publisher := events.NewRedisPublisher(config.RedisClient)

	var (
		uploader  storage.Uploader
		signer    storage.Signer
		putSigner storage.UploadSigner
		audio     storage.Downloader
	)
	if cfg.GCP.Bucket != "" {
		gcs, err := storage.NewGCSUploader(ctx, cfg.GCP.Bucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		defer gcs.Close()
		uploader, signer, putSigner, audio = gcs, gcs, gcs, gcs
	} else {
		log.Warn("GCS_BUCKET not set; lead archives, exports and voice uploads are disabled")
	}
	store = services.NewLeadNotifier(store, publisher, uploader, log)

	// Model providers
	gemini, err := llm.NewVertexGemini(ctx, cfg.GCP.Project, cfg.GCP.Location, cfg.GCP.GeminiModel, cfg.GCP.ClassifierModel)
	if err != nil {
		log.Fatalf("Vertex Gemini init error: %v", err)
	}
	defer gemini.Close()

	embedder, err := embedding.NewVertexEmbedder(ctx, cfg.GCP.Project, cfg.GCP.Location, cfg.GCP.EmbeddingModel)
	if err != nil {
		log.Fatalf("embedding init error: %v", err)
	}
	defer embedder.Close()

	var index knowledge.Index = knowledge.NewPGVectorIndex(chunkRepo)
	if cfg.Vector.Driver == "qdrant" {
		qi, err := knowledge.NewQdrantIndex(knowledge.QdrantConfig{
			URL:        cfg.Vector.QdrantURL,
			APIKey:     cfg.Vector.QdrantAPIKey,
			Collection: cfg.Vector.QdrantCollection,
		})
		if err != nil {
			log.Fatalf("qdrant init error: %v", err)
		}
		defer qi.Close()
		index = qi
	}

	recognizer, err := stt.NewGoogleSpeech(ctx)
	if err != nil {
		log.Fatalf("speech init error: %v", err)
	}
	defer recognizer.Close()

	orch := chatbot.NewOrchestrator(chatbot.Deps{
		Store:      store,
		Classifier: chatbot.NewQuestionClassifier(gemini, log),
		Sentiment:  chatbot.NewSentimentAnalyzer(gemini, log),
		Retriever:  knowledge.NewRetriever(embedder, index, log),
		Generator:  gemini,
		Catalog:    chatbot.DefaultCatalog(),
		Policy:     chatbot.Policy{IrrelevanceThreshold: cfg.Chat.IrrelevanceThreshold},
		Logger:     log,
	})

	// Services
	chatbotSvc := services.NewChatbotService(chatbotRepo, cache.NewRedisCache(config.RedisClient), cfg.Chat.ConfigCacheTTL, log)
	chatSvc := services.NewChatService(services.ChatServiceDeps{
		Sessions:     sessionRepo,
		Chatbots:     chatbotSvc,
		Orchestrator: orch,
		Lock:         cache.NewRedisTurnLock(config.RedisClient),
		Events:       publisher,
		Logger:       log,
		SessionTTL:   cfg.Chat.SessionTTL,
		LockTTL:      cfg.Chat.TurnLockTTL,
	})
	voiceSvc := services.NewVoiceService(services.VoiceServiceDeps{
		Buffers: bufferRepo,
		Chats:   chatSvc,
		STT:     recognizer,
		Queue:   events.NewRedisQueue(config.RedisClient),
		Signer:  putSigner,
		Bucket:  cfg.GCP.Bucket,
		TTL:     cfg.Chat.VoiceBufferTTL,
	})
	leadSvc := services.NewLeadService(leadRepo, chatbotSvc)
	convSvc := services.NewConversationService(convRepo, chatbotSvc)
	exportSvc := services.NewExportService(chatbotSvc, uploader, signer)

	pool := &workers.VoiceWorkerPool{
		Redis:      config.RedisClient,
		Voice:      voiceSvc,
		Chats:      chatSvc,
		STT:        recognizer,
		Events:     publisher,
		Audio:      audio,
		NumWorkers: cfg.Chat.VoiceWorkers,
		Logger:     log,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("voice worker error: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	routes.RegisterRoutes(r, routes.Deps{
		Chat: handlers.NewChatHandler(chatSvc, voiceSvc),
		// The widget is embedded on customer sites; the widget key gates access.
		WS:           handlers.NewWSHandler(chatSvc, voiceSvc, config.RedisClient, publisher, log, func(*http.Request) bool { return true }),
		Lead:         handlers.NewLeadHandler(leadSvc),
		Conversation: handlers.NewConversationHandler(convSvc),
		Template:     handlers.NewTemplateHandler(orch.Catalog()),
		Chatbot:      handlers.NewChatbotHandler(chatbotSvc, exportSvc),
		Chatbots:     chatbotSvc,
		Chats:        chatSvc,
		JWT: middleware.JWTConfig{
			Secret:   cfg.Auth.JWTSecret,
			Issuer:   cfg.Auth.JWTIssuer,
			Audience: cfg.Auth.JWTAudience,
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.WithError(err).Warn("tracer shutdown error")
	}
	if err := config.MongoClient.Disconnect(shutdownCtx); err != nil {
		log.WithError(err).Warn("mongo disconnect error")
	}
	_ = config.RedisClient.Close()
	log.Info("shutdown complete")
}
