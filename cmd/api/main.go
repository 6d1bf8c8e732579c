// @title           Multi-Tenant RAG API
// @version         1.0
// @description     ACL-enforced retrieval, cached grounded answers and incremental source ingestion
// @termsOfService  http://swagger.io/terms/

// @contact.name    me lol
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/akolanti/RagAPI/internal/cache"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/data/pgStore"
	"github.com/akolanti/RagAPI/internal/data/redisStore"
	"github.com/akolanti/RagAPI/internal/data/store"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/domain/jobModel"
	"github.com/akolanti/RagAPI/internal/handlers"
	"github.com/akolanti/RagAPI/internal/ingest"
	"github.com/akolanti/RagAPI/internal/policy"
	"github.com/akolanti/RagAPI/internal/queue"
	"github.com/akolanti/RagAPI/internal/rag"
	"github.com/akolanti/RagAPI/internal/rag/embedding/googleEmbedding"
	"github.com/akolanti/RagAPI/internal/rag/llm/gemini"
	"github.com/akolanti/RagAPI/internal/rag/retrieval"
	"github.com/akolanti/RagAPI/internal/rag/vectorDB"
	"github.com/akolanti/RagAPI/internal/rag/vectorDB/qdrantDB"
	"github.com/akolanti/RagAPI/internal/server"
	"github.com/akolanti/RagAPI/internal/syncjob"
	"github.com/akolanti/RagAPI/internal/worker"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

var (
	listenAddr        string
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//persona policies
	policyConfig, err := policy.LoadConfig(config.PersonaConfigPath)
	if err != nil {
		logger.Error("Could not load persona config, using built-in defaults", "path", config.PersonaConfigPath, "error", err)
		policyConfig = policy.BuiltinConfig()
	}
	policyEngine := policy.NewEngine(policyConfig)

	//durable storage - in-memory fallback keeps local development working
	var (
		contentStore  commonModels.ContentStore
		identityStore commonModels.IdentityStore
		auditStore    commonModels.AuditStore
		feedbackStore commonModels.FeedbackStore
		durableCache  cache.Cache
		jobStore      jobModel.JobStore
	)

	pg, err := pgStore.Connect(serviceContext, config.PostgresDSN)
	if err != nil {
		logger.Error("Postgres is offline, using in-memory stores", "error", err)
		contentStore = store.InitInMemoryContentStore()
		identityStore = store.InitInMemoryIdentityStore()
		auditStore = store.InitInMemoryAuditStore()
		feedbackStore = store.InitInMemoryFeedbackStore()
	} else {
		if err := pg.EnsureSchema(serviceContext); err != nil {
			logger.Error("Schema setup failed", "error", err)
			return
		}
		contentStore = pg
		identityStore = pg
		auditStore = pg
		feedbackStore = pg
		durableCache = cache.NewDurableCache(pg)
		defer pg.Close()
	}

	//job store: redis first, then postgres, then memory
	if redisJobStore := store.GetRedisJobStore(serviceContext); redisJobStore != nil {
		jobStore = redisJobStore
	} else if pg != nil {
		logger.Error("Redis job store is offline, using postgres")
		jobStore = pg
	} else {
		logger.Error("Redis job store is offline, using in-memory store")
		jobStore = store.InitInMemoryJobStore()
	}

	//two-tier caches
	var volatileCache cache.Cache
	if volatileStore := redisStore.GetRedisStore(serviceContext, config.RedisVolatileCacheDB); volatileStore != nil {
		volatileCache = cache.NewRedisCache(volatileStore)
	} else {
		logger.Error("Redis cache is offline, using in-process cache")
		volatileCache = cache.NewMemoryCache()
	}
	answerCache := cache.NewTiered("answer", volatileCache, durableCache)
	toolCache := cache.NewTiered("tool", volatileCache, durableCache)
	if pg != nil {
		go purgeDurableCache(serviceContext, pg)
	}

	//model clients
	embeddingService := googleEmbedding.GetGoogleEmbeddingClient(serviceContext, config.GoogleEmbeddingModel, config.GoogleEmbeddingAPIKey)
	llmProvider := gemini.GetGeminiClient(serviceContext, config.GeminiModelName, config.GoogleEmbeddingAPIKey)
	if embeddingService == nil || llmProvider == nil {
		logger.Error("One or more model services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "EmbeddingService", embeddingService != nil, "LLMProvider", llmProvider != nil)
		return
	}

	//vector index: qdrant when reachable, content-store scan otherwise
	var (
		vectorIndex retrieval.VectorIndex
		indexWriter vectorDB.Writer
	)
	if qdrant := qdrantDB.GetQdrantClient(serviceContext); qdrant != nil {
		vectorIndex = qdrant
		indexWriter = qdrant
	} else {
		logger.Error("Qdrant is offline, retrieval will scan the content store")
		vectorIndex = retrieval.NewStoreIndex(contentStore)
	}

	//ingestion
	connectors := map[commonModels.ConnectorType]ingest.Connector{
		commonModels.ConnectorUpload: ingest.NewUploadConnector(),
		commonModels.ConnectorDrive:  ingest.NewDriveConnector(ingest.NewHTTPDriveClient(config.DriveAccessToken)),
	}
	pipeline := ingest.NewPipeline(contentStore, embeddingService, indexWriter, connectors)

	//job queue: SQS in deployments, in-memory for local runs
	var jobQueue queue.Queue
	if config.SQSQueueURL != "" {
		sqsQueue, err := queue.NewSQSQueue(serviceContext, config.SQSQueueURL)
		if err != nil {
			logger.Error("Could not initialize SQS queue. Shutting down.", "error", err)
			return
		}
		jobQueue = sqsQueue
	} else {
		jobQueue = queue.InitInMemoryQueue()
	}

	syncService := syncjob.InitService(syncjob.ServiceConfig{
		JobStore:  jobStore,
		Queue:     jobQueue,
		Processor: pipeline,
	})

	askService := rag.InitService(rag.ServiceConfig{
		Policies:    policyEngine,
		Retriever:   retrieval.NewEngine(embeddingService, vectorIndex),
		LLMProvider: llmProvider,
		AnswerCache: answerCache,
		ToolCache:   toolCache,
		Tools:       rag.NewToolRegistry(),
		Facts:       contentStore,
		Audit:       auditStore,
	})

	handlers.InitHandlers(handlers.HandlerConfig{
		AskService:    askService,
		SyncService:   syncService,
		ContentStore:  contentStore,
		IdentityStore: identityStore,
		FeedbackStore: feedbackStore,
	})

	//init worker pool
	worker.InitServices(syncService, jobQueue)
	worker.InitWorkerPool(serviceContext, stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func purgeDurableCache(ctx context.Context, pg *pgStore.Store) {
	log := logger_i.NewLogger("CachePurge")
	ticker := time.NewTicker(config.CachePurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if purged, err := pg.CachePurge(ctx); err != nil {
				log.Error("Durable cache purge failed", "error", err)
			} else if purged > 0 {
				log.Debug("Reclaimed lapsed cache rows", "count", purged)
			}
		}
	}
}
