package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sjsage522/unjobsworker/config"
	"sjsage522/unjobsworker/helpers"
	"sjsage522/unjobsworker/internal/crawler"
	"sjsage522/unjobsworker/logger"
	"sjsage522/unjobsworker/services/cache"
	"sjsage522/unjobsworker/services/classifier"
	"sjsage522/unjobsworker/services/indexer"
	"sjsage522/unjobsworker/services/notifier"
	"sjsage522/unjobsworker/services/publisher"
	"sjsage522/unjobsworker/services/snapshot"
	"sjsage522/unjobsworker/services/status"
	"sjsage522/unjobsworker/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.ForWorker()

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("crawl_interval", cfg.CrawlInterval).
		Bool("run_once", cfg.RunOnce).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	var sources []crawler.Source
	if cfg.InputFile == "" {
		sources = crawler.CreateSources(cfg, services.Fetcher, services.Cache, services.Regions)
		if len(sources) == 0 {
			log.Fatal().Msg("No sources were created")
		}
		log.Info().Int("source_count", len(sources)).Msg("Created sources")
	}

	w := worker.NewWorker(worker.Options{
		Sources:          sources,
		Store:            services.Store,
		Gateway:          services.Gateway,
		ClassifyBatch:    cfg.ClassifyBatchSize,
		ClassifyParallel: cfg.ClassifyConcurrency,
		Publisher:        services.Publisher,
		Indexer:          services.Indexer,
		Notifier:         services.Notifier,
		Tracker:          services.Tracker,
		InputFile:        cfg.InputFile,
		OutputFile:       cfg.OutputFile,
		NewJobsFile:      cfg.NewJobsFile,
		Interval:         cfg.CrawlInterval,
		RunOnce:          cfg.RunOnce,
	}, helpers.NewLogger(cfg.ErrorLogFile))

	if services.Status != nil {
		go func() {
			if err := services.Status.Start(ctx); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
	}

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Msg("Starting UN jobs worker")
		workerDone <- w.Start(ctx)
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Fetcher   helpers.Fetcher
	Cache     cache.CacheService
	Regions   crawler.RegionTable
	Store     snapshot.Store
	Gateway   classifier.Gateway
	Publisher publisher.Publisher
	Indexer   indexer.Indexer
	Notifier  notifier.Notifier
	Tracker   *status.Tracker
	Status    *status.Server
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

// initializeServices builds every collaborator the configuration enables.
// Optional outputs that cannot be reached are logged and left out.
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.ForWorker()
	services := &Services{
		Regions: crawler.DefaultRegionTable(),
		Tracker: status.NewTracker(),
	}

	if cfg.RegionsFile != "" {
		table, err := crawler.LoadRegionTable(cfg.RegionsFile)
		if err != nil {
			return nil, err
		}
		services.Regions = table
		logger.Info("Loaded region table from %s", cfg.RegionsFile)
	}

	limiter := helpers.NewHostLimiter(cfg.FetchRate, cfg.FetchBurst)
	switch cfg.Fetcher {
	case config.FetcherColly:
		services.Fetcher = helpers.NewCollyFetcher(cfg.FetchTimeout, limiter, cfg.ProxyURL)
	default:
		f, err := helpers.NewHTTPFetcher(cfg.FetchTimeout, limiter, cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		services.Fetcher = f
	}

	// Rate-limit block windows
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unavailable, using in-process cache")
			services.Cache = cache.NewMemoryService()
		} else {
			services.Cache = mc
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	} else {
		services.Cache = cache.NewMemoryService()
	}

	store, err := snapshot.FromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	services.Store = store

	if cfg.OpenAIAPIKey != "" {
		services.Gateway = classifier.NewOpenAI(classifier.OpenAIConfig{
			APIKey:        cfg.OpenAIAPIKey,
			Model:         cfg.OpenAIModel,
			PromptID:      cfg.OpenAIPromptID,
			PromptVersion: cfg.OpenAIPromptVersion,
		})
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, new jobs will not be classified")
		services.Gateway = classifier.Noop{}
	}

	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		logger.Info("Publishing new jobs to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	if len(cfg.ElasticsearchURLs) > 0 {
		idx, err := indexer.NewElasticsearchIndexer(ctx, cfg.ElasticsearchURLs, cfg.ElasticsearchIndex)
		if err != nil {
			log.Warn().Err(err).Msg("Elasticsearch unavailable, indexing disabled")
		} else if err := idx.EnsureIndex(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to prepare Elasticsearch index, indexing disabled")
		} else {
			services.Indexer = idx
		}
	}

	var notifiers notifier.Multi
	if cfg.NotifyEmail != "" {
		password, err := notifier.SMTPPassword(cfg.SMTPPass, cfg.SMTPKeyringAccount)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, notifier.NewEmailNotifier(notifier.EmailConfig{
			To:       cfg.NotifyEmail,
			Username: cfg.SMTPUser,
			Password: password,
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
		}))
	}
	if cfg.TelegramToken != "" {
		tg, err := notifier.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("Telegram unavailable, notifications disabled")
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if len(notifiers) > 0 {
		services.Notifier = notifiers
	}

	if cfg.StatusAddr != "" {
		services.Status = status.NewServer(cfg.StatusAddr, services.Tracker)
	}

	return services, nil
}
