package api

import (
	"context"
	"fmt"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/voterprime/catmatch/internal/api/handlers"
	mw "github.com/voterprime/catmatch/internal/api/middleware"
	"github.com/voterprime/catmatch/internal/catalog"
	"github.com/voterprime/catmatch/internal/config"
	"github.com/voterprime/catmatch/internal/domain"
	"github.com/voterprime/catmatch/internal/embedding"
	"github.com/voterprime/catmatch/internal/llm"
	"github.com/voterprime/catmatch/internal/metrics"
	"github.com/voterprime/catmatch/internal/service"
	"github.com/voterprime/catmatch/internal/store"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router   *chi.Mux
	Catalog  *catalog.Store
	Reloader *service.Reloader
	Snapshot *service.MetricsSnapshotter
	Metrics  *metrics.Metrics

	categories     domain.CategoryRepository
	categoriesFile string
	redis          *redis.Client
	logger         *zap.Logger
	stop           chan struct{}
}

// components are the external dependencies of the HTTP surface. NewApp
// builds them from config; tests pass in-memory fakes.
type components struct {
	db              handlers.Pinger
	categories      domain.CategoryRepository
	interactions    domain.InteractionStore
	feedback        domain.FeedbackStore
	learningMetrics domain.LearningMetricStore
	activity        domain.ActivityStore
	embedder        domain.Embedder
	suggester       domain.KeywordSuggester
	scorer          *service.MatchScorer
	metrics         *metrics.Metrics
	adminToken      string
	rateLimitRPS    float64
	rateLimitBurst  int
}

// categorySeeder is implemented by repositories that can insert categories
// with fixed ids.
type categorySeeder interface {
	Upsert(ctx context.Context, c *domain.Category) error
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) (*App, error) {
	m := metrics.New()

	embeddingProvider := config.EmbeddingProvider()
	emb, err := embedding.NewClient(embeddingProvider, config.EmbeddingAPIKey(), config.EmbeddingModel())
	if err != nil {
		return nil, fmt.Errorf("embedding client: %w", err)
	}
	logger.Info("Embedding client initialized",
		zap.String("provider", embeddingProvider),
		zap.String("model", emb.Model()))

	var rdb *redis.Client
	if url := config.RedisURL(); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		emb = embedding.NewCachedClient(emb, rdb, config.EmbeddingCacheTTL(), logger, m)
		logger.Info("Embedding cache enabled", zap.Duration("ttl", config.EmbeddingCacheTTL()))
	}

	llmProvider := config.LLMProvider()
	suggester, err := llm.NewClient(llmProvider, config.LLMAPIKey(), config.LLMModel())
	if err != nil {
		logger.Warn("LLM client initialization failed, keyword suggestions disabled",
			zap.String("provider", llmProvider), zap.Error(err))
	} else {
		logger.Info("LLM client initialized", zap.String("provider", llmProvider))
	}

	scorer := service.NewMatchScorer()
	scorer.MinSimilarity = config.MatchMinSimilarity(scorer.MinSimilarity)
	scorer.MinConfidence = config.MatchMinConfidence(scorer.MinConfidence)
	scorer.SimilarityWeight, scorer.KeywordWeight, scorer.HistoryWeight = config.MatchWeights(
		scorer.SimilarityWeight, scorer.KeywordWeight, scorer.HistoryWeight)

	interactions := store.NewInteractionStore(db)
	app, err := newApp(components{
		db:              db,
		categories:      store.NewCategoryStore(db),
		interactions:    interactions,
		feedback:        store.NewFeedbackStore(db),
		learningMetrics: store.NewLearningMetricStore(db),
		activity:        interactions,
		embedder:        emb,
		suggester:       suggester,
		scorer:          scorer,
		metrics:         m,
		adminToken:      config.AdminToken(),
		rateLimitRPS:    config.RateLimitRPS(),
		rateLimitBurst:  config.RateLimitBurst(),
	}, logger)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	app.redis = rdb
	app.categoriesFile = config.CategoriesFile()
	app.Reloader.SetInterval(config.ReloadInterval())
	app.Snapshot.SetInterval(config.MetricsSnapshotInterval())
	app.Snapshot.SetWindow(config.MetricsSnapshotWindow())
	return app, nil
}

func newApp(c components, logger *zap.Logger) (*App, error) {
	emb := embedding.WithMetrics(c.embedder, c.metrics)
	cat := catalog.New(emb, logger, c.metrics)

	matcherSvc, err := service.NewMatcherService(cat, emb, c.scorer, logger, c.metrics)
	if err != nil {
		return nil, err
	}
	learningSvc := service.NewLearningService(c.feedback, c.learningMetrics, logger)
	learningSvc.SetCatalog(cat)
	if c.activity != nil {
		learningSvc.SetActivityStore(c.activity)
	}
	feedbackSvc := service.NewFeedbackService(c.feedback, c.interactions, logger)
	feedbackSvc.SetCategoryRepository(c.categories)
	feedbackSvc.SetLearningService(learningSvc)
	feedbackSvc.SetMetrics(c.metrics)

	reloader := service.NewReloader(c.categories, cat, logger)
	feedbackSvc.SetReloader(reloader)
	snapshotter := service.NewMetricsSnapshotter(learningSvc, cat, logger)
	categorySvc := service.NewCategoryService(c.categories, reloader, matcherSvc, logger)
	if c.suggester != nil {
		categorySvc.SetSuggester(c.suggester)
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler(c.db, cat)
	matchHandler := handlers.NewMatchHandler(matcherSvc, feedbackSvc, cat, logger)
	categoryHandler := handlers.NewCategoryHandler(cat)
	feedbackHandler := handlers.NewFeedbackHandler(feedbackSvc)
	learningHandler := handlers.NewLearningHandler(learningSvc)
	adminHandler := handlers.NewAdminHandler(categorySvc, reloader, cat, logger)

	r := chi.NewRouter()
	app := &App{
		Router:     r,
		Catalog:    cat,
		Reloader:   reloader,
		Snapshot:   snapshotter,
		Metrics:    c.metrics,
		categories: c.categories,
		logger:     logger,
		stop:       make(chan struct{}),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics(c.metrics))
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(c.rateLimitRPS, c.rateLimitBurst, app.stop))

	r.Get("/health", healthHandler.Check)
	r.Method("GET", "/metrics", c.metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/matches", func(r chi.Router) {
			r.Post("/", matchHandler.Find)
			r.Post("/refine", matchHandler.Refine)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Get("/stats", categoryHandler.Stats)
			r.Get("/{id}", categoryHandler.Get)
		})

		r.Post("/feedback", feedbackHandler.Submit)

		r.Route("/learning", func(r chi.Router) {
			r.Get("/underperforming", learningHandler.Underperforming)
			r.Get("/rejection-patterns", learningHandler.RejectionPatterns)
			r.Get("/missing-categories", learningHandler.MissingCategories)
			r.Get("/insights", learningHandler.Insights)
			r.Get("/analytics", learningHandler.Analytics)
			r.Get("/trends", learningHandler.Trends)
			r.Get("/acceptance", learningHandler.Acceptance)
			r.Get("/sessions", learningHandler.Sessions)
			r.Get("/overall", learningHandler.Overall)
			r.Get("/report", learningHandler.Report)
			r.Get("/usage", learningHandler.Usage)
			r.Get("/usage/performance", learningHandler.UsagePerformance)
			r.Route("/categories/{id}", func(r chi.Router) {
				r.Get("/performance", learningHandler.Performance)
				r.Get("/metrics", learningHandler.MetricsHistory)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.AdminAuth(c.adminToken))

			r.Post("/reload", adminHandler.Reload)
			r.Post("/learning/categories/{id}/recompute", learningHandler.Recompute)
			r.Route("/categories", func(r chi.Router) {
				r.Post("/", adminHandler.Create)
				r.Post("/preview", adminHandler.Preview)
				r.Post("/merge", adminHandler.Merge)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", adminHandler.Get)
					r.Put("/", adminHandler.Update)
					r.Delete("/", adminHandler.Deactivate)
					r.Put("/keywords", adminHandler.ReplaceKeywords)
					r.Post("/keywords", adminHandler.AddKeywords)
					r.Post("/enhance", adminHandler.Enhance)
					r.Post("/reactivate", adminHandler.Reactivate)
					r.Post("/split", adminHandler.Split)
				})
			})
		})
	})

	return app, nil
}

// Bootstrap seeds an empty repository from the configured YAML file, loads
// the active categories into the catalog and starts periodic reloads.
func (app *App) Bootstrap(ctx context.Context) error {
	if app.categoriesFile != "" {
		if err := app.seed(ctx, app.categoriesFile); err != nil {
			return err
		}
	}
	if err := app.Reloader.Reload(ctx); err != nil {
		return fmt.Errorf("initial category load: %w", err)
	}
	app.Reloader.Start()
	app.Snapshot.Start()
	return nil
}

func (app *App) seed(ctx context.Context, path string) error {
	existing, err := app.categories.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	seeder, ok := app.categories.(categorySeeder)
	if !ok {
		return fmt.Errorf("category repository cannot seed from %s", path)
	}

	cats, err := catalog.LoadFile(path, app.logger)
	if err != nil {
		return err
	}
	for i := range cats {
		if err := seeder.Upsert(ctx, &cats[i]); err != nil {
			return fmt.Errorf("seed category %d: %w", cats[i].ID, err)
		}
	}
	app.logger.Info("seeded categories", zap.String("file", path), zap.Int("count", len(cats)))
	return nil
}

// Close stops background work and releases clients owned by the app.
func (app *App) Close() {
	app.Reloader.Stop()
	app.Snapshot.Stop()
	close(app.stop)
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.CategoryRepository  = (*store.CategoryStore)(nil)
	_ categorySeeder             = (*store.CategoryStore)(nil)
	_ domain.InteractionStore    = (*store.InteractionStore)(nil)
	_ domain.ActivityStore       = (*store.InteractionStore)(nil)
	_ domain.FeedbackStore       = (*store.FeedbackStore)(nil)
	_ domain.LearningMetricStore = (*store.LearningMetricStore)(nil)
	_ domain.Embedder            = (*embedding.OpenAIClient)(nil)
	_ domain.Embedder            = (*embedding.MockClient)(nil)
	_ domain.Embedder            = (*embedding.CachedClient)(nil)
	_ domain.KeywordSuggester    = (*llm.Client)(nil)
	_ domain.KeywordSuggester    = (*llm.MockClient)(nil)
	_ handlers.Pinger            = (*pgxpool.Pool)(nil)
)
