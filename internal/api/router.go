package api

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bonjohen/second-brain/internal/api/handlers"
	mw "github.com/bonjohen/second-brain/internal/api/middleware"
	"github.com/bonjohen/second-brain/internal/config"
	"github.com/bonjohen/second-brain/internal/domain"
	"github.com/bonjohen/second-brain/internal/embedding"
	"github.com/bonjohen/second-brain/internal/service"
	"github.com/bonjohen/second-brain/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the router and the background scheduler for lifecycle
// management.
type App struct {
	Router    *chi.Mux
	Scheduler *service.Scheduler

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	sourceStore := store.NewSourceStore(db)
	noteStore := store.NewNoteStore(db)
	beliefStore := store.NewBeliefStore(db)
	edgeStore := store.NewEdgeStore(db)
	signalStore := store.NewSignalStore(db)
	auditStore := store.NewAuditStore(db)

	// Embedding provider (optional; keyword-only operation works without it)
	var embeddingClient domain.EmbeddingClient
	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed",
			zap.String("provider", config.EmbeddingProvider()), zap.Error(err))
		embeddingClient = nil
	} else if embeddingClient != nil {
		logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))
	}

	// Services
	noteSvc := service.NewNoteService(noteStore, sourceStore, logger)
	beliefSvc := service.NewBeliefService(beliefStore, logger)
	ingestionSvc := service.NewIngestionService(noteSvc, signalStore, embeddingClient, logger)
	confidenceEngine := service.NewConfidenceEngine(edgeStore)
	detector := service.NewContradictionDetector(beliefStore, logger)
	lifecycleSvc := service.NewLifecycleService(beliefSvc, confidenceEngine, detector, logger)
	curatorSvc := service.NewCuratorService(noteSvc, beliefSvc, edgeStore, signalStore, auditStore, embeddingClient, logger)
	askSvc := service.NewAskService(noteSvc, beliefSvc, edgeStore, embeddingClient, logger)
	reportSvc := service.NewReportService(noteStore, sourceStore, beliefStore, edgeStore, signalStore, auditStore)

	// Agents behind the signal bus
	synthesisAgent := service.NewSynthesisAgent(noteStore, beliefSvc, edgeStore, signalStore, logger)
	challengerAgent := service.NewChallengerAgent(beliefSvc, edgeStore, signalStore, detector, confidenceEngine, logger)

	dispatcher := service.NewDispatcher(signalStore, logger)
	dispatcher.Register(domain.SignalNewNote, "synthesis", synthesisAgent.HandleSignal)
	dispatcher.Register(domain.SignalBeliefProposed, "challenger", challengerAgent.HandleSignal)

	// All background mutation runs through the scheduler's single loop, so
	// agents and maintenance passes never race each other.
	scheduler := service.NewScheduler(logger)
	scheduler.Interval = config.TickInterval()
	scheduler.AddStep("dispatch", func(ctx context.Context) error {
		_, err := dispatcher.Poll(ctx)
		return err
	})
	scheduler.AddStep("lifecycle", func(ctx context.Context) error {
		_, err := lifecycleSvc.AutoTransition(ctx)
		return err
	})
	scheduler.AddStep("curator", func(ctx context.Context) error {
		_, err := curatorSvc.Run(ctx)
		return err
	})

	// Handlers
	noteHandler := handlers.NewNoteHandler(noteSvc, ingestionSvc, auditStore)
	beliefHandler := handlers.NewBeliefHandler(beliefSvc, auditStore)
	graphHandler := handlers.NewGraphHandler(edgeStore)
	askHandler := handlers.NewAskHandler(askSvc)
	adminHandler := handlers.NewAdminHandler(scheduler, reportSvc, curatorSvc)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Scheduler: scheduler,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics
	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		// Notes
		r.Route("/notes", func(r chi.Router) {
			r.Post("/", noteHandler.Ingest)
			r.Get("/", noteHandler.List)
			r.Get("/search", noteHandler.Search)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", noteHandler.GetByID)
				r.Get("/history", noteHandler.History)
			})
		})

		// Sources
		r.Route("/sources/{id}", func(r chi.Router) {
			r.Get("/", noteHandler.GetSource)
			r.Put("/trust", noteHandler.UpdateSourceTrust)
		})

		// Beliefs
		r.Route("/beliefs", func(r chi.Router) {
			r.Post("/", beliefHandler.Create)
			r.Get("/", beliefHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Put("/status", beliefHandler.UpdateStatus)
				r.Get("/history", beliefHandler.History)
			})
		})

		// Graph
		r.Route("/edges", func(r chi.Router) {
			r.Post("/", graphHandler.Create)
			r.Get("/", graphHandler.Query)
		})

		// Ask
		r.Post("/ask", askHandler.Ask)

		// Admin
		r.Route("/admin", func(r chi.Router) {
			r.Post("/tick", adminHandler.Tick)
			r.Post("/curate", adminHandler.Curate)
			r.Get("/report", adminHandler.Report)
		})
	})

	return app
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.SourceStore     = (*store.SourceStore)(nil)
	_ domain.NoteStore       = (*store.NoteStore)(nil)
	_ domain.BeliefStore     = (*store.BeliefStore)(nil)
	_ domain.EdgeStore       = (*store.EdgeStore)(nil)
	_ domain.SignalStore     = (*store.SignalStore)(nil)
	_ domain.AuditStore      = (*store.AuditStore)(nil)
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
)
