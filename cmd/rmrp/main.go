package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cmc-dx/rmrp/internal/adapters/bedfeed"
	"github.com/cmc-dx/rmrp/internal/artifact"
	"github.com/cmc-dx/rmrp/internal/audit"
	"github.com/cmc-dx/rmrp/internal/forecast"
	"github.com/cmc-dx/rmrp/internal/jobs"
	"github.com/cmc-dx/rmrp/internal/ranking"
	"github.com/cmc-dx/rmrp/internal/shared/auth"
	"github.com/cmc-dx/rmrp/internal/shared/config"
	"github.com/cmc-dx/rmrp/internal/shared/database"
	"github.com/cmc-dx/rmrp/internal/shared/events"
	"github.com/cmc-dx/rmrp/internal/shared/metrics"
	secmiddleware "github.com/cmc-dx/rmrp/internal/shared/middleware"
	"github.com/cmc-dx/rmrp/internal/snapshot"
	"github.com/cmc-dx/rmrp/internal/wardgraph"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Bus    *events.Bus
	Feed   bedfeed.Feed
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - without it the service can still
	// rank from request-supplied bed counts)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running in limited mode without database...")
	} else {
		app.DB = db
		defer db.Close()

		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	// Initialize event bus with KurrentDB (optional - skip if not available)
	bus, err := events.NewBus(ctx, cfg.KurrentDB)
	if err != nil {
		fmt.Printf("Warning: KurrentDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("KurrentDB Event Bus initialized")
	}

	// Ward graph: embedded defaults unless a JSON override is configured
	graph, err := wardgraph.Load(cfg.Engine.GraphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load ward graph: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Ward graph loaded (%d wards, hash %.12s)\n", len(graph.Wards()), graph.Hash())

	// Engine state store
	artifacts := newArtifactStore(cfg.Artifact, app)

	engine := ranking.NewEngine(graph, cfg.Engine)
	learner := ranking.NewLearner(engine)
	restoreEngineState(ctx, engine, artifacts, cfg.Artifact.Key)

	// Bed status reconciler (needs the database)
	var reconciler *snapshot.Reconciler
	var bedStore snapshot.Store
	if app.DB != nil {
		bedStore = snapshot.NewPostgresStore(app.DB.Pool)
		reconciler = snapshot.NewReconciler(bedStore, cfg.Snapshot.FetchTimeout)
	}

	// Audit: append-only chain in KurrentDB, in-memory otherwise
	var auditRepo audit.Repository
	if app.Bus != nil {
		auditRepo = audit.NewKurrentDBRepository(app.Bus.Client())
	} else {
		auditRepo = audit.NewInMemoryRepository()
	}
	if err := auditRepo.Initialize(ctx); err != nil {
		fmt.Printf("Warning: Audit initialization failed: %v\n", err)
	}
	recorder := audit.NewSystemRecorder(auditRepo)

	// HIS bed feed (optional)
	if cfg.HIS.Enabled && bedStore != nil {
		feed := bedfeed.NewMSSQL(bedfeed.DefaultConfig(cfg.HIS), bedStore)
		if err := feed.Start(ctx); err != nil {
			fmt.Printf("Warning: Bed feed failed to start: %v\n", err)
		} else {
			app.Feed = feed
			fmt.Println("HIS bed feed started")
		}
	}

	// Retrain scheduler
	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler = jobs.NewScheduler(engine, artifacts, cfg.Artifact.Key, app.Bus, recorder, cfg.Jobs.RetrainInterval)
		go scheduler.Start(ctx)
		fmt.Printf("Retrain scheduler started (interval %s)\n", cfg.Jobs.RetrainInterval)
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	rateLimiter := secmiddleware.NewIPRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimiter.Middleware)
		r.Use(secmiddleware.MaxBodySize(1 << 20))

		// Public routes (no auth required for now in dev mode)
		if cfg.Server.Env == "production" {
			r.Use(auth.Middleware(cfg.Auth))
		}

		// Transfer recommendation module
		rankingHandler := ranking.NewHandler(engine, learner, reconciler, app.Bus, recorder)
		r.Mount("/transfers", rankingHandler.Routes())

		// Congestion and discharge forecasting (needs the database)
		if reconciler != nil {
			forecastHandler := forecast.NewHandler(reconciler, newPredictor(cfg.Forecast))
			r.Mount("/forecast", forecastHandler.Routes())
		}

		// Audit trail
		auditHandler := audit.NewHandler(auditRepo)
		r.Mount("/audit", auditHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if scheduler != nil {
			scheduler.Stop()
		}
		if app.Feed != nil {
			if err := app.Feed.Stop(ctx); err != nil {
				fmt.Printf("Bed feed shutdown error: %v\n", err)
			}
		}

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Ward Transfer Recommendation Service")
	fmt.Println("============================================")
	fmt.Printf("Environment:    %s\n", cfg.Server.Env)
	fmt.Printf("Server:         http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:            http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:         http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Artifact:       %s (%s)\n", cfg.Artifact.Backend, cfg.Artifact.Key)
	fmt.Printf("HIS Feed:       %v\n", cfg.HIS.Enabled)
	fmt.Printf("KurrentDB:      %s:%d\n", cfg.KurrentDB.Host, cfg.KurrentDB.Port)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

// newArtifactStore selects the engine state backend. Postgres requires
// the database; the filesystem backend always works.
func newArtifactStore(cfg config.ArtifactConfig, app *App) artifact.Store {
	switch cfg.Backend {
	case "postgres":
		if app.DB == nil {
			fmt.Println("Warning: postgres artifact backend configured without database, using filesystem")
			return artifact.NewFilesystemStore(cfg.Dir)
		}
		return artifact.NewPostgresStore(app.DB.Pool)
	case "filesystem":
		return artifact.NewFilesystemStore(cfg.Dir)
	default:
		fmt.Printf("Warning: unknown artifact backend %q, using filesystem\n", cfg.Backend)
		return artifact.NewFilesystemStore(cfg.Dir)
	}
}

// restoreEngineState loads persisted trails. A missing artifact means a
// fresh start; a corrupt or incompatible one is fatal so learned state
// is never silently discarded.
func restoreEngineState(ctx context.Context, engine *ranking.Engine, store artifact.Store, key string) {
	state, err := store.Load(ctx, key)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			fmt.Println("No saved engine state, starting with default trails")
			return
		}
		fmt.Fprintf(os.Stderr, "failed to load engine state: %v\n", err)
		os.Exit(1)
	}

	if err := engine.RestoreState(state); err != nil {
		fmt.Fprintf(os.Stderr, "failed to restore engine state: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Engine state restored (%d trails, updated %s)\n", len(state.Trails), state.UpdatedAt.Format(time.RFC3339))
}

func newPredictor(cfg config.ForecastConfig) forecast.Predictor {
	if cfg.ModelURL != "" {
		fmt.Printf("Forecast: remote model at %s\n", cfg.ModelURL)
		return forecast.NewRemotePredictor(cfg)
	}
	return forecast.NewHeuristicPredictor()
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Ward Transfer Recommendation Service",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		// Check database
		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		// Check KurrentDB
		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["kurrentdb"] = "not ready: " + err.Error()
			} else {
				checks["kurrentdb"] = "ready"
			}
		} else {
			checks["kurrentdb"] = "not configured"
		}

		// Check HIS bed feed
		if app.Feed != nil {
			if err := app.Feed.Health(r.Context()); err != nil {
				checks["bedfeed"] = "not ready: " + err.Error()
			} else {
				checks["bedfeed"] = "ready"
			}
		} else {
			checks["bedfeed"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
