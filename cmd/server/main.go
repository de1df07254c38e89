/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the library circulation and occupancy server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (environment, then flags)
  2. Open the SQLite document store
  3. Load the bootstrap seed (built-in or -seed file)
  4. Start the engine: subscribe to every collection
  5. Start the day-rollover refresh scheduler
  6. Configure HTTP router and serve

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: library.db)
           Use ":memory:" for in-memory database
  -seed    Bootstrap catalog/student JSON file (default: built-in)

ENVIRONMENT:
  LIBRARY_PORT, LIBRARY_DB, LIBRARY_SEED_FILE      same as the flags
  LIBRARY_LOAN_DAYS          loan period in days (14)
  LIBRARY_DAILY_FINE         fine per overdue day (1)
  LIBRARY_TIMEZONE           zone whose calendar defines "today" (Local)
  LIBRARY_REFRESH_INTERVAL   scheduler tick (1m)
  LIBRARY_ALLOWED_ORIGINS    comma-separated CORS origins (local dev frontends)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and the engine's subscriptions
  4. Close database connection

EXAMPLES:
  ./server -db="./data/library.db"
  LIBRARY_TIMEZONE=Asia/Kolkata ./server -db=":memory:" -seed=./seed.json

SEE ALSO:
  - config/config.go: Settings
  - api/server.go: Router configuration
  - engine/engine.go: Live views
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rfidlib/circulation-engine/api"
	"github.com/rfidlib/circulation-engine/config"
	"github.com/rfidlib/circulation-engine/engine"
	"github.com/rfidlib/circulation-engine/factory"
	"github.com/rfidlib/circulation-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	loc, _ := cfg.Location()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	seed, err := factory.NewSeedFactory().LoadFile(cfg.SeedFile)
	if err != nil {
		log.Fatalf("Failed to load seed: %v", err)
	}

	eng := engine.New(store,
		engine.WithCalculator(cfg.Calculator()),
		engine.WithLocation(loc),
		engine.WithSeedCatalog(seed.Items),
		engine.WithSeedStudents(seed.Students),
	)
	if err := eng.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	defer eng.Stop()

	view := eng.View()
	log.Printf("[Engine] Loaded %d records, %d catalog items, %d students present (today is %s in %s)",
		view.Records.Len(), len(view.Catalog), view.Occupancy.PresentCount, view.AsOf.DateKey(), loc)

	scheduler := api.NewRefreshScheduler(eng)
	scheduler.CheckInterval = cfg.RefreshInterval
	scheduler.RunNow()
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(store, eng)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", cfg.Port)
		log.Printf("API available at http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
