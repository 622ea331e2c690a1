package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"meal-scheduler/internal/clipper"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/database"
	"meal-scheduler/internal/llm"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/nutrition"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/query"
	"meal-scheduler/internal/rerank"
	"meal-scheduler/internal/server"
	"meal-scheduler/internal/source"
)

func main() {
	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metricsStore := metrics.NewStore(db.SQL)

	textGen := newTextGenerator(ctx, cfg, metricsStore)
	defer closeGenerator(textGen)

	var enhancer query.Enhancer
	if textGen != nil {
		enhancer = llm.NewQueryEnhancer(textGen)
	}
	parser := query.NewParser(enhancer)

	local := source.NewLocal(cfg.CatalogPath, cfg.ClippedPath)
	sources := []source.CandidateSource{local}
	if cfg.MealDBEnabled {
		sources = append(sources, source.NewMealDB(cfg.MealDBBaseURL))
	}
	sourceService := source.NewService(sources, cfg.SourceCacheTTL)

	reranker := rerank.New(textGen, cfg.Rerank)
	mealPlanner := planner.New(parser, sourceService, reranker, planner.NewRepository(db.SQL))

	var lookup nutrition.Lookup
	usda, err := nutrition.NewUSDAClient(cfg.USDAAPIKey, cfg.USDACachePath)
	if err != nil {
		log.Fatalf("Failed to initialize USDA client: %v", err)
	}
	if usda != nil {
		lookup = usda
	}
	recipeClipper := clipper.New(local, textGen, lookup)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "plan":
		if len(os.Args) < 3 {
			log.Fatal("Usage: meal-scheduler plan \"<request>\"")
		}
		plan, err := mealPlanner.GeneratePlan(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Plan generation failed: %v", err)
		}
		out, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			log.Fatalf("Failed to encode plan: %v", err)
		}
		fmt.Println(string(out))
	case "serve":
		runServer(cfg, mealPlanner)
	case "clip":
		if len(os.Args) < 3 {
			log.Fatal("Usage: meal-scheduler clip <url>")
		}
		r, err := recipeClipper.ClipURL(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Clipping failed: %v", err)
		}
		fmt.Printf("Saved %q (%d mins, %d kcal)\n", r.Title, r.ReadyInMinutes, r.Nutrition.Calories)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := metricsStore.Cleanup(*days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// newTextGenerator builds the configured LLM backend, instrumented so every
// call lands in the metrics store. Returns nil when no API key is set.
func newTextGenerator(ctx context.Context, cfg *config.Config, store *metrics.Store) llm.TextGenerator {
	key := cfg.LLMKey()
	if key == "" {
		log.Printf("No %s API key configured, LLM features disabled", cfg.LLMProvider)
		return nil
	}

	var gen llm.TextGenerator
	if cfg.LLMProvider == "groq" {
		gen = llm.NewGroqClient(key)
	} else {
		var err error
		gen, err = llm.NewGeminiClient(ctx, key)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini client: %v", err)
		}
	}
	return llm.NewInstrumentedGenerator(gen, store, cfg.LLMProvider)
}

func closeGenerator(gen llm.TextGenerator) {
	if c, ok := gen.(llm.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("Error closing LLM client: %v", err)
		}
	}
}

func runServer(cfg *config.Config, mealPlanner *planner.Planner) {
	handler := server.New(mealPlanner, filepath.Dir(cfg.DatabasePath), cfg.APIAuthSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Router(),
	}

	go func() {
		log.Printf("API server listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

func printUsage() {
	fmt.Println("Usage: meal-scheduler <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  plan \"<request>\"   Generate a meal plan and print it as JSON")
	fmt.Println("  serve              Start the HTTP API server")
	fmt.Println("  clip <url>         Import a recipe from a web page into the catalog")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}
