package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
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
	"meal-scheduler/internal/source"
	"meal-scheduler/internal/telegram"
)

func main() {
	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.TelegramBotToken == "" || cfg.TelegramWebhookURL == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN and TELEGRAM_WEBHOOK_URL must be set")
	}

	ctx := context.Background()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	metricsStore := metrics.NewStore(db.SQL)

	var textGen llm.TextGenerator
	if key := cfg.LLMKey(); key != "" {
		var inner llm.TextGenerator
		if cfg.LLMProvider == "groq" {
			inner = llm.NewGroqClient(key)
		} else {
			inner, err = llm.NewGeminiClient(ctx, key)
			if err != nil {
				log.Fatalf("Failed to create Gemini client: %v", err)
			}
		}
		textGen = llm.NewInstrumentedGenerator(inner, metricsStore, cfg.LLMProvider)
	}
	defer func() {
		if c, ok := textGen.(llm.Closer); ok {
			c.Close()
		}
	}()

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

	bot, err := telegram.NewBot(cfg.TelegramBotToken, cfg.TelegramWebhookURL, cfg.TelegramAllowUserID, mealPlanner, recipeClipper, metricsStore)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram Bot: %v", err)
	}

	bot.RegisterHandlers()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: nil,
	}

	go func() {
		log.Printf("Telegram Bot Server listening on port %s", cfg.Port)
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
