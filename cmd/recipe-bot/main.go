package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"recipe-book/internal/app"
	"recipe-book/internal/auth"
	"recipe-book/internal/clipper"
	"recipe-book/internal/config"
	"recipe-book/internal/database"
	"recipe-book/internal/llm"
	"recipe-book/internal/metrics"
	"recipe-book/internal/mirror"
	"recipe-book/internal/recipe"
	"recipe-book/internal/retry"
	"recipe-book/internal/store/firestoredriver"
	"recipe-book/internal/tag"
	"recipe-book/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fsClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore client: %v", err)
	}
	defer fsClient.Close()

	geminiClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}
	defer geminiClient.Close()

	db, err := database.NewDB(cfg.MetricsDBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	metricsStore := metrics.NewStore(db.SQL)

	driver := firestoredriver.New(fsClient, cfg.AppID)
	engine := mirror.New(driver, tag.NewBootstrapper(driver), logger)
	defer engine.Stop()

	extractor := recipe.NewExtractor(geminiClient, retry.Exponential(5, time.Second))
	recipeClipper := clipper.New(geminiClient)
	authClient := auth.NewClient(cfg.FirebaseAPIKey)

	application := app.New(driver, engine, extractor, recipeClipper, authClient, metricsStore, logger)

	// The bot serves one household account, signed in up front.
	if cfg.Email == "" || cfg.Password == "" {
		log.Fatal("RECIPE_BOOK_EMAIL and RECIPE_BOOK_PASSWORD must be set")
	}
	if _, err := application.SignIn(ctx, cfg.Email, cfg.Password); err != nil {
		if errors.Is(err, auth.ErrNotVerified) {
			log.Fatal("The bot account's email is not verified yet.")
		}
		log.Fatalf("Sign-in failed: %v", err)
	}
	select {
	case <-application.Ready():
	case <-ctx.Done():
		log.Fatalf("Interrupted while loading the library: %v", ctx.Err())
	}
	defer application.SignOut()

	bot, err := telegram.NewBot(cfg, application, logger)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	logger.Info("bot running, press Ctrl+C to stop")
	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Bot stopped: %v", err)
	}
	logger.Info("bot exiting")
}
