package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
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
	"recipe-book/internal/plan"
	"recipe-book/internal/recipe"
	"recipe-book/internal/retry"
	"recipe-book/internal/store/firestoredriver"
	"recipe-book/internal/tag"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	fsClient, err := firestore.NewClient(ctx, cfg.FirebaseProjectID)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore client: %v", err)
	}
	defer fsClient.Close()

	geminiClient, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
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

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "signup":
		if cfg.Email == "" || cfg.Password == "" {
			log.Fatal("RECIPE_BOOK_EMAIL and RECIPE_BOOK_PASSWORD must be set")
		}
		if _, err := application.SignUp(ctx, cfg.Email, cfg.Password); err != nil {
			log.Fatalf("Sign-up failed: %v", err)
		}
		fmt.Println("Verification email sent! Check your inbox.")
	case "list":
		listCmd := flag.NewFlagSet("list", flag.ExitOnError)
		query := listCmd.String("q", "", "Filter by title or description")
		listCmd.Parse(os.Args[2:])

		signIn(ctx, application, cfg)
		for _, r := range application.FilterRecipes(*query, nil) {
			planned := " "
			for _, id := range application.Library().PlannedIDs {
				if id == r.ID {
					planned = "*"
				}
			}
			fmt.Printf("%s %-24s %s\n", planned, r.ID, r.Title)
		}
	case "show":
		if len(os.Args) < 3 {
			log.Fatal("Usage: recipe-book show <recipe-id>")
		}
		signIn(ctx, application, cfg)
		showRecipe(application, os.Args[2])
	case "plan":
		signIn(ctx, application, cfg)
		state := application.Library()
		if len(state.PlannedIDs) == 0 {
			fmt.Println("The meal plan is empty.")
			break
		}
		titles := map[string]string{}
		for _, r := range state.Recipes {
			titles[r.ID] = r.Title
		}
		for _, id := range state.PlannedIDs {
			if title, ok := titles[id]; ok {
				fmt.Printf("%-24s %s\n", id, title)
			}
		}
	case "check":
		checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
		instructions := checkCmd.Bool("instructions", false, "Toggle an instruction step instead of an ingredient")
		checkCmd.Parse(os.Args[2:])
		if checkCmd.NArg() < 2 {
			log.Fatal("Usage: recipe-book check [-instructions] <recipe-id> <index>")
		}
		index, err := strconv.Atoi(checkCmd.Arg(1))
		if err != nil {
			log.Fatalf("Invalid index %q", checkCmd.Arg(1))
		}
		kind := plan.CheckIngredients
		if *instructions {
			kind = plan.CheckInstructions
		}
		signIn(ctx, application, cfg)
		if err := application.ToggleChecked(ctx, kind, checkCmd.Arg(0), index); err != nil {
			log.Fatalf("Check failed: %v", err)
		}
		fmt.Println("Toggled.")
	case "grocery":
		signIn(ctx, application, cfg)
		list := application.GroceryList()
		if list.NothingToBuy {
			fmt.Println("Nothing to buy.")
		} else {
			fmt.Print(list.Text)
		}
	case "toggle":
		if len(os.Args) < 3 {
			log.Fatal("Usage: recipe-book toggle <recipe-id>")
		}
		signIn(ctx, application, cfg)
		added, err := application.TogglePlanned(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Toggle failed: %v", err)
		}
		if added {
			fmt.Println("Added to the meal plan.")
		} else {
			fmt.Println("Removed from the meal plan.")
		}
	case "clear":
		signIn(ctx, application, cfg)
		if err := application.ClearPlan(ctx); err != nil {
			log.Fatalf("Clear failed: %v", err)
		}
		fmt.Println("Meal plan cleared.")
	case "import-photo":
		if len(os.Args) < 3 {
			log.Fatal("Usage: recipe-book import-photo <image-file>")
		}
		image, err := os.ReadFile(os.Args[2])
		if err != nil {
			log.Fatalf("Failed to read image: %v", err)
		}
		signIn(ctx, application, cfg)
		id, ext, err := application.ImportPhoto(ctx, image)
		if err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		fmt.Printf("Saved %q (%s) after %d attempt(s).\n", ext.Title, id, ext.Attempts)
	case "clip":
		if len(os.Args) < 3 {
			log.Fatal("Usage: recipe-book clip <url>")
		}
		signIn(ctx, application, cfg)
		id, ext, err := application.ImportURL(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Clip failed: %v", err)
		}
		fmt.Printf("Saved %q (%s).\n", ext.Title, id)
	case "delete":
		if len(os.Args) < 3 {
			log.Fatal("Usage: recipe-book delete <recipe-id>")
		}
		signIn(ctx, application, cfg)
		if err := application.DeleteRecipe(ctx, os.Args[2]); err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Println("Recipe deleted.")
	case "tags":
		signIn(ctx, application, cfg)
		for _, t := range application.Library().Tags {
			fmt.Printf("%-24s %s\n", t.ID, t.Name)
		}
	case "usage":
		usageCmd := flag.NewFlagSet("usage", flag.ExitOnError)
		days := usageCmd.Int("days", 7, "Report window in days")
		usageCmd.Parse(os.Args[2:])

		usage, err := application.Usage(ctx, *days)
		if err != nil {
			log.Fatalf("Usage report failed: %v", err)
		}
		for _, d := range usage {
			fmt.Printf("%s  %6d tokens  %3d runs  %d failed\n",
				d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalRuns, d.FailedRuns)
		}
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(os.Args[2:])

		affected, err := metricsStore.Cleanup(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Removed %d old metric records.\n", affected)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// signIn authenticates with the stored credentials and waits for the
// first library snapshot so commands see current data.
func signIn(ctx context.Context, application *app.App, cfg *config.Config) {
	if cfg.Email == "" || cfg.Password == "" {
		log.Fatal("RECIPE_BOOK_EMAIL and RECIPE_BOOK_PASSWORD must be set")
	}
	if _, err := application.SignIn(ctx, cfg.Email, cfg.Password); err != nil {
		if errors.Is(err, auth.ErrNotVerified) {
			log.Fatal("This account's email is not verified yet. Check your inbox.")
		}
		log.Fatalf("Sign-in failed: %v", err)
	}
	select {
	case <-application.Ready():
	case <-ctx.Done():
		log.Fatalf("Interrupted while loading the library: %v", ctx.Err())
	}
}

// showRecipe prints one recipe with checked marks from the meal plan.
func showRecipe(application *app.App, recipeID string) {
	state := application.Library()
	for _, r := range state.Recipes {
		if r.ID != recipeID {
			continue
		}
		fmt.Printf("%s\n", r.Title)
		if r.Description != "" {
			fmt.Printf("%s\n", r.Description)
		}
		fmt.Printf("Prep %s | Cook %s | Serves %s\n\nIngredients:\n", r.PrepTime, r.CookTime, r.Servings)
		for i, ing := range r.Ingredients {
			mark := " "
			if state.Checked.IsChecked(plan.CheckIngredients, r.ID, i) {
				mark = "x"
			}
			fmt.Printf("  [%s] %d. %s\n", mark, i, ing.GroceryLine())
		}
		fmt.Println("\nInstructions:")
		for i, step := range r.Instructions {
			mark := " "
			if state.Checked.IsChecked(plan.CheckInstructions, r.ID, i) {
				mark = "x"
			}
			fmt.Printf("  [%s] %d. %s\n", mark, i, step)
		}
		return
	}
	log.Fatalf("Recipe %s not found", recipeID)
}

func printUsage() {
	fmt.Println("Usage: recipe-book <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  signup                 Create the account and send the verification email")
	fmt.Println("  list [-q query]        List recipes (planned ones are starred)")
	fmt.Println("  show <recipe-id>       Print one recipe with its checked marks")
	fmt.Println("  plan                   Show the planned recipes")
	fmt.Println("  check <id> <index>     Toggle an ingredient (or -instructions step)")
	fmt.Println("  grocery                Print the grocery list")
	fmt.Println("  toggle <recipe-id>     Add/remove a recipe from the meal plan")
	fmt.Println("  clear                  Empty the meal plan")
	fmt.Println("  import-photo <file>    Extract a recipe from a photo and save it")
	fmt.Println("  clip <url>             Import a recipe from a web page")
	fmt.Println("  delete <recipe-id>     Delete a recipe")
	fmt.Println("  tags                   List tags")
	fmt.Println("  usage [-days N]        AI usage report")
	fmt.Println("  metrics-cleanup        Remove old metric records")
}
