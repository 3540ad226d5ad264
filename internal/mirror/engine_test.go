package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"recipe-book/internal/auth"
	"recipe-book/internal/plan"
	"recipe-book/internal/recipe"
	"recipe-book/internal/store/memorydriver"
	"recipe-book/internal/tag"
)

func newTestEngine(driver *memorydriver.Driver) *Engine {
	return New(driver, tag.NewBootstrapper(driver), zap.NewNop())
}

func verifiedSession(uid string) *auth.Session {
	return &auth.Session{UID: uid, Email: uid + "@example.com", EmailVerified: true}
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", desc)
}

func TestStartRefusesUnverifiedSession(t *testing.T) {
	e := newTestEngine(memorydriver.New())
	defer e.Stop()

	err := e.Start(context.Background(), &auth.Session{UID: "u1", Providers: []string{"password"}})
	if !errors.Is(err, auth.ErrNotVerified) {
		t.Fatalf("Expected ErrNotVerified, got %v", err)
	}
	if e.UID() != "" {
		t.Error("Expected no active run after a refused start")
	}
}

func TestMirrorsRecipesNewestFirst(t *testing.T) {
	driver := memorydriver.New()
	ctx := context.Background()

	oldID, err := driver.CreateRecipe(ctx, "u1", recipe.Recipe{Title: "Old"})
	if err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	newID, err := driver.CreateRecipe(ctx, "u1", recipe.Recipe{Title: "New"})
	if err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}

	e := newTestEngine(driver)
	defer e.Stop()
	if err := e.Start(ctx, verifiedSession("u1")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-e.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the first recipe snapshot")
	}

	waitFor(t, "recipes to mirror", func() bool {
		return len(e.Snapshot().Recipes) == 2
	})
	got := e.Snapshot().Recipes
	if got[0].ID != newID || got[1].ID != oldID {
		t.Errorf("Expected newest first, got %v then %v", got[0].ID, got[1].ID)
	}
}

func TestSeedsDefaultTagsForNewUser(t *testing.T) {
	driver := memorydriver.New()
	e := newTestEngine(driver)
	defer e.Stop()

	if err := e.Start(context.Background(), verifiedSession("fresh")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "default tags to seed", func() bool {
		return len(e.Snapshot().Tags) == len(tag.DefaultNames)
	})

	tags := e.Snapshot().Tags
	if tags[0].Name != "Breakfast" || tags[len(tags)-1].Name != "Soups" {
		t.Errorf("Expected alphabetical order, got %s ... %s", tags[0].Name, tags[len(tags)-1].Name)
	}
}

func TestDoesNotSeedWhenTagsExist(t *testing.T) {
	driver := memorydriver.New()
	ctx := context.Background()
	if _, err := driver.CreateTag(ctx, "u1", "Custom"); err != nil {
		t.Fatalf("CreateTag failed: %v", err)
	}

	e := newTestEngine(driver)
	defer e.Stop()
	if err := e.Start(ctx, verifiedSession("u1")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitFor(t, "tags to mirror", func() bool {
		return len(e.Snapshot().Tags) == 1
	})
	// Give a wrongly triggered seed time to land before checking.
	time.Sleep(50 * time.Millisecond)
	if got := len(e.Snapshot().Tags); got != 1 {
		t.Errorf("Expected the single existing tag, got %d", got)
	}
}

func TestMirrorsPlanUpdates(t *testing.T) {
	driver := memorydriver.New()
	ctx := context.Background()

	e := newTestEngine(driver)
	defer e.Stop()
	if err := e.Start(ctx, verifiedSession("u1")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := driver.SetPlannedIDs(ctx, "u1", []string{"r1", "r2"}); err != nil {
		t.Fatalf("SetPlannedIDs failed: %v", err)
	}
	if err := driver.SetChecked(ctx, "u1", plan.CheckIngredients, map[string][]int{"r1": {0}}); err != nil {
		t.Fatalf("SetChecked failed: %v", err)
	}

	waitFor(t, "plan to mirror", func() bool {
		s := e.Snapshot()
		return len(s.PlannedIDs) == 2 && len(s.Checked.Ingredients["r1"]) == 1
	})
}

func TestNoStateLeaksAcrossUsers(t *testing.T) {
	driver := memorydriver.New()
	ctx := context.Background()

	if _, err := driver.CreateRecipe(ctx, "alice", recipe.Recipe{Title: "Alice's soup"}); err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}
	if err := driver.SetPlannedIDs(ctx, "alice", []string{"r1"}); err != nil {
		t.Fatalf("SetPlannedIDs failed: %v", err)
	}

	e := newTestEngine(driver)
	defer e.Stop()
	if err := e.Start(ctx, verifiedSession("alice")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "alice's data", func() bool {
		return len(e.Snapshot().Recipes) == 1
	})

	if err := e.Start(ctx, verifiedSession("bob")); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	select {
	case <-e.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for bob's first snapshot")
	}

	s := e.Snapshot()
	if len(s.Recipes) != 0 || len(s.PlannedIDs) != 0 {
		t.Errorf("Bob's mirror sees alice's data: %+v", s)
	}
	if e.UID() != "bob" {
		t.Errorf("Expected active uid bob, got %q", e.UID())
	}
}

func TestSubscriptionErrorKeepsLastState(t *testing.T) {
	driver := memorydriver.New()
	ctx := context.Background()

	if _, err := driver.CreateRecipe(ctx, "u1", recipe.Recipe{Title: "Stew"}); err != nil {
		t.Fatalf("CreateRecipe failed: %v", err)
	}

	e := newTestEngine(driver)
	defer e.Stop()
	if err := e.Start(ctx, verifiedSession("u1")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "initial snapshot", func() bool {
		return len(e.Snapshot().Recipes) == 1
	})

	driver.FailSubscriptions("u1", errors.New("backend unavailable"))
	time.Sleep(20 * time.Millisecond)

	if got := len(e.Snapshot().Recipes); got != 1 {
		t.Errorf("Expected last-known state to survive the error, got %d recipes", got)
	}
}

func TestStopEndsWatches(t *testing.T) {
	driver := memorydriver.New()
	e := newTestEngine(driver)

	if err := e.Start(context.Background(), verifiedSession("u1")); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Stop()

	if e.UID() != "" {
		t.Error("Expected no active run after Stop")
	}
	if e.Ready() != nil {
		t.Error("Expected nil ready channel after Stop")
	}
	// Stop again is a no-op.
	e.Stop()
}
