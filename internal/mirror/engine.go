// Package mirror keeps an in-process copy of one user's recipe library in
// sync with the backend. It owns the three live watches (recipes, tags,
// meal plan), seeds the default tags for brand-new users, and serves
// consistent snapshots to the rest of the application.
package mirror

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"recipe-book/internal/auth"
	"recipe-book/internal/plan"
	"recipe-book/internal/recipe"
	"recipe-book/internal/store"
	"recipe-book/internal/tag"
)

// State is a point-in-time view of the mirrored library. Recipes arrive
// newest-first, tags alphabetically.
type State struct {
	Recipes    []recipe.Recipe
	Tags       []tag.Tag
	PlannedIDs []string
	Checked    plan.Checked
}

// Engine mirrors the signed-in user's data. Start replaces any previous
// session's watches and state wholesale, so nothing leaks across users.
type Engine struct {
	store  store.Store
	boot   *tag.Bootstrapper
	logger *zap.Logger

	mu    sync.Mutex
	state State
	run   *run
}

// run holds the lifecycle of one Start/Stop cycle.
type run struct {
	uid       string
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	ready     chan struct{}
	readyOnce sync.Once
}

// New creates an Engine. The bootstrapper seeds default tags when a
// user's tag collection is observed empty.
func New(st store.Store, boot *tag.Bootstrapper, logger *zap.Logger) *Engine {
	return &Engine{store: st, boot: boot, logger: logger, state: emptyState()}
}

func emptyState() State {
	return State{
		Recipes:    []recipe.Recipe{},
		Tags:       []tag.Tag{},
		PlannedIDs: []string{},
		Checked:    plan.NewChecked(),
	}
}

// Start opens the three watches for the session's user. Unverified
// sessions are refused before any data moves. A previous run, if any, is
// stopped and its state discarded first.
func (e *Engine) Start(ctx context.Context, session *auth.Session) error {
	if !session.Verified() {
		return auth.ErrNotVerified
	}

	e.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{uid: session.UID, cancel: cancel, ready: make(chan struct{})}

	recipeSub, err := e.store.WatchRecipes(runCtx, session.UID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch recipes: %w", err)
	}
	tagSub, err := e.store.WatchTags(runCtx, session.UID)
	if err != nil {
		recipeSub.Stop()
		cancel()
		return fmt.Errorf("failed to watch tags: %w", err)
	}
	planSub, err := e.store.WatchPlan(runCtx, session.UID)
	if err != nil {
		recipeSub.Stop()
		tagSub.Stop()
		cancel()
		return fmt.Errorf("failed to watch meal plan: %w", err)
	}

	e.mu.Lock()
	e.state = emptyState()
	e.run = r
	e.mu.Unlock()

	r.wg.Add(3)
	go e.consumeRecipes(r, recipeSub)
	go e.consumeTags(runCtx, r, tagSub)
	go e.consumePlan(r, planSub)

	e.logger.Info("library mirror started", zap.String("uid", session.UID))
	return nil
}

// Stop ends the current run, if any, and waits for its consumers.
func (e *Engine) Stop() {
	e.mu.Lock()
	r := e.run
	e.run = nil
	e.mu.Unlock()
	if r == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
}

// Ready returns a channel closed once the first recipe snapshot for the
// current run has landed. It returns nil when no run is active.
func (e *Engine) Ready() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return nil
	}
	return e.run.ready
}

// UID returns the user the engine is mirroring, or "" when stopped.
func (e *Engine) UID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run == nil {
		return ""
	}
	return e.run.uid
}

// Snapshot returns a copy of the mirrored state. Mutating the copy does
// not affect the mirror.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Recipes:    append([]recipe.Recipe(nil), e.state.Recipes...),
		Tags:       append([]tag.Tag(nil), e.state.Tags...),
		PlannedIDs: append([]string(nil), e.state.PlannedIDs...),
		Checked: plan.Checked{
			Ingredients:  copyIndexMap(e.state.Checked.Ingredients),
			Instructions: copyIndexMap(e.state.Checked.Instructions),
		},
	}
}

func (e *Engine) consumeRecipes(r *run, sub *store.Subscription[[]recipe.Recipe]) {
	defer r.wg.Done()
	defer sub.Stop()
	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			recipe.SortByNewest(snap)
			e.setIfCurrent(r, func(s *State) { s.Recipes = snap })
			r.readyOnce.Do(func() { close(r.ready) })
		case err := <-sub.Errors():
			// The mirror keeps its last-known state on subscription
			// failure; a fresh Start re-establishes the watch.
			e.logger.Warn("recipes subscription error", zap.String("uid", r.uid), zap.Error(err))
		}
	}
}

func (e *Engine) consumeTags(ctx context.Context, r *run, sub *store.Subscription[[]tag.Tag]) {
	defer r.wg.Done()
	defer sub.Stop()
	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			if len(snap) == 0 {
				if err := e.boot.Seed(ctx, r.uid); err != nil {
					e.logger.Error("default tag seeding failed", zap.String("uid", r.uid), zap.Error(err))
				}
				continue
			}
			tag.SortByName(snap)
			e.setIfCurrent(r, func(s *State) { s.Tags = snap })
		case err := <-sub.Errors():
			e.logger.Warn("tags subscription error", zap.String("uid", r.uid), zap.Error(err))
		}
	}
}

func (e *Engine) consumePlan(r *run, sub *store.Subscription[store.PlanSnapshot]) {
	defer r.wg.Done()
	defer sub.Stop()
	for {
		select {
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			// A missing singleton means the user never planned anything;
			// keep the empty defaults rather than clobbering state.
			if !snap.Exists {
				continue
			}
			e.setIfCurrent(r, func(s *State) {
				s.PlannedIDs = snap.RecipeIDs
				s.Checked = plan.Checked{
					Ingredients:  snap.CheckedIngredients,
					Instructions: snap.CheckedInstructions,
				}
			})
		case err := <-sub.Errors():
			e.logger.Warn("meal plan subscription error", zap.String("uid", r.uid), zap.Error(err))
		}
	}
}

// setIfCurrent applies a mutation only while r is still the active run,
// so a late delivery from a stopped run cannot dirty the next user's
// state.
func (e *Engine) setIfCurrent(r *run, apply func(*State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.run != r {
		return
	}
	apply(&e.state)
}

func copyIndexMap(m map[string][]int) map[string][]int {
	out := make(map[string][]int, len(m))
	for id, indices := range m {
		out[id] = append([]int(nil), indices...)
	}
	return out
}
