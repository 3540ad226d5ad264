// Package memorydriver implements the store contract in memory. Writes
// notify every active watcher with a fresh full snapshot, mimicking the
// push behaviour of the real backend. It backs tests and offline runs.
package memorydriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"recipe-book/internal/plan"
	"recipe-book/internal/recipe"
	"recipe-book/internal/store"
	"recipe-book/internal/tag"
)

const subscriberBuffer = 32

type recipeSub struct {
	uid     string
	updates chan []recipe.Recipe
	errs    chan error
}

type tagSub struct {
	uid     string
	updates chan []tag.Tag
	errs    chan error
}

type planSub struct {
	uid     string
	updates chan store.PlanSnapshot
	errs    chan error
}

type userData struct {
	recipes map[string]recipe.Recipe
	tags    map[string]tag.Tag
	plan    store.PlanSnapshot
}

// Driver is an in-memory Store.
type Driver struct {
	mu         sync.Mutex
	users      map[string]*userData
	recipeSubs map[*recipeSub]struct{}
	tagSubs    map[*tagSub]struct{}
	planSubs   map[*planSub]struct{}
}

// New creates an empty Driver.
func New() *Driver {
	return &Driver{
		users:      map[string]*userData{},
		recipeSubs: map[*recipeSub]struct{}{},
		tagSubs:    map[*tagSub]struct{}{},
		planSubs:   map[*planSub]struct{}{},
	}
}

var _ store.Store = (*Driver)(nil)

func (d *Driver) user(uid string) *userData {
	u, ok := d.users[uid]
	if !ok {
		u = &userData{recipes: map[string]recipe.Recipe{}, tags: map[string]tag.Tag{}}
		d.users[uid] = u
	}
	return u
}

// WatchRecipes subscribes to the user's recipe collection. The current
// snapshot is delivered immediately.
func (d *Driver) WatchRecipes(ctx context.Context, uid string) (*store.Subscription[[]recipe.Recipe], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := &recipeSub{uid: uid, updates: make(chan []recipe.Recipe, subscriberBuffer), errs: make(chan error, 1)}
	d.recipeSubs[sub] = struct{}{}
	sub.updates <- d.recipeSnapshot(uid)

	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			d.mu.Lock()
			delete(d.recipeSubs, sub)
			close(sub.updates)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return store.NewSubscription(sub.updates, sub.errs, stop), nil
}

// WatchTags subscribes to the user's tag collection.
func (d *Driver) WatchTags(ctx context.Context, uid string) (*store.Subscription[[]tag.Tag], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := &tagSub{uid: uid, updates: make(chan []tag.Tag, subscriberBuffer), errs: make(chan error, 1)}
	d.tagSubs[sub] = struct{}{}
	sub.updates <- d.tagSnapshot(uid)

	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			d.mu.Lock()
			delete(d.tagSubs, sub)
			close(sub.updates)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return store.NewSubscription(sub.updates, sub.errs, stop), nil
}

// WatchPlan subscribes to the user's meal-plan singleton.
func (d *Driver) WatchPlan(ctx context.Context, uid string) (*store.Subscription[store.PlanSnapshot], error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sub := &planSub{uid: uid, updates: make(chan store.PlanSnapshot, subscriberBuffer), errs: make(chan error, 1)}
	d.planSubs[sub] = struct{}{}
	sub.updates <- d.planSnapshot(uid)

	ctx, cancel := context.WithCancel(ctx)
	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			d.mu.Lock()
			delete(d.planSubs, sub)
			close(sub.updates)
			d.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		stop()
	}()
	return store.NewSubscription(sub.updates, sub.errs, stop), nil
}

// CreateRecipe stores a new recipe, assigning an id and creation time.
func (d *Driver) CreateRecipe(_ context.Context, uid string, r recipe.Recipe) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	d.user(uid).recipes[r.ID] = r
	d.notifyRecipes(uid)
	return r.ID, nil
}

// UpdateRecipe overwrites an existing recipe's fields, preserving its
// creation timestamp.
func (d *Driver) UpdateRecipe(_ context.Context, uid string, r recipe.Recipe) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	existing, ok := d.user(uid).recipes[r.ID]
	if !ok {
		return fmt.Errorf("recipe %s not found", r.ID)
	}
	r.CreatedAt = existing.CreatedAt
	d.user(uid).recipes[r.ID] = r
	d.notifyRecipes(uid)
	return nil
}

// DeleteRecipe removes a recipe. Deleting a missing document is not an
// error, matching the backend.
func (d *Driver) DeleteRecipe(_ context.Context, uid, recipeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.user(uid).recipes, recipeID)
	d.notifyRecipes(uid)
	return nil
}

// CreateTag stores a new tag.
func (d *Driver) CreateTag(_ context.Context, uid, name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	t := tag.Tag{ID: uuid.NewString(), Name: name, CreatedAt: time.Now()}
	d.user(uid).tags[t.ID] = t
	d.notifyTags(uid)
	return t.ID, nil
}

// DeleteTag removes a tag. Recipes referencing it keep their dangling id.
func (d *Driver) DeleteTag(_ context.Context, uid, tagID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.user(uid).tags, tagID)
	d.notifyTags(uid)
	return nil
}

// SeedTags creates all names in one commit and notifies once.
func (d *Driver) SeedTags(_ context.Context, uid string, names []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	u := d.user(uid)
	for _, name := range names {
		t := tag.Tag{ID: uuid.NewString(), Name: name, CreatedAt: now}
		u.tags[t.ID] = t
	}
	d.notifyTags(uid)
	return nil
}

// SetPlannedIDs merge-writes the planned id list.
func (d *Driver) SetPlannedIDs(_ context.Context, uid string, ids []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := d.user(uid)
	u.plan.Exists = true
	u.plan.RecipeIDs = append([]string(nil), ids...)
	d.notifyPlan(uid)
	return nil
}

// SetChecked merge-writes the full checked map for one kind.
func (d *Driver) SetChecked(_ context.Context, uid string, kind plan.CheckKind, checked map[string][]int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := d.user(uid)
	u.plan.Exists = true
	if kind == plan.CheckInstructions {
		u.plan.CheckedInstructions = copyChecked(checked)
	} else {
		u.plan.CheckedIngredients = copyChecked(checked)
	}
	d.notifyPlan(uid)
	return nil
}

// ClearPlan resets the singleton to its empty state.
func (d *Driver) ClearPlan(_ context.Context, uid string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := d.user(uid)
	u.plan = store.PlanSnapshot{
		Exists:              true,
		RecipeIDs:           []string{},
		CheckedIngredients:  map[string][]int{},
		CheckedInstructions: map[string][]int{},
	}
	d.notifyPlan(uid)
	return nil
}

// FailSubscriptions pushes an error to every watcher for the user,
// simulating a backend-side subscription failure in tests.
func (d *Driver) FailSubscriptions(uid string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for sub := range d.recipeSubs {
		if sub.uid == uid {
			select {
			case sub.errs <- err:
			default:
			}
		}
	}
	for sub := range d.tagSubs {
		if sub.uid == uid {
			select {
			case sub.errs <- err:
			default:
			}
		}
	}
	for sub := range d.planSubs {
		if sub.uid == uid {
			select {
			case sub.errs <- err:
			default:
			}
		}
	}
}

func (d *Driver) recipeSnapshot(uid string) []recipe.Recipe {
	u := d.user(uid)
	out := make([]recipe.Recipe, 0, len(u.recipes))
	for _, r := range u.recipes {
		out = append(out, r)
	}
	return out
}

func (d *Driver) tagSnapshot(uid string) []tag.Tag {
	u := d.user(uid)
	out := make([]tag.Tag, 0, len(u.tags))
	for _, t := range u.tags {
		out = append(out, t)
	}
	return out
}

func (d *Driver) planSnapshot(uid string) store.PlanSnapshot {
	p := d.user(uid).plan
	return store.PlanSnapshot{
		Exists:              p.Exists,
		RecipeIDs:           append([]string(nil), p.RecipeIDs...),
		CheckedIngredients:  copyChecked(p.CheckedIngredients),
		CheckedInstructions: copyChecked(p.CheckedInstructions),
	}
}

func (d *Driver) notifyRecipes(uid string) {
	snap := d.recipeSnapshot(uid)
	for sub := range d.recipeSubs {
		if sub.uid == uid {
			select {
			case sub.updates <- snap:
			default:
			}
		}
	}
}

func (d *Driver) notifyTags(uid string) {
	snap := d.tagSnapshot(uid)
	for sub := range d.tagSubs {
		if sub.uid == uid {
			select {
			case sub.updates <- snap:
			default:
			}
		}
	}
}

func (d *Driver) notifyPlan(uid string) {
	snap := d.planSnapshot(uid)
	for sub := range d.planSubs {
		if sub.uid == uid {
			select {
			case sub.updates <- snap:
			default:
			}
		}
	}
}

func copyChecked(m map[string][]int) map[string][]int {
	out := make(map[string][]int, len(m))
	for id, indices := range m {
		out[id] = append([]int(nil), indices...)
	}
	return out
}
