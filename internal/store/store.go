// Package store defines the contract every document backend must satisfy:
// per-user CRUD, merge-write plan updates, and cancellable watch
// subscriptions that deliver full snapshots on every remote change.
package store

import (
	"context"

	"recipe-book/internal/plan"
	"recipe-book/internal/recipe"
	"recipe-book/internal/tag"
)

// Subscription is a cancellable handle on a watch. Each value on Updates
// is a complete snapshot superseding all previous ones. Errors carries
// subscription-level failures; after an error the stream may stop
// delivering updates until a new subscription is established. Stop must
// be called exactly once by the consumer that owns the handle.
type Subscription[T any] struct {
	updates <-chan T
	errs    <-chan error
	stop    func()
}

// NewSubscription is used by drivers to assemble a handle.
func NewSubscription[T any](updates <-chan T, errs <-chan error, stop func()) *Subscription[T] {
	return &Subscription[T]{updates: updates, errs: errs, stop: stop}
}

// Updates yields full snapshots. The channel is closed when the
// subscription ends.
func (s *Subscription[T]) Updates() <-chan T { return s.updates }

// Errors yields subscription-level failures.
func (s *Subscription[T]) Errors() <-chan error { return s.errs }

// Stop cancels the subscription.
func (s *Subscription[T]) Stop() {
	if s.stop != nil {
		s.stop()
	}
}

// PlanSnapshot is the full state of the meal-plan singleton document.
// Exists is false until the document has been written for the first time;
// consumers keep their last-known state in that case.
type PlanSnapshot struct {
	Exists              bool
	RecipeIDs           []string
	CheckedIngredients  map[string][]int
	CheckedInstructions map[string][]int
}

// RecipeStore persists and watches a user's recipe collection.
type RecipeStore interface {
	WatchRecipes(ctx context.Context, uid string) (*Subscription[[]recipe.Recipe], error)
	// CreateRecipe stores a new document, assigning its id and a
	// server-side creation timestamp, and returns the id.
	CreateRecipe(ctx context.Context, uid string, r recipe.Recipe) (string, error)
	// UpdateRecipe overwrites the recipe's fields without touching the
	// creation timestamp.
	UpdateRecipe(ctx context.Context, uid string, r recipe.Recipe) error
	DeleteRecipe(ctx context.Context, uid, recipeID string) error
}

// TagStore persists and watches a user's tag collection.
type TagStore interface {
	WatchTags(ctx context.Context, uid string) (*Subscription[[]tag.Tag], error)
	CreateTag(ctx context.Context, uid, name string) (string, error)
	DeleteTag(ctx context.Context, uid, tagID string) error
	// SeedTags creates one tag per name in a single atomic commit with
	// server-assigned timestamps.
	SeedTags(ctx context.Context, uid string, names []string) error
}

// PlanStore persists and watches the meal-plan singleton.
type PlanStore interface {
	WatchPlan(ctx context.Context, uid string) (*Subscription[PlanSnapshot], error)
	// SetPlannedIDs merge-writes the planned id list, leaving the checked
	// maps untouched.
	SetPlannedIDs(ctx context.Context, uid string, ids []string) error
	// SetChecked merge-writes the entire checked map for one kind.
	// Callers pass a full read-modified copy so sibling recipes' state is
	// not dropped.
	SetChecked(ctx context.Context, uid string, kind plan.CheckKind, checked map[string][]int) error
	// ClearPlan rewrites the singleton to its empty state in one write.
	ClearPlan(ctx context.Context, uid string) error
}

// Store is the full backend contract.
type Store interface {
	RecipeStore
	TagStore
	PlanStore
}
