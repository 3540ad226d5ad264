// Package firestoredriver implements the store contract on Firestore.
// Documents live under the application namespace, scoped per user:
//
//	artifacts/{appID}/users/{uid}/recipes
//	artifacts/{appID}/users/{uid}/tags
//	artifacts/{appID}/users/{uid}/mealPlan/current
//
// Watches are backed by Firestore snapshot listeners, plan updates use
// merge writes so sibling fields survive concurrent writers, and tag
// seeding commits all documents in one transaction.
package firestoredriver

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"recipe-book/internal/plan"
	"recipe-book/internal/recipe"
	"recipe-book/internal/store"
	"recipe-book/internal/tag"
)

// Driver is a Firestore-backed Store.
type Driver struct {
	client *firestore.Client
	appID  string
}

// New creates a Driver. The caller owns the client's lifecycle.
func New(client *firestore.Client, appID string) *Driver {
	return &Driver{client: client, appID: appID}
}

var _ store.Store = (*Driver)(nil)

func (d *Driver) recipes(uid string) *firestore.CollectionRef {
	return d.client.Collection(fmt.Sprintf("artifacts/%s/users/%s/recipes", d.appID, uid))
}

func (d *Driver) tags(uid string) *firestore.CollectionRef {
	return d.client.Collection(fmt.Sprintf("artifacts/%s/users/%s/tags", d.appID, uid))
}

func (d *Driver) planDoc(uid string) *firestore.DocumentRef {
	return d.client.Doc(fmt.Sprintf("artifacts/%s/users/%s/mealPlan/current", d.appID, uid))
}

// WatchRecipes mirrors the user's recipe collection. Every remote change
// delivers a full decoded snapshot; pending snapshots are superseded
// rather than queued.
func (d *Driver) WatchRecipes(ctx context.Context, uid string) (*store.Subscription[[]recipe.Recipe], error) {
	ctx, cancel := context.WithCancel(ctx)
	updates := make(chan []recipe.Recipe, 1)
	errs := make(chan error, 1)

	it := d.recipes(uid).Snapshots(ctx)
	go func() {
		defer close(updates)
		defer it.Stop()
		for {
			qsnap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					sendErr(errs, fmt.Errorf("recipes subscription failed: %w", err))
				}
				return
			}
			list, err := decodeRecipeDocs(qsnap.Documents)
			if err != nil {
				sendErr(errs, err)
				continue
			}
			sendLatest(updates, list)
		}
	}()
	return store.NewSubscription(updates, errs, cancel), nil
}

// WatchTags mirrors the user's tag collection.
func (d *Driver) WatchTags(ctx context.Context, uid string) (*store.Subscription[[]tag.Tag], error) {
	ctx, cancel := context.WithCancel(ctx)
	updates := make(chan []tag.Tag, 1)
	errs := make(chan error, 1)

	it := d.tags(uid).Snapshots(ctx)
	go func() {
		defer close(updates)
		defer it.Stop()
		for {
			qsnap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					sendErr(errs, fmt.Errorf("tags subscription failed: %w", err))
				}
				return
			}
			list, err := decodeTagDocs(qsnap.Documents)
			if err != nil {
				sendErr(errs, err)
				continue
			}
			sendLatest(updates, list)
		}
	}()
	return store.NewSubscription(updates, errs, cancel), nil
}

// WatchPlan mirrors the meal-plan singleton document.
func (d *Driver) WatchPlan(ctx context.Context, uid string) (*store.Subscription[store.PlanSnapshot], error) {
	ctx, cancel := context.WithCancel(ctx)
	updates := make(chan store.PlanSnapshot, 1)
	errs := make(chan error, 1)

	it := d.planDoc(uid).Snapshots(ctx)
	go func() {
		defer close(updates)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil {
					sendErr(errs, fmt.Errorf("meal plan subscription failed: %w", err))
				}
				return
			}
			sendLatest(updates, decodePlan(snap))
		}
	}()
	return store.NewSubscription(updates, errs, cancel), nil
}

// CreateRecipe adds a document with a server-assigned creation timestamp.
func (d *Driver) CreateRecipe(ctx context.Context, uid string, r recipe.Recipe) (string, error) {
	ref := d.recipes(uid).NewDoc()
	data := encodeRecipe(r)
	data["createdAt"] = firestore.ServerTimestamp
	if _, err := ref.Create(ctx, data); err != nil {
		return "", fmt.Errorf("failed to create recipe: %w", err)
	}
	return ref.ID, nil
}

// UpdateRecipe merge-writes the editable fields, leaving createdAt alone.
func (d *Driver) UpdateRecipe(ctx context.Context, uid string, r recipe.Recipe) error {
	if r.ID == "" {
		return fmt.Errorf("recipe has no id")
	}
	if _, err := d.recipes(uid).Doc(r.ID).Set(ctx, encodeRecipe(r), firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update recipe %s: %w", r.ID, err)
	}
	return nil
}

// DeleteRecipe removes the document. Plan and tag references pointing at
// it are left dangling on purpose.
func (d *Driver) DeleteRecipe(ctx context.Context, uid, recipeID string) error {
	if _, err := d.recipes(uid).Doc(recipeID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete recipe %s: %w", recipeID, err)
	}
	return nil
}

// CreateTag adds a tag document.
func (d *Driver) CreateTag(ctx context.Context, uid, name string) (string, error) {
	ref := d.tags(uid).NewDoc()
	data := map[string]interface{}{
		"name":      name,
		"createdAt": firestore.ServerTimestamp,
	}
	if _, err := ref.Create(ctx, data); err != nil {
		return "", fmt.Errorf("failed to create tag: %w", err)
	}
	return ref.ID, nil
}

// DeleteTag removes the document.
func (d *Driver) DeleteTag(ctx context.Context, uid, tagID string) error {
	if _, err := d.tags(uid).Doc(tagID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete tag %s: %w", tagID, err)
	}
	return nil
}

// SeedTags creates one document per name in a single transaction, so a
// failed commit leaves no partial tag set behind.
func (d *Driver) SeedTags(ctx context.Context, uid string, names []string) error {
	col := d.tags(uid)
	err := d.client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		for _, name := range names {
			data := map[string]interface{}{
				"name":      name,
				"createdAt": firestore.ServerTimestamp,
			}
			if err := tx.Create(col.NewDoc(), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to seed tags: %w", err)
	}
	return nil
}

// SetPlannedIDs merge-writes the planned id list.
func (d *Driver) SetPlannedIDs(ctx context.Context, uid string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	_, err := d.planDoc(uid).Set(ctx, map[string]interface{}{"recipeIds": ids}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to write planned ids: %w", err)
	}
	return nil
}

// SetChecked merge-writes the entire checked map for one kind. The map
// replaces the whole field, so callers must pass a full copy.
func (d *Driver) SetChecked(ctx context.Context, uid string, kind plan.CheckKind, checked map[string][]int) error {
	field := "checkedIngredients"
	if kind == plan.CheckInstructions {
		field = "checkedInstructions"
	}
	if checked == nil {
		checked = map[string][]int{}
	}
	_, err := d.planDoc(uid).Set(ctx, map[string]interface{}{field: checked}, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", field, err)
	}
	return nil
}

// ClearPlan rewrites the singleton document to its empty state.
func (d *Driver) ClearPlan(ctx context.Context, uid string) error {
	_, err := d.planDoc(uid).Set(ctx, map[string]interface{}{
		"recipeIds":           []string{},
		"checkedIngredients":  map[string][]int{},
		"checkedInstructions": map[string][]int{},
	})
	if err != nil {
		return fmt.Errorf("failed to clear meal plan: %w", err)
	}
	return nil
}

func sendErr(errs chan error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// sendLatest delivers the snapshot, displacing an unconsumed older one.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

func decodeRecipeDocs(docs *firestore.DocumentIterator) ([]recipe.Recipe, error) {
	defer docs.Stop()
	list := []recipe.Recipe{}
	for {
		doc, err := docs.Next()
		if err == iterator.Done {
			return list, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read recipe snapshot: %w", err)
		}
		list = append(list, decodeRecipe(doc.Ref.ID, doc.Data()))
	}
}

func decodeTagDocs(docs *firestore.DocumentIterator) ([]tag.Tag, error) {
	defer docs.Stop()
	list := []tag.Tag{}
	for {
		doc, err := docs.Next()
		if err == iterator.Done {
			return list, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tag snapshot: %w", err)
		}
		list = append(list, decodeTag(doc.Ref.ID, doc.Data()))
	}
}

func decodePlan(snap *firestore.DocumentSnapshot) store.PlanSnapshot {
	if !snap.Exists() {
		return store.PlanSnapshot{}
	}
	data := snap.Data()
	return store.PlanSnapshot{
		Exists:              true,
		RecipeIDs:           asStringSlice(data["recipeIds"]),
		CheckedIngredients:  asCheckedMap(data["checkedIngredients"]),
		CheckedInstructions: asCheckedMap(data["checkedInstructions"]),
	}
}
