// Package app wires the pieces together: sign-in and the verification
// gate, the library mirror, recipe CRUD, meal-plan toggles, grocery list
// derivation, and AI imports with their telemetry.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"recipe-book/internal/auth"
	"recipe-book/internal/clipper"
	"recipe-book/internal/grocery"
	"recipe-book/internal/metrics"
	"recipe-book/internal/mirror"
	"recipe-book/internal/plan"
	"recipe-book/internal/recipe"
	"recipe-book/internal/store"
	"recipe-book/internal/tag"
)

// ErrNoSession is returned by operations that need a signed-in user.
var ErrNoSession = fmt.Errorf("not signed in")

// App holds the application's dependencies.
type App struct {
	store         store.Store
	engine        *mirror.Engine
	extractor     *recipe.Extractor
	recipeClipper *clipper.Clipper
	authClient    *auth.Client
	metricsStore  *metrics.Store
	logger        *zap.Logger

	mu      sync.Mutex
	session *auth.Session
}

// New creates and initializes an App instance. metricsStore may be nil
// when telemetry is disabled.
func New(
	st store.Store,
	engine *mirror.Engine,
	extractor *recipe.Extractor,
	recipeClipper *clipper.Clipper,
	authClient *auth.Client,
	metricsStore *metrics.Store,
	logger *zap.Logger,
) *App {
	return &App{
		store:         st,
		engine:        engine,
		extractor:     extractor,
		recipeClipper: recipeClipper,
		authClient:    authClient,
		metricsStore:  metricsStore,
		logger:        logger,
	}
}

// SignIn authenticates an email/password account. When the account is
// verified the library mirror starts; otherwise the session is kept and
// auth.ErrNotVerified is returned so the caller can prompt the user to
// confirm their email.
func (a *App) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	session, err := a.authClient.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return session, a.adopt(ctx, session)
}

// SignUp registers a new account and sends the verification email. The
// mirror does not start until the email is confirmed.
func (a *App) SignUp(ctx context.Context, email, password string) (*auth.Session, error) {
	session, err := a.authClient.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	return session, nil
}

// ResumeWithIDToken signs in with an externally obtained Firebase ID
// token, such as a completed Google sign-in.
func (a *App) ResumeWithIDToken(ctx context.Context, idToken string) (*auth.Session, error) {
	session, err := auth.SessionFromIDToken(idToken)
	if err != nil {
		return nil, err
	}
	return session, a.adopt(ctx, session)
}

// RefreshVerification reloads the current session's profile and starts
// the mirror if the user verified their email in the meantime.
func (a *App) RefreshVerification(ctx context.Context) error {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session == nil {
		return ErrNoSession
	}
	reloaded, err := a.authClient.Reload(ctx, session)
	if err != nil {
		return err
	}
	return a.adopt(ctx, reloaded)
}

// ResendVerificationEmail re-sends the confirmation link for the current
// session.
func (a *App) ResendVerificationEmail(ctx context.Context) error {
	a.mu.Lock()
	session := a.session
	a.mu.Unlock()
	if session == nil {
		return ErrNoSession
	}
	return a.authClient.SendVerificationEmail(ctx, session.IDToken)
}

// SignOut stops the mirror and forgets the session.
func (a *App) SignOut() {
	a.engine.Stop()
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
}

// adopt stores the session and starts the mirror when it passes the
// verification gate.
func (a *App) adopt(ctx context.Context, session *auth.Session) error {
	a.mu.Lock()
	a.session = session
	a.mu.Unlock()
	if !session.Verified() {
		return auth.ErrNotVerified
	}
	return a.engine.Start(ctx, session)
}

func (a *App) uid() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return "", ErrNoSession
	}
	if !a.session.Verified() {
		return "", auth.ErrNotVerified
	}
	return a.session.UID, nil
}

// Library returns the current mirrored state.
func (a *App) Library() mirror.State {
	return a.engine.Snapshot()
}

// Ready returns the mirror's first-snapshot channel; see mirror.Engine.
func (a *App) Ready() <-chan struct{} {
	return a.engine.Ready()
}

// FilterRecipes returns the mirrored recipes matching a free-text query
// and a tag filter, preserving newest-first order.
func (a *App) FilterRecipes(query string, tagIDs []string) []recipe.Recipe {
	var out []recipe.Recipe
	for _, r := range a.engine.Snapshot().Recipes {
		if r.MatchesQuery(query) && r.HasAnyTag(tagIDs) {
			out = append(out, r)
		}
	}
	return out
}

// SaveRecipe creates the recipe when it has no id, updates it otherwise,
// and returns the id.
func (a *App) SaveRecipe(ctx context.Context, r recipe.Recipe) (string, error) {
	uid, err := a.uid()
	if err != nil {
		return "", err
	}
	if r.ID == "" {
		return a.store.CreateRecipe(ctx, uid, r)
	}
	return r.ID, a.store.UpdateRecipe(ctx, uid, r)
}

// DeleteRecipe removes a recipe. Plan entries and checked state keyed by
// its id become inert leftovers the aggregator ignores.
func (a *App) DeleteRecipe(ctx context.Context, recipeID string) error {
	uid, err := a.uid()
	if err != nil {
		return err
	}
	return a.store.DeleteRecipe(ctx, uid, recipeID)
}

// AddTag creates a tag and returns its id.
func (a *App) AddTag(ctx context.Context, name string) (string, error) {
	uid, err := a.uid()
	if err != nil {
		return "", err
	}
	return a.store.CreateTag(ctx, uid, name)
}

// DeleteTag removes a tag. Recipes keep the dangling id.
func (a *App) DeleteTag(ctx context.Context, tagID string) error {
	uid, err := a.uid()
	if err != nil {
		return err
	}
	return a.store.DeleteTag(ctx, uid, tagID)
}

// TogglePlanned flips the recipe in and out of the meal plan and reports
// whether it is now planned.
func (a *App) TogglePlanned(ctx context.Context, recipeID string) (bool, error) {
	uid, err := a.uid()
	if err != nil {
		return false, err
	}
	ids, added := plan.ToggleID(a.engine.Snapshot().PlannedIDs, recipeID)
	if err := a.store.SetPlannedIDs(ctx, uid, ids); err != nil {
		return false, err
	}
	return added, nil
}

// ToggleChecked flips one ingredient or instruction position for a
// planned recipe. The whole map for the kind is written back so other
// recipes' ticks survive the merge.
func (a *App) ToggleChecked(ctx context.Context, kind plan.CheckKind, recipeID string, index int) error {
	uid, err := a.uid()
	if err != nil {
		return err
	}
	current := a.engine.Snapshot().Checked.Kind(kind)
	return a.store.SetChecked(ctx, uid, kind, plan.ToggleIndex(current, recipeID, index))
}

// ClearPlan empties the meal plan and every checked mark in one write.
func (a *App) ClearPlan(ctx context.Context) error {
	uid, err := a.uid()
	if err != nil {
		return err
	}
	return a.store.ClearPlan(ctx, uid)
}

// GroceryList derives the consolidated shopping list from the mirrored
// state.
func (a *App) GroceryList() grocery.List {
	s := a.engine.Snapshot()
	return grocery.Build(s.Recipes, s.PlannedIDs, s.Checked.Ingredients)
}

// ImportPhoto extracts a recipe from a photo and saves it. The model is
// offered the user's tag names; suggested names that resolve to existing
// tags are attached.
func (a *App) ImportPhoto(ctx context.Context, image []byte) (string, *recipe.Extraction, error) {
	uid, err := a.uid()
	if err != nil {
		return "", nil, err
	}
	tags := a.engine.Snapshot().Tags

	start := time.Now()
	ext, err := a.extractor.ExtractFromPhoto(ctx, image, tag.Names(tags))
	if err != nil {
		a.recordExtraction("photo", nil, err, time.Since(start))
		return "", nil, err
	}
	a.recordExtraction("photo", ext, nil, ext.Latency)

	id, err := a.store.CreateRecipe(ctx, uid, ext.ToRecipe(tag.MatchIDs(tags, ext.TagNames)))
	if err != nil {
		return "", nil, err
	}
	return id, ext, nil
}

// ImportURL clips a recipe from a web page and saves it.
func (a *App) ImportURL(ctx context.Context, url string) (string, *recipe.Extraction, error) {
	uid, err := a.uid()
	if err != nil {
		return "", nil, err
	}
	tags := a.engine.Snapshot().Tags

	start := time.Now()
	ext, err := a.recipeClipper.ClipURL(ctx, url, tag.Names(tags))
	if err != nil {
		a.recordExtraction("url", nil, err, time.Since(start))
		return "", nil, err
	}
	a.recordExtraction("url", ext, nil, time.Since(start))

	id, err := a.store.CreateRecipe(ctx, uid, ext.ToRecipe(tag.MatchIDs(tags, ext.TagNames)))
	if err != nil {
		return "", nil, err
	}
	return id, ext, nil
}

// Usage returns extraction telemetry for the last N days.
func (a *App) Usage(ctx context.Context, days int) ([]metrics.DailyUsage, error) {
	if a.metricsStore == nil {
		return nil, nil
	}
	return a.metricsStore.GetDailyUsage(ctx, days)
}

// recordExtraction persists telemetry for one extraction run. Failures
// to record are logged, never surfaced.
func (a *App) recordExtraction(source string, ext *recipe.Extraction, runErr error, latency time.Duration) {
	if a.metricsStore == nil {
		return
	}
	m := metrics.ExtractionMetric{Source: source, LatencyMS: latency.Milliseconds()}
	if ext != nil {
		m = metrics.MapUsage(source, ext.Usage, ext.Attempts, latency, true)
	} else {
		var extErr *recipe.ExtractionError
		if errors.As(runErr, &extErr) {
			m.Attempts = extErr.Attempts
		}
	}
	if err := a.metricsStore.Record(context.Background(), m); err != nil {
		a.logger.Warn("failed to record extraction metric", zap.Error(err))
	}
}
