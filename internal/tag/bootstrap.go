package tag

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Seeder is the slice of the store the bootstrapper needs.
type Seeder interface {
	SeedTags(ctx context.Context, uid string, names []string) error
}

// Bootstrapper provisions the default tag set the first time a user's tag
// collection is observed empty. The storage layer does not guarantee
// exactly-once: the in-flight guard only keeps a single process from
// firing twice while a seed is underway. Duplicate names from a genuine
// race are tolerated, since tags are identified by id.
type Bootstrapper struct {
	seeder   Seeder
	inFlight atomic.Bool
}

// NewBootstrapper creates a Bootstrapper.
func NewBootstrapper(seeder Seeder) *Bootstrapper {
	return &Bootstrapper{seeder: seeder}
}

// Seed writes the default tags in one atomic batch. Concurrent calls
// while a seed is in flight are no-ops.
func (b *Bootstrapper) Seed(ctx context.Context, uid string) error {
	if !b.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer b.inFlight.Store(false)

	if err := b.seeder.SeedTags(ctx, uid, DefaultNames); err != nil {
		return fmt.Errorf("failed to seed default tags: %w", err)
	}
	return nil
}
