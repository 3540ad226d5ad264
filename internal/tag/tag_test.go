package tag

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestSortByName(t *testing.T) {
	tags := []Tag{
		{ID: "1", Name: "soups"},
		{ID: "2", Name: "Breakfast"},
		{ID: "3", Name: "dinner"},
	}
	SortByName(tags)

	got := Names(tags)
	want := []string{"Breakfast", "dinner", "soups"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestMatchIDs(t *testing.T) {
	tags := []Tag{
		{ID: "t1", Name: "Breakfast"},
		{ID: "t2", Name: "Dessert"},
	}

	ids := MatchIDs(tags, []string{"breakfast", "DESSERT", "Unknown"})
	if !reflect.DeepEqual(ids, []string{"t1", "t2"}) {
		t.Errorf("Expected [t1 t2], got %v", ids)
	}
}

// mockSeeder records seed calls and optionally blocks until released.
type mockSeeder struct {
	mu      sync.Mutex
	calls   int
	names   []string
	block   chan struct{}
	failErr error
}

func (m *mockSeeder) SeedTags(_ context.Context, _ string, names []string) error {
	m.mu.Lock()
	m.calls++
	m.names = names
	block := m.block
	m.mu.Unlock()
	if block != nil {
		<-block
	}
	return m.failErr
}

func TestBootstrapSeedsDefaults(t *testing.T) {
	seeder := &mockSeeder{}
	b := NewBootstrapper(seeder)

	if err := b.Seed(context.Background(), "uid-1"); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	if seeder.calls != 1 {
		t.Errorf("Expected 1 seed call, got %d", seeder.calls)
	}
	if len(seeder.names) != 8 {
		t.Errorf("Expected 8 default tags, got %d", len(seeder.names))
	}
	if !reflect.DeepEqual(seeder.names, DefaultNames) {
		t.Errorf("Expected default names %v, got %v", DefaultNames, seeder.names)
	}
}

func TestBootstrapInFlightGuard(t *testing.T) {
	seeder := &mockSeeder{block: make(chan struct{})}
	b := NewBootstrapper(seeder)

	done := make(chan error, 1)
	go func() { done <- b.Seed(context.Background(), "uid-1") }()

	// Wait until the first seed is inside SeedTags.
	for {
		seeder.mu.Lock()
		started := seeder.calls == 1
		seeder.mu.Unlock()
		if started {
			break
		}
	}

	// A second call while one is in flight must be a no-op.
	if err := b.Seed(context.Background(), "uid-1"); err != nil {
		t.Fatalf("Guarded Seed returned error: %v", err)
	}
	close(seeder.block)
	if err := <-done; err != nil {
		t.Fatalf("First Seed failed: %v", err)
	}
	if seeder.calls != 1 {
		t.Errorf("Expected exactly 1 seed call, got %d", seeder.calls)
	}
}

func TestBootstrapErrorIsWrapped(t *testing.T) {
	seeder := &mockSeeder{failErr: fmt.Errorf("batch commit failed")}
	b := NewBootstrapper(seeder)

	err := b.Seed(context.Background(), "uid-1")
	if err == nil {
		t.Fatal("Expected an error, got nil")
	}

	// The guard resets after a failure so the next empty snapshot can
	// retry the seed.
	seeder.failErr = nil
	if err := b.Seed(context.Background(), "uid-1"); err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if seeder.calls != 2 {
		t.Errorf("Expected 2 seed calls, got %d", seeder.calls)
	}
}
