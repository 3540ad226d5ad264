// Package plan holds the meal-plan state shapes and the pure transitions
// applied to them. Persistence happens elsewhere; everything here copies
// its inputs so callers can hand the results straight to a merge write.
package plan

// CheckKind selects which checked-index map a toggle applies to.
type CheckKind string

const (
	CheckIngredients  CheckKind = "ingredients"
	CheckInstructions CheckKind = "instructions"
)

// Checked tracks which ingredient and instruction positions the user has
// ticked off, per recipe id. Indices are positional: editing a recipe can
// leave stale entries behind, and they are tolerated as-is.
type Checked struct {
	Ingredients  map[string][]int
	Instructions map[string][]int
}

// NewChecked returns an empty Checked with both maps allocated.
func NewChecked() Checked {
	return Checked{
		Ingredients:  map[string][]int{},
		Instructions: map[string][]int{},
	}
}

// Kind returns the map for the given kind.
func (c Checked) Kind(kind CheckKind) map[string][]int {
	if kind == CheckInstructions {
		return c.Instructions
	}
	return c.Ingredients
}

// IsChecked reports whether index is ticked for the recipe.
func (c Checked) IsChecked(kind CheckKind, recipeID string, index int) bool {
	for _, i := range c.Kind(kind)[recipeID] {
		if i == index {
			return true
		}
	}
	return false
}

// ToggleID flips membership of id in the planned list, preserving
// insertion order. It returns the new list and whether id was added.
func ToggleID(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if found {
		return out, false
	}
	return append(out, id), true
}

// ToggleIndex flips membership of index in the recipe's checked set and
// returns a fresh full map for the kind, ready for a merge write that
// replaces the whole field without dropping other recipes' state.
func ToggleIndex(checked map[string][]int, recipeID string, index int) map[string][]int {
	out := make(map[string][]int, len(checked)+1)
	for id, indices := range checked {
		out[id] = append([]int(nil), indices...)
	}

	current := out[recipeID]
	updated := make([]int, 0, len(current)+1)
	found := false
	for _, i := range current {
		if i == index {
			found = true
			continue
		}
		updated = append(updated, i)
	}
	if !found {
		updated = append(updated, index)
	}
	out[recipeID] = updated
	return out
}
