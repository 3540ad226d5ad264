package tag

import (
	"sort"
	"strings"
	"time"
)

// Tag is a user-defined recipe label. Tags are identified by id; name
// uniqueness is not enforced.
type Tag struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// DefaultNames is the fixed set seeded for a brand-new user.
var DefaultNames = []string{
	"Breakfast", "Dessert", "Cocktails", "Mocktails", "Snacks", "Salads", "Soups", "Dinner",
}

// SortByName orders tags ascending by case-insensitive name.
func SortByName(tags []Tag) {
	sort.SliceStable(tags, func(i, j int) bool {
		return strings.ToLower(tags[i].Name) < strings.ToLower(tags[j].Name)
	})
}

// Names returns the tag names in order.
func Names(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

// MatchIDs maps tag names to ids, case-insensitively. Names with no
// matching tag are dropped.
func MatchIDs(tags []Tag, names []string) []string {
	var ids []string
	for _, name := range names {
		for _, t := range tags {
			if strings.EqualFold(t.Name, name) {
				ids = append(ids, t.ID)
				break
			}
		}
	}
	return ids
}
