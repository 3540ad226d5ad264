package recipe

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// UnitSentinel is the placeholder unit used when none has been chosen.
const UnitSentinel = "UNIT"

// Units is the fixed set of cooking units offered by the editor.
var Units = []string{
	"UNIT", "PIECE", "PINCH", "DASH", "TEASPOON", "TABLESPOON", "FL OZ", "CUP", "PINT", "QUART", "GALLON",
	"GRAM", "KG", "OZ", "LB", "ML", "LITER", "CLOVE", "STICK", "CAN", "PACKAGE", "SLICE", "HEAD", "BUNCH",
	"SPRIG", "STALK", "LEAF", "BOX", "BAG", "JAR",
}

// Ingredient is a tagged variant: either a legacy bare string kept verbatim
// for old documents, or a structured amount/unit/name record. Neither form
// is ever normalized into the other; stored data round-trips unchanged.
type Ingredient struct {
	Legacy bool
	Text   string

	Amount string
	Unit   string
	Name   string
}

// LegacyIngredient builds the bare-string form.
func LegacyIngredient(text string) Ingredient {
	return Ingredient{Legacy: true, Text: text}
}

// StructuredIngredient builds the amount/unit/name form.
func StructuredIngredient(amount, unit, name string) Ingredient {
	return Ingredient{Amount: amount, Unit: unit, Name: name}
}

// GroceryLine renders the ingredient as a single grocery-list line body.
// Legacy ingredients are emitted verbatim; structured ones as
// "amount unit name" with empty fields left blank.
func (i Ingredient) GroceryLine() string {
	if i.Legacy {
		return i.Text
	}
	return i.Amount + " " + i.Unit + " " + i.Name
}

type structuredIngredient struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
	Name   string `json:"name"`
}

// MarshalJSON keeps the stored shape: a JSON string for the legacy form,
// an object for the structured form.
func (i Ingredient) MarshalJSON() ([]byte, error) {
	if i.Legacy {
		return json.Marshal(i.Text)
	}
	return json.Marshal(structuredIngredient{Amount: i.Amount, Unit: i.Unit, Name: i.Name})
}

// UnmarshalJSON accepts both stored shapes.
func (i *Ingredient) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*i = LegacyIngredient(text)
		return nil
	}
	var s structuredIngredient
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*i = StructuredIngredient(s.Amount, s.Unit, s.Name)
	return nil
}

// Recipe is a single entry in the user's book.
type Recipe struct {
	ID           string       `json:"id,omitempty"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	PrepTime     string       `json:"prepTime"`
	CookTime     string       `json:"cookTime"`
	Servings     string       `json:"servings"`
	TagIDs       []string     `json:"tagIds"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`

	// CreatedAt is assigned by the store on creation. Documents written
	// before timestamps existed decode to the zero time and sort oldest.
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Blank returns the edit buffer for a brand-new recipe.
func Blank() Recipe {
	return Recipe{
		PrepTime:     "15 min",
		CookTime:     "30 min",
		Servings:     "2",
		TagIDs:       []string{},
		Ingredients:  []Ingredient{StructuredIngredient("1", UnitSentinel, "")},
		Instructions: []string{""},
	}
}

// SortByNewest orders recipes by creation time, newest first. Recipes
// without a timestamp sort as oldest; equal timestamps keep snapshot order.
func SortByNewest(recipes []Recipe) {
	sort.SliceStable(recipes, func(i, j int) bool {
		return recipes[i].CreatedAt.After(recipes[j].CreatedAt)
	})
}

// MatchesQuery reports whether the recipe title or description contains
// the query, case-insensitively. An empty query matches everything.
func (r Recipe) MatchesQuery(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(r.Description), q)
}

// HasAnyTag reports whether the recipe carries at least one of the given
// tag ids. An empty filter matches everything.
func (r Recipe) HasAnyTag(tagIDs []string) bool {
	if len(tagIDs) == 0 {
		return true
	}
	for _, want := range tagIDs {
		for _, have := range r.TagIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}
