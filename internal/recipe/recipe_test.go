package recipe

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestIngredientJSONRoundTrip(t *testing.T) {
	t.Run("Legacy", func(t *testing.T) {
		ing := LegacyIngredient("2 cups flour")
		data, err := json.Marshal(ing)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		if string(data) != `"2 cups flour"` {
			t.Errorf("Expected bare string encoding, got %s", data)
		}

		var back Ingredient
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if !back.Legacy || back.Text != "2 cups flour" {
			t.Errorf("Expected legacy round trip, got %+v", back)
		}
	})

	t.Run("Structured", func(t *testing.T) {
		ing := StructuredIngredient("1", "LB", "butter")
		data, err := json.Marshal(ing)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}

		var back Ingredient
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if back.Legacy {
			t.Error("Expected structured form after round trip")
		}
		if back.Amount != "1" || back.Unit != "LB" || back.Name != "butter" {
			t.Errorf("Round trip mangled fields: %+v", back)
		}
	})

	t.Run("MixedList", func(t *testing.T) {
		raw := `["1 egg", {"amount": "2", "unit": "CUP", "name": "flour"}]`
		var ings []Ingredient
		if err := json.Unmarshal([]byte(raw), &ings); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if len(ings) != 2 || !ings[0].Legacy || ings[1].Legacy {
			t.Fatalf("Expected [legacy, structured], got %+v", ings)
		}
	})
}

func TestGroceryLine(t *testing.T) {
	cases := []struct {
		name string
		ing  Ingredient
		want string
	}{
		{"Legacy", LegacyIngredient("2 cups flour"), "2 cups flour"},
		{"Structured", StructuredIngredient("1", "LB", "butter"), "1 LB butter"},
		{"EmptyFields", StructuredIngredient("", "", "salt"), "  salt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ing.GroceryLine(); got != tc.want {
				t.Errorf("GroceryLine() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSortByNewest(t *testing.T) {
	now := time.Now()
	recipes := []Recipe{
		{ID: "old", CreatedAt: now.Add(-time.Hour)},
		{ID: "untimestamped"},
		{ID: "new", CreatedAt: now},
	}
	SortByNewest(recipes)

	var ids []string
	for _, r := range recipes {
		ids = append(ids, r.ID)
	}
	// The recipe without a timestamp sorts as oldest of all.
	want := []string{"new", "old", "untimestamped"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected order %v, got %v", want, ids)
	}
}

func TestBlank(t *testing.T) {
	b := Blank()
	if b.PrepTime != "15 min" || b.CookTime != "30 min" || b.Servings != "2" {
		t.Errorf("Unexpected defaults: %+v", b)
	}
	if len(b.Ingredients) != 1 || b.Ingredients[0].Unit != UnitSentinel {
		t.Errorf("Expected one sentinel-unit ingredient, got %+v", b.Ingredients)
	}
	if len(b.Instructions) != 1 || b.Instructions[0] != "" {
		t.Errorf("Expected one empty instruction, got %+v", b.Instructions)
	}
}

func TestMatchesQueryAndTags(t *testing.T) {
	r := Recipe{Title: "Sunday Pancakes", Description: "Fluffy and light", TagIDs: []string{"t1"}}

	if !r.MatchesQuery("pancakes") || !r.MatchesQuery("FLUFFY") || !r.MatchesQuery("") {
		t.Error("Expected query matches")
	}
	if r.MatchesQuery("soup") {
		t.Error("Expected no match for 'soup'")
	}
	if !r.HasAnyTag(nil) || !r.HasAnyTag([]string{"t1", "t2"}) {
		t.Error("Expected tag matches")
	}
	if r.HasAnyTag([]string{"t9"}) {
		t.Error("Expected no match for unknown tag")
	}
}
