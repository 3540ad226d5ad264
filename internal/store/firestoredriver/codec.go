package firestoredriver

import (
	"time"

	"recipe-book/internal/recipe"
	"recipe-book/internal/tag"
)

// encodeRecipe produces the document fields for a recipe. createdAt is
// deliberately absent; CreateRecipe adds the server timestamp and
// UpdateRecipe must never touch it.
func encodeRecipe(r recipe.Recipe) map[string]interface{} {
	ings := make([]interface{}, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing.Legacy {
			ings = append(ings, ing.Text)
			continue
		}
		ings = append(ings, map[string]interface{}{
			"amount": ing.Amount,
			"unit":   ing.Unit,
			"name":   ing.Name,
		})
	}
	instructions := r.Instructions
	if instructions == nil {
		instructions = []string{}
	}
	tagIDs := r.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}
	return map[string]interface{}{
		"title":        r.Title,
		"description":  r.Description,
		"prepTime":     r.PrepTime,
		"cookTime":     r.CookTime,
		"servings":     r.Servings,
		"tagIds":       tagIDs,
		"ingredients":  ings,
		"instructions": instructions,
	}
}

// decodeRecipe tolerates both ingredient shapes and missing fields, so
// documents written by older versions still load.
func decodeRecipe(id string, data map[string]interface{}) recipe.Recipe {
	return recipe.Recipe{
		ID:           id,
		Title:        asString(data["title"]),
		Description:  asString(data["description"]),
		PrepTime:     asString(data["prepTime"]),
		CookTime:     asString(data["cookTime"]),
		Servings:     asString(data["servings"]),
		TagIDs:       asStringSlice(data["tagIds"]),
		Ingredients:  asIngredients(data["ingredients"]),
		Instructions: asStringSlice(data["instructions"]),
		CreatedAt:    asTime(data["createdAt"]),
	}
}

func decodeTag(id string, data map[string]interface{}) tag.Tag {
	return tag.Tag{
		ID:        id,
		Name:      asString(data["name"]),
		CreatedAt: asTime(data["createdAt"]),
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// asTime leaves the zero value for absent or malformed timestamps, which
// sorts such documents as oldest.
func asTime(v interface{}) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asIngredients(v interface{}) []recipe.Ingredient {
	raw, ok := v.([]interface{})
	if !ok {
		return []recipe.Ingredient{}
	}
	out := make([]recipe.Ingredient, 0, len(raw))
	for _, item := range raw {
		switch val := item.(type) {
		case string:
			out = append(out, recipe.LegacyIngredient(val))
		case map[string]interface{}:
			out = append(out, recipe.StructuredIngredient(
				asString(val["amount"]),
				asString(val["unit"]),
				asString(val["name"]),
			))
		}
	}
	return out
}

// asCheckedMap decodes a checked-index map. Firestore hands numbers back
// as int64.
func asCheckedMap(v interface{}) map[string][]int {
	raw, ok := v.(map[string]interface{})
	if !ok {
		return map[string][]int{}
	}
	out := make(map[string][]int, len(raw))
	for id, indices := range raw {
		list, ok := indices.([]interface{})
		if !ok {
			continue
		}
		ints := make([]int, 0, len(list))
		for _, n := range list {
			switch num := n.(type) {
			case int64:
				ints = append(ints, int(num))
			case float64:
				ints = append(ints, int(num))
			}
		}
		out[id] = ints
	}
	return out
}
