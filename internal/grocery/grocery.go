// Package grocery derives the consolidated shopping list from the current
// library and meal-plan state. It is a pure function of its inputs.
package grocery

import (
	"strings"

	"recipe-book/internal/recipe"
)

const header = "GROCERY LIST\n\n"

// List is the aggregation result. NothingToBuy is set when no planned
// recipe contributed a line, either because the plan is empty or because
// every ingredient is already checked off; callers show a message instead
// of an empty list in that case.
type List struct {
	Text         string
	NothingToBuy bool
}

// Build assembles the master grocery list. Recipes are visited in the
// order given (the library keeps them creation-descending), planned
// recipes contribute their unchecked ingredients, and fully checked
// recipes are skipped entirely.
func Build(recipes []recipe.Recipe, plannedIDs []string, checkedIngredients map[string][]int) List {
	planned := make(map[string]bool, len(plannedIDs))
	for _, id := range plannedIDs {
		planned[id] = true
	}

	var sb strings.Builder
	sb.WriteString(header)

	contributed := false
	for _, r := range recipes {
		if !planned[r.ID] {
			continue
		}

		checked := make(map[int]bool, len(checkedIngredients[r.ID]))
		for _, idx := range checkedIngredients[r.ID] {
			checked[idx] = true
		}

		var missing []recipe.Ingredient
		for idx, ing := range r.Ingredients {
			if !checked[idx] {
				missing = append(missing, ing)
			}
		}
		if len(missing) == 0 {
			continue
		}

		contributed = true
		sb.WriteString(strings.ToUpper(r.Title))
		sb.WriteString(":\n")
		for _, ing := range missing {
			sb.WriteString("- ")
			sb.WriteString(ing.GroceryLine())
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if !contributed {
		return List{NothingToBuy: true}
	}
	return List{Text: sb.String()}
}
