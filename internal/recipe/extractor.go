package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"recipe-book/internal/llm"
	"recipe-book/internal/retry"
)

// ExtractionError is returned when the AI call still fails after the
// retry policy is exhausted, or when the model's output cannot be used.
// No partial result accompanies it.
type ExtractionError struct {
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("recipe extraction failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extraction is the validated result of reading a recipe photo.
type Extraction struct {
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	PrepTime     string       `json:"prepTime"`
	CookTime     string       `json:"cookTime"`
	Servings     string       `json:"servings"`
	TagNames     []string     `json:"tagNames"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`

	Usage    llm.TokenUsage `json:"-"`
	Attempts int            `json:"-"`
	Latency  time.Duration  `json:"-"`
}

// ToRecipe builds the recipe to persist. The caller resolves tag names to
// ids against the user's current tag set.
func (e *Extraction) ToRecipe(tagIDs []string) Recipe {
	if tagIDs == nil {
		tagIDs = []string{}
	}
	return Recipe{
		Title:        e.Title,
		Description:  e.Description,
		PrepTime:     e.PrepTime,
		CookTime:     e.CookTime,
		Servings:     e.Servings,
		TagIDs:       tagIDs,
		Ingredients:  e.Ingredients,
		Instructions: e.Instructions,
	}
}

// Extractor turns a recipe photo into structured fields via the vision
// model, retrying transient failures with the configured policy. A
// response that does not parse as the expected JSON counts as a failed
// attempt, same as a transport error.
type Extractor struct {
	vision llm.VisionGenerator
	policy retry.Policy
}

// NewExtractor creates an Extractor.
func NewExtractor(vision llm.VisionGenerator, policy retry.Policy) *Extractor {
	return &Extractor{vision: vision, policy: policy}
}

// ExtractFromPhoto reads the recipe in the image. availableTags is the
// user's current tag names, offered to the model so it only suggests tags
// that can be resolved.
func (x *Extractor) ExtractFromPhoto(ctx context.Context, image []byte, availableTags []string) (*Extraction, error) {
	prompt := fmt.Sprintf(
		"Read the recipe from this photo. Extract title, description, timings, servings, and instructions. Return JSON. Available tags: %s.",
		strings.Join(availableTags, ", "),
	)

	start := time.Now()
	attempts := 0
	var extraction Extraction

	err := x.policy.Do(ctx, func(ctx context.Context) error {
		attempts++
		resp, err := x.vision.GenerateFromImage(ctx, prompt, image)
		if err != nil {
			return err
		}

		var parsed Extraction
		if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
			return fmt.Errorf("failed to parse model response: %w", err)
		}
		parsed.Usage = resp.Usage
		extraction = parsed
		return nil
	})
	if err != nil {
		return nil, &ExtractionError{Attempts: attempts, Err: err}
	}

	extraction.Attempts = attempts
	extraction.Latency = time.Since(start)
	if err := extraction.Validate(); err != nil {
		return nil, &ExtractionError{Attempts: attempts, Err: err}
	}
	return &extraction, nil
}

// Validate cleans the model output in place. The model is not trusted to
// honor the schema: empty titles are rejected, empty ingredient records
// dropped, and missing units replaced with the sentinel.
func (e *Extraction) Validate() error {
	e.Title = strings.TrimSpace(e.Title)
	if e.Title == "" {
		return fmt.Errorf("model returned no title")
	}

	cleaned := e.Ingredients[:0]
	for _, ing := range e.Ingredients {
		if ing.Legacy {
			if strings.TrimSpace(ing.Text) != "" {
				cleaned = append(cleaned, ing)
			}
			continue
		}
		if strings.TrimSpace(ing.Amount) == "" && strings.TrimSpace(ing.Name) == "" {
			continue
		}
		if ing.Unit == "" {
			ing.Unit = UnitSentinel
		}
		cleaned = append(cleaned, ing)
	}
	e.Ingredients = cleaned

	steps := e.Instructions[:0]
	for _, s := range e.Instructions {
		if strings.TrimSpace(s) != "" {
			steps = append(steps, s)
		}
	}
	e.Instructions = steps
	return nil
}
