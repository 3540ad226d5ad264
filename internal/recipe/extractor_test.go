package recipe

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"recipe-book/internal/llm"
	"recipe-book/internal/retry"
)

// mockVision fails a configurable number of times before answering.
type mockVision struct {
	failures  int
	calls     int
	response  string
	lastImage []byte
	prompts   []string
}

func (m *mockVision) GenerateFromImage(_ context.Context, prompt string, image []byte) (llm.ContentResponse, error) {
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.lastImage = image
	if m.calls <= m.failures {
		return llm.ContentResponse{}, errors.New("HTTP error! status: 503")
	}
	return llm.ContentResponse{Content: m.response, Usage: llm.TokenUsage{Model: "test-model"}}, nil
}

// instantPolicy retries without waiting so tests stay fast.
func instantPolicy(maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries: maxRetries,
		Delay:      func(int) time.Duration { return 0 },
	}
}

const goodResponse = `{
	"title": "Pancakes",
	"description": "Sunday classic",
	"prepTime": "10 min",
	"cookTime": "15 min",
	"servings": "4",
	"tagNames": ["Breakfast"],
	"ingredients": [{"amount": "2", "unit": "CUP", "name": "flour"}, {"amount": "", "unit": "", "name": ""}],
	"instructions": ["Mix", "", "Fry"]
}`

func TestExtractFromPhotoSuccess(t *testing.T) {
	vision := &mockVision{response: goodResponse}
	x := NewExtractor(vision, instantPolicy(5))

	ext, err := x.ExtractFromPhoto(context.Background(), []byte{1, 2, 3}, []string{"Breakfast", "Dinner"})
	if err != nil {
		t.Fatalf("ExtractFromPhoto failed: %v", err)
	}

	if ext.Title != "Pancakes" {
		t.Errorf("Expected title 'Pancakes', got %q", ext.Title)
	}
	if ext.Attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", ext.Attempts)
	}
	// The empty ingredient record and the blank instruction are dropped.
	if len(ext.Ingredients) != 1 {
		t.Errorf("Expected 1 ingredient after validation, got %d", len(ext.Ingredients))
	}
	if len(ext.Instructions) != 2 {
		t.Errorf("Expected 2 instructions after validation, got %d", len(ext.Instructions))
	}
	if !strings.Contains(vision.prompts[0], "Available tags: Breakfast, Dinner.") {
		t.Errorf("Expected tag names in the prompt, got %q", vision.prompts[0])
	}
}

func TestExtractFromPhotoRecoversAfterFailures(t *testing.T) {
	// Attempts 1-5 fail, attempt 6 succeeds.
	vision := &mockVision{failures: 5, response: goodResponse}
	x := NewExtractor(vision, instantPolicy(5))

	ext, err := x.ExtractFromPhoto(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Expected success on 6th attempt, got %v", err)
	}
	if ext.Attempts != 6 || vision.calls != 6 {
		t.Errorf("Expected 6 attempts, got ext=%d calls=%d", ext.Attempts, vision.calls)
	}
}

func TestExtractFromPhotoExhaustsRetries(t *testing.T) {
	vision := &mockVision{failures: 100}
	x := NewExtractor(vision, instantPolicy(5))

	_, err := x.ExtractFromPhoto(context.Background(), nil, nil)
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("Expected *ExtractionError, got %v", err)
	}
	if extErr.Attempts != 6 {
		t.Errorf("Expected 6 attempts recorded, got %d", extErr.Attempts)
	}
}

func TestExtractFromPhotoMalformedJSONRetries(t *testing.T) {
	vision := &mockVision{response: "I am not JSON"}
	x := NewExtractor(vision, instantPolicy(2))

	_, err := x.ExtractFromPhoto(context.Background(), nil, nil)
	var extErr *ExtractionError
	if !errors.As(err, &extErr) {
		t.Fatalf("Expected *ExtractionError, got %v", err)
	}
	// Parse failures burn attempts just like transport errors.
	if vision.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", vision.calls)
	}
}

func TestExtractFromPhotoRejectsMissingTitle(t *testing.T) {
	vision := &mockVision{response: `{"title": "  ", "ingredients": [], "instructions": []}`}
	x := NewExtractor(vision, instantPolicy(0))

	_, err := x.ExtractFromPhoto(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("Expected an error for a blank title, got nil")
	}
}

func TestExtractionDefaultsUnitSentinel(t *testing.T) {
	vision := &mockVision{response: `{
		"title": "Soup",
		"ingredients": [{"amount": "3", "unit": "", "name": "carrots"}],
		"instructions": ["Simmer"]
	}`}
	x := NewExtractor(vision, instantPolicy(0))

	ext, err := x.ExtractFromPhoto(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("ExtractFromPhoto failed: %v", err)
	}
	if ext.Ingredients[0].Unit != UnitSentinel {
		t.Errorf("Expected unit %q, got %q", UnitSentinel, ext.Ingredients[0].Unit)
	}
}

func TestExtractionToRecipe(t *testing.T) {
	ext := &Extraction{
		Title:        "Pancakes",
		Ingredients:  []Ingredient{StructuredIngredient("2", "CUP", "flour")},
		Instructions: []string{"Mix"},
	}

	r := ext.ToRecipe([]string{"t1"})
	if r.Title != "Pancakes" || len(r.TagIDs) != 1 || r.TagIDs[0] != "t1" {
		t.Errorf("Unexpected recipe: %+v", r)
	}
	if !r.CreatedAt.IsZero() {
		t.Error("Expected zero CreatedAt; the store assigns it")
	}

	r = ext.ToRecipe(nil)
	if r.TagIDs == nil {
		t.Error("Expected empty slice, not nil, for missing tag ids")
	}
}
