package clipper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recipe-book/internal/llm"
)

type MockTextGenerator struct {
	Response    string
	Prompt      string
	ShouldError bool
}

func (m *MockTextGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	m.Prompt = prompt
	if m.ShouldError {
		return llm.ContentResponse{}, fmt.Errorf("mock ai error")
	}
	return llm.ContentResponse{Content: m.Response}, nil
}

func TestFetchAndCleanHTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `
		<html>
			<head><script>alert('bad');</script></head>
			<body>
				<h1>Tasty Recipe</h1>
				<div class="ads">Buy stuff!</div>
				<p>Mix flour and water.</p>
				<script>more_bad_stuff()</script>
				<footer>Copyright 2024</footer>
			</body>
		</html>`
		w.Write([]byte(html))
	}))
	defer ts.Close()

	c := New(&MockTextGenerator{})

	cleanText, err := c.fetchAndCleanHTML(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if strings.Contains(cleanText, "alert('bad')") {
		t.Error("Failed to remove <script> tags")
	}
	if strings.Contains(cleanText, "Buy stuff!") {
		t.Error("Failed to remove .ads class")
	}
	if strings.Contains(cleanText, "Copyright 2024") {
		t.Error("Failed to remove <footer>")
	}
	if !strings.Contains(cleanText, "Tasty Recipe") {
		t.Error("Expected to find 'Tasty Recipe'")
	}
	if !strings.Contains(cleanText, "Mix flour and water.") {
		t.Error("Expected to find body content")
	}
}

func TestClipURL_Success(t *testing.T) {
	aiResponse := `{
		"title": "Mock Pie",
		"description": "A pie",
		"prepTime": "20 min",
		"cookTime": "1 hr",
		"servings": "8",
		"tagNames": ["Dessert"],
		"ingredients": [{"amount": "4", "unit": "UNIT", "name": "apples"}],
		"instructions": ["Bake"]
	}`
	mockAI := &MockTextGenerator{Response: aiResponse}
	c := New(mockAI)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Some Content</body></html>"))
	}))
	defer ts.Close()

	ext, err := c.ClipURL(context.Background(), ts.URL, []string{"Dessert", "Dinner"})
	if err != nil {
		t.Fatalf("ClipURL failed: %v", err)
	}

	if ext.Title != "Mock Pie" {
		t.Errorf("Expected title 'Mock Pie', got %q", ext.Title)
	}
	if len(ext.Ingredients) != 1 || ext.Ingredients[0].Name != "apples" {
		t.Errorf("Unexpected ingredients: %+v", ext.Ingredients)
	}
	if !strings.Contains(mockAI.Prompt, "Dessert, Dinner") {
		t.Error("Expected available tags in the prompt")
	}
	if !strings.Contains(mockAI.Prompt, "Some Content") {
		t.Error("Expected page content in the prompt")
	}
}

func TestClipURL_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(&MockTextGenerator{})
	if _, err := c.ClipURL(context.Background(), ts.URL, nil); err == nil {
		t.Fatal("Expected an error for a 404 page")
	}
}

func TestClipURL_MalformedAIResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>Recipe</body></html>"))
	}))
	defer ts.Close()

	c := New(&MockTextGenerator{Response: "not json"})
	if _, err := c.ClipURL(context.Background(), ts.URL, nil); err == nil {
		t.Fatal("Expected an error for malformed AI output")
	}
}
