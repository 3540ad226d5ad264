// Package clipper imports recipes from the web. It fetches a page,
// strips the markup noise, and has the language model lift the recipe
// into the same structured form photo extraction produces.
package clipper

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"recipe-book/internal/llm"
	"recipe-book/internal/recipe"
)

// Clipper fetches and extracts recipes from URLs.
type Clipper struct {
	textGen llm.TextGenerator
	client  *http.Client
}

// New creates a Clipper.
func New(textGen llm.TextGenerator) *Clipper {
	return &Clipper{
		textGen: textGen,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// ClipURL fetches the page and extracts its recipe. availableTags is the
// user's current tag names, offered to the model so its suggestions can
// be resolved to ids.
func (c *Clipper) ClipURL(ctx context.Context, url string, availableTags []string) (*recipe.Extraction, error) {
	content, err := c.fetchAndCleanHTML(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	prompt := fmt.Sprintf(`
You are a recipe extraction expert. Extract the recipe details from the following page content.
Return the result strictly as a JSON object with this structure:
{
  "title": "Recipe Title",
  "description": "One-sentence summary",
  "prepTime": "e.g. 15 min",
  "cookTime": "e.g. 30 min",
  "servings": "e.g. 4",
  "tagNames": ["only names from: %s"],
  "ingredients": [{"amount": "2", "unit": "CUP", "name": "flour"}, ...],
  "instructions": ["Step 1 description", ...]
}

Page Content:
%s
`, joinTags(availableTags), content)

	resp, err := c.textGen.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ai extraction failed: %w", err)
	}

	var extracted recipe.Extraction
	if err := json.Unmarshal([]byte(resp.Content), &extracted); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	extracted.Usage = resp.Usage
	if err := extracted.Validate(); err != nil {
		return nil, fmt.Errorf("extracted recipe unusable: %w", err)
	}
	return &extracted, nil
}

func (c *Clipper) fetchAndCleanHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text(), nil
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "none"
	}
	return strings.Join(tags, ", ")
}
