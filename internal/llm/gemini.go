package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// recipeSchema is the strict JSON shape requested from the model. The
// response is still validated by the caller; the schema only nudges the
// model toward well-formed output.
var recipeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"prepTime":    {Type: genai.TypeString},
		"cookTime":    {Type: genai.TypeString},
		"servings":    {Type: genai.TypeString},
		"tagNames":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"ingredients": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"amount": {Type: genai.TypeString},
					"unit":   {Type: genai.TypeString},
					"name":   {Type: genai.TypeString},
				},
			},
		},
		"instructions": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	},
}

// GeminiClient calls the Gemini API for recipe extraction.
type GeminiClient struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiClient creates a Gemini client configured to return a single
// JSON object matching the recipe schema.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = recipeSchema

	return &GeminiClient{client: client, model: model, modelName: modelName}, nil
}

// GenerateContent sends a text-only prompt to the model.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	return c.generate(ctx, genai.Text(prompt))
}

// GenerateFromImage sends a prompt plus inline PNG bytes to the model.
func (c *GeminiClient) GenerateFromImage(ctx context.Context, prompt string, image []byte) (ContentResponse, error) {
	return c.generate(ctx, genai.Text(prompt), genai.ImageData("png", image))
}

func (c *GeminiClient) generate(ctx context.Context, parts ...genai.Part) (ContentResponse, error) {
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ContentResponse{}, fmt.Errorf("no content generated")
	}

	// The first candidate's first text part carries the JSON payload.
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return ContentResponse{}, fmt.Errorf("generated content is not text")
	}

	usage := TokenUsage{Model: c.modelName}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return ContentResponse{Content: string(text), Usage: usage}, nil
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
