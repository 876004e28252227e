package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/rs/zerolog/log"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash-lite"

// Gemini Flash Lite pricing (per million tokens)
const (
	inputPricePerMillion  = 0.075
	outputPricePerMillion = 0.30
)

const systemInstruction = "You are a vision AI and food expert that can analyze images of food and return the contents of the image in a structured format."

var extractionPrompt = strings.TrimSpace(dedent.Dedent(`
	Identify the different types of food in this image.
	Detect and label every food item, providing:
	- name of the item
	- quantity and unit
	- nutritional information per unit (calories, protein, carbs and fat)
	- category: one of produce, dairy, meat, seafood or other
	- estimatedValue: a realistic retail price per unit in US dollars

	Rules:
	0. If the image does not contain any food, return an empty items array.
	1. Only return the items that are visible in the image.
	2. When you see an item that you are unsure of, return it with category "other".
	3. Multi-unit packs sold as one retail unit count as one. An egg carton is quantity 1 (one dozen) priced as one carton. Do not use 12 or price the eggs individually. Example: {"name": "Egg Carton", "quantity": 1, "estimatedValue": 3.99}
	4. Always use factual prices and nutritional information. This is extremely critical as the data is used to decide what to eat, so never use placeholder values.
`))

// contentGenerator is the part of the genai client the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOptions configures the Gemini extractor.
type GeminiOptions struct {
	APIKey string
	Model  string
}

// GeminiExtractor uses Google's Gemini API to extract fridge inventories.
// It holds no per-request state and is safe for concurrent use.
type GeminiExtractor struct {
	models contentGenerator
	model  string
}

// NewGeminiExtractor creates a Gemini-backed extractor. A missing API key
// is reported as a *ConfigurationError.
func NewGeminiExtractor(ctx context.Context, opts GeminiOptions) (*GeminiExtractor, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, &ConfigurationError{Setting: "GEMINI_API_KEY", Reason: "is not set"}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ConfigurationError{Setting: "GEMINI_API_KEY", Reason: "was rejected by the client", Err: err}
	}

	return newGeminiExtractor(client.Models, opts.Model), nil
}

func newGeminiExtractor(models contentGenerator, model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModel
	}
	return &GeminiExtractor{models: models, model: model}
}

// Model returns the model name requests are sent to.
func (g *GeminiExtractor) Model() string {
	return g.model
}

// responseSchema describes {"items": FoodItem[]} for structured output.
func responseSchema() *genai.Schema {
	number := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: desc}
	}

	nutrition := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"calories": number("Calories per unit"),
			"protein":  number("Protein per unit in grams"),
			"carbs":    number("Carbohydrates per unit in grams"),
			"fat":      number("Fat per unit in grams"),
		},
		Required:         []string{"calories"},
		PropertyOrdering: []string{"calories", "protein", "carbs", "fat"},
	}

	categories := make([]string, len(fridge.Categories))
	for i, c := range fridge.Categories {
		categories[i] = string(c)
	}

	item := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":           {Type: genai.TypeString, Description: "Name of the food item"},
			"quantity":       number("How many retail units are visible"),
			"unit":           {Type: genai.TypeString, Description: "Unit of the quantity, e.g. gallon or pieces"},
			"nutrition":      nutrition,
			"estimatedValue": number("Realistic retail price of one unit in US dollars"),
			"category":       {Type: genai.TypeString, Enum: categories},
			"expiryDate":     {Type: genai.TypeString, Description: "Expiry date if printed on the package"},
		},
		Required:         []string{"name", "quantity", "nutrition", "estimatedValue"},
		PropertyOrdering: []string{"name", "quantity", "unit", "nutrition", "estimatedValue", "category", "expiryDate"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"items": {Type: genai.TypeArray, Items: item},
		},
		Required: []string{"items"},
	}
}

// Extract implements the Extractor interface using Gemini.
func (g *GeminiExtractor) Extract(ctx context.Context, imageData []byte, mimeType string) (*ExtractionResult, error) {
	if len(imageData) == 0 {
		return nil, ErrNoImage
	}
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}

	// Image first, then the instruction
	parts := []*genai.Part{
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
		genai.NewPartFromText(extractionPrompt),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	}

	result, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		te := transportError(ctx, err)
		log.Warn().Err(err).Str("model", g.model).Int("statusCode", te.StatusCode).Bool("timeout", te.Timeout).Msg("vision llm call failed")
		return nil, te
	}

	text, err := responseText(result)
	if err != nil {
		return nil, err
	}

	usage := usageOf(result)
	log.Info().
		Str("model", g.model).
		Int("imageBytes", len(imageData)).
		Str("mimeType", mimeType).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("vision llm call")

	items, err := parseItems(text)
	if err != nil {
		log.Debug().Err(err).Str("response", text).Msg("rejected vision llm output")
		return nil, err
	}

	return &ExtractionResult{Analysis: fridge.NewAnalysis(items), Usage: usage}, nil
}

// GenerateText sends prompt, and the image when given, without a response
// schema and returns the raw answer text.
func (g *GeminiExtractor) GenerateText(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error) {
	var parts []*genai.Part
	if len(imageData) > 0 {
		if mimeType == "" {
			mimeType = DefaultMIMEType
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}})
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	result, err := g.models.GenerateContent(ctx, g.model, []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}, nil)
	if err != nil {
		return "", transportError(ctx, err)
	}

	text, err := responseText(result)
	if err != nil {
		return "", err
	}

	usage := usageOf(result)
	log.Info().
		Str("model", g.model).
		Bool("withImage", len(imageData) > 0).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Msg("text llm call")

	return text, nil
}

func responseText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return "", &ParseError{Err: errEmptyResponse}
	}
	return result.Text(), nil
}

func usageOf(result *genai.GenerateContentResponse) Usage {
	var usage Usage
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens)
	}
	return usage
}

func calculateCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * inputPricePerMillion
	outputCost := float64(outputTokens) / 1_000_000 * outputPricePerMillion
	return inputCost + outputCost
}

// parseItems decodes and validates the model answer. Non-JSON answers are
// a *ParseError, schema mismatches a *SchemaValidationError.
func parseItems(text string) ([]fridge.FoodItem, error) {
	jsonStr, err := extractJSON(text)
	if err != nil {
		return nil, &ParseError{Raw: text, Err: err}
	}

	items, err := fridge.ValidateResponse([]byte(jsonStr))
	if errors.Is(err, fridge.ErrMalformedJSON) {
		return nil, &ParseError{Raw: text, Err: err}
	}
	return items, err
}

// extractJSON returns text when it is JSON already, otherwise the outermost
// object, which covers answers wrapped in markdown code blocks.
func extractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if json.Valid([]byte(text)) {
		return text, nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}
