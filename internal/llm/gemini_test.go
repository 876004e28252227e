package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type generatorMock struct {
	mock.Mock
}

func (m *generatorMock) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	args := m.Called(ctx, model, contents, config)
	resp, _ := args.Get(0).(*genai.GenerateContentResponse)
	return resp, args.Error(1)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: text}}}},
		},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     1000,
			CandidatesTokenCount: 200,
			TotalTokenCount:      1200,
		},
	}
}

func newTestExtractor(resp *genai.GenerateContentResponse, err error) (*GeminiExtractor, *generatorMock) {
	m := new(generatorMock)
	m.On("GenerateContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(resp, err)
	return newGeminiExtractor(m, ""), m
}

const milkAndEggsResponse = `{"items":[
	{"name":"Milk","quantity":1,"unit":"gallon","nutrition":{"calories":103,"protein":8,"carbs":12,"fat":2.4},"estimatedValue":3.99,"category":"dairy"},
	{"name":"Eggs","quantity":12,"unit":"pieces","nutrition":{"calories":70},"estimatedValue":4.99,"category":"dairy"}
]}`

func TestExtract(t *testing.T) {
	g, m := newTestExtractor(textResponse(milkAndEggsResponse), nil)
	image := []byte{0xff, 0xd8, 0xff}

	result, err := g.Extract(context.Background(), image, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Analysis.Len())
	assert.InDelta(t, 943, result.Analysis.TotalCalories(), 1e-9)
	assert.InDelta(t, 63.87, result.Analysis.TotalValue(), 1e-9)
	assert.False(t, result.Cached)
	assert.Equal(t, Usage{InputTokens: 1000, OutputTokens: 200, TotalTokens: 1200, CostUSD: calculateCost(1000, 200)}, result.Usage)

	require.Len(t, m.Calls, 1)
	args := m.Calls[0].Arguments
	assert.Equal(t, DefaultModel, args.String(1))

	contents := args.Get(2).([]*genai.Content)
	require.Len(t, contents, 1)
	parts := contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, image, parts[0].InlineData.Data)
	assert.Equal(t, "image/jpeg", parts[0].InlineData.MIMEType)
	assert.Equal(t, extractionPrompt, parts[1].Text)

	config := args.Get(3).(*genai.GenerateContentConfig)
	assert.Equal(t, "application/json", config.ResponseMIMEType)
	require.NotNil(t, config.ResponseSchema)
	assert.Equal(t, []string{"items"}, config.ResponseSchema.Required)
	require.NotNil(t, config.SystemInstruction)
	assert.Equal(t, systemInstruction, config.SystemInstruction.Parts[0].Text)
}

func TestExtract_DefaultsMIMEType(t *testing.T) {
	g, m := newTestExtractor(textResponse(`{"items":[]}`), nil)
	_, err := g.Extract(context.Background(), []byte("img"), "")
	require.NoError(t, err)

	contents := m.Calls[0].Arguments.Get(2).([]*genai.Content)
	assert.Equal(t, DefaultMIMEType, contents[0].Parts[0].InlineData.MIMEType)
}

func TestExtract_NoFood(t *testing.T) {
	g, _ := newTestExtractor(textResponse(`{"items": []}`), nil)

	result, err := g.Extract(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Analysis.Len())
	assert.Zero(t, result.Analysis.TotalCalories())
	assert.Zero(t, result.Analysis.TotalValue())
}

func TestExtract_NonJSONIsParseError(t *testing.T) {
	g, _ := newTestExtractor(textResponse("Sorry, I can't see any fridge here."), nil)

	_, err := g.Extract(context.Background(), []byte("img"), "image/png")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "Sorry, I can't see any fridge here.", parseErr.Raw)

	var schemaErr *SchemaValidationError
	assert.False(t, errors.As(err, &schemaErr))
}

func TestExtract_TruncatedJSONIsParseError(t *testing.T) {
	g, _ := newTestExtractor(textResponse(`{"items": [{"name": "Milk"`), nil)

	_, err := g.Extract(context.Background(), []byte("img"), "image/png")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestExtract_MissingItemsIsSchemaError(t *testing.T) {
	g, _ := newTestExtractor(textResponse(`{"foods": []}`), nil)

	_, err := g.Extract(context.Background(), []byte("img"), "image/png")

	var schemaErr *SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []fridge.Violation{{Field: "items", Message: "is required"}}, schemaErr.Violations)

	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr))
}

func TestExtract_InvalidItemIsSchemaError(t *testing.T) {
	g, _ := newTestExtractor(textResponse(`{"items":[{"name":"Milk","quantity":-1,"nutrition":{"calories":103},"estimatedValue":3.99}]}`), nil)

	_, err := g.Extract(context.Background(), []byte("img"), "image/png")

	var schemaErr *SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []fridge.Violation{{Field: "items[0].quantity", Message: "must be greater than 0"}}, schemaErr.Violations)
}

func TestExtract_MarkdownWrappedJSON(t *testing.T) {
	g, _ := newTestExtractor(textResponse("```json\n"+milkAndEggsResponse+"\n```"), nil)

	result, err := g.Extract(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Analysis.Len())
}

func TestExtract_EmptyResponse(t *testing.T) {
	g, _ := newTestExtractor(&genai.GenerateContentResponse{}, nil)

	_, err := g.Extract(context.Background(), []byte("img"), "image/png")
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.ErrorIs(t, err, errEmptyResponse)
}

func TestExtract_APIErrorIsTransportError(t *testing.T) {
	g, _ := newTestExtractor(nil, genai.APIError{Code: 403, Message: "API key not valid", Status: "PERMISSION_DENIED"})

	_, err := g.Extract(context.Background(), []byte("img"), "image/png")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, 403, transportErr.StatusCode)
	assert.True(t, transportErr.IsAuth())
	assert.False(t, transportErr.Timeout)
}

func TestExtract_TimeoutIsTransportError(t *testing.T) {
	g, _ := newTestExtractor(nil, context.DeadlineExceeded)

	_, err := g.Extract(context.Background(), []byte("img"), "image/png")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.Timeout)
	assert.Contains(t, transportErr.Error(), "timed out")
}

func TestExtract_NoImage(t *testing.T) {
	g, m := newTestExtractor(textResponse(`{"items":[]}`), nil)
	_, err := g.Extract(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, ErrNoImage)
	assert.Empty(t, m.Calls)

	_, err = g.Extract(context.Background(), []byte{}, "image/png")
	assert.ErrorIs(t, err, ErrNoImage)
}

func TestNewGeminiExtractor_MissingKey(t *testing.T) {
	_, err := NewGeminiExtractor(context.Background(), GeminiOptions{APIKey: "  "})

	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Equal(t, "GEMINI_API_KEY", configErr.Setting)
}

func TestGenerateText(t *testing.T) {
	g, m := newTestExtractor(textResponse("Looks like a well stocked fridge."), nil)

	text, err := g.GenerateText(context.Background(), "Describe this", []byte("img"), "image/webp")
	require.NoError(t, err)
	assert.Equal(t, "Looks like a well stocked fridge.", text)

	args := m.Calls[0].Arguments
	parts := args.Get(2).([]*genai.Content)[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/webp", parts[0].InlineData.MIMEType)
	assert.Equal(t, "Describe this", parts[1].Text)
	assert.Nil(t, args.Get(3))
}

func TestGenerateText_PromptOnly(t *testing.T) {
	g, m := newTestExtractor(textResponse("hi"), nil)

	_, err := g.GenerateText(context.Background(), "Say hi", nil, "")
	require.NoError(t, err)

	parts := m.Calls[0].Arguments.Get(2).([]*genai.Content)[0].Parts
	require.Len(t, parts, 1)
	assert.Equal(t, "Say hi", parts[0].Text)
}

func TestExtractionPromptRules(t *testing.T) {
	assert.Contains(t, extractionPrompt, "empty items array")
	assert.Contains(t, extractionPrompt, "visible in the image")
	assert.Contains(t, extractionPrompt, `category "other"`)
	assert.Contains(t, extractionPrompt, "egg carton is quantity 1")
	assert.Contains(t, extractionPrompt, "factual prices")
	assert.NotContains(t, extractionPrompt, "\t", "prompt should be dedented")
}

func TestMIMETypeFromPath(t *testing.T) {
	assert.Equal(t, "image/jpeg", MIMETypeFromPath("fridge.JPG"))
	assert.Equal(t, "image/jpeg", MIMETypeFromPath("/tmp/a.jpeg"))
	assert.Equal(t, "image/webp", MIMETypeFromPath("shelf.webp"))
	assert.Equal(t, "image/heic", MIMETypeFromPath("IMG_0001.HEIC"))
	assert.Equal(t, DefaultMIMEType, MIMETypeFromPath("photo"))
}
