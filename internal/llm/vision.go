package llm

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/samratjha96/kitchen-lens/internal/fridge"
)

// DefaultMIMEType is assumed when a caller does not say what the image is.
const DefaultMIMEType = "image/png"

// Usage contains token usage and cost information.
type Usage struct {
	InputTokens  int64   `json:"inputTokens"`
	OutputTokens int64   `json:"outputTokens"`
	TotalTokens  int64   `json:"totalTokens"`
	CostUSD      float64 `json:"costUSD"`
}

// ExtractionResult contains the validated analysis and usage information.
type ExtractionResult struct {
	Analysis *fridge.Analysis
	Usage    Usage
	// Cached is true when the result came from the result cache.
	Cached bool
}

// Extractor turns a photo of a fridge into a validated inventory.
type Extractor interface {
	// Extract issues one model request for the image. Failures are one of
	// *TransportError, *ParseError or *SchemaValidationError, or ErrNoImage
	// when imageData is empty.
	Extract(ctx context.Context, imageData []byte, mimeType string) (*ExtractionResult, error)
}

// TextGenerator answers a free-form prompt, optionally about an image.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, imageData []byte, mimeType string) (string, error)
}

// MIMETypeFromPath guesses an image MIME type from the file extension.
func MIMETypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return DefaultMIMEType
	}
}
