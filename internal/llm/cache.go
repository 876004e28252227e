package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/samratjha96/kitchen-lens/internal/fridge"
	"github.com/samratjha96/kitchen-lens/internal/storage"
)

const cacheKeyPrefix = "vision-cache:"

// CachedExtractor wraps an Extractor with a result cache keyed by image hash.
type CachedExtractor struct {
	inner   Extractor
	backend storage.Backend
}

// NewCachedExtractor creates a cached extractor.
func NewCachedExtractor(inner Extractor, backend storage.Backend) *CachedExtractor {
	return &CachedExtractor{inner: inner, backend: backend}
}

// hashImage creates a SHA256 hash from the MIME type and image data.
// The length prefix keeps ("a", "bc") and ("ab", "c") apart.
func hashImage(mimeType string, imageData []byte) string {
	h := sha256.New()
	binary.Write(h, binary.LittleEndian, int64(len(mimeType)))
	h.Write([]byte(mimeType))
	h.Write(imageData)
	return hex.EncodeToString(h.Sum(nil))
}

// Extract implements the Extractor interface with caching.
func (c *CachedExtractor) Extract(ctx context.Context, imageData []byte, mimeType string) (*ExtractionResult, error) {
	if mimeType == "" {
		mimeType = DefaultMIMEType
	}
	hash := hashImage(mimeType, imageData)
	key := cacheKeyPrefix + hash

	if cached := c.lookup(ctx, key); cached != nil {
		log.Debug().Str("hash", hash[:16]).Msg("vision cache hit")
		return &ExtractionResult{Analysis: cached, Cached: true}, nil
	}

	result, err := c.inner.Extract(ctx, imageData, mimeType)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(result.Analysis)
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode vision result for cache")
		return result, nil
	}
	if err := c.backend.Set(ctx, key, data); err != nil {
		log.Warn().Err(err).Msg("failed to cache vision result")
	} else {
		log.Debug().Str("hash", hash[:16]).Msg("cached vision result")
	}

	return result, nil
}

// lookup returns the cached analysis, or nil on a miss. Entries that no
// longer pass validation count as misses.
func (c *CachedExtractor) lookup(ctx context.Context, key string) *fridge.Analysis {
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to check vision cache")
		}
		return nil
	}

	var analysis fridge.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		log.Warn().Err(err).Msg("ignoring invalid vision cache entry")
		return nil
	}
	return &analysis
}

// TextGeneratorOf extracts a TextGenerator from an Extractor, unwrapping
// CachedExtractor layers. It returns nil when none is found.
func TextGeneratorOf(e Extractor) TextGenerator {
	curr := e
	for {
		switch t := curr.(type) {
		case *CachedExtractor:
			curr = t.inner
		case TextGenerator:
			return t
		default:
			return nil
		}
	}
}
