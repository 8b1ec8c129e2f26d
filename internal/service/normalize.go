package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hikevindiaz/link-ai-knowledge/internal/domain"
	"github.com/hikevindiaz/link-ai-knowledge/internal/storage"
)

const maxSnippetRunes = 200

// ErrMalformedContent marks a content item that can never normalize
// successfully, such as a file item without a storage key. Jobs for
// malformed content fail permanently instead of burning retries.
var ErrMalformedContent = errors.New("content item is malformed")

// TextExtractor extracts plain text from document bytes.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, mimeType, fileName string) (string, error)
}

// Normalizer converts each content variant into the canonical text that gets
// embedded. The output format per variant is fixed so reprocessing an item
// always produces the same embedding input.
type Normalizer struct {
	storage   storage.ObjectStorage
	extractor TextExtractor
}

// NewNormalizer creates a Normalizer.
// Parameters:
//   - store: object storage holding uploaded file bodies.
//   - extractor: document text extractor for file items.
// Returns:
//   - *Normalizer: normalizer instance.
func NewNormalizer(store storage.ObjectStorage, extractor TextExtractor) *Normalizer {
	return &Normalizer{
		storage:   store,
		extractor: extractor,
	}
}

// Normalize produces the canonical embedding text for a content item.
//   - text: the body as provided.
//   - qa: question and answer merged into one passage.
//   - website: a reference line carrying the URL.
//   - file: the stored document downloaded and reduced to plain text.
//
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - item: content item to normalize.
// Returns:
//   - string: canonical text to embed.
//   - error: ErrMalformedContent for unfixable items, other errors for
//     transient failures (storage, extraction).
func (n *Normalizer) Normalize(ctx context.Context, item *domain.ContentItem) (string, error) {
	switch item.Type {
	case domain.ContentTypeText:
		if item.Text.Body == "" {
			return "", fmt.Errorf("%w: text item %s has no body", ErrMalformedContent, item.ID)
		}
		return item.Text.Body, nil

	case domain.ContentTypeQA:
		if item.QA.Question == "" && item.QA.Answer == "" {
			return "", fmt.Errorf("%w: qa item %s has no question or answer", ErrMalformedContent, item.ID)
		}
		return fmt.Sprintf("Question: %s\n\nAnswer: %s", item.QA.Question, item.QA.Answer), nil

	case domain.ContentTypeWebsite:
		if item.Website.URL == "" {
			return "", fmt.Errorf("%w: website item %s has no url", ErrMalformedContent, item.ID)
		}
		return fmt.Sprintf("Website reference: %s", item.Website.URL), nil

	case domain.ContentTypeFile:
		return n.normalizeFile(ctx, item)

	default:
		return "", fmt.Errorf("%w: unknown content type %q", ErrMalformedContent, item.Type)
	}
}

func (n *Normalizer) normalizeFile(ctx context.Context, item *domain.ContentItem) (string, error) {
	if item.File.StorageKey == "" {
		return "", fmt.Errorf("%w: file item %s has no storage key", ErrMalformedContent, item.ID)
	}

	reader, err := n.storage.Download(ctx, item.File.StorageKey)
	if err != nil {
		return "", fmt.Errorf("failed to download file %s: %w", item.File.StorageKey, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", item.File.StorageKey, err)
	}

	text, err := n.extractor.ExtractText(ctx, data, item.File.MimeType, item.File.FileName)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", item.File.FileName, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: file item %s extracted to empty text", ErrMalformedContent, item.ID)
	}
	return text, nil
}

// Snippet shortens normalized text for storage in the vector payload.
// Parameters:
//   - text: normalized text.
// Returns:
//   - string: leading portion of the text, whitespace-collapsed.
func Snippet(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	runes := []rune(cleaned)
	if len(runes) <= maxSnippetRunes {
		return cleaned
	}
	return string(runes[:maxSnippetRunes])
}
