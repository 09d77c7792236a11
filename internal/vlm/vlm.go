// Package vlm wraps the vision-language model that converts a PDF page into
// DocTags markup.
package vlm

import (
	"context"
	_ "embed"
	"image"
	"strings"
)

// Converter turns the rendered image of one page (0-based) into DocTags
// markup. Callers render once and pass the same image to every attempt.
type Converter interface {
	ConvertPage(ctx context.Context, img image.Image, page int) (string, error)
}

//go:embed mock_doctags.xml
var mockDocTags string

// MockDocTags returns the document the mock model answers with.
func MockDocTags() string {
	return strings.TrimSpace(mockDocTags)
}

// MockClient simulates the model: it answers every page of every input with
// the same financial report page.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) ConvertPage(ctx context.Context, img image.Image, page int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return MockDocTags(), nil
}
