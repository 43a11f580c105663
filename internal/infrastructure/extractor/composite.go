// Package extractor routes text extraction to a format-specific backend
// based on the document's file extension.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/akozyrev/factstack/internal/core/domain"
	"github.com/akozyrev/factstack/internal/core/ports"
)

type Composite struct {
	byExtension map[string]ports.TextExtractor
}

// NewComposite maps lowercase extensions (with the leading dot) to backends.
func NewComposite(byExtension map[string]ports.TextExtractor) *Composite {
	return &Composite{byExtension: byExtension}
}

func (c *Composite) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	backend, ok := c.byExtension[ext]
	if !ok {
		return "", domain.WrapError(domain.ErrNotSupported, "extractor.Extract",
			fmt.Errorf("no extractor for %q", ext))
	}
	return backend.Extract(ctx, doc)
}
