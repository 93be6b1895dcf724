// Package splitter extracts text from uploaded files and cuts it into
// overlapping chunks.
package splitter

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"rag-pipeline/internal/domain"
	"rag-pipeline/internal/domain/model"
	"rag-pipeline/internal/domain/ports/adapter"
)

var _ adapter.DocumentSplitter = (*DocumentSplitter)(nil)

type DocumentSplitter struct {
	text *Recursive
}

func New(chunkSize, overlap int) *DocumentSplitter {
	return &DocumentSplitter{text: NewRecursive(chunkSize, overlap)}
}

// Split extracts text by extension and chunks it. A document with no text
// after extraction is a validation error.
func (d *DocumentSplitter) Split(ctx context.Context, filename string, data []byte) ([]model.Chunk, error) {
	content, err := Extract(filename, data)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s has no text content", domain.ErrInvalidArgument, filename)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Base(filename)
	pieces := d.text.SplitText(content)
	chunks := make([]model.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, model.Chunk{
			Text:  p,
			Index: i,
			Metadata: map[string]string{
				"source": base,
				"chunk":  strconv.Itoa(i),
			},
		})
	}
	return chunks, nil
}
