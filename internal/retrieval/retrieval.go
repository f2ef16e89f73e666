// Package retrieval provides the regulatory text collaborator: given a query it
// returns ranked chunks with their source identifiers.
package retrieval

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the retriever could not serve the query.
var ErrUnavailable = errors.New("retrieval unavailable")

// Chunk is a retrievable span of a source document.
type Chunk struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Retriever returns up to k chunks relevant to query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
}
