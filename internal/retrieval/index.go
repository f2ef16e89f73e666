package retrieval

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/search"
)

// Index is an in-memory full-text index over chunked documents. It is built
// once at startup and is read-only afterwards, so it is safe for concurrent use.
type Index struct {
	bi     bleve.Index
	chunks []Chunk
	pos    map[string]int
	digest string
}

// indexed is the document bleve sees for a chunk. Both fields land in the
// composite _all field that match queries search.
type indexed struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// NewIndex chunks documents on blank lines and indexes the chunks with the
// English analyzer (lowercasing, stop words, stemming).
func NewIndex(docs []Document) (*Index, error) {
	mapping := bleve.NewIndexMapping()
	mapping.DefaultAnalyzer = en.AnalyzerName

	bi, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	idx := &Index{bi: bi, pos: make(map[string]int)}
	batch := bi.NewBatch()
	h := sha256.New()

	for _, doc := range docs {
		for n, content := range paragraphs(doc.Content) {
			c := Chunk{
				ID:       fmt.Sprintf("%s#%d", doc.ID, n),
				Source:   doc.Source,
				Title:    doc.Title,
				Content:  content,
				Metadata: maps.Clone(doc.Metadata),
			}
			if err := batch.Index(c.ID, indexed{Title: c.Title, Content: c.Content}); err != nil {
				bi.Close()
				return nil, fmt.Errorf("index chunk %s: %w", c.ID, err)
			}

			idx.pos[c.ID] = len(idx.chunks)
			idx.chunks = append(idx.chunks, c)

			h.Write([]byte(c.ID))
			h.Write([]byte{0})
			h.Write([]byte(c.Content))
			h.Write([]byte{0})
		}
	}

	if err := bi.Batch(batch); err != nil {
		bi.Close()
		return nil, fmt.Errorf("index corpus: %w", err)
	}

	idx.digest = hex.EncodeToString(h.Sum(nil))
	return idx, nil
}

// Len returns the number of indexed chunks.
func (i *Index) Len() int { return len(i.chunks) }

// Digest identifies the indexed content. Caches key on it so a new corpus never serves stale chunks.
func (i *Index) Digest() string { return i.digest }

// Close releases the underlying search index.
func (i *Index) Close() error { return i.bi.Close() }

// Retrieve runs query as a match query over chunk titles and content and
// returns the k best chunks. Equal scores keep corpus order. Chunks sharing
// no analyzed term with the query are never returned.
func (i *Index) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if k <= 0 || len(i.chunks) == 0 {
		return []Chunk{}, nil
	}

	// Every hit is collected so the tie-break sees the whole result before
	// it is cut to k.
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), len(i.chunks), 0, false)
	res, err := i.bi.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	hits := slices.Clone(res.Hits)
	slices.SortFunc(hits, func(a, b *search.DocumentMatch) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(i.pos[a.ID], i.pos[b.ID])
	})

	out := make([]Chunk, 0, min(k, len(hits)))
	for _, hit := range hits[:min(k, len(hits))] {
		out = append(out, i.chunks[i.pos[hit.ID]])
	}
	return out, nil
}

func paragraphs(content string) []string {
	var out []string
	for p := range strings.SplitSeq(strings.ReplaceAll(content, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hashQuery(q string) string {
	sum := sha256.Sum256([]byte(q))
	return hex.EncodeToString(sum[:])
}
