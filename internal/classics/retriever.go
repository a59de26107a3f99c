// Package classics retrieves grounding passages from the embedded corpus
// of classical texts. The query is embedded once and searched against
// each source independently so a slow or failing source never blocks the
// others; the LLM prompt tolerates an empty context.
package classics

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/haneul-labs/saju-engine/internal/llm"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

const (
	// DefaultTopK chunks per source; three sources means at most nine
	// passages of context.
	DefaultTopK = 3
	// MinSimilarity below which a chunk is noise, not grounding.
	MinSimilarity = 0.3
)

// Sources are the three corpus identifiers.
var Sources = []string{"A", "B", "C"}

// SearchStore runs a similarity search over one source's chunks.
type SearchStore interface {
	SearchChunks(ctx context.Context, source string, embedding []float32, k int, minScore float64) ([]models.ClassicsChunk, error)
}

// Retriever embeds queries and fans searches out per source.
type Retriever struct {
	embedder llm.Embedder
	store    SearchStore
	topK     int
}

// NewRetriever wires an embedder to a chunk store.
func NewRetriever(embedder llm.Embedder, store SearchStore) *Retriever {
	return &Retriever{embedder: embedder, store: store, topK: DefaultTopK}
}

// Retrieve returns the best chunks per source for a query, best first
// within each source. Partial failures degrade to whatever succeeded; a
// failed embedding degrades to nothing at all.
func (r *Retriever) Retrieve(ctx context.Context, query string) []models.ClassicsChunk {
	if r == nil || r.embedder == nil || r.store == nil {
		return nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		log.Warn().Err(err).Msg("classics query embedding failed, serving without context")
		return nil
	}

	var mu sync.Mutex
	var out []models.ClassicsChunk
	g, ctx := errgroup.WithContext(ctx)
	for _, source := range Sources {
		g.Go(func() error {
			chunks, err := r.store.SearchChunks(ctx, source, vec, r.topK, MinSimilarity)
			if err != nil {
				// Degrade per source; never fail the group.
				log.Warn().Err(err).Str("source", source).Msg("classics search failed")
				return nil
			}
			mu.Lock()
			out = append(out, chunks...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Score > out[j].Score
	})
	return out
}
