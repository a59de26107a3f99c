package classics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/haneul-labs/saju-engine/pkg/models"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) { return s.vec, s.err }

type stubStore struct {
	bySource map[string][]models.ClassicsChunk
	failing  map[string]bool
}

func (s *stubStore) SearchChunks(_ context.Context, source string, _ []float32, k int, _ float64) ([]models.ClassicsChunk, error) {
	if s.failing[source] {
		return nil, errors.New("vector index unavailable")
	}
	chunks := s.bySource[source]
	if len(chunks) > k {
		chunks = chunks[:k]
	}
	return chunks, nil
}

func TestRetrievePartialFailureReturnsSurvivors(t *testing.T) {
	store := &stubStore{
		bySource: map[string][]models.ClassicsChunk{
			"A": {{Source: "A", Content: "갑목은 큰 나무다", Score: 0.9}},
			"B": {{Source: "B", Content: "재성은 내가 다스리는 것", Score: 0.8}},
			"C": {{Source: "C", Content: "충은 움직임이다", Score: 0.7}},
		},
		failing: map[string]bool{"B": true},
	}
	r := NewRetriever(&stubEmbedder{vec: []float32{1, 0}}, store)

	got := r.Retrieve(context.Background(), "재물운")
	assert.Len(t, got, 2)
	for _, c := range got {
		assert.NotEqual(t, "B", c.Source)
	}
}

func TestRetrieveEmbeddingFailureDegradesToNothing(t *testing.T) {
	r := NewRetriever(&stubEmbedder{err: errors.New("quota")}, &stubStore{})
	assert.Empty(t, r.Retrieve(context.Background(), "올해 운세"))
}

func TestRetrieveNilRetrieverIsSafe(t *testing.T) {
	var r *Retriever
	assert.Empty(t, r.Retrieve(context.Background(), "anything"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}), "mismatched lengths")
	assert.Equal(t, 0.0, Cosine(nil, nil))
}
