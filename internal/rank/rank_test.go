package rank

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DAMG7250-Team1/reportgen/internal/chunker"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
)

type fakeEmbedder struct {
	vecs  [][]float32
	err   error
	calls int
	got   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.got = texts
	return f.vecs, f.err
}

func chunks(texts ...string) []chunker.Chunk {
	out := make([]chunker.Chunk, len(texts))
	for i, t := range texts {
		out[i] = chunker.Chunk{Index: i, Text: t}
	}
	return out
}

func TestRank_OrdersByScore(t *testing.T) {
	emb := &fakeEmbedder{vecs: [][]float32{
		{0, 1}, // orthogonal
		{1, 0}, // identical
		{1, 1}, // 45 degrees
		{1, 0}, // query
	}}
	r := New(emb, nil)

	got, err := r.Rank(context.Background(), chunks("a", "b", "c"), "q", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 1 {
		t.Errorf("expected one batched embed call, got %d", emb.calls)
	}
	if len(emb.got) != 4 || emb.got[3] != "q" {
		t.Errorf("expected chunks then query in batch, got %v", emb.got)
	}
	order := []string{got[0].Chunk.Text, got[1].Chunk.Text, got[2].Chunk.Text}
	if order[0] != "b" || order[1] != "c" || order[2] != "a" {
		t.Errorf("unexpected order %v", order)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not descending at %d", i)
		}
	}
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	emb := &fakeEmbedder{vecs: [][]float32{{1, 0}, {1, 0}, {1, 0}, {1, 0}}}
	got, err := New(emb, nil).Rank(context.Background(), chunks("x", "y", "z"), "q", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, s := range got {
		if s.Chunk.Index != i {
			t.Errorf("tie at %d reordered to chunk %d", i, s.Chunk.Index)
		}
	}
}

func TestRank_TopK(t *testing.T) {
	emb := &fakeEmbedder{vecs: [][]float32{{1, 0}, {0, 1}, {1, 1}, {1, 0}}}
	r := New(emb, nil)

	got, err := r.Rank(context.Background(), chunks("a", "b", "c"), "q", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}

	got, _ = r.Rank(context.Background(), chunks("a", "b", "c"), "q", 10)
	if len(got) != 3 {
		t.Errorf("topK larger than input should return all, got %d", len(got))
	}
}

func TestRank_EmptyMakesNoCall(t *testing.T) {
	emb := &fakeEmbedder{}
	got, err := New(emb, nil).Rank(context.Background(), nil, "q", 3)
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
	if emb.calls != 0 {
		t.Errorf("expected no embed call, got %d", emb.calls)
	}
}

func TestRank_EmbeddingFailure(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("service down")}
	_, err := New(emb, nil).Rank(context.Background(), chunks("a"), "q", 0)
	if !llm.IsEmbeddingFailure(err) {
		t.Fatalf("expected EmbeddingServiceError, got %v", err)
	}
}

func TestRank_WrongVectorCount(t *testing.T) {
	emb := &fakeEmbedder{vecs: [][]float32{{1}}}
	_, err := New(emb, nil).Rank(context.Background(), chunks("a", "b"), "q", 0)
	if !llm.IsEmbeddingFailure(err) {
		t.Fatalf("expected EmbeddingServiceError, got %v", err)
	}
}

func TestCosine(t *testing.T) {
	if got := Cosine([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-6 {
		t.Errorf("identical vectors: expected ~1, got %f", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors: expected 0, got %f", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{0, 0}); got != 0 || math.IsNaN(got) {
		t.Errorf("zero vectors: expected 0, got %f", got)
	}
}
