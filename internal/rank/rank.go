// Package rank orders text chunks by embedding similarity to a query.
package rank

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/DAMG7250-Team1/reportgen/internal/chunker"
	"github.com/DAMG7250-Team1/reportgen/internal/llm"
)

// epsilon keeps cosine similarity finite for zero vectors.
const epsilon = 1e-10

// Scored is a chunk with its similarity to the query.
type Scored struct {
	Chunk chunker.Chunk
	Score float64
}

// Ranker scores chunks against a query with a single batched embedding call.
type Ranker struct {
	embedder llm.Embedder
	log      *slog.Logger
}

func New(embedder llm.Embedder, log *slog.Logger) *Ranker {
	if log == nil {
		log = slog.Default()
	}
	return &Ranker{embedder: embedder, log: log}
}

// Rank returns chunks ordered by descending similarity to query. Ties keep
// input order. topK <= 0 returns every chunk. Embedding failures are
// reported as *llm.EmbeddingServiceError.
func (r *Ranker) Rank(ctx context.Context, chunks []chunker.Chunk, query string, topK int) ([]Scored, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(chunks)+1)
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	texts = append(texts, query)

	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		if llm.IsEmbeddingFailure(err) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &llm.EmbeddingServiceError{Err: err}
	}
	if len(vecs) != len(texts) {
		return nil, &llm.EmbeddingServiceError{Err: fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))}
	}

	qv := vecs[len(vecs)-1]
	scored := make([]Scored, len(chunks))
	for i, c := range chunks {
		scored[i] = Scored{Chunk: c, Score: Cosine(vecs[i], qv)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if topK > 0 && topK < len(scored) {
		scored = scored[:topK]
	}
	r.log.Debug("ranked chunks", "chunks", len(chunks), "kept", len(scored))
	return scored, nil
}

// Chunks strips scores, keeping rank order.
func Chunks(scored []Scored) []chunker.Chunk {
	out := make([]chunker.Chunk, len(scored))
	for i, s := range scored {
		out[i] = s.Chunk
	}
	return out
}

// Cosine returns a.b / (|a||b| + epsilon). Vectors of unequal length are
// compared over their common prefix.
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + epsilon)
}
