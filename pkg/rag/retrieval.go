package rag

import (
	"context"

	"github.com/codeready-toolchain/grantfinder/pkg/adapters"
	"github.com/codeready-toolchain/grantfinder/pkg/breaker"
	"github.com/codeready-toolchain/grantfinder/pkg/vectorindex"
)

// Retriever embeds narrative chunks and answers top-k queries scoped to a
// user's namespace (§4.8 "Retrieval").
type Retriever struct {
	embedder adapters.Embedder
	cb       *breaker.Breaker
	index    *vectorindex.Index
}

// New constructs a Retriever. cb wraps the vector store's own breaker
// (§4.2); embedding calls go straight to embedder and are not wrapped by
// any breaker.
func New(embedder adapters.Embedder, cb *breaker.Breaker, index *vectorindex.Index) *Retriever {
	return &Retriever{embedder: embedder, cb: cb, index: index}
}

// IndexNarrative embeds and upserts every chunk of a narrative under
// namespace, preserving the idempotent chunk-id contract of §4.8.
func (r *Retriever) IndexNarrative(ctx context.Context, namespace, narrative string, chunkSize, overlap int) error {
	chunks, err := SplitNarrative(narrative, chunkSize, overlap)
	if err != nil {
		return err
	}
	vectors := make([]vectorindex.Vector, 0, len(chunks))
	for _, c := range chunks {
		emb, err := r.embedder.Embed(ctx, c.Text)
		if err != nil {
			return err
		}
		vectors = append(vectors, vectorindex.Vector{
			ID:       c.ID,
			Values:   emb,
			Metadata: map[string]any{"text": c.Text},
		})
	}
	return r.index.Upsert(ctx, namespace, vectors)
}

// RetrieveForGrant embeds (title + description + eligibility summary)
// and queries namespace for the top_k nearest chunks (§4.8 "Retrieval").
func (r *Retriever) RetrieveForGrant(ctx context.Context, namespace, title, description, eligibility string, topK int) ([]vectorindex.Match, error) {
	query := title + " " + description + " " + eligibility
	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	res, err := r.cb.Call(ctx, func(ctx context.Context) (any, error) {
		return r.index.Query(ctx, namespace, emb, topK)
	})
	if err != nil {
		return nil, err
	}
	matches, _ := res.Value.([]vectorindex.Match)
	return matches, nil
}
