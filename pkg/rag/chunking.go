// Package rag implements the RAG Application Generator (spec.md §4.8):
// narrative chunking, embedding + vector retrieval, and a six-section
// sequential LLM draft generation, grounded on langchaingo's textsplitter
// package for the chunking step.
package rag

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// Chunk is one narrative window ready for embedding.
type Chunk struct {
	ID   string
	Text string
}

// SplitNarrative windows a business profile's narrative into ~500
// character chunks with 50 character overlap, preserving sentence
// boundaries where possible (§4.8 "Chunking"). Chunk ids are derived from
// a content hash, so re-chunking identical text yields identical ids
// ("Chunking is idempotent: same narrative -> same chunk ids").
func SplitNarrative(narrative string, chunkSize, overlap int) ([]Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
	)
	parts, err := splitter.SplitText(narrative)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "splitting narrative", err)
	}
	chunks := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, Chunk{ID: chunkID(p), Text: p})
	}
	return chunks, nil
}

func chunkID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}
