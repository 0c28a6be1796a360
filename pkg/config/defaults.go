package config

import "time"

// Defaults groups system-wide numeric/timeout defaults that are not large
// enough to warrant their own document, mirroring the teacher's
// `Defaults` struct shape.
type Defaults struct {
	// ChunkMaxTokens bounds each research-agent chunk query (§4.5 step 2).
	ChunkMaxTokens int `yaml:"chunk_max_tokens"`

	// ChunkConcurrency bounds in-flight chunk queries per search run
	// (§4.5 step 2, default 4).
	ChunkConcurrency int `yaml:"chunk_concurrency"`

	// MaxChunksPerRun caps the search plan cartesian product (§4.5 step 1,
	// default 16 = 4 focus areas x 4 geo tiers).
	MaxChunksPerRun int `yaml:"max_chunks_per_run"`

	// RefineMaxTokens bounds the optional refinement pass (§4.5 step 4).
	RefineMaxTokens int `yaml:"refine_max_tokens"`

	// StalenessThreshold is the staleness age (§4.5 "Freshness", default
	// 60d). No component reads this field.
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`

	// StalenessCompositeMultiplier is the stale-composite factor (§4.6,
	// default 0.9). No component reads this field; scoring.Composite
	// applies the scoring.StaleMultiplier constant.
	StalenessCompositeMultiplier float64 `yaml:"staleness_composite_multiplier"`

	// FuzzyTitleThreshold is the fuzzy-title dedup ratio (§4.7, default
	// 0.85). No component reads this field; pkg/dedup applies its own
	// FuzzyTitleThreshold constant.
	FuzzyTitleThreshold float64 `yaml:"fuzzy_title_threshold"`

	// RAGTopK is the number of profile chunks retrieved per application
	// draft (§4.8, default 5).
	RAGTopK int `yaml:"rag_top_k"`

	// RAGChunkSize / RAGChunkOverlap control narrative chunking (§4.8,
	// defaults 500/50 characters).
	RAGChunkSize    int `yaml:"rag_chunk_size"`
	RAGChunkOverlap int `yaml:"rag_chunk_overlap"`

	// EmbeddingDimension is the fixed per-model vector dimension (§4.4,
	// 1536 or 3072 depending on the wired embedding adapter).
	EmbeddingDimension int `yaml:"embedding_dimension"`
}

// DefaultDefaults returns the built-in system defaults.
func DefaultDefaults() *Defaults {
	return &Defaults{
		ChunkMaxTokens:               2000,
		ChunkConcurrency:             4,
		MaxChunksPerRun:              16,
		RefineMaxTokens:              1500,
		StalenessThreshold:           60 * 24 * time.Hour,
		StalenessCompositeMultiplier: 0.9,
		FuzzyTitleThreshold:          0.85,
		RAGTopK:                      5,
		RAGChunkSize:                 500,
		RAGChunkOverlap:              50,
		EmbeddingDimension:           1536,
	}
}
