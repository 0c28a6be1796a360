package dedup

import (
	"github.com/agext/levenshtein"
	"github.com/google/uuid"
)

// fuzzyParams mirrors the library's documented default case-insensitive
// configuration; built once since Params are immutable after construction.
var fuzzyParams = levenshtein.NewParams().ICase()

// FuzzyTitleThreshold is the §4.7 strategy 3 minimum ratio.
const FuzzyTitleThreshold = 0.85

// BestFuzzyMatch implements §4.7 strategy 3: "normalized Levenshtein
// ratio >= 0.85 against candidate titles indexed by user". titles maps
// existing grant id -> title. Returns the best-scoring id and its ratio,
// or a zero uuid and 0 if nothing reaches the threshold.
func BestFuzzyMatch(candidateTitle string, titles map[uuid.UUID]string) (uuid.UUID, float64) {
	normCandidate := NormalizeTitle(candidateTitle)
	var bestID uuid.UUID
	var bestScore float64
	for id, title := range titles {
		ratio := levenshtein.Similarity(normCandidate, NormalizeTitle(title), fuzzyParams)
		if ratio > bestScore {
			bestScore = ratio
			bestID = id
		}
	}
	if bestScore < FuzzyTitleThreshold {
		return uuid.UUID{}, 0
	}
	return bestID, bestScore
}
