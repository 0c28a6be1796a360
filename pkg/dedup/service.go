package dedup

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// Service runs the three §4.7 matching strategies and the merge-or-insert
// decision for one candidate grant, inside a single transaction.
type Service struct {
	grants *store.GrantStore
}

// New constructs a dedup Service over the Grant Store.
func New(grants *store.GrantStore) *Service {
	return &Service{grants: grants}
}

// Outcome records which path a candidate took, surfaced in SearchRun
// counters.
type Outcome struct {
	Inserted bool
	Merged   bool
	GrantID  uuid.UUID
	Strategy string // "url", "title_deadline", "fuzzy_title", or "" on insert
}

// UpsertCandidate runs the whole §4.7 algorithm for one candidate grant
// against a user's existing grants, inside one transaction.
func (s *Service) UpsertCandidate(ctx context.Context, userID uuid.UUID, candidate *store.Grant, now time.Time) (Outcome, error) {
	candidate.UserID = userID
	candidate.SourceURLNormalized = NormalizeURL(candidate.SourceURL)
	candidate.RetrievedAt = now
	candidate.FirstFoundAt = now

	var outcome Outcome
	err := s.grants.WithTx(ctx, func(tx *store.GrantStore) error {
		if existing, err := tx.FindByNormalizedURL(ctx, userID, candidate.SourceURLNormalized); err == nil {
			return mergeAndSave(ctx, tx, existing, candidate, now, "url", &outcome)
		}

		normTitle := NormalizeTitle(candidate.Title)
		if existing, err := tx.FindByTitleAndDeadline(ctx, userID, normTitle, candidate.Deadline); err == nil {
			return mergeAndSave(ctx, tx, existing, candidate, now, "title_deadline", &outcome)
		}

		titles, err := tx.ListTitles(ctx, userID)
		if err != nil {
			return err
		}
		if matchID, ratio := BestFuzzyMatch(candidate.Title, titles); ratio > 0 {
			existing, err := tx.Get(ctx, userID, matchID)
			if err != nil {
				return err
			}
			return mergeAndSave(ctx, tx, existing, candidate, now, "fuzzy_title", &outcome)
		}

		if err := tx.Insert(ctx, candidate); err != nil {
			return err
		}
		outcome = Outcome{Inserted: true, GrantID: candidate.ID}
		return nil
	})
	return outcome, err
}

func mergeAndSave(ctx context.Context, tx *store.GrantStore, existing, incoming *store.Grant, now time.Time, strategy string, outcome *Outcome) error {
	merged := Merge(existing, incoming, now)
	if err := tx.Update(ctx, merged); err != nil {
		return err
	}
	*outcome = Outcome{Merged: true, GrantID: merged.ID, Strategy: strategy}
	return nil
}
