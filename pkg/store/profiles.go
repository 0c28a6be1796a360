package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// ProfileStore persists BusinessProfile rows (§3).
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore { return &ProfileStore{pool: pool} }

const profileColumns = `user_id, narrative, sectors, focus_areas, revenue_band, team_size, geographic_focus, resource_constraints, strategic_goals, vector_namespace, embeddings_generated_at, created_at, updated_at`

// Get returns a user's profile, or NOT_FOUND if never created.
func (s *ProfileStore) Get(ctx context.Context, userID uuid.UUID) (*BusinessProfile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM business_profiles WHERE user_id = $1`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, "business profile not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "querying profile", err)
	}
	return p, nil
}

// Upsert creates or replaces a profile (§6 PUT /api/business-profile).
func (s *ProfileStore) Upsert(ctx context.Context, p *BusinessProfile) error {
	rc, err := json.Marshal(p.ResourceConstraints)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "marshalling resource constraints", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO business_profiles (user_id, narrative, sectors, focus_areas, revenue_band, team_size, geographic_focus, resource_constraints, strategic_goals, vector_namespace)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (user_id) DO UPDATE SET
			narrative = EXCLUDED.narrative,
			sectors = EXCLUDED.sectors,
			focus_areas = EXCLUDED.focus_areas,
			revenue_band = EXCLUDED.revenue_band,
			team_size = EXCLUDED.team_size,
			geographic_focus = EXCLUDED.geographic_focus,
			resource_constraints = EXCLUDED.resource_constraints,
			strategic_goals = EXCLUDED.strategic_goals,
			vector_namespace = EXCLUDED.vector_namespace,
			updated_at = now()`,
		p.UserID, p.Narrative, p.Sectors, p.FocusAreas, p.RevenueBand, p.TeamSize, p.GeographicFocus, rc, p.StrategicGoals, p.Namespace())
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "upserting profile", err)
	}
	return nil
}

// MarkEmbeddingsGenerated records the §3 invariant timestamp once C8 has
// upserted at least one vector into the profile's namespace.
func (s *ProfileStore) MarkEmbeddingsGenerated(ctx context.Context, userID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE business_profiles SET embeddings_generated_at = $2, updated_at = now() WHERE user_id = $1`, userID, at)
	return err
}

func scanProfile(row rowScanner) (*BusinessProfile, error) {
	var p BusinessProfile
	var rc []byte
	err := row.Scan(&p.UserID, &p.Narrative, &p.Sectors, &p.FocusAreas, &p.RevenueBand, &p.TeamSize,
		&p.GeographicFocus, &rc, &p.StrategicGoals, &p.VectorNamespace, &p.EmbeddingsGeneratedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(rc) > 0 {
		_ = json.Unmarshal(rc, &p.ResourceConstraints)
	}
	return &p, nil
}
