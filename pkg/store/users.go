package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// UserStore persists User rows (§3 User, §4.3).
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore { return &UserStore{pool: pool} }

// GetOrCreateBySubject implements "created on first authenticated
// request" (§3 User lifecycle).
func (s *UserStore) GetOrCreateBySubject(ctx context.Context, subject string) (*User, error) {
	u, err := s.getBySubject(ctx, subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Wrap(apperrors.KindInternal, "querying user", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (external_subject) VALUES ($1)
		ON CONFLICT (external_subject) DO UPDATE SET external_subject = EXCLUDED.external_subject
		RETURNING `+userColumns, subject)
	return scanUser(row)
}

func (s *UserStore) getBySubject(ctx context.Context, subject string) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_subject = $1`, subject)
	return scanUser(row)
}

func (s *UserStore) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, "user not found")
	}
	return u, err
}

// IncrementSearchUsage atomically increments searches_used if under limit
// (§8 atomic-quota property: "never exceeds searches_limit at the moment
// any handler returns 2xx"). Returns apperrors KindQuota if at limit.
func (s *UserStore) IncrementSearchUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET searches_used = searches_used + 1, updated_at = now()
		WHERE id = $1 AND searches_used < searches_limit AND NOT deactivated`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "incrementing search usage", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindQuota, "Monthly search limit reached")
	}
	return nil
}

// RollbackSearchUsage reverses IncrementSearchUsage on downstream failure
// (§4.8 "increment-then-act, rollback on failure" applies analogously to
// search quota).
func (s *UserStore) RollbackSearchUsage(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET searches_used = GREATEST(searches_used - 1, 0), updated_at = now() WHERE id = $1`, id)
	return err
}

// IncrementApplicationUsage is the §4.8 "applications-per-month quota"
// atomic increment-then-act guard.
func (s *UserStore) IncrementApplicationUsage(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET applications_used = applications_used + 1, updated_at = now()
		WHERE id = $1 AND applications_used < applications_limit AND NOT deactivated`, id)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "incrementing application usage", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindQuota, "Monthly application generation limit reached")
	}
	return nil
}

func (s *UserStore) RollbackApplicationUsage(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET applications_used = GREATEST(applications_used - 1, 0), updated_at = now() WHERE id = $1`, id)
	return err
}

// ResetBillingPeriod zeroes usage counters for active users whose billing
// period started at least 30 days before now. It has no caller in this
// repository.
func (s *UserStore) ResetBillingPeriod(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET searches_used = 0, applications_used = 0, billing_period_start = $1, updated_at = $1
		WHERE billing_period_start <= $1 - interval '30 days' AND NOT deactivated`, now)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "resetting billing period", err)
	}
	return tag.RowsAffected(), nil
}

// Deactivate soft-deactivates a user (§3 "soft-deactivated via flag").
func (s *UserStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET deactivated = true, updated_at = now() WHERE id = $1`, id)
	return err
}

// Delete cascade-deletes a user and all owned rows (§3 "cascade deletes
// all owned rows"); the FK constraints carry the cascade.
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// ListActive returns all non-deactivated user ids, consumed by the
// scheduler's periodic enqueue tick (§4.9).
func (s *UserStore) ListActive(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE NOT deactivated AND id != $1`, SystemUserID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing active users", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const userColumns = `id, external_subject, subscription_tier, searches_used, searches_limit, applications_used, applications_limit, billing_period_start, deactivated, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalSubject, &u.SubscriptionTier, &u.SearchesUsed, &u.SearchesLimit,
		&u.ApplicationsUsed, &u.ApplicationsLimit, &u.BillingPeriodStart, &u.Deactivated, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
