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

// SearchRunStore persists SearchRun rows (§3, §4.5, §4.9).
type SearchRunStore struct {
	pool *pgxpool.Pool
}

func NewSearchRunStore(pool *pgxpool.Pool) *SearchRunStore { return &SearchRunStore{pool: pool} }

const searchRunColumns = `id, user_id, trigger_type, status, start_ts, end_ts, duration_ms, grants_found, sources_searched, api_calls_made, error_kind, error_message, error_details, query, created_at`

// Create starts a new IN_PROGRESS run (§3 SearchRun).
func (s *SearchRunStore) Create(ctx context.Context, userID *uuid.UUID, trigger TriggerType, query map[string]any) (*SearchRun, error) {
	q, _ := json.Marshal(query)
	run := &SearchRun{UserID: userID, TriggerType: trigger, Status: RunInProgress, StartTS: time.Now(), Query: query}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO search_runs (user_id, trigger_type, status, start_ts, query)
		VALUES ($1,$2,$3,$4,$5) RETURNING id, created_at`,
		userID, string(trigger), string(RunInProgress), run.StartTS, q)
	if err := row.Scan(&run.ID, &run.CreatedAt); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "creating search run", err)
	}
	return run, nil
}

// Get fetches a run by id.
func (s *SearchRunStore) Get(ctx context.Context, id uuid.UUID) (*SearchRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+searchRunColumns+` FROM search_runs WHERE id = $1`, id)
	r, err := scanSearchRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, "search run not found")
	}
	return r, err
}

// Complete transitions a run to a terminal state, computing duration
// (§8 "end_ts >= start_ts and duration = end_ts - start_ts").
func (s *SearchRunStore) Complete(ctx context.Context, run *SearchRun) error {
	end := time.Now()
	if end.Before(run.StartTS) {
		end = run.StartTS
	}
	dur := end.Sub(run.StartTS).Milliseconds()
	details, _ := json.Marshal(run.ErrorDetails)

	_, err := s.pool.Exec(ctx, `
		UPDATE search_runs SET status=$2, end_ts=$3, duration_ms=$4, grants_found=$5, sources_searched=$6,
			api_calls_made=$7, error_kind=$8, error_message=$9, error_details=$10
		WHERE id = $1`,
		run.ID, string(run.Status), end, dur, run.GrantsFound, run.SourcesSearched, run.APICallsMade,
		nullStr(run.ErrorKind), nullStr(run.ErrorMessage), details)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "completing search run", err)
	}
	run.EndTS = &end
	run.DurationMS = &dur
	return nil
}

// FailTimedOut transitions every IN_PROGRESS run older than hardTimeout
// to FAILED. It has no caller in this repository: neither the health
// monitor nor the scheduler runs this scan.
func (s *SearchRunStore) FailTimedOut(ctx context.Context, hardTimeout time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE search_runs SET status = 'FAILED', end_ts = now(), duration_ms = EXTRACT(EPOCH FROM (now() - start_ts)) * 1000,
			error_kind = 'TRANSIENT', error_message = 'run exceeded hard timeout'
		WHERE status = 'IN_PROGRESS' AND start_ts < now() - $1::interval`,
		hardTimeout.String())
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "failing timed-out runs", err)
	}
	return tag.RowsAffected(), nil
}

// GetInProgressForUser returns the user's newest IN_PROGRESS run, or nil
// if there is none, supporting the §4.9 "at most one search job may be
// in-flight per user" coalescing check.
func (s *SearchRunStore) GetInProgressForUser(ctx context.Context, userID uuid.UUID) (*SearchRun, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+searchRunColumns+` FROM search_runs WHERE user_id = $1 AND status = 'IN_PROGRESS' ORDER BY start_ts DESC LIMIT 1`, userID)
	r, err := scanSearchRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListRecentForUser returns a user's runs created at or after since,
// newest first. It has no caller in this repository.
func (s *SearchRunStore) ListRecentForUser(ctx context.Context, userID uuid.UUID, since time.Time) ([]*SearchRun, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+searchRunColumns+` FROM search_runs WHERE user_id = $1 AND created_at >= $2 ORDER BY created_at DESC`, userID, since)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing recent runs", err)
	}
	defer rows.Close()
	var out []*SearchRun
	for rows.Next() {
		r, err := scanSearchRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanSearchRun(row rowScanner) (*SearchRun, error) {
	var r SearchRun
	var userID *uuid.UUID
	var errKind, errMsg *string
	var details, query []byte
	err := row.Scan(&r.ID, &userID, &r.TriggerType, &r.Status, &r.StartTS, &r.EndTS, &r.DurationMS,
		&r.GrantsFound, &r.SourcesSearched, &r.APICallsMade, &errKind, &errMsg, &details, &query, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.UserID = userID
	if errKind != nil {
		r.ErrorKind = *errKind
	}
	if errMsg != nil {
		r.ErrorMessage = *errMsg
	}
	if len(details) > 0 {
		_ = json.Unmarshal(details, &r.ErrorDetails)
	}
	if len(query) > 0 {
		_ = json.Unmarshal(query, &r.Query)
	}
	return &r, nil
}
