package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
	"github.com/codeready-toolchain/grantfinder/pkg/scoring"
)

// pgxExecer is the subset of *pgxpool.Pool and pgx.Tx that GrantStore
// needs, letting every method run either directly against the pool or
// inside the single per-candidate transaction §4.3/§4.7 require.
type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// GrantStore persists Grant and Analysis rows (§3, §4.3, §4.7).
type GrantStore struct {
	pool *pgxpool.Pool
	db   pgxExecer
}

func NewGrantStore(pool *pgxpool.Pool) *GrantStore { return &GrantStore{pool: pool, db: pool} }

// Pool exposes the underlying pool so callers needing a raw transaction
// (e.g. across multiple repositories) can open one directly.
func (s *GrantStore) Pool() *pgxpool.Pool { return s.pool }

// WithTx runs fn against a GrantStore bound to a single transaction,
// committing on success and rolling back on error or panic. This is the
// transaction boundary the dedup+upsert contract requires: "the entire
// dedup+merge runs in one transaction per candidate" (§4.7).
func (s *GrantStore) WithTx(ctx context.Context, fn func(txStore *GrantStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "beginning transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txStore := &GrantStore{pool: s.pool, db: tx}
	if err := fn(txStore); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "committing transaction", err)
	}
	return nil
}

const grantColumns = `id, user_id, external_id, title, description, llm_summary, eligibility_summary, funder,
	funding_min, funding_max, funding_exact, funding_display, deadline, open_date, source_url, source_url_normalized,
	source_name, retrieved_at, first_found_at, sector, sub_sector, geographic_scope, keywords, project_categories,
	location_mentions, raw_source_data, enrichment_log, stale,
	score_sector, score_geo, score_operational, score_business, score_feasibility, score_strategic, overall_composite_score,
	record_status, created_at, updated_at`

// Get fetches one grant by id, scoped to user (§6 GET /api/grants/{id}).
func (s *GrantStore) Get(ctx context.Context, userID, id uuid.UUID) (*Grant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+grantColumns+` FROM grants WHERE id = $1 AND user_id = $2`, id, userID)
	g, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, "grant not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "querying grant", err)
	}
	return g, nil
}

// ListFilter captures the §6 GET /api/grants query parameters.
type ListFilter struct {
	MinScore       *float64
	DeadlineBefore *time.Time
	DeadlineAfter  *time.Time
	Category       string
	FundingMin     *float64
	FundingMax     *float64
	SearchText     string
	Limit          int
	Offset         int
}

// List returns a user's grants matching filter, newest-composite-first.
func (s *GrantStore) List(ctx context.Context, userID uuid.UUID, f ListFilter) ([]*Grant, error) {
	sqlStr := `SELECT ` + grantColumns + ` FROM grants WHERE user_id = $1`
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + itoa(len(args))
	}
	if f.MinScore != nil {
		sqlStr += " AND overall_composite_score >= " + arg(*f.MinScore)
	}
	if f.DeadlineBefore != nil {
		sqlStr += " AND deadline <= " + arg(*f.DeadlineBefore)
	}
	if f.DeadlineAfter != nil {
		sqlStr += " AND deadline >= " + arg(*f.DeadlineAfter)
	}
	if f.Category != "" {
		sqlStr += " AND " + arg(f.Category) + " = ANY(project_categories)"
	}
	if f.FundingMin != nil {
		sqlStr += " AND (funding_max IS NULL OR funding_max >= " + arg(*f.FundingMin) + ")"
	}
	if f.FundingMax != nil {
		sqlStr += " AND (funding_min IS NULL OR funding_min <= " + arg(*f.FundingMax) + ")"
	}
	if f.SearchText != "" {
		sqlStr += " AND to_tsvector('english', title || ' ' || description) @@ plainto_tsquery('english', " + arg(f.SearchText) + ")"
	}
	sqlStr += " ORDER BY overall_composite_score DESC, deadline ASC NULLS LAST, title ASC"
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	sqlStr += " LIMIT " + arg(limit) + " OFFSET " + arg(f.Offset)

	rows, err := s.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing grants", err)
	}
	defer rows.Close()

	var out []*Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// FindByNormalizedURL implements dedup strategy 1 (§4.7): exact URL match
// on normalized source_url.
func (s *GrantStore) FindByNormalizedURL(ctx context.Context, userID uuid.UUID, normalizedURL string) (*Grant, error) {
	if normalizedURL == "" {
		return nil, apperrors.New(apperrors.KindNotFound, "no url")
	}
	row := s.db.QueryRow(ctx, `SELECT `+grantColumns+` FROM grants WHERE user_id = $1 AND source_url_normalized = $2`, userID, normalizedURL)
	g, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, "no url match")
	}
	return g, err
}

// FindByTitleAndDeadline implements dedup strategy 2 (§4.7): case
// insensitive, whitespace-collapsed title equality AND same deadline.
func (s *GrantStore) FindByTitleAndDeadline(ctx context.Context, userID uuid.UUID, normalizedTitle string, deadline *time.Time) (*Grant, error) {
	if deadline == nil {
		return nil, apperrors.New(apperrors.KindNotFound, "no deadline")
	}
	row := s.db.QueryRow(ctx, `SELECT `+grantColumns+` FROM grants WHERE user_id = $1 AND lower(regexp_replace(title, '\s+', ' ', 'g')) = $2 AND deadline = $3`,
		userID, normalizedTitle, deadline)
	g, err := scanGrant(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, "no title+deadline match")
	}
	return g, err
}

// ListTitles returns (id, title) pairs for a user, the candidate pool
// dedup strategy 3 (§4.7 fuzzy title) ranks by Levenshtein ratio.
func (s *GrantStore) ListTitles(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id, title FROM grants WHERE user_id = $1`, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing titles", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var id uuid.UUID
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		out[id] = title
	}
	return out, rows.Err()
}

// Insert creates a new grant, recomputing the composite from its scores
// before writing (§3 invariant).
func (s *GrantStore) Insert(ctx context.Context, g *Grant) error {
	g.Scores.Composite = scoring.Composite(scoring.Vector(toScoringVector(g.Scores)), g.Stale)
	raw, _ := json.Marshal(g.RawSourceData)
	log, _ := json.Marshal(g.EnrichmentLog)

	row := s.db.QueryRow(ctx, `
		INSERT INTO grants (user_id, external_id, title, description, llm_summary, eligibility_summary, funder,
			funding_min, funding_max, funding_exact, funding_display, deadline, open_date, source_url, source_url_normalized,
			source_name, retrieved_at, first_found_at, sector, sub_sector, geographic_scope, keywords, project_categories,
			location_mentions, raw_source_data, enrichment_log, stale,
			score_sector, score_geo, score_operational, score_business, score_feasibility, score_strategic, overall_composite_score,
			record_status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35)
		RETURNING id`,
		g.UserID, g.ExternalID, g.Title, g.Description, g.LLMSummary, g.EligibilitySummary, g.Funder,
		g.FundingMin, g.FundingMax, g.FundingExact, g.FundingDisplay, g.Deadline, g.OpenDate, nullStr(g.SourceURL), nullStr(g.SourceURLNormalized),
		g.SourceName, g.RetrievedAt, g.FirstFoundAt, g.Sector, g.SubSector, g.GeographicScope, g.Keywords, g.ProjectCategories,
		g.LocationMentions, raw, log, g.Stale,
		g.Scores.Sector, g.Scores.Geo, g.Scores.Operational, g.Scores.Business, g.Scores.Feasibility, g.Scores.Strategic, g.Scores.Composite,
		string(g.RecordStatus))
	return row.Scan(&g.ID)
}

// Update persists all mutable fields of an existing grant, recomputing
// the composite (§3 invariant; §4.7 merge policy calls this after merge).
func (s *GrantStore) Update(ctx context.Context, g *Grant) error {
	g.Scores.Composite = scoring.Composite(scoring.Vector(toScoringVector(g.Scores)), g.Stale)
	raw, _ := json.Marshal(g.RawSourceData)
	log, _ := json.Marshal(g.EnrichmentLog)

	_, err := s.db.Exec(ctx, `
		UPDATE grants SET
			title=$2, description=$3, llm_summary=$4, eligibility_summary=$5, funder=$6,
			funding_min=$7, funding_max=$8, funding_exact=$9, funding_display=$10, deadline=$11, open_date=$12,
			source_url=$13, source_url_normalized=$14, source_name=$15, retrieved_at=$16,
			sector=$17, sub_sector=$18, geographic_scope=$19, keywords=$20, project_categories=$21, location_mentions=$22,
			raw_source_data=$23, enrichment_log=$24, stale=$25,
			score_sector=$26, score_geo=$27, score_operational=$28, score_business=$29, score_feasibility=$30, score_strategic=$31,
			overall_composite_score=$32, record_status=$33, updated_at=now()
		WHERE id=$1`,
		g.ID, g.Title, g.Description, g.LLMSummary, g.EligibilitySummary, g.Funder,
		g.FundingMin, g.FundingMax, g.FundingExact, g.FundingDisplay, g.Deadline, g.OpenDate,
		nullStr(g.SourceURL), nullStr(g.SourceURLNormalized), g.SourceName, g.RetrievedAt,
		g.Sector, g.SubSector, g.GeographicScope, g.Keywords, g.ProjectCategories, g.LocationMentions,
		raw, log, g.Stale,
		g.Scores.Sector, g.Scores.Geo, g.Scores.Operational, g.Scores.Business, g.Scores.Feasibility, g.Scores.Strategic,
		g.Scores.Composite, string(g.RecordStatus))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "updating grant", err)
	}
	return nil
}

// PromoteExpired implements the §3 invariant "grants with deadline
// earlier than (now - 30 days) are promoted to EXPIRED". days is the
// configured ExpireAfterDeadlineDays.
func (s *GrantStore) PromoteExpired(ctx context.Context, now time.Time, days int) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE grants SET record_status = 'EXPIRED', updated_at = $1
		WHERE record_status = 'ACTIVE' AND deadline IS NOT NULL AND deadline < ($1::date - make_interval(days => $2))`,
		now, days)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "promoting expired grants", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpiredOlderThan implements "grants in EXPIRED state older than
// 90 days are physically deleted" (§3).
func (s *GrantStore) DeleteExpiredOlderThan(ctx context.Context, now time.Time, days int) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM grants
		WHERE record_status = 'EXPIRED' AND deadline IS NOT NULL AND deadline < ($1::date - make_interval(days => $2))`,
		now, days)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.KindInternal, "deleting expired grants", err)
	}
	return tag.RowsAffected(), nil
}

// InsertAnalysis records a dated score snapshot (§3 Analysis: "Newest
// analysis per grant is authoritative for display").
func (s *GrantStore) InsertAnalysis(ctx context.Context, a *Analysis) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO analyses (grant_id, score_sector, score_geo, score_operational, score_business, score_feasibility, score_strategic, composite, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		a.GrantID, a.Scores.Sector, a.Scores.Geo, a.Scores.Operational, a.Scores.Business, a.Scores.Feasibility, a.Scores.Strategic, a.Scores.Composite, a.Notes)
	return row.Scan(&a.ID, &a.CreatedAt)
}

func toScoringVector(v ScoreVector) scoring.Vector {
	return scoring.Vector{Sector: v.Sector, Geo: v.Geo, Operational: v.Operational, Business: v.Business, Feasibility: v.Feasibility, Strategic: v.Strategic}
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanGrant(row rowScanner) (*Grant, error) {
	var g Grant
	var sourceURL, sourceURLNorm *string
	var raw, log []byte
	var status string
	err := row.Scan(&g.ID, &g.UserID, &g.ExternalID, &g.Title, &g.Description, &g.LLMSummary, &g.EligibilitySummary, &g.Funder,
		&g.FundingMin, &g.FundingMax, &g.FundingExact, &g.FundingDisplay, &g.Deadline, &g.OpenDate, &sourceURL, &sourceURLNorm,
		&g.SourceName, &g.RetrievedAt, &g.FirstFoundAt, &g.Sector, &g.SubSector, &g.GeographicScope, &g.Keywords, &g.ProjectCategories,
		&g.LocationMentions, &raw, &log, &g.Stale,
		&g.Scores.Sector, &g.Scores.Geo, &g.Scores.Operational, &g.Scores.Business, &g.Scores.Feasibility, &g.Scores.Strategic, &g.Scores.Composite,
		&status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if sourceURL != nil {
		g.SourceURL = *sourceURL
	}
	if sourceURLNorm != nil {
		g.SourceURLNormalized = *sourceURLNorm
	}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &g.RawSourceData)
	}
	if len(log) > 0 {
		_ = json.Unmarshal(log, &g.EnrichmentLog)
	}
	g.RecordStatus = RecordStatus(status)
	return &g, nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}
