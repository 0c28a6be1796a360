package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

// ApplicationStore persists ApplicationHistory and GeneratedApplication
// rows (§3, §4.8, §6 /api/applications/*).
type ApplicationStore struct {
	pool *pgxpool.Pool
}

func NewApplicationStore(pool *pgxpool.Pool) *ApplicationStore { return &ApplicationStore{pool: pool} }

// RecordFeedback inserts an ApplicationHistory row (§6 POST
// /api/applications/feedback). These rows are read-only input to future
// tuning (§3) — there is no update/delete path.
func (s *ApplicationStore) RecordFeedback(ctx context.Context, h *ApplicationHistory) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO application_history (user_id, grant_id, submission_date, status, outcome_notes, feedback)
		VALUES ($1,$2,$3,$4,$5,$6) RETURNING id, created_at`,
		h.UserID, h.GrantID, h.SubmissionDate, h.Status, h.OutcomeNotes, h.Feedback)
	return row.Scan(&h.ID, &h.CreatedAt)
}

// ListHistoryForGrant returns prior outcomes for a (user, grant) pair.
func (s *ApplicationStore) ListHistoryForGrant(ctx context.Context, userID, grantID uuid.UUID) ([]*ApplicationHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, grant_id, submission_date, status, outcome_notes, feedback, created_at
		FROM application_history WHERE user_id = $1 AND grant_id = $2 ORDER BY created_at DESC`, userID, grantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing application history", err)
	}
	defer rows.Close()
	var out []*ApplicationHistory
	for rows.Next() {
		var h ApplicationHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.GrantID, &h.SubmissionDate, &h.Status, &h.OutcomeNotes, &h.Feedback, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &h)
	}
	return out, rows.Err()
}

const generatedAppColumns = `id, user_id, grant_id, sections, full_text, tokens_used, generation_ms, model_id, status, partial, created_at, updated_at`

// CreateDraft records a placeholder row at job-enqueue time so
// /api/applications/status/{task_id} has something to poll immediately
// (§4.8 "long-running ... MUST execute in a background worker").
func (s *ApplicationStore) CreateDraft(ctx context.Context, userID, grantID uuid.UUID) (*GeneratedApplication, error) {
	app := &GeneratedApplication{UserID: userID, GrantID: grantID, Status: AppDraft}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO generated_applications (user_id, grant_id, status) VALUES ($1,$2,$3)
		RETURNING id, created_at, updated_at`, userID, grantID, string(AppDraft))
	if err := row.Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "creating application draft", err)
	}
	return app, nil
}

// Complete persists the generation result (§4.8: "If any single section
// fails, the overall task is marked PARTIAL, other sections are still
// persisted").
func (s *ApplicationStore) Complete(ctx context.Context, app *GeneratedApplication) error {
	sections, err := json.Marshal(app.Sections)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "marshalling sections", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE generated_applications SET sections=$2, full_text=$3, tokens_used=$4, generation_ms=$5, model_id=$6, status=$7, partial=$8, updated_at=now()
		WHERE id = $1`,
		app.ID, sections, app.FullText, app.TokensUsed, app.GenerationMS, app.ModelID, string(app.Status), app.Partial)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "completing generated application", err)
	}
	return nil
}

// Get fetches a generated application by id, used by the status-poll route.
func (s *ApplicationStore) Get(ctx context.Context, id uuid.UUID) (*GeneratedApplication, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+generatedAppColumns+` FROM generated_applications WHERE id = $1`, id)
	a, err := scanGeneratedApp(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.New(apperrors.KindNotFound, "generated application not found")
	}
	return a, err
}

// UpdateStatus transitions a generated application's review status (§3
// DRAFT -> GENERATED -> EDITED -> SUBMITTED -> AWARDED|REJECTED), driven
// by /api/applications/feedback.
func (s *ApplicationStore) UpdateStatus(ctx context.Context, id uuid.UUID, status ApplicationStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE generated_applications SET status = $2, updated_at = now() WHERE id = $1`, id, string(status))
	return err
}

func scanGeneratedApp(row rowScanner) (*GeneratedApplication, error) {
	var a GeneratedApplication
	var sections []byte
	var status string
	err := row.Scan(&a.ID, &a.UserID, &a.GrantID, &sections, &a.FullText, &a.TokensUsed, &a.GenerationMS, &a.ModelID, &status, &a.Partial, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(sections) > 0 {
		_ = json.Unmarshal(sections, &a.Sections)
	}
	a.Status = ApplicationStatus(status)
	return &a, nil
}
