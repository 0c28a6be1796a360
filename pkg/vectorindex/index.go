// Package vectorindex implements the Vector Index of spec.md §4.4: a
// per-user namespaced nearest-neighbor store, backed by SQLite's vec0
// virtual table (github.com/asg017/sqlite-vec-go-bindings over
// github.com/mattn/go-sqlite3), grounded on the same embedded-vector-store
// pattern the codenerd example repo uses for its local semantic memory.
package vectorindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
)

func init() {
	sqlite_vec.Auto()
}

// Match is one nearest-neighbor hit (§4.4: "[(id, score, metadata)]").
type Match struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// Index is the C4 Vector Index: Upsert/Query/DeleteNamespace operations
// scoped by namespace, with a fixed dimension per the process-wide
// embedding model constant (§4.4).
type Index struct {
	db        *sql.DB
	dimension int
	mu        sync.Mutex
	log       *slog.Logger
}

// Open creates (or attaches to) the SQLite database at path and ensures
// the vec0 virtual table exists for the configured dimension.
func Open(path string, dimension int) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "opening vector store", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 + vec0 virtual table: serialize writers

	idx := &Index{db: db, dimension: dimension, log: slog.With("component", "vectorindex")}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (idx *Index) migrate() error {
	_, err := idx.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
			embedding float[%d]
		)`, idx.dimension))
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "creating vec0 table", err)
	}
	_, err = idx.db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_meta (
			rowid INTEGER PRIMARY KEY,
			namespace TEXT NOT NULL,
			external_id TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "creating vec_meta table", err)
	}
	_, err = idx.db.Exec(`CREATE INDEX IF NOT EXISTS idx_vec_meta_namespace ON vec_meta(namespace)`)
	return err
}

// Vector is one (id, embedding, metadata) triple for Upsert.
type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

// Upsert writes vectors into namespace (§4.4 "Upsert(namespace, vectors)").
// Re-upserting the same id replaces its embedding and metadata in place,
// supporting the idempotent re-chunking contract of §4.8.
func (idx *Index) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "beginning vector tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, v := range vectors {
		if len(v.Values) != idx.dimension {
			return apperrors.New(apperrors.KindValidation, fmt.Sprintf("vector dimension %d != configured %d", len(v.Values), idx.dimension))
		}
		// Delete-then-insert: vec0 rowids are append-only, so re-upsert
		// of an existing (namespace, external_id) must clear the old row.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE rowid IN (SELECT rowid FROM vec_meta WHERE namespace = ? AND external_id = ?)`,
			namespace, v.ID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "clearing prior vector", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_meta WHERE namespace = ? AND external_id = ?`, namespace, v.ID); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "clearing prior meta", err)
		}

		raw, err := sqlite_vec.SerializeFloat32(v.Values)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "serializing embedding", err)
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO vec_chunks(embedding) VALUES (?)`, raw)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "inserting embedding", err)
		}
		rowid, err := res.LastInsertId()
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "reading rowid", err)
		}
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "marshalling metadata", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO vec_meta(rowid, namespace, external_id, metadata) VALUES (?,?,?,?)`,
			rowid, namespace, v.ID, meta); err != nil {
			return apperrors.Wrap(apperrors.KindInternal, "inserting meta", err)
		}
	}
	return tx.Commit()
}

// Query returns the top_k nearest neighbors to vector within namespace
// (§4.4 "Query(namespace, vector, top_k)").
func (idx *Index) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	if len(vector) != idx.dimension {
		return nil, apperrors.New(apperrors.KindValidation, fmt.Sprintf("query vector dimension %d != configured %d", len(vector), idx.dimension))
	}
	raw, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "serializing query vector", err)
	}

	// Over-fetch across the whole table (namespaces typically number in
	// the low thousands of chunks), then filter by namespace in Go —
	// vec0 KNN queries do not support an arbitrary WHERE join cheaply
	// across versions, so this keeps the query portable.
	rows, err := idx.db.QueryContext(ctx, `
		SELECT rowid, distance FROM vec_chunks WHERE embedding MATCH ? AND k = ? ORDER BY distance`,
		raw, topK*8+namespaceOverfetch(namespace))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "querying vector index", err)
	}
	defer rows.Close()

	type hit struct {
		rowid    int64
		distance float64
	}
	var hits []hit
	for rows.Next() {
		var h hit
		if err := rows.Scan(&h.rowid, &h.distance); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}

	var out []Match
	for _, h := range hits {
		var ns, extID, metaRaw string
		err := idx.db.QueryRowContext(ctx, `SELECT namespace, external_id, metadata FROM vec_meta WHERE rowid = ?`, h.rowid).
			Scan(&ns, &extID, &metaRaw)
		if err != nil {
			continue
		}
		if ns != namespace {
			continue
		}
		var meta map[string]any
		_ = json.Unmarshal([]byte(metaRaw), &meta)
		// vec0 distance is L2; convert to a bounded similarity score.
		out = append(out, Match{ID: extID, Score: 1.0 / (1.0 + h.distance), Metadata: meta})
		if len(out) >= topK {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// namespaceOverfetch is a cheap heuristic widening the KNN scan when a
// namespace is a small slice of the whole table.
func namespaceOverfetch(namespace string) int {
	if strings.HasPrefix(namespace, "user_") {
		return 64
	}
	return 256
}

// DeleteNamespace removes every vector belonging to namespace (§4.4
// invariant: "deleting a user MUST also delete their namespace").
func (idx *Index) DeleteNamespace(ctx context.Context, namespace string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	rows, err := idx.db.QueryContext(ctx, `SELECT rowid FROM vec_meta WHERE namespace = ?`, namespace)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "listing namespace rows", err)
	}
	var rowids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		rowids = append(rowids, id)
	}
	rows.Close()

	tx, err := idx.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "beginning delete tx", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range rowids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vec_chunks WHERE rowid = ?`, id); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_meta WHERE namespace = ?`, namespace); err != nil {
		return err
	}
	idx.log.Info("deleted vector namespace", "namespace", namespace, "vectors_removed", len(rowids))
	return tx.Commit()
}

// ListNamespaces returns every distinct namespace currently stored, used
// by the weekly orphan-namespace sweep (§4.4, SPEC_FULL §C.3).
func (idx *Index) ListNamespaces(ctx context.Context) ([]string, error) {
	rows, err := idx.db.QueryContext(ctx, `SELECT DISTINCT namespace FROM vec_meta`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "listing namespaces", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// Close releases the underlying SQLite handle.
func (idx *Index) Close() error { return idx.db.Close() }
