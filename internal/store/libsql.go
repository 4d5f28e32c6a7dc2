package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows, so they go through QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Workflows ---

// SaveWorkflow stores a new workflow version. An empty ID gets a fresh UUID; a
// zero Version becomes the next version of that ID. Saving an existing
// (id, version) pair is a CONFLICT.
func (s *LibSQLStore) SaveWorkflow(ctx context.Context, wf *Workflow) error {
	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}
	def, err := json.Marshal(wf.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save workflow: %w", err)
	}
	defer tx.Rollback()

	if wf.Version == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM workflows WHERE id = ?`, wf.ID,
		).Scan(&wf.Version); err != nil {
			return fmt.Errorf("next workflow version: %w", err)
		}
	} else {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM workflows WHERE id = ? AND version = ?`, wf.ID, wf.Version,
		).Scan(&exists)
		if err == nil {
			return schema.NewErrorf(schema.ErrCodeConflict, "workflow %s already exists", wf.Ref())
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
	}

	wf.CreatedAt = timeOrNow(wf.CreatedAt)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO workflows (id, version, name, definition, created_at) VALUES (?, ?, ?, ?, ?)`,
		wf.ID, wf.Version, wf.Name, string(def), wf.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert workflow: %w", err)
	}
	return tx.Commit()
}

// GetWorkflow returns one version of a workflow; version 0 means the latest.
func (s *LibSQLStore) GetWorkflow(ctx context.Context, id string, version int) (*Workflow, error) {
	query := `SELECT id, version, name, definition, created_at FROM workflows WHERE id = ? AND version = ?`
	args := []any{id, version}
	if version == 0 {
		query = `SELECT id, version, name, definition, created_at FROM workflows WHERE id = ? ORDER BY version DESC LIMIT 1`
		args = args[:1]
	}

	wf, err := scanWorkflow(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if version == 0 {
			return nil, storeNotFound("workflow", id)
		}
		return nil, storeNotFound("workflow", WorkflowRef(id, version))
	}
	return wf, err
}

func (s *LibSQLStore) ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error) {
	query := `SELECT id, version, name, definition, created_at FROM workflows w`
	var where []string
	var args []any

	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.LatestOnly {
		where = append(where, "version = (SELECT MAX(version) FROM workflows v WHERE v.id = w.id)")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name, id, version DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(r rowScanner) (*Workflow, error) {
	wf := &Workflow{}
	var defJSON string
	if err := r.Scan(&wf.ID, &wf.Version, &wf.Name, &defJSON, &wf.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(defJSON), &wf.Definition); err != nil {
		return nil, fmt.Errorf("unmarshal workflow definition: %w", err)
	}
	return wf, nil
}

// --- Cases ---

// CreateCase inserts a case pinned to a workflow version. A zero
// WorkflowVersion pins the latest version.
func (s *LibSQLStore) CreateCase(ctx context.Context, c *Case) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Status == "" {
		c.Status = schema.CaseStatusOpen
	}
	if c.WorkflowVersion == 0 {
		wf, err := s.GetWorkflow(ctx, c.WorkflowID, 0)
		if err != nil {
			return err
		}
		c.WorkflowVersion = wf.Version
	}
	c.CreatedAt = timeOrNow(c.CreatedAt)
	c.UpdatedAt = timeOrNow(c.UpdatedAt)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cases (id, workflow_id, workflow_version, current_node_id, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkflowID, c.WorkflowVersion, nullStr(c.CurrentNodeID), string(c.Status), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY") {
		return storeNotFound("workflow", WorkflowRef(c.WorkflowID, c.WorkflowVersion))
	}
	return err
}

func (s *LibSQLStore) GetCase(ctx context.Context, id string) (*Case, error) {
	c, err := scanCase(s.db.QueryRowContext(ctx,
		`SELECT id, workflow_id, workflow_version, current_node_id, status, created_at, updated_at
		 FROM cases WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("case", id)
	}
	return c, err
}

// UpdateCaseStage moves the stage pointer of an open case.
func (s *LibSQLStore) UpdateCaseStage(ctx context.Context, id, nodeID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET current_node_id = ?, updated_at = ? WHERE id = ? AND status = ?`,
		nullStr(nodeID), time.Now().UTC(), id, string(schema.CaseStatusOpen),
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "open case", id)
}

func (s *LibSQLStore) CloseCase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE cases SET status = ?, updated_at = ? WHERE id = ?`,
		string(schema.CaseStatusClosed), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "case", id)
}

func (s *LibSQLStore) ListOpenCases(ctx context.Context) ([]*Case, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, workflow_id, workflow_version, current_node_id, status, created_at, updated_at
		 FROM cases WHERE status = ? ORDER BY created_at, id`, string(schema.CaseStatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCase(r rowScanner) (*Case, error) {
	c := &Case{}
	var node sql.NullString
	var status string
	if err := r.Scan(&c.ID, &c.WorkflowID, &c.WorkflowVersion, &node, &status, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CurrentNodeID = node.String
	c.Status = schema.CaseStatus(status)
	return c, nil
}

// --- Timing records ---

func (s *LibSQLStore) AppendTimingRecord(ctx context.Context, caseID string, rec schema.TimingRecord) error {
	var duration any
	if rec.DurationSeconds != nil {
		duration = *rec.DurationSeconds
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO timing_records (id, case_id, status_id, created_at, duration_seconds, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), caseID, rec.StatusID, timeOrNow(rec.CreatedAt), duration, nullStr(rec.OwnerID),
	)
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY") {
		return storeNotFound("case", caseID)
	}
	return err
}

// CompleteTimingRecord sets the duration on the latest record of statusID,
// the same record a timeline join picks. It is a no-op when the case has no
// record for that status.
func (s *LibSQLStore) CompleteTimingRecord(ctx context.Context, caseID, statusID string, durationSeconds int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE timing_records SET duration_seconds = ?
		 WHERE id = (SELECT id FROM timing_records
		             WHERE case_id = ? AND status_id = ?
		             ORDER BY created_at DESC, rowid ASC LIMIT 1)`,
		durationSeconds, caseID, statusID,
	)
	return err
}

// ListTimingRecords returns a case's records in insertion order.
func (s *LibSQLStore) ListTimingRecords(ctx context.Context, caseID string) ([]schema.TimingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status_id, created_at, duration_seconds, owner_id
		 FROM timing_records WHERE case_id = ? ORDER BY rowid`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []schema.TimingRecord
	for rows.Next() {
		var rec schema.TimingRecord
		var duration sql.NullInt64
		var owner sql.NullString
		if err := rows.Scan(&rec.StatusID, &rec.CreatedAt, &duration, &owner); err != nil {
			return nil, err
		}
		if duration.Valid {
			d := duration.Int64
			rec.DurationSeconds = &d
		}
		rec.OwnerID = owner.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- Labels and delay statuses ---

func (s *LibSQLStore) UpsertLabel(ctx context.Context, statusID, language, title string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_labels (status_id, language, title) VALUES (?, ?, ?)
		 ON CONFLICT(status_id, language) DO UPDATE SET title = excluded.title`,
		statusID, language, title,
	)
	return err
}

// LabelTable returns every label keyed by status ID, then language.
func (s *LibSQLStore) LabelTable(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status_id, language, title FROM status_labels`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var statusID, language, title string
		if err := rows.Scan(&statusID, &language, &title); err != nil {
			return nil, err
		}
		if out[statusID] == nil {
			out[statusID] = make(map[string]string)
		}
		out[statusID][language] = title
	}
	return out, rows.Err()
}

// SetDelayStatus adds statusID to, or removes it from, the delay set.
func (s *LibSQLStore) SetDelayStatus(ctx context.Context, statusID string, delay bool) error {
	var err error
	if delay {
		_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO delay_statuses (status_id) VALUES (?)`, statusID)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM delay_statuses WHERE status_id = ?`, statusID)
	}
	return err
}

func (s *LibSQLStore) DelayStatuses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status_id FROM delay_statuses ORDER BY status_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.SOPError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

var _ Store = (*LibSQLStore)(nil)
