package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ringminter/internal/domain"

	_ "modernc.org/sqlite"
)

// Journal keeps the local submission history of the command line tools.
type Journal struct {
	db *sql.DB
}

func NewJournal(dbPath string) (*Journal, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			chain_id INTEGER NOT NULL,
			tx_hash TEXT NOT NULL DEFAULT '',
			function TEXT NOT NULL,
			category TEXT NOT NULL,
			from_addr TEXT NOT NULL,
			to_addr TEXT NOT NULL,
			nonce INTEGER NOT NULL,
			value TEXT NOT NULL,
			gas INTEGER NOT NULL,
			gas_price TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			block_number INTEGER NOT NULL DEFAULT 0,
			gas_used INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS submissions_tx_hash_idx ON submissions (tx_hash)`,
		`CREATE INDEX IF NOT EXISTS submissions_created_idx ON submissions (created_at)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordSubmission stores one submission as the submitter reports it.
func (j *Journal) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	return j.UpsertSubmissions(ctx, []domain.Submission{submission})
}

// UpsertSubmissions inserts or advances submissions by ID. A row is only
// replaced by an update that is at least as recent.
func (j *Journal) UpsertSubmissions(ctx context.Context, submissions []domain.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO submissions (id, chain_id, tx_hash, function, category, from_addr, to_addr, nonce, value, gas, gas_price, status, stage, error, block_number, gas_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chain_id = excluded.chain_id,
			tx_hash = excluded.tx_hash,
			nonce = excluded.nonce,
			gas_price = excluded.gas_price,
			status = excluded.status,
			stage = excluded.stage,
			error = excluded.error,
			block_number = excluded.block_number,
			gas_used = excluded.gas_used,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= submissions.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, s := range submissions {
		if s.ID == "" {
			_ = tx.Rollback()
			return errors.New("submission id is required")
		}
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.ChainID, strings.ToLower(s.TxHash), s.Function, string(s.Category),
			strings.ToLower(s.From), strings.ToLower(s.To), s.Nonce, orZero(s.Value), s.Gas, orZero(s.GasPrice),
			string(s.Status), s.Stage, s.Error, s.BlockNumber, s.GasUsed,
			toMillis(s.CreatedAt), toMillis(s.UpdatedAt),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

const selectColumns = `SELECT id, chain_id, tx_hash, function, category, from_addr, to_addr, nonce, value, gas, gas_price, status, stage, error, block_number, gas_used, created_at, updated_at FROM submissions`

func (j *Journal) QuerySubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clauses := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if filter.ChainID != nil {
		clauses = append(clauses, "chain_id = ?")
		args = append(args, *filter.ChainID)
	}
	if filter.Function != "" {
		clauses = append(clauses, "function = ?")
		args = append(args, filter.Function)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.From != "" {
		clauses = append(clauses, "from_addr = ?")
		args = append(args, strings.ToLower(filter.From))
	}
	if filter.TxHash != "" {
		clauses = append(clauses, "tx_hash = ?")
		args = append(args, strings.ToLower(filter.TxHash))
	}

	query := selectColumns
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC LIMIT ?"
	args = append(args, filter.NormalizedLimit())

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (j *Journal) GetSubmission(ctx context.Context, txHash string) (domain.Submission, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	row := j.db.QueryRowContext(ctx, selectColumns+` WHERE tx_hash = ? ORDER BY updated_at DESC LIMIT 1`, strings.ToLower(txHash))
	s, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Submission{}, false, nil
		}
		return domain.Submission{}, false, err
	}
	return s, true, nil
}

func (j *Journal) CountByStatus(ctx context.Context) (map[domain.SubmissionStatus]uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := j.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.SubmissionStatus]uint64)
	for rows.Next() {
		var status string
		var count uint64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[domain.SubmissionStatus(status)] = count
	}
	return counts, rows.Err()
}

func (j *Journal) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return j.db.PingContext(ctx)
}

func (j *Journal) Close() error {
	return j.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (domain.Submission, error) {
	var s domain.Submission
	var category, status string
	var created, updated int64
	if err := row.Scan(&s.ID, &s.ChainID, &s.TxHash, &s.Function, &category, &s.From, &s.To, &s.Nonce, &s.Value, &s.Gas, &s.GasPrice,
		&status, &s.Stage, &s.Error, &s.BlockNumber, &s.GasUsed, &created, &updated); err != nil {
		return domain.Submission{}, err
	}
	s.Category = domain.Category(category)
	s.Status = domain.SubmissionStatus(status)
	s.CreatedAt = fromMillis(created)
	s.UpdatedAt = fromMillis(updated)
	return s, nil
}

func orZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
