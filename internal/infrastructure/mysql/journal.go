package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ringminter/internal/domain"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Journal is the shared submission history fed by the journal consumer.
type Journal struct {
	db *sql.DB
}

func NewJournal(dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS submissions (
			id VARCHAR(36) NOT NULL,
			chain_id BIGINT UNSIGNED NOT NULL,
			tx_hash VARCHAR(66) NOT NULL DEFAULT '',
			function VARCHAR(64) NOT NULL,
			category VARCHAR(32) NOT NULL,
			from_addr VARCHAR(42) NOT NULL,
			to_addr VARCHAR(42) NOT NULL,
			nonce BIGINT UNSIGNED NOT NULL,
			value DECIMAL(65,0) NOT NULL,
			gas BIGINT UNSIGNED NOT NULL,
			gas_price DECIMAL(65,0) NOT NULL,
			status VARCHAR(16) NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (id),
			KEY submissions_tx_idx (tx_hash),
			KEY submissions_chain_idx (chain_id, created_at)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	// Columns added after the first release.
	for _, column := range []struct{ name, definition string }{
		{"stage", "VARCHAR(16) NOT NULL DEFAULT ''"},
		{"error", "TEXT NULL"},
		{"block_number", "BIGINT UNSIGNED NOT NULL DEFAULT 0"},
		{"gas_used", "BIGINT UNSIGNED NOT NULL DEFAULT 0"},
	} {
		if err := ensureColumn(db, "submissions", column.name, column.definition); err != nil {
			return err
		}
	}
	return nil
}

func ensureColumn(db *sql.DB, table, column, definition string) error {
	var count int
	row := db.QueryRow(
		`SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND COLUMN_NAME = ?`,
		table,
		column,
	)
	if err := row.Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN `%s` %s", table, column, definition))
	return err
}

func (j *Journal) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	return j.UpsertSubmissions(ctx, []domain.Submission{submission})
}

// UpsertSubmissions writes submissions keyed by ID. Stale events leave the
// stored row untouched; updated_at is assigned last so the comparisons above
// it still see the stored value.
func (j *Journal) UpsertSubmissions(ctx context.Context, submissions []domain.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.UpsertSubmissions", attribute.Int("submission.count", len(submissions)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return spanError(span, err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO submissions (id, chain_id, tx_hash, `function`, category, from_addr, to_addr, nonce, value, gas, gas_price, status, stage, `error`, block_number, gas_used, created_at, updated_at)"+`
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			chain_id = IF(VALUES(updated_at) >= updated_at, VALUES(chain_id), chain_id),
			tx_hash = IF(VALUES(updated_at) >= updated_at, VALUES(tx_hash), tx_hash),
			nonce = IF(VALUES(updated_at) >= updated_at, VALUES(nonce), nonce),
			gas_price = IF(VALUES(updated_at) >= updated_at, VALUES(gas_price), gas_price),
			status = IF(VALUES(updated_at) >= updated_at, VALUES(status), status),
			stage = IF(VALUES(updated_at) >= updated_at, VALUES(stage), stage),
			`+"`error`"+` = IF(VALUES(updated_at) >= updated_at, VALUES(`+"`error`"+`), `+"`error`"+`),
			block_number = IF(VALUES(updated_at) >= updated_at, VALUES(block_number), block_number),
			gas_used = IF(VALUES(updated_at) >= updated_at, VALUES(gas_used), gas_used),
			updated_at = GREATEST(updated_at, VALUES(updated_at))`)
	if err != nil {
		_ = tx.Rollback()
		return spanError(span, err)
	}
	defer stmt.Close()

	for _, s := range submissions {
		if s.ID == "" {
			_ = tx.Rollback()
			return spanError(span, errors.New("submission id is required"))
		}
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.ChainID, strings.ToLower(s.TxHash), s.Function, string(s.Category),
			strings.ToLower(s.From), strings.ToLower(s.To), s.Nonce, orZero(s.Value), s.Gas, orZero(s.GasPrice),
			string(s.Status), s.Stage, s.Error, s.BlockNumber, s.GasUsed,
			toMillis(s.CreatedAt), toMillis(s.UpdatedAt),
		); err != nil {
			_ = tx.Rollback()
			return spanError(span, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return spanError(span, err)
	}
	return nil
}

const selectColumns = "SELECT id, chain_id, tx_hash, `function`, category, from_addr, to_addr, nonce, CAST(value AS CHAR), gas, CAST(gas_price AS CHAR), status, stage, COALESCE(`error`, ''), block_number, gas_used, created_at, updated_at FROM submissions"

func (j *Journal) QuerySubmissions(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, error) {
	ctx, span := startDBSpan(ctx, "mysql.QuerySubmissions")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args := buildQuery(filter)
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, spanError(span, err)
	}
	defer rows.Close()

	var submissions []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, spanError(span, err)
		}
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, spanError(span, err)
	}
	return submissions, nil
}

func buildQuery(filter domain.SubmissionFilter) (string, []any) {
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if filter.ChainID != nil {
		clauses = append(clauses, "chain_id = ?")
		args = append(args, *filter.ChainID)
	}
	if filter.Function != "" {
		clauses = append(clauses, "`function` = ?")
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
	return query, args
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
	if created != 0 {
		s.CreatedAt = time.UnixMilli(created).UTC()
	}
	if updated != 0 {
		s.UpdatedAt = time.UnixMilli(updated).UTC()
	}
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

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("ringminter/mysql")
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("db.system", "mysql"))
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
