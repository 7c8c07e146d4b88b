package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/hyena-client/internal/core/domain"
)

// DocumentLedger keeps the last known view of every tracked document so that
// polling can resume after a restart.
type DocumentLedger struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocumentLedger(db *sql.DB) *DocumentLedger {
	return &DocumentLedger{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (l *DocumentLedger) EnsureSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across cli/watcher startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024030101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS tracked_documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	company TEXT NOT NULL,
	year INTEGER NOT NULL,
	quarter TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	total_chunks INTEGER NOT NULL DEFAULT 0,
	text_chunks INTEGER NOT NULL DEFAULT 0,
	table_chunks INTEGER NOT NULL DEFAULT 0,
	image_chunks INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracked_documents_status ON tracked_documents(status);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (l *DocumentLedger) Upsert(ctx context.Context, doc domain.Document) error {
	if strings.TrimSpace(doc.ID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "upsert document", errors.New("document id is required"))
	}
	createdAt := doc.CreatedAt
	now := l.now()
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := l.db.ExecContext(ctx, `
INSERT INTO tracked_documents (
	id, filename, company, year, quarter, status, total_chunks, text_chunks, table_chunks, image_chunks, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
	filename = CASE WHEN EXCLUDED.filename = '' THEN tracked_documents.filename ELSE EXCLUDED.filename END,
	company = CASE WHEN EXCLUDED.company = '' THEN tracked_documents.company ELSE EXCLUDED.company END,
	year = CASE WHEN EXCLUDED.year = 0 THEN tracked_documents.year ELSE EXCLUDED.year END,
	quarter = EXCLUDED.quarter,
	status = EXCLUDED.status,
	total_chunks = EXCLUDED.total_chunks,
	text_chunks = EXCLUDED.text_chunks,
	table_chunks = EXCLUDED.table_chunks,
	image_chunks = EXCLUDED.image_chunks,
	error_message = EXCLUDED.error_message,
	updated_at = EXCLUDED.updated_at
`,
		doc.ID, doc.Filename, doc.Company, doc.Year, doc.Quarter, string(doc.Status),
		doc.TotalChunks, doc.TextChunks, doc.TableChunks, doc.ImageChunks, doc.Error,
		createdAt, now,
	)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (l *DocumentLedger) Get(ctx context.Context, id string) (*domain.Document, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT id, filename, company, year, quarter, status, total_chunks, text_chunks, table_chunks, image_chunks, error_message, created_at
FROM tracked_documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

// ListByStatus returns documents in any of the given statuses, oldest first.
func (l *DocumentLedger) ListByStatus(ctx context.Context, statuses ...domain.DocumentStatus) ([]domain.Document, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]any, 0, len(statuses))
	for i, status := range statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, string(status))
	}

	rows, err := l.db.QueryContext(ctx, `
SELECT id, filename, company, year, quarter, status, total_chunks, text_chunks, table_chunks, image_chunks, error_message, created_at
FROM tracked_documents
WHERE status IN (`+strings.Join(placeholders, ",")+`)
ORDER BY created_at ASC
`, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents by status: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (l *DocumentLedger) Delete(ctx context.Context, id string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM tracked_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var status string
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.Company, &doc.Year, &doc.Quarter, &status,
		&doc.TotalChunks, &doc.TextChunks, &doc.TableChunks, &doc.ImageChunks, &doc.Error, &doc.CreatedAt,
	)
	if err != nil {
		return domain.Document{}, err
	}
	doc.Status = domain.DocumentStatus(status)
	return doc, nil
}
