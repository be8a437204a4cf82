// Package postgres is an alternate CatalogStore backend for deployments that
// already run Postgres and would rather not manage a separate SQLite file
// (shared catalogs across multiple ingestion hosts, for instance). It mirrors
// the sqlite package's schema with Postgres types (JSONB, TIMESTAMPTZ,
// SERIAL) and uses a normal pooled *sql.DB, since Postgres has no
// single-writer restriction.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"epsteindata/internal/domain/entity"
	"epsteindata/internal/repository"
	"epsteindata/internal/resilience/circuitbreaker"
	"epsteindata/internal/resilience/retry"
)

// Store is the Postgres-backed CatalogStore implementation.
type Store struct {
	db *sql.DB
	cb *circuitbreaker.CircuitBreaker
}

// withWriter runs a write against the pooled connection through the store's
// circuit breaker and retry policy, same rationale as the sqlite backend's
// execWriter: a catalog write shouldn't abort an entire adapter run over a
// momentary connection hiccup.
func (s *Store) withWriter(ctx context.Context, fn func() error) error {
	return retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		_, err := s.cb.Execute(func() (interface{}, error) {
			return nil, fn()
		})
		return err
	})
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id              SERIAL PRIMARY KEY,
    url             TEXT NOT NULL UNIQUE,
    source          TEXT NOT NULL,
    source_id       TEXT DEFAULT '',
    filename        TEXT DEFAULT '',
    title           TEXT DEFAULT '',
    metadata        JSONB DEFAULT '{}',
    local_path      TEXT,
    sha256          TEXT,
    file_size       BIGINT,
    download_status TEXT DEFAULT 'pending',
    error           TEXT,
    created_at      TIMESTAMPTZ DEFAULT now(),
    updated_at      TIMESTAMPTZ DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(download_status);
CREATE INDEX IF NOT EXISTS idx_documents_sha256 ON documents(sha256);

CREATE TABLE IF NOT EXISTS text_extractions (
    id            SERIAL PRIMARY KEY,
    document_id   INTEGER NOT NULL REFERENCES documents(id),
    output_path   TEXT,
    method        TEXT,
    page_count    INTEGER,
    char_count    INTEGER,
    ocr_pages     INTEGER DEFAULT 0,
    status        TEXT DEFAULT 'pending',
    error         TEXT,
    created_at    TIMESTAMPTZ DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_extractions_document ON text_extractions(document_id);

CREATE TABLE IF NOT EXISTS source_state (
    source     TEXT PRIMARY KEY,
    state      JSONB DEFAULT '{}',
    updated_at TIMESTAMPTZ DEFAULT now()
);
`

// Open connects to DATABASE_URL (or the given dsn override if non-empty),
// applies the schema, and returns a ready-to-use Store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("postgres catalog store: DATABASE_URL not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	slog.Info("catalog store opened", slog.String("backend", "postgres"))
	return &Store{db: db, cb: circuitbreaker.New(circuitbreaker.DBConfig())}, nil
}

func (s *Store) Close() error { return s.db.Close() }

var _ repository.CatalogStore = (*Store)(nil)

func (s *Store) URLExists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE url = $1`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("url_exists: %w", err)
	}
	return true, nil
}

func (s *Store) SHA256Exists(ctx context.Context, sha256 string) (string, error) {
	var localPath sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT local_path FROM documents WHERE sha256 = $1 AND download_status = 'downloaded' LIMIT 1`, sha256,
	).Scan(&localPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sha256_exists: %w", err)
	}
	return localPath.String, nil
}

func (s *Store) InsertDocument(ctx context.Context, doc *entity.Document) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}
	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	var id int64
	err = s.withWriter(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO documents (url, source, source_id, filename, title, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
			 RETURNING id`,
			doc.URL, doc.Source, doc.SourceID, doc.Filename, doc.Title, metaJSON,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateDownload(ctx context.Context, docID int64, status entity.DownloadStatus, localPath, sha256 string, fileSize int64, errMsg string) error {
	err := s.withWriter(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE documents SET download_status = $1, local_path = $2, sha256 = $3,
			 file_size = $4, error = $5, updated_at = now() WHERE id = $6`,
			string(status), nullIfEmpty(localPath), nullIfEmpty(sha256), nullIfZero(fileSize), nullIfEmpty(errMsg), docID,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("update download: %w", err)
	}
	return nil
}

func (s *Store) InsertExtraction(ctx context.Context, ext *entity.Extraction) (int64, error) {
	if err := ext.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.withWriter(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`INSERT INTO text_extractions
			 (document_id, output_path, method, page_count, char_count, ocr_pages, status, error)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			ext.DocumentID, nullIfEmpty(ext.OutputPath), string(ext.Method), ext.PageCount, ext.CharCount,
			ext.OCRPages, string(ext.Status), nullIfEmpty(ext.Error),
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert extraction: %w", err)
	}
	return id, nil
}

func (s *Store) DownloadedWithoutExtraction(ctx context.Context, source string) ([]*entity.Document, error) {
	query := `SELECT d.id, d.url, d.source, d.source_id, d.filename, d.title, d.metadata,
	                 d.local_path, d.sha256, d.file_size, d.download_status, d.error,
	                 d.created_at, d.updated_at
	          FROM documents d
	          LEFT JOIN text_extractions t ON d.id = t.document_id AND t.status = 'completed'
	          WHERE d.download_status = 'downloaded' AND t.id IS NULL`
	args := []any{}
	if source != "" {
		query += ` AND d.source = $1`
		args = append(args, source)
	}
	return s.queryDocuments(ctx, query, args...)
}

func (s *Store) PendingDocuments(ctx context.Context, source string) ([]*entity.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT id, url, source, source_id, filename, title, metadata,
		        local_path, sha256, file_size, download_status, error, created_at, updated_at
		 FROM documents WHERE source = $1 AND download_status = 'pending'`,
		source,
	)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]*entity.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		var d entity.Document
		var localPath, sha256, errMsg sql.NullString
		var fileSize sql.NullInt64
		var metaJSON []byte
		if err := rows.Scan(&d.ID, &d.URL, &d.Source, &d.SourceID, &d.Filename, &d.Title, &metaJSON,
			&localPath, &sha256, &fileSize, &d.DownloadStatus, &errMsg, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.LocalPath = localPath.String
		d.SHA256 = sha256.String
		d.FileSize = fileSize.Int64
		d.Error = errMsg.String
		if len(metaJSON) > 0 {
			_ = json.Unmarshal(metaJSON, &d.Metadata)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func (s *Store) DownloadStats(ctx context.Context) ([]repository.SourceStatusCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, download_status, COUNT(*), COALESCE(SUM(file_size), 0)
		 FROM documents GROUP BY source, download_status ORDER BY source, download_status`)
	if err != nil {
		return nil, fmt.Errorf("download stats: %w", err)
	}
	defer rows.Close()

	var out []repository.SourceStatusCount
	for rows.Next() {
		var row repository.SourceStatusCount
		if err := rows.Scan(&row.Source, &row.DownloadStatus, &row.Count, &row.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan download stats: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) ExtractionStats(ctx context.Context) ([]repository.ExtractionStatusCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.source, t.status, COUNT(*), COALESCE(SUM(t.char_count), 0), COALESCE(SUM(t.ocr_pages), 0)
		 FROM text_extractions t JOIN documents d ON d.id = t.document_id
		 GROUP BY d.source, t.status ORDER BY d.source`)
	if err != nil {
		return nil, fmt.Errorf("extraction stats: %w", err)
	}
	defer rows.Close()

	var out []repository.ExtractionStatusCount
	for rows.Next() {
		var row repository.ExtractionStatusCount
		if err := rows.Scan(&row.Source, &row.Status, &row.Count, &row.TotalChars, &row.TotalOCRPages); err != nil {
			return nil, fmt.Errorf("scan extraction stats: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) GetSourceState(ctx context.Context, source string) (map[string]any, error) {
	var stateJSON []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM source_state WHERE source = $1`, source).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source state: %w", err)
	}
	state := map[string]any{}
	if err := json.Unmarshal(stateJSON, &state); err != nil {
		return nil, fmt.Errorf("unmarshal source state: %w", err)
	}
	return state, nil
}

func (s *Store) SaveSourceState(ctx context.Context, source string, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal source state: %w", err)
	}
	err = s.withWriter(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO source_state (source, state, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (source) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
			source, stateJSON,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save source state: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
