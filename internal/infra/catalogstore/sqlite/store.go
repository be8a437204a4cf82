package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"epsteindata/internal/domain/entity"
	"epsteindata/internal/repository"
	"epsteindata/internal/resilience/retry"
)

var _ repository.CatalogStore = (*Store)(nil)

// execWriter runs a write statement against the single-writer handle through
// the store's circuit breaker and retry policy, for the same reason the
// fetcher retries and breaker-protects flaky remote calls: a catalog write
// failing on a momentary SQLITE_BUSY or similar transient error shouldn't
// abort an entire adapter run. Callers hold s.mu already.
func (s *Store) execWriter(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := retry.WithBackoff(ctx, retry.DBConfig(), func() error {
		v, err := s.cb.Execute(func() (interface{}, error) {
			return s.writer.ExecContext(ctx, query, args...)
		})
		if err != nil {
			return err
		}
		res = v.(sql.Result)
		return nil
	})
	return res, err
}

// URLExists reports whether a document with this URL has already been recorded.
func (s *Store) URLExists(ctx context.Context, url string) (bool, error) {
	var one int
	err := s.reader.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE url = ?`, url).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("url_exists: %w", err)
	}
	return true, nil
}

// SHA256Exists returns the local path of an already-downloaded document
// sharing this content hash, or "" if none exists.
func (s *Store) SHA256Exists(ctx context.Context, sha256 string) (string, error) {
	var localPath sql.NullString
	err := s.reader.QueryRowContext(ctx,
		`SELECT local_path FROM documents WHERE sha256 = ? AND download_status = 'downloaded' LIMIT 1`,
		sha256,
	).Scan(&localPath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("sha256_exists: %w", err)
	}
	return localPath.String, nil
}

// InsertDocument records a newly discovered candidate, idempotent on URL.
func (s *Store) InsertDocument(ctx context.Context, doc *entity.Document) (int64, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	metaJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWriter(ctx,
		`INSERT OR IGNORE INTO documents (url, source, source_id, filename, title, metadata)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.URL, doc.Source, doc.SourceID, doc.Filename, doc.Title, string(metaJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	if id != 0 {
		return id, nil
	}

	// Already existed - fetch its id.
	var existingID int64
	err = s.writer.QueryRowContext(ctx, `SELECT id FROM documents WHERE url = ?`, doc.URL).Scan(&existingID)
	if err != nil {
		return 0, fmt.Errorf("lookup existing document: %w", err)
	}
	return existingID, nil
}

// UpdateDownload records the outcome of a fetch attempt.
func (s *Store) UpdateDownload(ctx context.Context, docID int64, status entity.DownloadStatus, localPath, sha256 string, fileSize int64, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.execWriter(ctx,
		`UPDATE documents SET download_status = ?, local_path = ?, sha256 = ?,
		 file_size = ?, error = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		string(status), nullIfEmpty(localPath), nullIfEmpty(sha256), nullIfZero(fileSize), nullIfEmpty(errMsg), docID,
	)
	if err != nil {
		return fmt.Errorf("update download: %w", err)
	}
	return nil
}

// InsertExtraction records the outcome of a text-extraction attempt.
func (s *Store) InsertExtraction(ctx context.Context, ext *entity.Extraction) (int64, error) {
	if err := ext.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWriter(ctx,
		`INSERT INTO text_extractions
		 (document_id, output_path, method, page_count, char_count, ocr_pages, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ext.DocumentID, nullIfEmpty(ext.OutputPath), string(ext.Method), ext.PageCount, ext.CharCount,
		ext.OCRPages, string(ext.Status), nullIfEmpty(ext.Error),
	)
	if err != nil {
		return 0, fmt.Errorf("insert extraction: %w", err)
	}
	return res.LastInsertId()
}

// DownloadedWithoutExtraction returns documents downloaded but not yet
// carrying a completed extraction.
func (s *Store) DownloadedWithoutExtraction(ctx context.Context, source string) ([]*entity.Document, error) {
	query := `SELECT d.id, d.url, d.source, d.source_id, d.filename, d.title, d.metadata,
	                 d.local_path, d.sha256, d.file_size, d.download_status, d.error,
	                 d.created_at, d.updated_at
	          FROM documents d
	          LEFT JOIN text_extractions t ON d.id = t.document_id AND t.status = 'completed'
	          WHERE d.download_status = 'downloaded' AND t.id IS NULL`
	args := []any{}
	if source != "" {
		query += ` AND d.source = ?`
		args = append(args, source)
	}
	return s.queryDocuments(ctx, query, args...)
}

// PendingDocuments returns documents awaiting a download attempt.
func (s *Store) PendingDocuments(ctx context.Context, source string) ([]*entity.Document, error) {
	return s.queryDocuments(ctx,
		`SELECT id, url, source, source_id, filename, title, metadata,
		        local_path, sha256, file_size, download_status, error, created_at, updated_at
		 FROM documents WHERE source = ? AND download_status = 'pending'`,
		source,
	)
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]*entity.Document, error) {
	rows, err := s.reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		var d entity.Document
		var localPath, sha256, errMsg sql.NullString
		var fileSize sql.NullInt64
		var metaJSON string
		if err := rows.Scan(&d.ID, &d.URL, &d.Source, &d.SourceID, &d.Filename, &d.Title, &metaJSON,
			&localPath, &sha256, &fileSize, &d.DownloadStatus, &errMsg, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.LocalPath = localPath.String
		d.SHA256 = sha256.String
		d.FileSize = fileSize.Int64
		d.Error = errMsg.String
		if metaJSON != "" {
			_ = json.Unmarshal([]byte(metaJSON), &d.Metadata)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

// DownloadStats returns per-source, per-status document counts and byte totals.
func (s *Store) DownloadStats(ctx context.Context) ([]repository.SourceStatusCount, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT source, download_status, COUNT(*) as cnt, COALESCE(SUM(file_size), 0) as total_bytes
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

// ExtractionStats returns per-source, per-status extraction aggregates.
func (s *Store) ExtractionStats(ctx context.Context) ([]repository.ExtractionStatusCount, error) {
	rows, err := s.reader.QueryContext(ctx,
		`SELECT d.source, t.status, COUNT(*) as cnt,
		        COALESCE(SUM(t.char_count), 0) as total_chars,
		        COALESCE(SUM(t.ocr_pages), 0) as total_ocr_pages
		 FROM text_extractions t
		 JOIN documents d ON d.id = t.document_id
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

// GetSourceState returns the saved resume checkpoint for a source.
func (s *Store) GetSourceState(ctx context.Context, source string) (map[string]any, error) {
	var stateJSON string
	err := s.reader.QueryRowContext(ctx, `SELECT state FROM source_state WHERE source = ?`, source).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get source state: %w", err)
	}
	state := map[string]any{}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("unmarshal source state: %w", err)
	}
	return state, nil
}

// SaveSourceState upserts the resume checkpoint for a source.
func (s *Store) SaveSourceState(ctx context.Context, source string, state map[string]any) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal source state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.execWriter(ctx,
		`INSERT INTO source_state (source, state, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(source) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
		source, string(stateJSON),
	)
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
