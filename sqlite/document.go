package sqlite

import (
	"context"
	"database/sql"
	"encoding/hex"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/tidepool"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ tidepool.DocumentService = (*DocumentService)(nil)

// DocumentService implements tidepool.DocumentService using SQLite.
type DocumentService struct {
	db *DB
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(db *DB) *DocumentService {
	return &DocumentService{db: db}
}

// hashContent computes xxHash of content and returns hex string.
func hashContent(content string) string {
	h := xxhash.Sum64String(content)
	b := make([]byte, 8)
	b[0] = byte(h >> 56)
	b[1] = byte(h >> 48)
	b[2] = byte(h >> 40)
	b[3] = byte(h >> 32)
	b[4] = byte(h >> 24)
	b[5] = byte(h >> 16)
	b[6] = byte(h >> 8)
	b[7] = byte(h)
	return hex.EncodeToString(b)
}

// CreateDocument persists an extracted document, assigning its ID,
// content hash, and extraction time.
func (s *DocumentService) CreateDocument(ctx context.Context, doc *tidepool.ExtractedDoc) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	doc.ID = uuid.New().String()
	if doc.ExtractedAt.IsZero() {
		doc.ExtractedAt = time.Now().UTC()
	}
	doc.ContentHash = hashContent(doc.Text + doc.ContentHTML)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, url, title, text, content_html, markdown, strategy, quality_score, word_count, content_hash, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, doc.ID, doc.URL, doc.Title, doc.Text, doc.ContentHTML, doc.Markdown, string(doc.Strategy),
		doc.QualityScore, doc.WordCount, doc.ContentHash, doc.ExtractedAt.Format(time.RFC3339))

	return err
}

// FindDocumentByID retrieves a document by ID.
func (s *DocumentService) FindDocumentByID(ctx context.Context, id string) (*tidepool.ExtractedDoc, error) {
	var doc tidepool.ExtractedDoc
	var strategy, extractedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, url, title, text, content_html, markdown, strategy, quality_score, word_count, content_hash, extracted_at
		FROM documents
		WHERE id = ?
	`, id).Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Text, &doc.ContentHTML, &doc.Markdown,
		&strategy, &doc.QualityScore, &doc.WordCount, &doc.ContentHash, &extractedAt)

	if err == sql.ErrNoRows {
		return nil, tidepool.Errorf(tidepool.ENOTFOUND, "document not found")
	}
	if err != nil {
		return nil, err
	}

	doc.Strategy = tidepool.StrategyKind(strategy)
	doc.ExtractedAt, err = parseRFC3339(extractedAt, "extracted_at")
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

// FindDocuments retrieves documents matching the filter.
func (s *DocumentService) FindDocuments(ctx context.Context, filter tidepool.DocumentFilter) ([]*tidepool.ExtractedDoc, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, url, title, text, content_html, markdown, strategy, quality_score, word_count, content_hash, extracted_at FROM documents WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.URL != nil {
		query.WriteString(" AND url = ?")
		args = append(args, *filter.URL)
	}
	if filter.Strategy != nil {
		query.WriteString(" AND strategy = ?")
		args = append(args, string(*filter.Strategy))
	}

	switch filter.SortBy {
	case tidepool.SortByQuality:
		query.WriteString(" ORDER BY quality_score DESC")
	default:
		query.WriteString(" ORDER BY extracted_at DESC")
	}

	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*tidepool.ExtractedDoc
	for rows.Next() {
		var doc tidepool.ExtractedDoc
		var strategy, extractedAt string

		if err := rows.Scan(&doc.ID, &doc.URL, &doc.Title, &doc.Text, &doc.ContentHTML, &doc.Markdown,
			&strategy, &doc.QualityScore, &doc.WordCount, &doc.ContentHash, &extractedAt); err != nil {
			return nil, err
		}

		doc.Strategy = tidepool.StrategyKind(strategy)
		doc.ExtractedAt, err = parseRFC3339(extractedAt, "extracted_at")
		if err != nil {
			return nil, err
		}

		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// DeleteDocument permanently removes a document.
func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return tidepool.Errorf(tidepool.ENOTFOUND, "document not found")
	}

	return nil
}
