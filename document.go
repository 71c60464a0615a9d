package tidepool

import (
	"context"
	"time"
)

// ExtractedDoc represents structured content extracted from a page.
// QualityScore is provided by the strategy implementation and is treated
// as opaque by the pooling and cascade layers.
type ExtractedDoc struct {
	ID           string       `json:"id"`
	URL          string       `json:"url"`
	Title        string       `json:"title"`
	Text         string       `json:"text"`
	ContentHTML  string       `json:"contentHtml"`
	Markdown     string       `json:"markdown"`
	Strategy     StrategyKind `json:"strategy"`
	QualityScore int          `json:"qualityScore"`
	WordCount    int          `json:"wordCount"`
	ContentHash  string       `json:"contentHash"`
	ExtractedAt  time.Time    `json:"extractedAt"`
}

// Validate returns an error if the document contains invalid fields.
func (d *ExtractedDoc) Validate() error {
	if d.URL == "" {
		return Errorf(EINVALID, "document URL required")
	}
	if d.Text == "" && d.ContentHTML == "" {
		return Errorf(EINVALID, "document content required")
	}
	return nil
}

// SortOrder represents the sort order for document queries.
type SortOrder string

// SortOrder constants for DocumentFilter.
const (
	SortByExtractedAt SortOrder = "extracted_at"
	SortByQuality     SortOrder = "quality_score"
)

// DocumentFilter represents a filter for FindDocuments.
type DocumentFilter struct {
	ID       *string       `json:"id"`
	URL      *string       `json:"url"`
	Strategy *StrategyKind `json:"strategy"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`

	SortBy SortOrder `json:"sortBy"`
}

// DocumentService represents a service for persisting extraction results.
type DocumentService interface {
	// CreateDocument stores a new extracted document.
	CreateDocument(ctx context.Context, doc *ExtractedDoc) error

	// FindDocumentByID retrieves a document by ID.
	// Returns ENOTFOUND if the document does not exist.
	FindDocumentByID(ctx context.Context, id string) (*ExtractedDoc, error)

	// FindDocuments retrieves documents matching the filter.
	FindDocuments(ctx context.Context, filter DocumentFilter) ([]*ExtractedDoc, error)

	// DeleteDocument permanently removes a document.
	// Returns ENOTFOUND if the document does not exist.
	DeleteDocument(ctx context.Context, id string) error
}
