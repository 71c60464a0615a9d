package mock

import (
	"context"

	"github.com/fwojciec/tidepool"
)

var _ tidepool.DocumentService = (*DocumentService)(nil)

// DocumentService is a mock implementation of tidepool.DocumentService.
type DocumentService struct {
	CreateDocumentFn   func(ctx context.Context, doc *tidepool.ExtractedDoc) error
	FindDocumentByIDFn func(ctx context.Context, id string) (*tidepool.ExtractedDoc, error)
	FindDocumentsFn    func(ctx context.Context, filter tidepool.DocumentFilter) ([]*tidepool.ExtractedDoc, error)
	DeleteDocumentFn   func(ctx context.Context, id string) error
}

func (s *DocumentService) CreateDocument(ctx context.Context, doc *tidepool.ExtractedDoc) error {
	return s.CreateDocumentFn(ctx, doc)
}

func (s *DocumentService) FindDocumentByID(ctx context.Context, id string) (*tidepool.ExtractedDoc, error) {
	return s.FindDocumentByIDFn(ctx, id)
}

func (s *DocumentService) FindDocuments(ctx context.Context, filter tidepool.DocumentFilter) ([]*tidepool.ExtractedDoc, error) {
	return s.FindDocumentsFn(ctx, filter)
}

func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	return s.DeleteDocumentFn(ctx, id)
}
