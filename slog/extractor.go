// Package slog provides logging decorators for tidepool services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/tidepool"
)

// Ensure LoggingExtractor implements tidepool.Extractor.
var _ tidepool.Extractor = (*LoggingExtractor)(nil)

// LoggingExtractor wraps an Extractor with per-request logging.
type LoggingExtractor struct {
	next   tidepool.Extractor
	logger *slog.Logger
}

// NewLoggingExtractor creates a new LoggingExtractor.
func NewLoggingExtractor(next tidepool.Extractor, logger *slog.Logger) *LoggingExtractor {
	return &LoggingExtractor{next: next, logger: logger}
}

// Extract delegates to the wrapped extractor and logs the outcome.
func (e *LoggingExtractor) Extract(ctx context.Context, req tidepool.ExtractRequest) (*tidepool.ExtractedDoc, error) {
	begin := time.Now()
	doc, err := e.next.Extract(ctx, req)
	if err != nil {
		e.logger.Error("extract",
			"url", req.URL,
			"bytes", len(req.Content),
			"duration", time.Since(begin),
			"err", err,
		)
		return nil, err
	}

	e.logger.Info("extract",
		"url", req.URL,
		"bytes", len(req.Content),
		"strategy", string(doc.Strategy),
		"quality", doc.QualityScore,
		"words", doc.WordCount,
		"duration", time.Since(begin),
	)
	return doc, nil
}
