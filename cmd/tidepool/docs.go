package main

import (
	"fmt"

	"github.com/fwojciec/tidepool"
)

// Run executes the docs command.
func (c *DocsCmd) Run(deps *Dependencies) error {
	filter := tidepool.DocumentFilter{Limit: c.Limit}
	if c.URL != "" {
		filter.URL = &c.URL
	}
	if c.Strategy != "" {
		kind, err := tidepool.ParseStrategyKind(c.Strategy)
		if err != nil {
			return err
		}
		filter.Strategy = &kind
	}
	if c.ByQuality {
		filter.SortBy = tidepool.SortByQuality
	}

	docs, err := deps.Documents.FindDocuments(deps.Ctx, filter)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", tidepool.ErrorMessage(err))
		return err
	}

	if len(docs) == 0 {
		fmt.Fprintln(deps.Stdout, "No documents found. Use 'tidepool extract --save' to store one.")
		return nil
	}

	for _, doc := range docs {
		title := doc.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(deps.Stdout, "%s  %-12s  q=%-3d  %s\n     %s\n",
			doc.ID, doc.Strategy, doc.QualityScore, title, doc.URL)
	}

	return nil
}

// Run executes the show command.
func (c *ShowCmd) Run(deps *Dependencies) error {
	doc, err := deps.Documents.FindDocumentByID(deps.Ctx, c.ID)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", tidepool.ErrorMessage(err))
		return err
	}

	if c.Markdown {
		if doc.Markdown == "" {
			return tidepool.Errorf(tidepool.ENOTFOUND, "document has no Markdown rendering")
		}
		fmt.Fprintln(deps.Stdout, doc.Markdown)
		return nil
	}

	if doc.Title != "" {
		fmt.Fprintf(deps.Stdout, "%s\n\n", doc.Title)
	}
	fmt.Fprintln(deps.Stdout, doc.Text)
	return nil
}
