package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/prometheus"
)

// Run executes the extract command.
func (c *ExtractCmd) Run(deps *Dependencies) error {
	content, err := c.readInput()
	if err != nil {
		return err
	}
	if len(content) == 0 && c.URL == "" {
		return tidepool.Errorf(tidepool.EINVALID, "provide an input file or --url")
	}

	// With only a URL and no browser rendering requested, fetch the page
	// over plain HTTP so the cheap strategies have content to work on.
	if len(content) == 0 && !c.Browser && deps.Fetcher != nil {
		content, err = deps.Fetcher.Fetch(deps.Ctx, c.URL)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", tidepool.ErrorMessage(err))
			return err
		}
	}

	order, err := parseOrder(c.Order)
	if err != nil {
		return err
	}

	doc, err := deps.Engine.Extract(deps.Ctx, tidepool.ExtractRequest{
		Content: content,
		URL:     c.URL,
		Order:   order,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", tidepool.ErrorMessage(err))
		return err
	}

	if c.Save {
		if err := deps.Documents.CreateDocument(deps.Ctx, doc); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", tidepool.ErrorMessage(err))
			return err
		}
		fmt.Fprintf(deps.Stderr, "saved document %s\n", doc.ID)
	}

	if err := c.writeOutput(deps.Stdout, doc); err != nil {
		return err
	}

	if c.Metrics {
		if err := prometheus.WriteText(deps.Stderr, deps.Metrics); err != nil {
			return err
		}
	}

	return nil
}

func (c *ExtractCmd) readInput() ([]byte, error) {
	switch c.File {
	case "":
		return nil, nil
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		content, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("reading input file: %w", err)
		}
		return content, nil
	}
}

func (c *ExtractCmd) writeOutput(w io.Writer, doc *tidepool.ExtractedDoc) error {
	switch {
	case c.JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case c.Markdown:
		if doc.Markdown == "" {
			return tidepool.Errorf(tidepool.ENOTFOUND, "document has no Markdown rendering")
		}
		fmt.Fprintln(w, doc.Markdown)
	default:
		if doc.Title != "" {
			fmt.Fprintf(w, "%s\n\n", doc.Title)
		}
		fmt.Fprintln(w, doc.Text)
	}
	return nil
}

func parseOrder(names []string) ([]tidepool.StrategyKind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	order := make([]tidepool.StrategyKind, 0, len(names))
	for _, name := range names {
		kind, err := tidepool.ParseStrategyKind(name)
		if err != nil {
			return nil, err
		}
		order = append(order, kind)
	}
	return order, nil
}
