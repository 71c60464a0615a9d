package main

import (
	"fmt"

	"github.com/fwojciec/tidepool"
)

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if err := deps.Documents.DeleteDocument(deps.Ctx, c.ID); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", tidepool.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "deleted document %s\n", c.ID)
	return nil
}
