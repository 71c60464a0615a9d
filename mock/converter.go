package mock

import "github.com/fwojciec/tidepool"

var _ tidepool.Converter = (*Converter)(nil)

// Converter is a mock implementation of tidepool.Converter.
type Converter struct {
	ConvertFn func(html string) (string, error)
}

func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFn(html)
}
