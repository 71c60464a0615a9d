// Package mock provides mock implementations of tidepool interfaces for testing.
package mock

import (
	"context"

	"github.com/fwojciec/tidepool"
)

var (
	_ tidepool.Strategy = (*Strategy)(nil)
	_ tidepool.Instance = (*Instance)(nil)
)

// Strategy is a mock implementation of tidepool.Strategy.
type Strategy struct {
	KindFn        func() tidepool.StrategyKind
	NewInstanceFn func(ctx context.Context) (tidepool.Instance, error)
}

func (s *Strategy) Kind() tidepool.StrategyKind {
	return s.KindFn()
}

func (s *Strategy) NewInstance(ctx context.Context) (tidepool.Instance, error) {
	return s.NewInstanceFn(ctx)
}

// Instance is a mock implementation of tidepool.Instance.
type Instance struct {
	ExtractFn        func(ctx context.Context, content []byte, url string) (*tidepool.ExtractedDoc, error)
	MemoryEstimateFn func() uint64
	CloseFn          func() error
}

func (i *Instance) Extract(ctx context.Context, content []byte, url string) (*tidepool.ExtractedDoc, error) {
	return i.ExtractFn(ctx, content, url)
}

func (i *Instance) MemoryEstimate() uint64 {
	if i.MemoryEstimateFn == nil {
		return 0
	}
	return i.MemoryEstimateFn()
}

func (i *Instance) Close() error {
	if i.CloseFn == nil {
		return nil
	}
	return i.CloseFn()
}
