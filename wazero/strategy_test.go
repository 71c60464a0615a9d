package wazero_test

import (
	"context"
	"testing"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/wazero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyModule is a valid wasm binary with no exports (magic + version).
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestNewStrategy(t *testing.T) {
	t.Parallel()

	t.Run("rejects empty module", func(t *testing.T) {
		t.Parallel()

		_, err := wazero.NewStrategy(context.Background(), nil)
		require.Error(t, err)
		assert.Equal(t, tidepool.EINVALID, tidepool.ErrorCode(err))
	})

	t.Run("rejects malformed module", func(t *testing.T) {
		t.Parallel()

		_, err := wazero.NewStrategy(context.Background(), []byte("not wasm"))
		require.Error(t, err)
		assert.Equal(t, tidepool.EINVALID, tidepool.ErrorCode(err))
	})

	t.Run("compiles valid module", func(t *testing.T) {
		t.Parallel()

		s, err := wazero.NewStrategy(context.Background(), emptyModule)
		require.NoError(t, err)
		defer s.Close(context.Background())

		assert.Equal(t, tidepool.StrategyWasm, s.Kind())
	})
}

func TestStrategy_NewInstance(t *testing.T) {
	t.Parallel()

	t.Run("requires alloc and extract exports", func(t *testing.T) {
		t.Parallel()

		s, err := wazero.NewStrategy(context.Background(), emptyModule)
		require.NoError(t, err)
		defer s.Close(context.Background())

		_, err = s.NewInstance(context.Background())
		require.Error(t, err)
		assert.Equal(t, tidepool.EINVALID, tidepool.ErrorCode(err))
		assert.Contains(t, err.Error(), "missing alloc or extract export")
	})
}
