package pdf_test

import (
	"context"
	"testing"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessor_Applies(t *testing.T) {
	t.Parallel()

	p := pdf.NewPreprocessor()

	assert.True(t, p.Applies([]byte("%PDF-1.7\n...")))
	assert.False(t, p.Applies([]byte("<!DOCTYPE html><html></html>")))
	assert.False(t, p.Applies(nil))
	assert.False(t, p.Applies([]byte(" %PDF-1.7"))) // magic must lead
}

func TestPreprocessor_Process(t *testing.T) {
	t.Parallel()

	t.Run("rejects malformed pdf", func(t *testing.T) {
		t.Parallel()

		p := pdf.NewPreprocessor()
		_, err := p.Process(context.Background(), []byte("%PDF-1.7 truncated garbage"))

		require.Error(t, err)
		assert.Equal(t, tidepool.EINVALID, tidepool.ErrorCode(err))
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		p := pdf.NewPreprocessor()
		_, err := p.Process(ctx, []byte("%PDF-1.7"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
