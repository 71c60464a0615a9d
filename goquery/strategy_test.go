package goquery_test

import (
	"context"
	"testing"

	"github.com/fwojciec/tidepool"
	"github.com/fwojciec/tidepool/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstance(t *testing.T) tidepool.Instance {
	t.Helper()
	inst, err := goquery.NewStrategy().NewInstance(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { inst.Close() })
	return inst
}

func TestStrategy_Kind(t *testing.T) {
	t.Parallel()
	assert.Equal(t, tidepool.StrategyCSS, goquery.NewStrategy().Kind())
}

func TestInstance_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts article content and title", func(t *testing.T) {
		t.Parallel()

		html := `<!DOCTYPE html>
<html>
<head><title>Getting Started</title></head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Getting Started</h1>
<p>This is the main content of the page with enough words to matter.</p>
</article>
<footer>Copyright</footer>
</body>
</html>`

		inst := newInstance(t)
		doc, err := inst.Extract(context.Background(), []byte(html), "https://example.com/docs")

		require.NoError(t, err)
		assert.Equal(t, "Getting Started", doc.Title)
		assert.Contains(t, doc.Text, "main content of the page")
		assert.NotContains(t, doc.Text, "Copyright")
		assert.Greater(t, doc.WordCount, 0)
		assert.Greater(t, doc.QualityScore, 0)
	})

	t.Run("strips script and navigation noise", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title>T</title></head><body>
<main>
<script>var tracking = "beacon";</script>
<nav>Site Navigation Links</nav>
<p>Real article text lives here.</p>
</main>
</body></html>`

		inst := newInstance(t)
		doc, err := inst.Extract(context.Background(), []byte(html), "")

		require.NoError(t, err)
		assert.NotContains(t, doc.Text, "beacon")
		assert.NotContains(t, doc.Text, "Site Navigation Links")
		assert.Contains(t, doc.Text, "Real article text")
	})

	t.Run("scores semantic regions above body fallback", func(t *testing.T) {
		t.Parallel()

		semantic := `<html><body><article><p>Words words words words words.</p></article></body></html>`
		fallback := `<html><body><div><p>Words words words words words.</p></div></body></html>`

		inst := newInstance(t)
		semDoc, err := inst.Extract(context.Background(), []byte(semantic), "")
		require.NoError(t, err)
		fbDoc, err := inst.Extract(context.Background(), []byte(fallback), "")
		require.NoError(t, err)

		assert.Greater(t, semDoc.QualityScore, fbDoc.QualityScore)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		t.Parallel()

		inst := newInstance(t)
		_, err := inst.Extract(context.Background(), []byte("   "), "")

		require.Error(t, err)
		assert.Equal(t, tidepool.EINVALID, tidepool.ErrorCode(err))
	})

	t.Run("fails with ENOTFOUND when nothing matches", func(t *testing.T) {
		t.Parallel()

		inst := newInstance(t)
		_, err := inst.Extract(context.Background(), []byte("<html><body><script>x</script></body></html>"), "")

		require.Error(t, err)
		assert.Equal(t, tidepool.ENOTFOUND, tidepool.ErrorCode(err))
	})
}

func TestWithSelectors(t *testing.T) {
	t.Parallel()

	selectors := goquery.DefaultSelectorSet()
	selectors.Content = []string{".docs-body"}

	strategy := goquery.NewStrategy(goquery.WithSelectors(selectors))
	inst, err := strategy.NewInstance(context.Background())
	require.NoError(t, err)
	defer inst.Close()

	html := `<html><body>
<div class="docs-body"><p>Custom region content.</p></div>
<div class="other"><p>Ignored content.</p></div>
</body></html>`

	doc, err := inst.Extract(context.Background(), []byte(html), "")
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "Custom region content")
	assert.NotContains(t, doc.Text, "Ignored content")
}
