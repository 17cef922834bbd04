package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thingsss/scraping-service/internal/scrape"
)

const productPage = `<!DOCTYPE html>
<html>
<head>
  <title>Fallback Title That Is Long Enough</title>
  <meta name="description" content="A mid-century walnut coffee table with a solid hardwood frame.">
  <meta name="keywords" content="table, walnut">
  <meta property="og:title" content="Walnut Coffee Table">
  <meta property="og:image" content="https://cdn.example.com/og.jpg">
</head>
<body>
  <h1 class="product-title">Walnut Coffee Table</h1>
  <div class="product-description">A mid-century walnut coffee table with a solid hardwood frame and tapered legs.</div>
  <span class="price">$999.00</span>
  <div class="brand">Article</div>
  <div class="model">WCT-200</div>
  <div class="product-images">
    <img src="/images/table-front.jpg" width="800" height="600">
    <img src="/images/table-side.jpg">
    <img src="/images/table-front.jpg">
    <img src="/images/cart-icon.png">
    <img src="/images/thumb.jpg" width="32" height="32">
    <img data-src="/images/table-lazy.jpg">
  </div>
  <div class="specifications">
    <table>
      <tr><td>Material</td><td>Walnut</td></tr>
      <tr><td>Width</td><td>120 cm</td></tr>
      <tr><td>incomplete row</td></tr>
    </table>
  </div>
</body>
</html>`

func TestExtractProductFields(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultRuleSet())
	data, err := p.Extract([]byte(productPage), "https://shop.example.com/tables/42",
		[]string{"title", "description", "images", "price", "brand", "model", "specifications", "meta_tags"})
	require.NoError(t, err)

	require.NotNil(t, data.Title)
	require.Equal(t, "Walnut Coffee Table", *data.Title)

	require.NotNil(t, data.Description)
	require.Contains(t, *data.Description, "mid-century walnut")

	require.NotNil(t, data.Price)
	require.Equal(t, "999.00", *data.Price)
	require.NotNil(t, data.Currency)
	require.Equal(t, "USD", *data.Currency)

	require.NotNil(t, data.Brand)
	require.Equal(t, "Article", *data.Brand)
	require.NotNil(t, data.Model)
	require.Equal(t, "WCT-200", *data.Model)

	require.Equal(t, []string{
		"https://shop.example.com/images/table-front.jpg",
		"https://shop.example.com/images/table-side.jpg",
		"https://shop.example.com/images/table-lazy.jpg",
	}, data.Images, "images must be resolved, deduped, and filtered of icons and thumbnails")

	require.Equal(t, map[string]string{
		"Material": "Walnut",
		"Width":    "120 cm",
	}, data.Specifications)

	require.Equal(t, "A mid-century walnut coffee table with a solid hardwood frame.", data.MetaTags["description"])
	require.Equal(t, "Walnut Coffee Table", data.MetaTags["og_title"])
	require.Equal(t, "https://cdn.example.com/og.jpg", data.MetaTags["og_image"])
}

func TestExtractOnlyRequestedFields(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultRuleSet())
	data, err := p.Extract([]byte(productPage), "https://shop.example.com/tables/42", []string{"title"})
	require.NoError(t, err)

	require.NotNil(t, data.Title)
	require.Nil(t, data.Price)
	require.Nil(t, data.Description)
	require.Empty(t, data.Images)
	require.Empty(t, data.Specifications)
	require.Empty(t, data.MetaTags)
}

func TestExtractFieldMissIsNotAnError(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultRuleSet())
	data, err := p.Extract([]byte(`<html><body><p>nothing here</p></body></html>`),
		"https://example.com/", []string{"title", "price", "images"})
	require.NoError(t, err)

	require.Nil(t, data.Title)
	require.Nil(t, data.Price)
	require.Nil(t, data.Currency)
	require.NotNil(t, data.Images)
	require.Empty(t, data.Images)
}

func TestExtractIsDeterministic(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultRuleSet())
	fields := []string{"title", "description", "images", "price"}

	first, err := p.Extract([]byte(productPage), "https://shop.example.com/tables/42", fields)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Extract([]byte(productPage), "https://shop.example.com/tables/42", fields)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestExtractHostRulesTakePriority(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	  <h1 id="productTitle">Amazon Specific Title</h1>
	  <h1 class="product-title">Generic Title Match</h1>
	</body></html>`

	p := NewPipeline(DefaultRuleSet())
	data, err := p.Extract([]byte(page), "https://www.amazon.com/dp/B000", []string{"title"})
	require.NoError(t, err)
	require.NotNil(t, data.Title)
	require.Equal(t, "Amazon Specific Title", *data.Title)
}

func TestExtractTitleMinimumLength(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Real Page Title</title></head><body><h1 class="product-title">ab</h1></body></html>`
	p := NewPipeline(DefaultRuleSet())
	data, err := p.Extract([]byte(page), "https://example.com/", []string{"title"})
	require.NoError(t, err)
	require.NotNil(t, data.Title)
	require.Equal(t, "Real Page Title", *data.Title, "too-short matches must fall through to later rules")
}

func TestProbe(t *testing.T) {
	t.Parallel()

	p := NewPipeline(DefaultRuleSet())

	err := p.Probe(nil)
	require.ErrorIs(t, err, scrape.ErrCategorical)

	err = p.Probe([]byte("   \n  "))
	require.ErrorIs(t, err, scrape.ErrCategorical)

	require.NoError(t, p.Probe([]byte(productPage)))
}

func TestReloadSwapsRules(t *testing.T) {
	t.Parallel()

	page := `<html><body><h2 class="custom-name">Override Title</h2><h1 class="product-title">Default Title</h1></body></html>`
	p := NewPipeline(DefaultRuleSet())

	data, err := p.Extract([]byte(page), "https://example.com/", []string{"title"})
	require.NoError(t, err)
	require.Equal(t, "Default Title", *data.Title)

	custom := DefaultRuleSet()
	custom.generic["title"] = []Rule{{Selector: ".custom-name"}}
	p.Reload(custom)

	data, err = p.Extract([]byte(page), "https://example.com/", []string{"title"})
	require.NoError(t, err)
	require.Equal(t, "Override Title", *data.Title)
}

func TestExtractSpecListAndDefinitions(t *testing.T) {
	t.Parallel()

	page := `<html><body>
	  <div class="features"><ul>
	    <li>Finish: Matte</li>
	    <li>No delimiter here</li>
	  </ul></div>
	</body></html>`
	p := NewPipeline(DefaultRuleSet())
	data, err := p.Extract([]byte(page), "https://example.com/", []string{"specifications"})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"Finish": "Matte"}, data.Specifications)
}

func TestImageHandlingEdgeCases(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="product-images">
	  <img src="https://cdn.other.example/abs.jpg">
	  <img src="ftp://bad.example/x.jpg">
	  <img src="">
	</div></body></html>`
	p := NewPipeline(DefaultRuleSet())
	data, err := p.Extract([]byte(page), "https://example.com/p/1", []string{"images"})
	require.NoError(t, err)
	require.Equal(t, []string{"https://cdn.other.example/abs.jpg"}, data.Images)
}
