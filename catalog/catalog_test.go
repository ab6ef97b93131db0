package catalog

import (
	"bytes"
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vocabulary = []string{
	"wireless", "bluetooth", "wired", "studio", "headphones", "noise", "cancelling", "isolation",
	"with", "and", "long", "battery", "electronics", "audioco", "studioco",
	"yoga", "mat", "non", "slip", "eco", "friendly", "sports", "fitco",
}

// wordCounts embeds text as term counts over a fixed vocabulary.
func wordCounts() embed.Func {
	return embed.Func{Dim: len(vocabulary), Fn: func(_ context.Context, text string) ([]float64, error) {
		vec := make([]float64, len(vocabulary))
		for _, w := range strings.Fields(strings.ToLower(text)) {
			if i := slices.Index(vocabulary, w); i >= 0 {
				vec[i]++
			}
		}
		return vec, nil
	}}
}

func testProducts() []Product {
	return []Product{
		{ID: "P1", Name: "Wireless Headphones", Description: "wireless noise cancelling headphones with long battery", Category: "Electronics", Brand: "AudioCo", Price: 199.99, Rating: 4.5, Stock: 150},
		{ID: "P2", Name: "Bluetooth Headphones", Description: "wireless bluetooth headphones with noise cancelling and battery", Category: "Electronics", Brand: "AudioCo", Price: 149, Rating: 4.1, Stock: 40},
		{ID: "P3", Name: "Studio Headphones", Description: "wired studio headphones with noise isolation", Category: "Electronics", Brand: "StudioCo", Price: 99, Rating: 4.8, Stock: 0},
		{ID: "P4", Name: "Yoga Mat", Description: "non slip yoga mat eco friendly", Category: "Sports", Brand: "FitCo", Price: 35, Rating: 4.4, Stock: 200},
		{ID: "P5", Name: "Mystery Box", Category: "Misc", Stock: 3},
	}
}

func newIndexedCatalog(t *testing.T) *vecsim.Engine {
	t.Helper()
	e, err := vecsim.New(vecsim.WithMetric(distance.MetricCosine))
	require.NoError(t, err)

	_, err = NewIngester(e, wordCounts()).Ingest(context.Background(), testProducts())
	require.NoError(t, err)
	return e
}

func resultIDs(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestFormatText(t *testing.T) {
	p := testProducts()[0]
	assert.Equal(t, "Wireless Headphones wireless noise cancelling headphones with long battery Electronics AudioCo", FormatText(p))

	assert.Equal(t, "Mystery Box Misc", FormatText(testProducts()[4]))

	tmpl := TextTemplate{Fields: []Field{FieldBrand, FieldName}, Separator: " | "}
	assert.Equal(t, "AudioCo | Wireless Headphones", tmpl.Format(p))
}

func TestProduct_Metadata(t *testing.T) {
	md := testProducts()[2].Metadata()
	assert.Equal(t, "Electronics", md[MetaCategory])
	assert.Equal(t, "StudioCo", md[MetaBrand])
	assert.Equal(t, "false", md[MetaInStock])
	assert.Equal(t, "0", md[MetaStock])
	assert.Equal(t, "99", md[MetaPrice])

	md = Product{ID: "x", Stock: 1}.Metadata()
	assert.NotContains(t, md, MetaCategory)
	assert.Equal(t, "true", md[MetaInStock])
}

func TestReadJSONLines(t *testing.T) {
	input := `{"product_id":"P1","name":"Wireless Headphones","description":"great","price":199.99,"stock_quantity":150}
{"product_id":"P2","name":"Yoga Mat","category":"Sports"}
`
	products, err := ReadJSONLines(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P1", products[0].ID)
	assert.Equal(t, 199.99, products[0].Price)
	assert.Equal(t, int64(150), products[0].Stock)
	assert.Equal(t, "Sports", products[1].Category)

	_, err = ReadJSONLines(strings.NewReader(`{"product_id":"P1"}` + "\n{oops"))
	assert.ErrorContains(t, err, "product 2")

	products, err = ReadJSONLines(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestParquetRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteParquet(&buf, testProducts()))

	products, err := ReadParquet(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, testProducts(), products)

	_, err = ReadParquet(bytes.NewReader([]byte("not parquet")), 11)
	assert.Error(t, err)
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	e, err := vecsim.New(vecsim.WithMetric(distance.MetricCosine))
	require.NoError(t, err)

	in := NewIngester(e, wordCounts(), func(o *IngestOptions) {
		o.BatchSize = 2
		o.Concurrency = 2
	})

	report, err := in.Ingest(ctx, testProducts())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Indexed)
	assert.Equal(t, 1, report.SkippedNoDescription)
	assert.Equal(t, 0, report.SkippedExisting)
	assert.Equal(t, 4, e.Len())

	rec, ok := e.Get("P3")
	require.True(t, ok)
	assert.Equal(t, "false", rec.Metadata[MetaInStock])
	assert.Len(t, rec.Vector, len(vocabulary))

	report, err = in.Ingest(ctx, testProducts())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Indexed)
	assert.Equal(t, 4, report.SkippedExisting)
}

func TestIngest_ProviderError(t *testing.T) {
	e, err := vecsim.New()
	require.NoError(t, err)

	failing := embed.Func{Fn: func(context.Context, string) ([]float64, error) {
		return nil, vecsim.ErrRateLimited
	}}

	report, err := NewIngester(e, failing).Ingest(context.Background(), testProducts())
	assert.ErrorIs(t, err, vecsim.ErrRateLimited)
	assert.Equal(t, 0, report.Indexed)
	assert.Equal(t, 0, e.Len())
}

func TestRecommender_SimilarProducts(t *testing.T) {
	ctx := context.Background()
	e := newIndexedCatalog(t)

	r := NewRecommender(e, nil)
	recs, err := r.SimilarProducts(ctx, "P1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2"}, resultIDs(recs))
	assert.InDelta(t, 12/math.Sqrt(15*16), recs[0].Similarity, 1e-9)
	assert.Equal(t, "Bluetooth Headphones", recs[0].Name())

	loose := NewRecommender(e, nil, func(o *RecommenderOptions) {
		o.MinSimilarity = 0.4
		o.ExcludeOutOfStock = false
	})
	recs, err = loose.SimilarProducts(ctx, "P1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2", "P3"}, resultIDs(recs))

	_, err = r.SimilarProducts(ctx, "missing", 5)
	assert.ErrorIs(t, err, vecsim.ErrNotFound)
}

func TestRecommender_SearchText(t *testing.T) {
	ctx := context.Background()
	e := newIndexedCatalog(t)

	r := NewRecommender(e, wordCounts())
	recs, err := r.SearchText(ctx, "wireless headphones", 3)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.Equal(t, "P1", recs[0].ID)
	for _, rec := range recs {
		assert.GreaterOrEqual(t, rec.Similarity, DefaultMinSimilarity)
	}

	_, err = r.SearchText(ctx, "", 3)
	assert.ErrorIs(t, err, embed.ErrEmptyInput)

	_, err = NewRecommender(e, nil).SearchText(ctx, "mat", 3)
	assert.ErrorIs(t, err, vecsim.ErrInvalidArgument)
}

func TestRecommender_ProviderErrorPropagates(t *testing.T) {
	e := newIndexedCatalog(t)
	errDown := errors.New("down")

	r := NewRecommender(e, embed.Func{Fn: func(context.Context, string) ([]float64, error) {
		return nil, errDown
	}})
	_, err := r.SearchText(context.Background(), "headphones", 3)
	assert.ErrorIs(t, err, errDown)
}

func TestRecommender_Substitutions(t *testing.T) {
	ctx := context.Background()
	e := newIndexedCatalog(t)
	r := NewRecommender(e, nil)

	recs, err := r.Substitutions(ctx, "P1", ReasonOutOfStock)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2"}, resultIDs(recs))
	assert.Equal(t, int64(40), recs[0].Stock())

	recs, err = r.Substitutions(ctx, "P1", ReasonPrice)
	require.NoError(t, err)
	assert.Equal(t, []string{"P2"}, resultIDs(recs))

	// P1 costs more than 20% above P2.
	recs, err = r.Substitutions(ctx, "P2", ReasonPrice)
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = r.Substitutions(ctx, "P1", "color")
	assert.ErrorIs(t, err, vecsim.ErrInvalidArgument)

	_, err = r.Substitutions(ctx, "missing", ReasonPrice)
	assert.ErrorIs(t, err, vecsim.ErrNotFound)
}

func TestRecommender_SubstitutionsLimit(t *testing.T) {
	ctx := context.Background()

	// S1..S7 drift away from the base product in order.
	newEngine := func(t *testing.T, basePrice float64) *vecsim.Engine {
		t.Helper()
		e, err := vecsim.New(vecsim.WithMetric(distance.MetricCosine))
		require.NoError(t, err)

		base := Product{ID: "BASE", Name: "Base", Price: basePrice, Stock: 0}
		require.NoError(t, e.Put(ctx, base.ID, []float64{1, 0}, base.Metadata()))
		for i, id := range []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7"} {
			p := Product{ID: id, Name: id, Price: 10, Stock: 50}
			if id == "S2" {
				p.Price = 20
			}
			require.NoError(t, e.Put(ctx, id, []float64{1, 0.05 * float64(i+1)}, p.Metadata()))
		}
		far := Product{ID: "FAR", Name: "Far", Price: 5, Stock: 50}
		require.NoError(t, e.Put(ctx, far.ID, []float64{0, 1}, far.Metadata()))
		return e
	}

	t.Run("out of stock", func(t *testing.T) {
		r := NewRecommender(newEngine(t, 10), nil)
		recs, err := r.Substitutions(ctx, "BASE", ReasonOutOfStock)
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S2", "S3", "S4", "S5"}, resultIDs(recs))
	})

	t.Run("price", func(t *testing.T) {
		r := NewRecommender(newEngine(t, 10), nil)
		recs, err := r.Substitutions(ctx, "BASE", ReasonPrice)
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S3", "S4", "S5", "S6"}, resultIDs(recs))
	})

	t.Run("price unknown", func(t *testing.T) {
		r := NewRecommender(newEngine(t, 0), nil)
		recs, err := r.Substitutions(ctx, "BASE", ReasonPrice)
		require.NoError(t, err)
		assert.Equal(t, []string{"S1", "S2", "S3", "S4", "S5"}, resultIDs(recs))
	})
}
