package listing

import (
	"net/url"
	"testing"

	"storefront/internal/apiclient"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	f := Filter{
		Keyword:    "sofa",
		CategoryID: 3,
		MinPrice:   1000000,
		MaxPrice:   5000000,
		SortBy:     SortPriceAsc,
		Page:       2,
	}

	decoded := ParseQuery(f.Encode())
	assert.Equal(t, f, decoded)
}

func TestParseDefaults(t *testing.T) {
	f := Parse(url.Values{})
	assert.Equal(t, Filter{Page: 1}, f)

	f = ParseQuery("page=0&categoryId=abc&minPrice=-5")
	assert.Equal(t, Filter{Page: 1}, f)
}

func TestFilterChangeResetsPage(t *testing.T) {
	current := Filter{Keyword: "lamp", SortBy: SortNewest, Page: 4}.Values()

	changes := []url.Values{
		SetKeyword("chair"),
		SetCategory(2),
		SetPriceRange(100, 900),
		SetSort(SortPriceDesc),
	}
	for _, change := range changes {
		next := Parse(Apply(current, change))
		assert.Equal(t, 1, next.Page, "change %v", change)
	}
}

func TestPageChangeKeepsFilters(t *testing.T) {
	f := Filter{Keyword: "sofa", CategoryID: 3, MinPrice: 10, MaxPrice: 20, SortBy: SortPriceAsc, Page: 1}

	next := Parse(Apply(f.Values(), SetPage(5)))
	want := f
	want.Page = 5
	assert.Equal(t, want, next)
}

func TestApplyClearsEmptyValues(t *testing.T) {
	current := Filter{Keyword: "sofa", CategoryID: 3}.Values()

	next := Parse(Apply(current, SetCategory(0)))
	assert.Equal(t, Filter{Keyword: "sofa", Page: 1}, next)
	// input untouched
	assert.Equal(t, "3", current.Get(ParamCategory))
}

func TestProductQueryRouting(t *testing.T) {
	path, q := Filter{Keyword: "sofa", CategoryID: 3, Page: 2}.ProductQuery(18)
	assert.Equal(t, "/products/search", path)
	assert.Equal(t, "sofa", q.Get("keyword"))
	assert.Empty(t, q.Get("categoryId"))
	assert.Equal(t, "1", q.Get("page"))
	assert.Equal(t, "18", q.Get("size"))
	assert.Equal(t, SortNewest, q.Get("sortBy"))

	path, q = Filter{MaxPrice: 5000000, SortBy: SortPriceDesc, Page: 1}.ProductQuery(18)
	assert.Equal(t, "/products/filter", path)
	assert.Equal(t, "5000000", q.Get("maxPrice"))
	assert.Equal(t, "0", q.Get("page"))
	assert.Equal(t, SortPriceDesc, q.Get("sortBy"))

	path, _ = Filter{Page: 1}.ProductQuery(18)
	assert.Equal(t, "/products", path)
}

func TestLinks(t *testing.T) {
	current := Filter{Keyword: "sofa", Page: 2}.Values()

	prev, next := Links(current, 3)
	assert.Equal(t, "keyword=sofa", prev)
	assert.Equal(t, "keyword=sofa&page=3", next)

	prev, next = Links(Filter{Page: 1}.Values(), 1)
	assert.Empty(t, prev)
	assert.Empty(t, next)
}

func TestDraftCommit(t *testing.T) {
	current := Filter{CategoryID: 3, Page: 6}.Values()

	d := NewDraft(Parse(current))
	d.Keyword = "  armchair "
	d.MinPrice = "1000000"

	next, err := d.Commit(current)
	require.NoError(t, err)
	assert.Equal(t, Filter{Keyword: "armchair", CategoryID: 3, MinPrice: 1000000, Page: 1}, Parse(next))
}

func TestDraftRejectsBadPrices(t *testing.T) {
	_, err := Draft{MinPrice: "abc"}.Commit(url.Values{})
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))

	_, err = Draft{MinPrice: "900", MaxPrice: "100"}.Commit(url.Values{})
	assert.Equal(t, apiclient.KindValidation, apiclient.Classify(err))
}
