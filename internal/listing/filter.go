// Package listing derives the product-listing view from its URL query.
//
// The query string is the only source of truth: Parse reads a Filter from it
// and every user change produces a new query through Apply. Rendering a page
// never writes the query back.
package listing

import (
	"net/url"
	"strconv"
	"strings"
)

// Query parameter names.
const (
	ParamKeyword  = "keyword"
	ParamCategory = "categoryId"
	ParamMinPrice = "minPrice"
	ParamMaxPrice = "maxPrice"
	ParamSort     = "sortBy"
	ParamPage     = "page"
)

// Sort keys understood by the catalog service.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// Filter is the listing state. Zero values mean "no filter", except Page,
// which is 1-based and never below 1.
type Filter struct {
	Keyword    string
	CategoryID int64
	MinPrice   int64
	MaxPrice   int64
	SortBy     string
	Page       int
}

// Parse reads the filter from a query. Missing or malformed values count as unset.
func Parse(q url.Values) Filter {
	f := Filter{
		Keyword:    strings.TrimSpace(q.Get(ParamKeyword)),
		CategoryID: positive(q.Get(ParamCategory)),
		MinPrice:   positive(q.Get(ParamMinPrice)),
		MaxPrice:   positive(q.Get(ParamMaxPrice)),
		SortBy:     strings.TrimSpace(q.Get(ParamSort)),
		Page:       1,
	}
	if p := positive(q.Get(ParamPage)); p > 1 {
		f.Page = int(p)
	}
	return f
}

// ParseQuery is Parse over a raw query string.
func ParseQuery(raw string) Filter {
	q, _ := url.ParseQuery(raw)
	return Parse(q)
}

// Values encodes the filter. Unset fields and page 1 are left out.
func (f Filter) Values() url.Values {
	q := url.Values{}
	if f.Keyword != "" {
		q.Set(ParamKeyword, f.Keyword)
	}
	if f.CategoryID > 0 {
		q.Set(ParamCategory, strconv.FormatInt(f.CategoryID, 10))
	}
	if f.MinPrice > 0 {
		q.Set(ParamMinPrice, strconv.FormatInt(f.MinPrice, 10))
	}
	if f.MaxPrice > 0 {
		q.Set(ParamMaxPrice, strconv.FormatInt(f.MaxPrice, 10))
	}
	if f.SortBy != "" {
		q.Set(ParamSort, f.SortBy)
	}
	if f.Page > 1 {
		q.Set(ParamPage, strconv.Itoa(f.Page))
	}
	return q
}

// Encode is the canonical query string for the filter.
func (f Filter) Encode() string {
	return f.Values().Encode()
}

// Apply merges change over current and returns the new query. An empty value
// in change removes that parameter. Any change to a parameter other than page
// resets the page to 1. current is not modified.
func Apply(current, change url.Values) url.Values {
	next := url.Values{}
	for k, v := range current {
		next[k] = append([]string(nil), v...)
	}

	resetPage := false
	for k, v := range change {
		if k != ParamPage {
			resetPage = true
		}
		if len(v) == 0 || (len(v) == 1 && strings.TrimSpace(v[0]) == "") {
			next.Del(k)
			continue
		}
		next[k] = append([]string(nil), v...)
	}

	if resetPage {
		next.Del(ParamPage)
	}
	if p := positive(next.Get(ParamPage)); p <= 1 {
		next.Del(ParamPage)
	}
	return next
}

// SetKeyword, SetCategory, SetPriceRange, SetSort and SetPage build changes
// for Apply.
func SetKeyword(keyword string) url.Values {
	return url.Values{ParamKeyword: {strings.TrimSpace(keyword)}}
}

func SetCategory(categoryID int64) url.Values {
	return url.Values{ParamCategory: {formatPositive(categoryID)}}
}

func SetPriceRange(min, max int64) url.Values {
	return url.Values{
		ParamMinPrice: {formatPositive(min)},
		ParamMaxPrice: {formatPositive(max)},
	}
}

func SetSort(sortBy string) url.Values {
	return url.Values{ParamSort: {sortBy}}
}

func SetPage(page int) url.Values {
	return url.Values{ParamPage: {formatPositive(int64(page))}}
}

// ProductQuery picks the catalog endpoint and its query for the filter: a
// keyword searches, a category or price bound filters, otherwise everything is
// listed. The upstream page index is 0-based.
func (f Filter) ProductQuery(size int) (string, url.Values) {
	q := url.Values{}
	page := f.Page - 1
	if page < 0 {
		page = 0
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	sortBy := f.SortBy
	if sortBy == "" {
		sortBy = SortNewest
	}
	q.Set("sortBy", sortBy)

	switch {
	case f.Keyword != "":
		q.Set("keyword", f.Keyword)
		return "/products/search", q
	case f.CategoryID > 0 || f.MinPrice > 0 || f.MaxPrice > 0:
		if f.CategoryID > 0 {
			q.Set("categoryId", strconv.FormatInt(f.CategoryID, 10))
		}
		if f.MinPrice > 0 {
			q.Set("minPrice", strconv.FormatInt(f.MinPrice, 10))
		}
		if f.MaxPrice > 0 {
			q.Set("maxPrice", strconv.FormatInt(f.MaxPrice, 10))
		}
		return "/products/filter", q
	default:
		return "/products", q
	}
}

// Links returns the queries of the previous and next pages, empty when there
// is none. Other parameters of current are kept.
func Links(current url.Values, totalPages int) (prev, next string) {
	page := Parse(current).Page
	if page > 1 {
		prev = Apply(current, SetPage(page-1)).Encode()
	}
	if page < totalPages {
		next = Apply(current, SetPage(page+1)).Encode()
	}
	return prev, next
}

func positive(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func formatPositive(n int64) string {
	if n <= 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}
