package listing

import (
	"net/url"
	"strconv"
	"strings"

	"storefront/internal/apiclient"
)

// Draft holds the text inputs of the listing while the user types. Nothing in
// a draft reaches the query until Commit.
type Draft struct {
	Keyword  string
	MinPrice string
	MaxPrice string
}

// NewDraft seeds the inputs from the committed filter.
func NewDraft(f Filter) Draft {
	d := Draft{Keyword: f.Keyword}
	if f.MinPrice > 0 {
		d.MinPrice = strconv.FormatInt(f.MinPrice, 10)
	}
	if f.MaxPrice > 0 {
		d.MaxPrice = strconv.FormatInt(f.MaxPrice, 10)
	}
	return d
}

// Commit validates the inputs and applies them to current as one change, so
// the page goes back to 1.
func (d Draft) Commit(current url.Values) (url.Values, error) {
	min, err := parsePrice("minPrice", d.MinPrice)
	if err != nil {
		return nil, err
	}
	max, err := parsePrice("maxPrice", d.MaxPrice)
	if err != nil {
		return nil, err
	}
	if min > 0 && max > 0 && min > max {
		return nil, apiclient.Invalid("minPrice", "minimum price must not exceed maximum price")
	}

	change := SetPriceRange(min, max)
	change[ParamKeyword] = SetKeyword(d.Keyword)[ParamKeyword]
	return Apply(current, change), nil
}

func parsePrice(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, apiclient.Invalid(field, "price must be a non-negative whole number")
	}
	return n, nil
}
