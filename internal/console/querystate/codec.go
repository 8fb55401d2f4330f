package querystate

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Well-known query keys shared by every list page.
const (
	KeyPage    = "page"
	KeyLimit   = "limit"
	KeyKeyword = "keyword"

	DefaultPage  = 1
	DefaultLimit = 10
)

// DefaultAllowedLimits is the page-size set offered by list pages.
var DefaultAllowedLimits = []int{10, 25, 50, 100}

// ErrInvalidQueryState marks malformed page/limit parameters. Decode still
// returns usable defaults alongside it.
var ErrInvalidQueryState = errors.New("querystate: invalid query state")

// Config describes the keys and page sizes a list table understands.
type Config struct {
	FilterKeys    []string
	DefaultLimit  int
	AllowedLimits []int
}

// Codec maps FilterState/PageState to URL query parameters and back.
type Codec struct {
	filterKeys   []string
	known        map[string]struct{}
	defaultLimit int
	allowed      map[int]struct{}
}

// NewCodec constructs a Codec. The keyword filter is always known.
func NewCodec(cfg Config) *Codec {
	c := &Codec{
		known:        make(map[string]struct{}),
		defaultLimit: cfg.DefaultLimit,
		allowed:      make(map[int]struct{}),
	}
	for _, k := range append([]string{KeyKeyword}, cfg.FilterKeys...) {
		k = strings.TrimSpace(k)
		if k == "" || k == KeyPage || k == KeyLimit {
			continue
		}
		if _, dup := c.known[k]; dup {
			continue
		}
		c.known[k] = struct{}{}
		c.filterKeys = append(c.filterKeys, k)
	}
	limits := cfg.AllowedLimits
	if len(limits) == 0 {
		limits = DefaultAllowedLimits
	}
	for _, l := range limits {
		if l > 0 {
			c.allowed[l] = struct{}{}
		}
	}
	if c.defaultLimit <= 0 {
		c.defaultLimit = DefaultLimit
	}
	c.allowed[c.defaultLimit] = struct{}{}
	return c
}

// FilterKeys returns the filter keys this codec decodes, keyword first.
func (c *Codec) FilterKeys() []string {
	return append([]string(nil), c.filterKeys...)
}

// DefaultPageState returns page 1 with the default limit.
func (c *Codec) DefaultPageState() PageState {
	return PageState{Page: DefaultPage, Limit: c.defaultLimit}
}

// AllowsLimit reports whether n is one of the allowed page sizes.
func (c *Codec) AllowsLimit(n int) bool {
	_, ok := c.allowed[n]
	return ok
}

// Decode reads the filter and page state out of q. Unknown keys are ignored.
// Malformed page/limit values fall back to the defaults; the returned error
// (wrapping ErrInvalidQueryState) is informational only.
func (c *Codec) Decode(q url.Values) (FilterState, PageState, error) {
	var filters FilterState
	for _, k := range c.filterKeys {
		filters.Set(k, q.Get(k))
	}

	page := c.DefaultPageState()
	var errs []error
	if v := q.Get(KeyLimit); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || !c.AllowsLimit(n) {
			errs = append(errs, fmt.Errorf("%w: limit %q", ErrInvalidQueryState, v))
		} else {
			page.Limit = n
		}
	}
	if v := q.Get(KeyPage); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n < 1 || n > MaxPage(page.Limit) {
			errs = append(errs, fmt.Errorf("%w: page %q", ErrInvalidQueryState, v))
		} else {
			page.Page = n
		}
	}
	return filters, page, errors.Join(errs...)
}

// MaxOffset bounds the row offset a decoded page may address.
const MaxOffset = math.MaxInt32

// MaxPage returns the highest page whose offset stays within MaxOffset.
func MaxPage(limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return MaxOffset/limit + 1
}

// Update is a partial query patch. An empty value deletes the key.
type Update map[string]string

// PageUpdate moves to page n, leaving everything else untouched.
func PageUpdate(n int) Update {
	return Update{KeyPage: strconv.Itoa(n)}
}

// LimitUpdate changes the page size and resets to the first page.
func LimitUpdate(n int) Update {
	return Update{KeyLimit: strconv.Itoa(n), KeyPage: strconv.Itoa(DefaultPage)}
}

// FilterUpdate replaces every filter key of the table with the values in f
// and resets to the first page. Keys missing from f are deleted.
func (c *Codec) FilterUpdate(f FilterState) Update {
	u := Update{KeyPage: strconv.Itoa(DefaultPage)}
	for _, k := range c.filterKeys {
		u[k] = f.Get(k)
	}
	return u
}

// Encode applies u on top of a copy of current. Keys with an empty value in
// u are removed; all others are set. current is never modified.
func Encode(current url.Values, u Update) url.Values {
	next := make(url.Values, len(current)+len(u))
	for k, vs := range current {
		next[k] = append([]string(nil), vs...)
	}
	for k, v := range u {
		if strings.TrimSpace(v) == "" {
			next.Del(k)
			continue
		}
		next.Set(k, v)
	}
	return next
}

// EncodeState renders the canonical query for a filter/page pair.
func EncodeState(f FilterState, p PageState) url.Values {
	q := url.Values{}
	for _, k := range f.Keys() {
		q.Set(k, f.Get(k))
	}
	q.Set(KeyPage, strconv.Itoa(p.Page))
	q.Set(KeyLimit, strconv.Itoa(p.Limit))
	return q
}
