package viewmodel

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"
)

// Pager links the neighbours of a page of a listing.
type Pager struct {
	Page       int
	TotalPages int
	PrevURL    string
	NextURL    string
}

// NewPager builds the links of page from the current request URL. Every
// query parameter except page is kept.
func NewPager(l Layout, page, totalPages int) Pager {
	p := Pager{Page: page, TotalPages: totalPages}
	if page > 1 {
		p.PrevURL = withPage(l.URL, page-1)
	}
	if page < totalPages {
		p.NextURL = withPage(l.URL, page+1)
	}
	return p
}

func withPage(raw string, page int) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "?page=" + strconv.Itoa(page)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.RequestURI()
}

// Funcs are the helpers registered with the view engine.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"pager":     NewPager,
		"hasSuffix": strings.HasSuffix,
	}
}
