package usecase

import "net/url"

// Navigation is the page location the Loader keeps in sync with the displayed repository.
type Navigation interface {
	Query() url.Values
	// ReplaceQuery swaps the query string in place without navigating away.
	ReplaceQuery(q url.Values)
	String() string
}

// URLNavigation is an in-memory Navigation backed by a URL.
type URLNavigation struct {
	u url.URL
}

// NewURLNavigation copies u so later replacements do not affect the caller's value.
func NewURLNavigation(u *url.URL) *URLNavigation {
	n := &URLNavigation{}
	if u != nil {
		n.u = *u
	}
	return n
}

func (n *URLNavigation) Query() url.Values {
	return n.u.Query()
}

func (n *URLNavigation) ReplaceQuery(q url.Values) {
	n.u.RawQuery = q.Encode()
}

func (n *URLNavigation) String() string {
	return n.u.String()
}
