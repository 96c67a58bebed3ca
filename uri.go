package inhttp

import (
	"net/url"
	"strings"
)

// RequestTarget is the decomposed request-target of the start line. Raw is
// kept verbatim; Path and Fragment stay percent-encoded.
type RequestTarget struct {
	Raw      string
	Path     string
	Query    string
	Fragment string
}

// splitRequestTarget splits a request-target into path, query and
// fragment. A target beginning with "//" is an abs_path per RFC 2616
// section 5.1.2, not an authority: parsing it behind a "." prefix keeps
// url.Parse from reading it as a host while query and fragment still
// split normally.
func splitRequestTarget(raw string) (RequestTarget, error) {
	parse := raw
	if strings.HasPrefix(raw, "//") {
		parse = "." + raw
	}
	u, err := url.Parse(parse)
	if err != nil {
		return RequestTarget{}, err
	}
	path := u.EscapedPath()
	if parse != raw {
		path = strings.TrimPrefix(path, ".")
	}
	return RequestTarget{
		Raw:      raw,
		Path:     path,
		Query:    u.RawQuery,
		Fragment: u.EscapedFragment(),
	}, nil
}
