// Package response holds the response types a grant produces and renders
// them onto net/http response writers: bearer-token JSON bodies, 302
// redirects, and protocol error payloads.
package response

import (
	"net/http"
	"net/url"
	"strings"
)

// Type is a renderable grant result. Grants return one of the concrete
// types below; the HTTP layer invokes Write exactly once.
type Type interface {
	Write(w http.ResponseWriter) error
}

// MakeRedirectURI appends params to base as query parameters, or as the
// URI fragment when fragment is true (implicit flow). Parameters already
// present on base are preserved and merged.
func MakeRedirectURI(base string, params url.Values, fragment bool) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}

	if fragment {
		merged, _ := url.ParseQuery(u.Fragment)
		for k, vs := range params {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.Fragment = ""
		return u.String() + "#" + merged.Encode(), nil
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Redirect is a 302 redirect response.
type Redirect struct {
	URI string
}

var _ Type = (*Redirect)(nil)

// Write renders the redirect.
func (r *Redirect) Write(w http.ResponseWriter) error {
	w.Header().Set("Location", sanitizeLocation(r.URI))
	w.WriteHeader(http.StatusFound)
	return nil
}

// sanitizeLocation strips CR/LF to keep header injection out of Location
// values built from request input.
func sanitizeLocation(uri string) string {
	uri = strings.ReplaceAll(uri, "\r", "")
	return strings.ReplaceAll(uri, "\n", "")
}
