// Package request defines the read-only view the grant engine has of an
// inbound HTTP request, and binds protocol parameters from it into typed
// structs. Parameters are bound per call; nothing in the engine caches
// request state across invocations.
package request

import "net/http"

// Request is the transport-agnostic view of an inbound request. Any HTTP
// stack can be plugged into the engine by implementing these five methods.
type Request interface {
	// Query returns a query-string parameter, or "".
	Query(name string) string

	// Form returns a parsed body parameter, or "".
	Form(name string) string

	// Header returns a request header value, or "".
	Header(name string) string

	// BasicAuth returns the HTTP Basic credentials, if present.
	BasicAuth() (username, password string, ok bool)

	// RemoteAddr returns the peer address, used for rate limiting and
	// audit context.
	RemoteAddr() string
}

// httpRequest adapts a net/http request.
type httpRequest struct {
	r *http.Request
}

// FromHTTP wraps a net/http request. The body form must already be parsed;
// callers typically invoke r.ParseForm before binding token parameters.
func FromHTTP(r *http.Request) Request {
	return &httpRequest{r: r}
}

func (h *httpRequest) Query(name string) string {
	return h.r.URL.Query().Get(name)
}

func (h *httpRequest) Form(name string) string {
	return h.r.PostFormValue(name)
}

func (h *httpRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

func (h *httpRequest) BasicAuth() (string, string, bool) {
	return h.r.BasicAuth()
}

func (h *httpRequest) RemoteAddr() string {
	return h.r.RemoteAddr
}
