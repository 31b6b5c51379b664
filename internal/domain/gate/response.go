package gate

import (
	"net/http"
	"strings"
)

// Response is the gateway's view of the response sent back to the client,
// either proxied from upstream or produced by a short circuit.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Short-circuit responses. The bodies are part of the gateway's observable
// behavior and are matched by tests.
func Forbidden() *Response {
	return textResponse(http.StatusForbidden, "Verboten\n")
}

func InternalError() *Response {
	return textResponse(http.StatusInternalServerError, "Internal Server Error")
}

func NotImplemented() *Response {
	return textResponse(http.StatusNotImplemented, "This shouldn't happen.\n")
}

func textResponse(status int, body string) *Response {
	h := make(http.Header)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	return &Response{Status: status, Header: h, Body: []byte(body)}
}

// Headers returns the response header map. Part of the rule Subject surface.
func (r *Response) Headers() http.Header {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r.Header
}

// Attr returns the named response attribute for audit rules. Responses
// expose a much smaller surface than requests.
func (r *Response) Attr(name string) (string, bool) {
	switch name {
	case "status":
		return http.StatusText(r.Status), true
	case "content_type":
		ct := r.Headers().Get("Content-Type")
		if i := strings.IndexByte(ct, ';'); i >= 0 {
			ct = ct[:i]
		}
		return strings.TrimSpace(ct), true
	case "body":
		return string(r.Body), true
	}
	return "", false
}

// SetAttr sets a mutable response attribute; unknown names return false.
func (r *Response) SetAttr(name, value string) bool {
	switch name {
	case "content_type":
		setContentType(r.Headers(), value)
	case "charset":
		setCharset(r.Headers(), value)
	case "body":
		r.Body = []byte(value)
	case "cache_control":
		r.Headers().Set("Cache-Control", value)
	default:
		return false
	}
	return true
}
