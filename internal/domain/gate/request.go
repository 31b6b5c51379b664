// Package gate contains the core domain model for the gateway: the request
// and response representations the rule pipeline operates on.
//
// A Request is created once per inbound HTTP transaction by the inbound
// adapter, mutated only by modify stages, and discarded after the response
// is written. Modify rules that need to redirect the upstream call write the
// OverrideURL/OverrideMethod overlay slots instead of mutating the real URL;
// the upstream client reads the overlay with override-wins precedence.
package gate

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Attribute names understood by Attr. These mirror the request surface the
// rule DSL exposes (method, scheme, path, remote_addr, url variants, ...).
const (
	AttrMethod         = "method"
	AttrScheme         = "scheme"
	AttrScriptName     = "script_name"
	AttrPathInfo       = "path_info"
	AttrRemoteUser     = "remote_user"
	AttrRemoteAddr     = "remote_addr"
	AttrHost           = "host"
	AttrHostURL        = "host_url"
	AttrApplicationURL = "application_url"
	AttrPathURL        = "path_url"
	AttrURL            = "url"
	AttrPath           = "path"
	AttrPathQS         = "path_qs"
	AttrQueryString    = "query_string"
)

// Request is the gateway's view of one inbound HTTP request.
type Request struct {
	Method     string
	Scheme     string
	Host       string
	Path       string
	RawQuery   string
	Query      Params
	Header     http.Header
	Body       []byte
	RemoteAddr string

	// RemoteUser is the authenticated entity (e.g. an email address).
	// Empty until a filter rule authenticates the request.
	RemoteUser string

	// OverrideURL and OverrideMethod are overlay slots written by modify
	// rules. When set, the upstream client uses them instead of the real
	// URL/method. They never affect matching or signature verification.
	OverrideURL    string
	OverrideMethod string
}

// URL reassembles the full request URL including the original query string.
func (r *Request) URL() string {
	var b strings.Builder
	b.WriteString(r.Scheme)
	b.WriteString("://")
	b.WriteString(r.Host)
	b.WriteString(r.Path)
	if r.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(r.RawQuery)
	}
	return b.String()
}

// Params returns the parameters rules observe: the query string plus, for
// form-encoded requests, the parameters carried in the body. AWS query APIs
// accept POSTed parameters, so signature rules must see both.
func (r *Request) Params() Params {
	if r.ContentType() == "application/x-www-form-urlencoded" && len(r.Body) > 0 {
		return append(r.Query.Clone(), ParseQuery(string(r.Body))...)
	}
	return r.Query
}

// AWSAction returns the value of the Action parameter, or "".
func (r *Request) AWSAction() string {
	return r.Params().Get("Action")
}

// Attr returns the named request attribute. The names map onto the surface
// the rule DSL matches against; unknown names return ("", false).
func (r *Request) Attr(name string) (string, bool) {
	switch name {
	case AttrMethod:
		return r.Method, true
	case AttrScheme:
		return r.Scheme, true
	case AttrScriptName:
		return "", true
	case AttrPathInfo, AttrPath:
		return r.Path, true
	case AttrRemoteUser:
		return r.RemoteUser, true
	case AttrRemoteAddr:
		return r.RemoteAddr, true
	case AttrHost:
		return r.Host, true
	case AttrHostURL, AttrApplicationURL:
		return r.Scheme + "://" + r.Host, true
	case AttrPathURL:
		return r.Scheme + "://" + r.Host + r.Path, true
	case AttrURL:
		return r.URL(), true
	case AttrPathQS:
		if r.RawQuery != "" {
			return r.Path + "?" + r.RawQuery, true
		}
		return r.Path, true
	case AttrQueryString:
		return r.RawQuery, true
	}
	return "", false
}

// Headers returns the request header map. Part of the rule Subject surface.
func (r *Request) Headers() http.Header {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return r.Header
}

// SetAttr sets a mutable request attribute. Only the attributes the modify
// rules expose are settable; unknown names return false.
func (r *Request) SetAttr(name, value string) bool {
	switch name {
	case "content_type":
		setContentType(r.Headers(), value)
	case "charset":
		setCharset(r.Headers(), value)
	case "host":
		r.Host = value
		r.Headers().Set("Host", value)
	case "body":
		r.Body = []byte(value)
	case "cache_control":
		r.Headers().Set("Cache-Control", value)
	default:
		return false
	}
	return true
}

// ContentType returns the media type of the request body without parameters.
func (r *Request) ContentType() string {
	ct := r.Headers().Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.TrimSpace(ct)
}

// Clone returns a deep copy of the request. Modify stages operate on a
// clone so the inbound adapter keeps an unmodified view for logging.
func (r *Request) Clone() *Request {
	out := *r
	out.Query = r.Query.Clone()
	out.Header = cloneHeader(r.Header)
	if r.Body != nil {
		out.Body = append([]byte(nil), r.Body...)
	}
	return &out
}

// redactedParams are query parameters whose values never leave the process
// in notifications or audit records.
var redactedParams = map[string]bool{
	"Signature":      true,
	"AWSAccessKeyId": false, // key ids are not secret
}

// Dump renders the request as indented JSON for notifications and audit
// records. Signature material and Authorization headers are redacted.
func (r *Request) Dump() string {
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		if strings.EqualFold(name, "Authorization") {
			headers[name] = "[redacted]"
			continue
		}
		headers[name] = r.Header.Get(name)
	}
	dump := map[string]any{
		"method":      r.Method,
		"url":         r.Scheme + "://" + r.Host + r.Path,
		"params":      redactParams(r.Query),
		"headers":     headers,
		"remote_addr": r.RemoteAddr,
		"remote_user": r.RemoteUser,
	}
	if r.ContentType() == "application/x-www-form-urlencoded" && len(r.Body) > 0 {
		dump["body"] = redactParams(ParseQuery(string(r.Body)))
	}
	data, err := json.MarshalIndent(dump, "", "    ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// redactParams renders params as one {key: value} object per occurrence,
// replacing redacted values.
func redactParams(params Params) []map[string]string {
	out := make([]map[string]string, 0, len(params))
	for _, p := range params {
		value := p.Value
		if redactedParams[p.Key] {
			value = "[redacted]"
		}
		out = append(out, map[string]string{p.Key: value})
	}
	return out
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// setContentType replaces the media type, preserving an existing charset.
func setContentType(h http.Header, mediaType string) {
	current := h.Get("Content-Type")
	if i := strings.IndexByte(current, ';'); i >= 0 {
		h.Set("Content-Type", mediaType+current[i:])
		return
	}
	h.Set("Content-Type", mediaType)
}

// setCharset sets the charset parameter of the Content-Type header.
func setCharset(h http.Header, charset string) {
	current := h.Get("Content-Type")
	if i := strings.IndexByte(current, ';'); i >= 0 {
		current = current[:i]
	}
	if current == "" {
		return
	}
	h.Set("Content-Type", current+"; charset="+charset)
}
