package gate

import (
	"net/http"
	"strings"
	"testing"
)

func sampleRequest() *Request {
	return &Request{
		Method:     "GET",
		Scheme:     "https",
		Host:       "iam.amazonaws.com",
		Path:       "/users",
		RawQuery:   "Action=ListUsers",
		Query:      ParseQuery("Action=ListUsers"),
		Header:     http.Header{"User-Agent": {"curl/7.19.7"}},
		Body:       []byte("body"),
		RemoteAddr: "127.0.0.1",
		RemoteUser: "alice@example.com",
	}
}

func TestRequestAttr(t *testing.T) {
	req := sampleRequest()
	tests := []struct {
		attr, want string
	}{
		{AttrMethod, "GET"},
		{AttrScheme, "https"},
		{AttrScriptName, ""},
		{AttrPathInfo, "/users"},
		{AttrPath, "/users"},
		{AttrRemoteUser, "alice@example.com"},
		{AttrRemoteAddr, "127.0.0.1"},
		{AttrHost, "iam.amazonaws.com"},
		{AttrHostURL, "https://iam.amazonaws.com"},
		{AttrApplicationURL, "https://iam.amazonaws.com"},
		{AttrPathURL, "https://iam.amazonaws.com/users"},
		{AttrURL, "https://iam.amazonaws.com/users?Action=ListUsers"},
		{AttrPathQS, "/users?Action=ListUsers"},
		{AttrQueryString, "Action=ListUsers"},
	}
	for _, tt := range tests {
		got, ok := req.Attr(tt.attr)
		if !ok {
			t.Errorf("Attr(%q) not found", tt.attr)
			continue
		}
		if got != tt.want {
			t.Errorf("Attr(%q) = %q, want %q", tt.attr, got, tt.want)
		}
	}
	if _, ok := req.Attr("nonsense"); ok {
		t.Error("unknown attribute reported as found")
	}
}

func TestRequestSetAttr(t *testing.T) {
	req := sampleRequest()
	req.Header.Set("Content-Type", "text/plain; charset=latin-1")

	if !req.SetAttr("content_type", "application/json") {
		t.Fatal("content_type not settable")
	}
	if got := req.Header.Get("Content-Type"); got != "application/json; charset=latin-1" {
		t.Errorf("Content-Type = %q, want media type replaced with charset kept", got)
	}

	if !req.SetAttr("charset", "utf-8") {
		t.Fatal("charset not settable")
	}
	if got := req.Header.Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q after charset set", got)
	}

	if !req.SetAttr("body", "new body") {
		t.Fatal("body not settable")
	}
	if string(req.Body) != "new body" {
		t.Errorf("body = %q", req.Body)
	}

	if req.SetAttr("method", "POST") {
		t.Error("method must not be settable via attributes")
	}
}

func TestRequestContentType(t *testing.T) {
	req := sampleRequest()
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	if got := req.ContentType(); got != "application/x-www-form-urlencoded" {
		t.Errorf("ContentType = %q", got)
	}
}

func TestRequestParamsMergesFormBody(t *testing.T) {
	req := sampleRequest()
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Body = []byte("AWSAccessKeyId=AKID&Signature=abc%3D")

	params := req.Params()
	if got := params.Get("Action"); got != "ListUsers" {
		t.Errorf("query param lost: Action = %q", got)
	}
	if got := params.Get("AWSAccessKeyId"); got != "AKID" {
		t.Errorf("body param missing: AWSAccessKeyId = %q", got)
	}
	if got := params.Get("Signature"); got != "abc=" {
		t.Errorf("body param not unescaped: Signature = %q", got)
	}
	// The query itself stays untouched; the merge is a view.
	if req.Query.Has("AWSAccessKeyId") {
		t.Error("Params mutated the request query")
	}

	// Other content types keep body bytes opaque.
	req.Header.Set("Content-Type", "application/json")
	if req.Params().Has("AWSAccessKeyId") {
		t.Error("non-form body parsed into params")
	}
}

func TestRequestAWSActionFromBody(t *testing.T) {
	req := &Request{
		Method: "POST",
		Header: http.Header{"Content-Type": {"application/x-www-form-urlencoded"}},
		Body:   []byte("Action=DeleteUser"),
	}
	if got := req.AWSAction(); got != "DeleteUser" {
		t.Errorf("AWSAction = %q, want the body-carried action", got)
	}
}

func TestRequestCloneIndependence(t *testing.T) {
	req := sampleRequest()
	clone := req.Clone()

	clone.Query = clone.Query.Set("Action", "DeleteUsers")
	clone.Header.Set("User-Agent", "other")
	clone.Body[0] = 'X'
	clone.Host = "evil.example.com"

	if req.Query.Get("Action") != "ListUsers" {
		t.Error("clone shares query params")
	}
	if req.Header.Get("User-Agent") != "curl/7.19.7" {
		t.Error("clone shares headers")
	}
	if string(req.Body) != "body" {
		t.Error("clone shares body storage")
	}
	if req.Host != "iam.amazonaws.com" {
		t.Error("clone shares scalar fields")
	}
}

func TestRequestDumpRedaction(t *testing.T) {
	req := sampleRequest()
	req.Query = append(req.Query, Param{Key: "Signature", Value: "super-secret-sig"})
	req.Header.Set("Authorization", "AWS AKID:sig")

	dump := req.Dump()
	if strings.Contains(dump, "super-secret-sig") {
		t.Error("Signature value leaked into dump")
	}
	if strings.Contains(dump, "AWS AKID:sig") {
		t.Error("Authorization header leaked into dump")
	}
	if !strings.Contains(dump, "alice@example.com") {
		t.Error("remote user missing from dump")
	}
}

func TestRequestDumpFormBody(t *testing.T) {
	req := sampleRequest()
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Body = []byte("Action=DeleteUser&Signature=body-carried-sig")

	dump := req.Dump()
	if !strings.Contains(dump, "DeleteUser") {
		t.Error("form body parameters missing from dump")
	}
	if strings.Contains(dump, "body-carried-sig") {
		t.Error("body-carried Signature value leaked into dump")
	}

	// Non-form bodies stay out of the dump entirely.
	req.Header.Set("Content-Type", "application/json")
	req.Body = []byte(`{"opaque": true}`)
	if strings.Contains(req.Dump(), "opaque") {
		t.Error("non-form body leaked into dump")
	}
}

func TestResponseShortCircuits(t *testing.T) {
	tests := []struct {
		resp   *Response
		status int
		body   string
	}{
		{Forbidden(), 403, "Verboten\n"},
		{InternalError(), 500, "Internal Server Error"},
		{NotImplemented(), 501, "This shouldn't happen.\n"},
	}
	for _, tt := range tests {
		if tt.resp.Status != tt.status {
			t.Errorf("status = %d, want %d", tt.resp.Status, tt.status)
		}
		if string(tt.resp.Body) != tt.body {
			t.Errorf("body = %q, want %q", tt.resp.Body, tt.body)
		}
	}
}
