package rule

import (
	"net/http"
	"testing"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

func compileModify(t *testing.T, line string) ModifyRule {
	t.Helper()
	cr, err := compileLine(StageModifyRequest, line, nil)
	if err != nil {
		t.Fatalf("compile %q: %v", line, err)
	}
	return cr.modify
}

func TestOverrideRules(t *testing.T) {
	req := &gate.Request{Method: "GET", Scheme: "https", Host: "a.example.com", Path: "/x"}

	if err := compileModify(t, "url set https://b.example.com/y").Modify(req); err != nil {
		t.Fatalf("url set: %v", err)
	}
	if req.OverrideURL != "https://b.example.com/y" {
		t.Errorf("OverrideURL = %q", req.OverrideURL)
	}
	// The real URL is untouched; only the overlay changes.
	if req.Host != "a.example.com" || req.Path != "/x" {
		t.Error("url set mutated the real request URL")
	}

	if err := compileModify(t, "method set POST").Modify(req); err != nil {
		t.Fatalf("method set: %v", err)
	}
	if req.OverrideMethod != "POST" || req.Method != "GET" {
		t.Errorf("OverrideMethod = %q, Method = %q", req.OverrideMethod, req.Method)
	}
}

func TestOverrideRuleRejectsResponses(t *testing.T) {
	resp := &gate.Response{Status: 200}
	if err := compileModify(t, "url set https://b.example.com").Modify(resp); err == nil {
		t.Error("url set applied to a response")
	}
}

func TestAttrModifyRule(t *testing.T) {
	req := &gate.Request{Header: make(http.Header)}
	if err := compileModify(t, "cache_control set no-cache").Modify(req); err != nil {
		t.Fatalf("cache_control set: %v", err)
	}
	if got := req.Header.Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}

	// Values with spaces survive via the escape sequence.
	if err := compileModify(t, `body set hello\ world`).Modify(req); err != nil {
		t.Fatalf("body set: %v", err)
	}
	if string(req.Body) != "hello world" {
		t.Errorf("body = %q", req.Body)
	}
}

func TestHeaderModifyRule(t *testing.T) {
	req := &gate.Request{Header: http.Header{"X-Old": {"1"}}}

	if err := compileModify(t, "header set X-New value").Modify(req); err != nil {
		t.Fatalf("header set: %v", err)
	}
	if got := req.Header.Get("X-New"); got != "value" {
		t.Errorf("X-New = %q", got)
	}

	if err := compileModify(t, "header remove X-Old").Modify(req); err != nil {
		t.Fatalf("header remove: %v", err)
	}
	if req.Header.Get("X-Old") != "" {
		t.Error("X-Old survived removal")
	}
}

func TestHeaderTemplateExpansion(t *testing.T) {
	req := &gate.Request{
		Header:     make(http.Header),
		RemoteUser: "alice@example.com",
		RemoteAddr: "127.0.0.1",
	}
	if err := compileModify(t, "header set X-Forwarded-User $remote_user").Modify(req); err != nil {
		t.Fatalf("header set: %v", err)
	}
	if got := req.Header.Get("X-Forwarded-User"); got != "alice@example.com" {
		t.Errorf("X-Forwarded-User = %q", got)
	}
}

func TestHeaderTemplateEnvFallback(t *testing.T) {
	t.Setenv("deployment_zone", "eu-west")
	req := &gate.Request{Header: make(http.Header)}
	if err := compileModify(t, "header set X-Zone $deployment_zone").Modify(req); err != nil {
		t.Fatalf("header set: %v", err)
	}
	if got := req.Header.Get("X-Zone"); got != "eu-west" {
		t.Errorf("X-Zone = %q", got)
	}
}

func TestHeaderTemplateUnknownVariable(t *testing.T) {
	req := &gate.Request{Header: make(http.Header)}
	err := compileModify(t, "header set X-Bad $no_such_attribute_or_env").Modify(req)
	if err == nil {
		t.Error("unresolved template variable did not error")
	}
}
