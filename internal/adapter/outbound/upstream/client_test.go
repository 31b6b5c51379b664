package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

func TestDoForwardsRequest(t *testing.T) {
	var seen *http.Request
	var seenBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		seenBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, "accepted")
	}))
	defer srv.Close()

	client := NewClient(time.Second, nil)
	req := &gate.Request{
		Method: "POST",
		Header: http.Header{"X-Custom": {"value"}, "Content-Type": {"text/plain"}},
		Body:   []byte("payload"),

		OverrideURL: srv.URL + "/api?k=v",
	}
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	if resp.Status != http.StatusAccepted {
		t.Errorf("Status = %d", resp.Status)
	}
	if string(resp.Body) != "accepted" {
		t.Errorf("Body = %q", resp.Body)
	}
	if resp.Header.Get("X-Upstream") != "yes" {
		t.Error("upstream header lost")
	}

	if seen.Method != "POST" || seen.URL.Path != "/api" || seen.URL.RawQuery != "k=v" {
		t.Errorf("upstream saw %s %s", seen.Method, seen.URL)
	}
	if seen.Header.Get("X-Custom") != "value" {
		t.Error("request header lost")
	}
	if string(seenBody) != "payload" {
		t.Errorf("upstream body = %q", seenBody)
	}
}

func TestDoOverridesWin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Method+" "+r.URL.Path)
	}))
	defer srv.Close()

	client := NewClient(time.Second, nil)
	req := &gate.Request{
		Method: "GET",
		Scheme: "http",
		Host:   "original.invalid",
		Path:   "/original",

		OverrideURL:    srv.URL + "/rewritten",
		OverrideMethod: "PUT",
	}
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(resp.Body) != "PUT /rewritten" {
		t.Errorf("upstream saw %q, want the override slots", resp.Body)
	}
}

func TestDoDropsEmptyContentType(t *testing.T) {
	var hadContentType bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadContentType = r.Header["Content-Type"]
	}))
	defer srv.Close()

	client := NewClient(time.Second, nil)
	req := &gate.Request{
		Method:      "GET",
		Header:      http.Header{"Content-Type": {""}},
		OverrideURL: srv.URL,
	}
	if _, err := client.Do(context.Background(), req); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if hadContentType {
		t.Error("empty Content-Type forwarded")
	}
}

func TestDoPassesRedirectsThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	client := NewClient(time.Second, nil)
	req := &gate.Request{Method: "GET", OverrideURL: srv.URL}
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Status != http.StatusFound {
		t.Errorf("Status = %d, want the redirect itself", resp.Status)
	}
	if resp.Header.Get("Location") != "/elsewhere" {
		t.Errorf("Location = %q", resp.Header.Get("Location"))
	}
}

func TestDoHonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(time.Minute, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	req := &gate.Request{Method: "GET", OverrideURL: srv.URL}
	if _, err := client.Do(ctx, req); err == nil {
		t.Error("Do survived a cancelled context")
	}
}
