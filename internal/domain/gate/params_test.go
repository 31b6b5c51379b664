package gate

import (
	"reflect"
	"testing"
)

func TestParseQueryPreservesOrderAndDuplicates(t *testing.T) {
	got := ParseQuery("b=2&a=1&b=3")
	want := Params{{"b", "2"}, {"a", "1"}, {"b", "3"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseQuery = %v, want %v", got, want)
	}
}

func TestParseQueryUnescapes(t *testing.T) {
	got := ParseQuery("Timestamp=2011-01-01T00%3A00%3A00&q=a+b")
	if got.Get("Timestamp") != "2011-01-01T00:00:00" {
		t.Errorf("Timestamp = %q", got.Get("Timestamp"))
	}
	if got.Get("q") != "a b" {
		t.Errorf("q = %q", got.Get("q"))
	}
}

func TestParseQueryMalformedEscapeKeptVerbatim(t *testing.T) {
	got := ParseQuery("a=%zz")
	if got.Get("a") != "%zz" {
		t.Errorf("malformed escape = %q, want %%zz", got.Get("a"))
	}
}

func TestParseQueryEmpty(t *testing.T) {
	if got := ParseQuery(""); got != nil {
		t.Errorf("ParseQuery(\"\") = %v, want nil", got)
	}
}

func TestParamsSet(t *testing.T) {
	p := Params{{"a", "1"}, {"b", "2"}, {"a", "3"}}
	p = p.Set("a", "9")
	want := Params{{"a", "9"}, {"b", "2"}}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("Set = %v, want %v", p, want)
	}

	p = p.Set("c", "4")
	if p.Get("c") != "4" {
		t.Error("Set did not append missing key")
	}
}

func TestParamsDel(t *testing.T) {
	p := Params{{"a", "1"}, {"b", "2"}, {"a", "3"}}
	p = p.Del("a")
	if p.Has("a") {
		t.Error("Del left an occurrence behind")
	}
	if !p.Has("b") {
		t.Error("Del removed an unrelated key")
	}
}

func TestParamsCloneIndependent(t *testing.T) {
	p := Params{{"a", "1"}}
	c := p.Clone()
	c[0].Value = "changed"
	if p[0].Value != "1" {
		t.Error("Clone shares storage with original")
	}
}
