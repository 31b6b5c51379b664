package gate

import (
	"net/url"
	"strings"
)

// Param is a single query parameter occurrence.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered, multi-valued query parameter list.
// Order and repeated keys are preserved as received on the wire;
// canonicalization for signing sorts a copy, never the original.
type Params []Param

// ParseQuery parses a raw query string into Params, preserving order and
// repeated keys. Unlike url.ParseQuery it never collapses duplicates.
// Malformed escape sequences leave the component as-is rather than failing,
// since the gateway must be able to observe whatever the client sent.
func ParseQuery(rawQuery string) Params {
	if rawQuery == "" {
		return nil
	}
	var params Params
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		params = append(params, Param{Key: key, Value: value})
	}
	return params
}

// Get returns the first value for key, or "" if absent.
func (p Params) Get(key string) string {
	for _, param := range p {
		if param.Key == key {
			return param.Value
		}
	}
	return ""
}

// Has reports whether key occurs at least once.
func (p Params) Has(key string) bool {
	for _, param := range p {
		if param.Key == key {
			return true
		}
	}
	return false
}

// Set replaces the first occurrence of key with value and removes any
// further occurrences; if key is absent the pair is appended.
func (p Params) Set(key, value string) Params {
	out := p[:0:0]
	replaced := false
	for _, param := range p {
		if param.Key == key {
			if !replaced {
				out = append(out, Param{Key: key, Value: value})
				replaced = true
			}
			continue
		}
		out = append(out, param)
	}
	if !replaced {
		out = append(out, Param{Key: key, Value: value})
	}
	return out
}

// Del removes every occurrence of key.
func (p Params) Del(key string) Params {
	out := p[:0:0]
	for _, param := range p {
		if param.Key != key {
			out = append(out, param)
		}
	}
	return out
}

// Clone returns a copy that shares no storage with p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	copy(out, p)
	return out
}
