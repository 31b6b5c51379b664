// Package sigv2 implements AWS Signature Version 2 request signing and
// verification as used by query-string-authenticated AWS APIs (IAM, EC2,
// SQS and friends).
//
// The canonical base string is four lines joined by \n:
//
//	METHOD
//	host (lowercased, default port stripped)
//	path (or "/")
//	canonical query (sorted, percent-encoded, Signature excluded)
//
// The signature is Base64(HMAC(secret, base)) with SHA-1 or SHA-256.
package sigv2

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"hash"
	"sort"
	"strings"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// Version is the only signature version this package understands.
const Version = "2"

// Method identifies a SigV2 HMAC algorithm.
type Method string

const (
	HmacSHA1   Method = "HmacSHA1"
	HmacSHA256 Method = "HmacSHA256"
)

// hashFunc returns the hash constructor for the method.
func (m Method) hashFunc() func() hash.Hash {
	if m == HmacSHA1 {
		return sha1.New
	}
	return sha256.New
}

// MethodFor resolves a (name, version) pair from request parameters.
// Unknown pairs return ErrUnknownMethod.
func MethodFor(name, version string) (Method, error) {
	if version != Version {
		return "", ErrUnknownMethod
	}
	switch Method(name) {
	case HmacSHA1, HmacSHA256:
		return Method(name), nil
	}
	return "", ErrUnknownMethod
}

// CanonicalRequest carries the request components that participate in the
// signature. Params keeps every occurrence of repeated keys.
type CanonicalRequest struct {
	Method string
	Scheme string
	Host   string
	Path   string
	Params gate.Params
}

// Escape percent-encodes s per the AWS quoting rules: alphanumerics and
// "-_~" pass through, everything else becomes %XX with uppercase hex.
func Escape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' ||
			c == '-' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

const upperhex = "0123456789ABCDEF"

// CanonicalQuery encodes params for signing: the Signature parameter is
// dropped, remaining pairs are sorted by key then value (one k=v per
// occurrence of a repeated key) and joined with '&'.
func CanonicalQuery(params gate.Params) string {
	pairs := make(gate.Params, 0, len(params))
	for _, p := range params {
		if p.Key == "Signature" {
			continue
		}
		pairs = append(pairs, p)
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Key != pairs[j].Key {
			return pairs[i].Key < pairs[j].Key
		}
		return pairs[i].Value < pairs[j].Value
	})
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = Escape(p.Key) + "=" + Escape(p.Value)
	}
	return strings.Join(parts, "&")
}

// normalizedHost lowercases the host and strips the default port for the
// scheme (:80 under http, :443 under https). Other ports are retained.
func normalizedHost(scheme, host string) string {
	host = strings.ToLower(host)
	scheme = strings.ToLower(scheme)
	if scheme == "http" && strings.HasSuffix(host, ":80") {
		return strings.TrimSuffix(host, ":80")
	}
	if scheme == "https" && strings.HasSuffix(host, ":443") {
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

// BaseString builds the string-to-sign for the request.
func BaseString(r CanonicalRequest) string {
	path := r.Path
	if path == "" {
		path = "/"
	}
	return strings.Join([]string{
		r.Method,
		normalizedHost(r.Scheme, r.Host),
		path,
		CanonicalQuery(r.Params),
	}, "\n")
}

// Sign computes the Base64-encoded signature of r with the given secret.
// The secret string's UTF-8 bytes are the HMAC key.
func Sign(r CanonicalRequest, secret string, method Method) string {
	mac := hmac.New(method.hashFunc(), []byte(secret))
	mac.Write([]byte(BaseString(r)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature for r and compares it against the
// presented signature in constant time.
func Verify(r CanonicalRequest, signature, secret string, method Method) bool {
	expected := Sign(r, secret, method)
	if len(signature) != len(expected) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}
