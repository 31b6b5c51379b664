package sigv2

import (
	"errors"
	"fmt"
	"time"

	"github.com/goldengate/goldengate/internal/domain/gate"
)

// DefaultTimestampThreshold is the maximum accepted age of a request
// Timestamp. Five minutes, matching AWS's own skew allowance.
const DefaultTimestampThreshold = 300 * time.Second

// TimestampLayout is the wire format of the Timestamp and Expires
// parameters, interpreted as UTC.
const TimestampLayout = "2006-01-02T15:04:05"

// UnauthenticatedError describes an authentication failure. It surfaces as
// a filter denial (403), never as a processing error.
type UnauthenticatedError struct {
	Reason string
}

func (e *UnauthenticatedError) Error() string {
	return "unauthenticated: " + e.Reason
}

// Sentinel authentication failures. All unwrap to *UnauthenticatedError.
var (
	ErrMissingParams = &UnauthenticatedError{Reason: "missing required signature parameters"}
	ErrUnknownMethod = &UnauthenticatedError{Reason: "invalid signature method or version"}
	ErrBadTimestamp  = &UnauthenticatedError{Reason: "bad timestamp"}
	ErrExpired       = &UnauthenticatedError{Reason: "request has expired"}
	ErrUnknownKey    = &UnauthenticatedError{Reason: "unknown access key"}
	ErrBadSignature  = &UnauthenticatedError{Reason: "signature mismatch"}
)

// IsUnauthenticated reports whether err is an authentication failure.
func IsUnauthenticated(err error) bool {
	var ue *UnauthenticatedError
	return errors.As(err, &ue)
}

// requiredParams must all be present before verification is attempted.
var requiredParams = []string{
	"AWSAccessKeyId",
	"Signature",
	"SignatureMethod",
	"SignatureVersion",
	"Timestamp",
}

// CheckRequiredParams returns ErrMissingParams unless every signature
// parameter is present.
func CheckRequiredParams(params gate.Params) error {
	for _, name := range requiredParams {
		if !params.Has(name) {
			return ErrMissingParams
		}
	}
	return nil
}

// FormatTimestamp renders t for the Timestamp parameter.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a Timestamp/Expires parameter as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, ErrBadTimestamp
	}
	return t, nil
}

// ValidateTimestamp checks the Timestamp window: the timestamp may not be
// in the future and may not be older than maxAge (maxAge <= 0 means
// DefaultTimestampThreshold). When an Expires parameter is present it must
// not be in the past.
func ValidateTimestamp(params gate.Params, now time.Time, maxAge time.Duration) error {
	if maxAge <= 0 {
		maxAge = DefaultTimestampThreshold
	}
	ts, err := ParseTimestamp(params.Get("Timestamp"))
	if err != nil {
		return err
	}
	if expires := params.Get("Expires"); expires != "" {
		exp, err := ParseTimestamp(expires)
		if err != nil {
			return err
		}
		if exp.Before(now) {
			return ErrExpired
		}
	}
	if ts.After(now) {
		return ErrBadTimestamp
	}
	if ts.Before(now.Add(-maxAge)) {
		return ErrBadTimestamp
	}
	return nil
}

// SignedParams returns params with the SigV2 identification parameters set
// for signing with key at time now. Any existing Signature is removed; the
// caller appends the fresh Signature after calling Sign.
func SignedParams(params gate.Params, key string, method Method, now time.Time) gate.Params {
	out := params.Clone()
	out = out.Del("Signature")
	out = out.Set("AWSAccessKeyId", key)
	out = out.Set("SignatureVersion", Version)
	out = out.Set("SignatureMethod", string(method))
	out = out.Set("Timestamp", FormatTimestamp(now))
	return out
}

// VerifyRequest performs the full verification sequence for an inbound
// request: required parameters, method resolution, and signature check.
// The caller is responsible for the timestamp window (it depends on
// rule-level configuration) and for the secret lookup.
func VerifyRequest(r CanonicalRequest, secret string) error {
	if err := CheckRequiredParams(r.Params); err != nil {
		return err
	}
	method, err := MethodFor(r.Params.Get("SignatureMethod"), r.Params.Get("SignatureVersion"))
	if err != nil {
		return err
	}
	if !Verify(r, r.Params.Get("Signature"), secret, method) {
		return ErrBadSignature
	}
	return nil
}

// String implements fmt.Stringer for diagnostics.
func (m Method) String() string { return string(m) }

var _ fmt.Stringer = Method("")
