package rule

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goldengate/goldengate/internal/domain/credential"
	"github.com/goldengate/goldengate/internal/domain/gate"
	"github.com/goldengate/goldengate/internal/domain/sigv2"
)

// awsSignatureRule implements the filter verb
//
//	aws_signature creds=<path> [max_signature_age=<seconds>]
//
// The predicate holds iff the request carries a valid SigV2 signature for
// a key in the credentials file and its timestamp is inside the accepted
// window. On success the authenticated entity is recorded on the request
// so later stages and the policy layer can see it. Authentication failures
// are ordinary false results, never processing errors.
type awsSignatureRule struct {
	env    *Env
	creds  *credential.Store
	maxAge time.Duration
}

func newAWSSignatureRule(env *Env, _ []string, kwargs map[string]string) (MatchRule, error) {
	path, ok := kwargs["creds"]
	if !ok {
		return nil, fmt.Errorf("aws_signature requires a creds argument")
	}
	store, err := credential.Load(path)
	if err != nil {
		return nil, fmt.Errorf("aws_signature: %w", err)
	}
	maxAge := sigv2.DefaultTimestampThreshold
	if raw, ok := kwargs["max_signature_age"]; ok {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("aws_signature: invalid max_signature_age %q", raw)
		}
		maxAge = time.Duration(secs) * time.Second
	}
	return &awsSignatureRule{env: env, creds: store, maxAge: maxAge}, nil
}

func (r *awsSignatureRule) Match(req *gate.Request) (bool, error) {
	if err := r.verify(req); err != nil {
		if sigv2.IsUnauthenticated(err) {
			slog.Debug("signature rejected",
				slog.String("remote_addr", req.RemoteAddr),
				slog.String("reason", err.Error()))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *awsSignatureRule) verify(req *gate.Request) error {
	// Params merges form-encoded body parameters so POSTed signatures
	// verify the same as query-string ones.
	params := req.Params()
	if err := sigv2.CheckRequiredParams(params); err != nil {
		return err
	}
	if err := sigv2.ValidateTimestamp(params, r.env.now(), r.maxAge); err != nil {
		return err
	}
	cred, ok := r.creds.ForKey(params.Get("AWSAccessKeyId"))
	if !ok {
		return sigv2.ErrUnknownKey
	}
	canonical := sigv2.CanonicalRequest{
		Method: req.Method,
		Scheme: req.Scheme,
		Host:   req.Host,
		Path:   req.Path,
		Params: params,
	}
	if err := sigv2.VerifyRequest(canonical, cred.Secret); err != nil {
		return err
	}
	req.RemoteUser = cred.Name
	return nil
}

// awsSignRule implements the modify verb
//
//	aws_sign creds=<path> key=<key> [signature_method=HmacSHA256] [signature_version=2]
//
// It strips any Authorization header, replaces the signing parameters with
// the privileged upstream key, and recomputes the signature. Form-encoded
// requests get the canonical parameters written into the body; everything
// else gets them in the override URL, discarding the original query.
type awsSignRule struct {
	env    *Env
	key    string
	secret string
	method sigv2.Method
}

func newAWSSignRule(env *Env, _ []string, kwargs map[string]string) (ModifyRule, error) {
	path := kwargs["creds"]
	key := kwargs["key"]
	if path == "" || key == "" {
		return nil, fmt.Errorf("aws_sign requires both creds and key arguments")
	}
	store, err := credential.Load(path)
	if err != nil {
		return nil, fmt.Errorf("aws_sign: %w", err)
	}
	cred, ok := store.ForKey(key)
	if !ok {
		return nil, fmt.Errorf("aws_sign: key %s is missing from %s", key, path)
	}

	methodName := kwargs["signature_method"]
	if methodName == "" {
		methodName = string(sigv2.HmacSHA256)
	}
	version := kwargs["signature_version"]
	if version == "" {
		version = sigv2.Version
	}
	method, err := sigv2.MethodFor(methodName, version)
	if err != nil {
		return nil, fmt.Errorf("aws_sign: invalid signature method %s version %s", methodName, version)
	}

	return &awsSignRule{env: env, key: cred.Key, secret: cred.Secret, method: method}, nil
}

func (r *awsSignRule) Modify(s Subject) error {
	req, ok := s.(*gate.Request)
	if !ok {
		return fmt.Errorf("aws_sign applies to requests only")
	}

	target := req.OverrideURL
	if target == "" {
		target = req.URL()
	}
	base, _, _ := strings.Cut(target, "?")

	req.Headers().Del("Authorization")

	params := sigv2.SignedParams(req.Params(), r.key, r.method, r.env.now())
	canonical := sigv2.CanonicalQuery(params)
	signature := sigv2.Sign(sigv2.CanonicalRequest{
		Method: req.Method,
		Scheme: req.Scheme,
		Host:   req.Host,
		Path:   req.Path,
		Params: params,
	}, r.secret, r.method)
	signed := canonical + "&Signature=" + url.QueryEscape(signature)

	if req.ContentType() == "application/x-www-form-urlencoded" {
		req.Body = []byte(signed)
	} else {
		req.OverrideURL = base + "?" + signed
	}
	return nil
}

func init() {
	RegisterMatch([]string{"aws_signature"}, []Category{CategoryFilter}, newAWSSignatureRule)
	RegisterModify([]string{"aws_sign"}, newAWSSignRule)
}
