// Package proxy contains the request pipeline: the core domain logic that
// routes each inbound request through the first matching ruleset's stages
// (filter, authorize, modify, proxy, modify response, audit) and produces
// the response to send back.
package proxy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/goldengate/goldengate/internal/domain/gate"
	"github.com/goldengate/goldengate/internal/domain/policy"
	"github.com/goldengate/goldengate/internal/domain/rule"
)

// UpstreamClient forwards a (possibly overlay-modified) request to its
// upstream and returns the upstream's response verbatim.
type UpstreamClient interface {
	Do(ctx context.Context, req *gate.Request) (*gate.Response, error)
}

// Pipeline processes requests against an ordered list of rulesets. The first
// ruleset whose match stage holds processes the request exclusively; no
// ruleset matching is a 501. All collaborators are immutable after
// construction, so a single Pipeline serves all request goroutines.
type Pipeline struct {
	rulesets []*rule.Ruleset
	policies []policy.Policy
	upstream UpstreamClient
	logger   *slog.Logger
}

// NewPipeline builds a pipeline. policies may be nil, which disables the
// authorize step between filter and modify.
func NewPipeline(rulesets []*rule.Ruleset, policies []policy.Policy, upstream UpstreamClient, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		rulesets: rulesets,
		policies: policies,
		upstream: upstream,
		logger:   logger,
	}
}

// Handle routes one request. It never returns nil; errors inside the
// selected ruleset become a 500 response.
func (p *Pipeline) Handle(ctx context.Context, req *gate.Request) *gate.Response {
	for _, rs := range p.rulesets {
		matched, err := rs.Match(req)
		if err != nil {
			// A match error still selects this ruleset; later rulesets
			// never see the request.
			p.logger.Error("match stage failed",
				slog.String("ruleset", rs.Fingerprint()),
				slog.String("error", err.Error()))
			return gate.InternalError()
		}
		if !matched {
			continue
		}
		return p.process(ctx, rs, req)
	}

	p.logger.Warn("no ruleset matched",
		slog.String("method", req.Method),
		slog.String("path", req.Path))
	return gate.NotImplemented()
}

func (p *Pipeline) process(ctx context.Context, rs *rule.Ruleset, req *gate.Request) *gate.Response {
	log := p.logger.With(slog.String("ruleset", rs.Fingerprint()))

	permitted, err := rs.Filter(req)
	if err != nil {
		log.Error("filter stage failed", slog.String("error", err.Error()))
		return gate.InternalError()
	}
	if !permitted {
		log.Info("request denied",
			slog.String("method", req.Method),
			slog.String("path", req.Path),
			slog.String("remote_addr", req.RemoteAddr))
		return gate.Forbidden()
	}

	if len(p.policies) > 0 {
		granted, err := p.authorize(ctx, req)
		if errors.Is(err, policy.ErrNoPolicy) {
			log.Info("no policy covers request",
				slog.String("entity", req.RemoteUser),
				slog.String("action", req.AWSAction()))
			return gate.Forbidden()
		}
		if err != nil {
			log.Error("authorize failed", slog.String("error", err.Error()))
			return gate.InternalError()
		}
		if !granted {
			log.Info("request not granted",
				slog.String("entity", req.RemoteUser),
				slog.String("action", req.AWSAction()))
			return gate.Forbidden()
		}
	}

	// Modify stages operate on a clone so audit_request observes the
	// request as it was sent upstream while the caller keeps the original.
	work := req.Clone()
	if err := rs.ModifyRequest(work); err != nil {
		log.Error("modify_request failed", slog.String("error", err.Error()))
		return gate.InternalError()
	}

	resp, err := p.upstream.Do(ctx, work)
	if err != nil {
		log.Error("upstream request failed", slog.String("error", err.Error()))
		return gate.InternalError()
	}

	if err := rs.ModifyResponse(resp); err != nil {
		log.Error("modify_response failed", slog.String("error", err.Error()))
		return gate.InternalError()
	}

	if err := rs.AuditRequest(work); err != nil {
		log.Error("audit_request failed", slog.String("error", err.Error()))
		return gate.InternalError()
	}
	if err := rs.AuditResponse(resp); err != nil {
		log.Error("audit_response failed", slog.String("error", err.Error()))
		return gate.InternalError()
	}

	return resp
}

// authorize resolves and applies the first policy that covers the request.
// ErrNoPolicy propagates so the caller can deny requests the policy list
// does not cover.
func (p *Pipeline) authorize(ctx context.Context, req *gate.Request) (bool, error) {
	pol, err := policy.Resolve(req.RemoteUser, req, p.policies)
	if err != nil {
		return false, err
	}
	return pol.Grant(ctx, req.RemoteUser, req)
}
