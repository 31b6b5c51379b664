package http

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/goldengate/goldengate/internal/domain/gate"
	"github.com/goldengate/goldengate/internal/domain/proxy"
)

// maxBodyBytes caps how much of a client body the gateway buffers. Signed
// AWS query API bodies are small; this is far above anything legitimate.
const maxBodyBytes = 10 << 20

// Handler adapts net/http to the pipeline. It is the only handler on the
// proxy listener; every path belongs to the rulesets.
type Handler struct {
	pipeline *proxy.Pipeline
	metrics  *Metrics
	logger   *slog.Logger
}

func NewHandler(pipeline *proxy.Pipeline, metrics *Metrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pipeline: pipeline, metrics: metrics, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, err := h.convert(r)
	if err != nil {
		h.logger.Warn("unreadable request",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	resp := h.pipeline.Handle(r.Context(), req)
	h.metrics.observe(resp, time.Since(start))
	writeResponse(w, resp)
}

// convert builds the gateway's request model from an inbound http request.
func (h *Handler) convert(r *http.Request) (*gate.Request, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	remoteAddr := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}

	return &gate.Request{
		Method:     r.Method,
		Scheme:     scheme,
		Host:       r.Host,
		Path:       r.URL.Path,
		RawQuery:   r.URL.RawQuery,
		Query:      gate.ParseQuery(r.URL.RawQuery),
		Header:     r.Header.Clone(),
		Body:       body,
		RemoteAddr: remoteAddr,
	}, nil
}

func writeResponse(w http.ResponseWriter, resp *gate.Response) {
	header := w.Header()
	for name, values := range resp.Header {
		// modify_response rules may have changed the body, so the
		// upstream's length would truncate or pad the response.
		if http.CanonicalHeaderKey(name) == "Content-Length" {
			continue
		}
		header[name] = values
	}
	header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}
