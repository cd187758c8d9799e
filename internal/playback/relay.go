package playback

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/edulearn/lesson-video/internal/config"
	"github.com/edulearn/lesson-video/internal/logging"
)

var ErrUpstreamUnavailable = errors.New("upstream video unavailable")

// UpstreamError carries a non-2xx status from the remote video host.
type UpstreamError struct {
	StatusCode int
	URL        string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

var relayedHeaders = []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges"}

// Relay sends the browser to CDNs that serve ranges themselves and proxies
// everything else, forwarding the Range header.
type Relay struct {
	client        *http.Client
	redirectHosts []string
	logger        *slog.Logger
}

func NewRelay(cfg config.RelayConfig, logger *slog.Logger) *Relay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultRelayTimeout
	}

	// Only the wait for response headers is bounded; bodies of long videos stream
	// for as long as the viewer keeps the connection open.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}

	return &Relay{
		client: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		redirectHosts: cfg.RedirectHosts,
		logger:        logging.OrDiscard(logger),
	}
}

// ShouldRedirect reports whether remoteURL's host is, or is a subdomain of, a
// configured redirect host.
func (r *Relay) ShouldRedirect(remoteURL string) bool {
	u, err := url.Parse(remoteURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range r.redirectHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, remoteURL string) error {
	if r.ShouldRedirect(remoteURL) {
		http.Redirect(w, req, remoteURL, http.StatusFound)
		return nil
	}

	ctx, span := otel.Tracer("lesson-video/playback").Start(req.Context(), "relay.fetch")
	defer span.End()
	rangeHeader := req.Header.Get("Range")
	span.SetAttributes(
		attribute.String("video.url", logging.SanitizeURL(remoteURL)),
		attribute.String("http.range", rangeHeader),
	)

	upReq, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad upstream url")
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if rangeHeader != "" {
		upReq.Header.Set("Range", rangeHeader)
	}

	start := time.Now()
	resp, err := r.client.Do(upReq)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream fetch failed")
		r.logger.Error("relay fetch failed", "url", logging.SanitizeURL(remoteURL), "error", err)
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		r.logger.Warn("relay upstream error",
			"url", logging.SanitizeURL(remoteURL),
			"status", resp.StatusCode,
		)
		return &UpstreamError{StatusCode: resp.StatusCode, URL: remoteURL}
	}

	for _, name := range relayedHeaders {
		if v := resp.Header.Get(name); v != "" {
			w.Header().Set(name, v)
		}
	}

	status := http.StatusOK
	if resp.Header.Get("Content-Range") != "" {
		status = http.StatusPartialContent
		if w.Header().Get("Accept-Ranges") == "" {
			w.Header().Set("Accept-Ranges", "bytes")
		}
	}
	w.WriteHeader(status)

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		r.logger.Debug("relay copy interrupted", "bytes", n, "error", err)
	}
	r.logger.Debug("relayed video",
		"url", logging.SanitizeURL(remoteURL),
		"status", status,
		"bytes", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
