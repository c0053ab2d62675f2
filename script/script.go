// Package script renders the embeddable tracking snippet.
package script

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"
)

const (
	TrackPath   = "/api/v1/tracking/track"
	IdleTimeout = 30 * time.Minute
)

//go:embed tracker.js.tmpl
var source string

var tmpl = template.Must(template.New("tracker.js").Parse(source))

type params struct {
	Endpoint      string
	IdleTimeoutMs int64
}

// Renderer serves the tracking script. Only the rendering for the configured
// public URL is cached; host-derived endpoints come from request headers and
// are rendered per request.
type Renderer struct {
	publicURL string

	mu     sync.Mutex
	cached []byte
}

func NewRenderer(publicURL string) *Renderer {
	return &Renderer{publicURL: strings.TrimRight(strings.TrimSpace(publicURL), "/")}
}

// Endpoint is the ingest URL the script posts to. The configured public URL
// wins over the request host.
func (r *Renderer) Endpoint(req *http.Request) string {
	base := r.publicURL
	if base == "" {
		scheme := "http"
		if req.TLS != nil {
			scheme = "https"
		}
		if fwd := req.Header.Get("X-Forwarded-Proto"); fwd != "" {
			scheme = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
		host := req.Host
		if fwd := req.Header.Get("X-Forwarded-Host"); fwd != "" {
			host = strings.TrimSpace(strings.Split(fwd, ",")[0])
		}
		base = scheme + "://" + host
	}
	return base + TrackPath
}

// Render returns the script for req.
func (r *Renderer) Render(req *http.Request) ([]byte, error) {
	endpoint := r.Endpoint(req)
	if r.publicURL == "" {
		return Render(endpoint)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return r.cached, nil
	}
	out, err := Render(endpoint)
	if err != nil {
		return nil, err
	}
	r.cached = out
	return out, nil
}

// Render executes the script template for endpoint.
func Render(endpoint string) ([]byte, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, params{
		Endpoint:      endpoint,
		IdleTimeoutMs: IdleTimeout.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("render tracking script: %w", err)
	}
	return buf.Bytes(), nil
}
