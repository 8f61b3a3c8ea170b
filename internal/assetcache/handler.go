package assetcache

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// Handler fronts the application shell with the offline cache policy.
// It implements http.Handler.
type Handler struct {
	upstream *url.URL
	client   *http.Client
	root     string
	manifest *Manifest
	shell    map[string]bool
	gen      *generation
	logger   *log.Logger

	// writeMu serializes cache writes for the same generation.
	writeMu sync.Mutex

	// revalidateWG tracks background shell revalidations, mostly so
	// tests can wait for them.
	revalidateWG sync.WaitGroup
}

// Config holds handler configuration.
type Config struct {
	// FetchTimeout bounds upstream fetches (default: 10s).
	FetchTimeout time.Duration

	// Logger for cache activity (default: stderr logger).
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		FetchTimeout: 10 * time.Second,
		Logger:       log.New(os.Stderr, "[assetcache] ", log.LstdFlags),
	}
}

// New creates a cache handler for the given upstream and manifest.
// Cache generations are stored under root.
func New(upstream, root string, manifest *Manifest, config *Config) (*Handler, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[assetcache] ", log.LstdFlags)
	}
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 10 * time.Second
	}

	u, err := url.Parse(upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	gen, err := openGeneration(root, manifest.Version)
	if err != nil {
		return nil, err
	}

	shell := make(map[string]bool, len(manifest.Assets))
	for _, a := range manifest.Assets {
		shell[a] = true
	}

	return &Handler{
		upstream: u,
		client:   &http.Client{Timeout: config.FetchTimeout},
		root:     root,
		manifest: manifest,
		shell:    shell,
		gen:      gen,
		logger:   config.Logger,
	}, nil
}

// Activate installs this manifest version: the shell assets are
// pre-fetched into the active generation and every older generation is
// deleted. Safe to call more than once for the same version.
//
// Individual asset failures are logged but do not abort activation;
// a missing shell entry just falls back to runtime caching later.
func (h *Handler) Activate(ctx context.Context) error {
	h.logger.Printf("Activating shell cache v%d (%d assets)", h.manifest.Version, len(h.manifest.Assets))

	for _, asset := range h.manifest.Assets {
		if err := h.fetchAndStore(ctx, asset); err != nil {
			h.logger.Printf("Warning: failed to pre-cache %s: %v", asset, err)
		}
	}

	if err := dropOtherGenerations(h.root, h.gen.dir); err != nil {
		return err
	}

	h.logger.Printf("Shell cache v%d active", h.manifest.Version)
	return nil
}

// ServeHTTP applies the cache policy:
//   - non-read methods are proxied straight through, never cached;
//   - shell assets are served cache-first with background revalidation;
//   - other GETs go to the network, are cached on success, and fall
//     back to the cache when the upstream fails.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.passthrough(w, r)
		return
	}

	uri := r.URL.RequestURI()

	if h.shell[r.URL.Path] {
		h.serveShell(w, r, uri)
		return
	}

	h.serveRuntime(w, r, uri)
}

// serveShell is the stale-while-revalidate, cache-first branch.
func (h *Handler) serveShell(w http.ResponseWriter, r *http.Request, uri string) {
	if meta, body, ok := h.gen.get(uri); ok {
		h.revalidateWG.Add(1)
		go func() {
			defer h.revalidateWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), h.client.Timeout)
			defer cancel()
			if err := h.fetchAndStore(ctx, uri); err != nil {
				h.logger.Printf("Revalidate failed for %s: %v", uri, err)
			}
		}()

		h.writeCached(w, r, meta, body)
		return
	}

	// Not pre-cached yet; behave like a runtime asset.
	h.serveRuntime(w, r, uri)
}

// serveRuntime is the network-first, cache-on-success branch.
func (h *Handler) serveRuntime(w http.ResponseWriter, r *http.Request, uri string) {
	meta, body, err := h.fetch(r.Context(), uri)
	if err == nil {
		if meta.Status >= 200 && meta.Status < 300 {
			h.store(uri, meta, body)
		}
		h.writeCached(w, r, meta, body)
		return
	}

	// Offline fallback.
	if meta, body, ok := h.gen.get(uri); ok {
		h.logger.Printf("Upstream failed for %s, serving cached copy", uri)
		h.writeCached(w, r, meta, body)
		return
	}

	http.Error(w, "upstream unavailable", http.StatusBadGateway)
}

// passthrough forwards a non-read request without touching the cache.
func (h *Handler) passthrough(w http.ResponseWriter, r *http.Request) {
	req, err := http.NewRequestWithContext(r.Context(), r.Method, h.upstreamURL(r.URL.RequestURI()), r.Body)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

// fetch retrieves an asset from the upstream.
func (h *Handler) fetch(ctx context.Context, uri string) (entryMeta, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.upstreamURL(uri), nil)
	if err != nil {
		return entryMeta{}, nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return entryMeta{}, nil, fmt.Errorf("upstream fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return entryMeta{}, nil, fmt.Errorf("failed to read upstream body: %w", err)
	}

	return entryMeta{
		ContentType: resp.Header.Get("Content-Type"),
		Status:      resp.StatusCode,
	}, body, nil
}

// fetchAndStore fetches an asset and caches it when successful.
func (h *Handler) fetchAndStore(ctx context.Context, uri string) error {
	meta, body, err := h.fetch(ctx, uri)
	if err != nil {
		return err
	}
	if meta.Status < 200 || meta.Status >= 300 {
		return fmt.Errorf("upstream returned status %d for %s", meta.Status, uri)
	}
	h.store(uri, meta, body)
	return nil
}

func (h *Handler) store(uri string, meta entryMeta, body []byte) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := h.gen.put(uri, meta, body); err != nil {
		h.logger.Printf("Failed to cache %s: %v", uri, err)
	}
}

func (h *Handler) writeCached(w http.ResponseWriter, r *http.Request, meta entryMeta, body []byte) {
	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	status := meta.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func (h *Handler) upstreamURL(uri string) string {
	return strings.TrimRight(h.upstream.String(), "/") + uri
}

// WaitRevalidations blocks until in-flight background revalidations
// finish. Exposed for tests.
func (h *Handler) WaitRevalidations() {
	h.revalidateWG.Wait()
}
