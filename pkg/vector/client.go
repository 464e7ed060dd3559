// Package vector manages the lifecycle of the external embedding server and
// exposes the vector store operations it serves. The worker is an
// out-of-process HTTP service: the client launches it on demand, waits for
// it to report healthy, mediates store operations over local HTTP, and tears
// it down on stop.
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/novelassist/vectord/pkg/health"
	"github.com/novelassist/vectord/pkg/logger"
)

const (
	// DefaultCollectionName is used when an operation passes an empty
	// collection name.
	DefaultCollectionName = "default"

	// DefaultQueryLimit is the result count when a query does not set one.
	DefaultQueryLimit = 5

	// defaultPortDiscoveryWindow bounds the wait for the worker's port
	// announcement before assuming the requested port.
	defaultPortDiscoveryWindow = 10 * time.Second
)

// Config holds the client's lifecycle and transport settings.
type Config struct {
	// Host and Port describe where the worker is asked to bind. The actual
	// port may differ when the worker self-selects a free one.
	Host string
	Port int

	// DefaultCollection overrides DefaultCollectionName when set.
	DefaultCollection string

	// HealthMaxAttempts and HealthInterval shape the readiness probe.
	HealthMaxAttempts int
	HealthInterval    time.Duration

	// GracefulTimeout is the window between the stop signal and the kill.
	GracefulTimeout time.Duration

	// RequestTimeout bounds individual store operations.
	RequestTimeout time.Duration

	// PortDiscoveryWindow bounds the wait for the port announcement.
	PortDiscoveryWindow time.Duration
}

// startAttempt is one in-flight Start shared by concurrent callers. err is
// written before done is closed and read only after.
type startAttempt struct {
	done chan struct{}
	err  error
}

// Client supervises exactly one worker at a time and speaks its REST
// protocol. All methods are safe for concurrent use.
type Client struct {
	launcher Launcher
	probe    *health.Probe
	logger   *slog.Logger
	cfg      Config
	httpc    *http.Client

	mu       sync.Mutex
	state    State
	worker   Worker
	endpoint health.Endpoint
	inflight *startAttempt
	gen      int
}

// NewClient builds a client around a launcher. Zero config fields fall back
// to workable defaults.
func NewClient(launcher Launcher, probe *health.Probe, cfg Config, log *slog.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if probe == nil {
		probe = health.NewProbe(log)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.HealthMaxAttempts <= 0 {
		cfg.HealthMaxAttempts = 30
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = 500 * time.Millisecond
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 5 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.PortDiscoveryWindow <= 0 {
		cfg.PortDiscoveryWindow = defaultPortDiscoveryWindow
	}

	return &Client{
		launcher: launcher,
		probe:    probe,
		logger:   log,
		cfg:      cfg,
		httpc:    &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// State reports the client's current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Endpoint reports where the worker is reachable. Meaningful only while
// Ready.
func (c *Client) Endpoint() health.Endpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoint
}

// PID reports the worker's process id, or 0 when no worker is running.
func (c *Client) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.worker == nil {
		return 0
	}
	return c.worker.PID()
}

// Start brings the worker up and waits until it is healthy. Concurrent
// callers share a single in-flight attempt: exactly one worker is spawned
// and everyone observes the same outcome. A caller whose context expires
// leaves the shared attempt running for the others. Calling Start while
// Ready is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateReady:
		c.mu.Unlock()
		return nil
	case StateStarting:
		att := c.inflight
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-att.done:
			return att.err
		}
	case StateStopping:
		c.mu.Unlock()
		return fmt.Errorf("cannot start while stopping")
	}

	att := &startAttempt{done: make(chan struct{})}
	c.inflight = att
	c.state = StateStarting
	c.mu.Unlock()

	worker, endpoint, err := c.launch(ctx)

	c.mu.Lock()
	c.inflight = nil
	if err != nil {
		c.state = StateFailed
		c.worker = nil
	} else {
		c.state = StateReady
		c.worker = worker
		c.endpoint = endpoint
		c.gen++
		go c.watchExit(worker, c.gen)
	}
	c.mu.Unlock()

	att.err = err
	close(att.done)
	return err
}

// EnsureReady is the precondition every store operation runs through: a
// no-op while Ready, a fresh launch from any terminal state.
func (c *Client) EnsureReady(ctx context.Context) error {
	return c.Start(ctx)
}

// launch spawns the worker, discovers its port, and waits for readiness. On
// failure after the spawn it tears the half-started worker down best-effort.
func (c *Client) launch(ctx context.Context) (Worker, health.Endpoint, error) {
	var endpoint health.Endpoint

	worker, err := c.launcher.Launch(ctx)
	if err != nil {
		return nil, endpoint, fmt.Errorf("%w: %w", ErrSpawn, err)
	}

	port := c.cfg.Port
	select {
	case p := <-worker.Port():
		port = p
	case <-worker.Done():
		return nil, endpoint, fmt.Errorf("%w: exit code %d before binding a port",
			ErrUnexpectedExit, worker.ExitCode())
	case <-time.After(c.cfg.PortDiscoveryWindow):
		c.logger.Debug("no port announcement, assuming requested port", "port", port)
	case <-ctx.Done():
		c.teardown(worker, port)
		return nil, endpoint, ctx.Err()
	}

	endpoint = health.Endpoint{Host: c.cfg.Host, Port: port}

	// Race the probe against the worker dying so a crash fails fast instead
	// of burning the whole probe budget.
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- c.probe.WaitUntilReady(probeCtx, endpoint, c.cfg.HealthMaxAttempts, c.cfg.HealthInterval)
	}()

	select {
	case <-worker.Done():
		cancel()
		<-probeDone
		return nil, endpoint, fmt.Errorf("%w: exit code %d during startup",
			ErrUnexpectedExit, worker.ExitCode())
	case err := <-probeDone:
		if err != nil {
			c.teardown(worker, port)
			if errors.Is(err, health.ErrNotReady) {
				return nil, endpoint, fmt.Errorf("%w: %w", ErrReadinessTimeout, err)
			}
			return nil, endpoint, err
		}
	}

	c.logger.Info("worker ready",
		"pid", worker.PID(),
		"endpoint", endpoint.URL(),
	)
	return worker, endpoint, nil
}

// watchExit drops the client back to Stopped when the worker dies out from
// under a Ready client, so the next EnsureReady relaunches. gen guards
// against a stale watcher observing a worker that Stop already replaced.
func (c *Client) watchExit(worker Worker, gen int) {
	<-worker.Done()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.state != StateReady {
		return
	}

	c.logger.Warn("worker exited unexpectedly while serving",
		"pid", worker.PID(),
		"code", worker.ExitCode(),
	)
	c.state = StateStopped
	c.worker = nil
}

// Stop tears the worker down: graceful stop, forceful kill after the window,
// then a socket-table sweep for leaked listeners on the port. It is
// idempotent; stopping an already-stopped client is a no-op. Teardown
// failures are logged, not returned, since the client ends up Stopped either
// way.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateStarting {
		att := c.inflight
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-att.done:
		}
		c.mu.Lock()
	}

	worker := c.worker
	port := c.endpoint.Port
	c.worker = nil
	c.gen++
	c.state = StateStopping
	c.mu.Unlock()

	if worker != nil {
		c.teardown(worker, port)
	}

	c.mu.Lock()
	c.state = StateStopped
	c.mu.Unlock()
	return nil
}

func (c *Client) teardown(worker Worker, port int) {
	if err := worker.Terminate(context.Background(), c.cfg.GracefulTimeout); err != nil {
		c.logger.Error("terminating worker", "pid", worker.PID(), "error", err)
	}
	if port > 0 {
		if err := c.launcher.CleanupPort(context.Background(), port); err != nil {
			c.logger.Warn("sweeping worker port", "port", port, "error", err)
		}
	}
}

// ListCollections returns the names of all collections in the store.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var resp collectionsResponse
	if err := c.call(ctx, http.MethodGet, "/collections", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Collections, nil
}

// CreateEmbedding stores one document. An omitted metadata map is sent as an
// empty object, and an omitted embedding lets the worker compute one.
func (c *Client) CreateEmbedding(ctx context.Context, collection string, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", ErrValidation)
	}
	if doc.Text == "" && doc.Embedding == nil {
		return fmt.Errorf("%w: document needs text or an embedding", ErrValidation)
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return c.call(ctx, http.MethodPost, "/embed", c.collectionQuery(collection), embedRequest{
		ID:        doc.ID,
		Text:      doc.Text,
		Metadata:  metadata,
		Embedding: doc.Embedding,
	}, nil)
}

// CreateEmbeddingBatch stores many documents at once. Misaligned slices fail
// fast before any request is issued; missing metadatas are synthesized as
// empty objects so the worker receives aligned arrays.
func (c *Client) CreateEmbeddingBatch(ctx context.Context, collection string, batch Batch) error {
	if len(batch.IDs) == 0 {
		return fmt.Errorf("%w: batch is empty", ErrValidation)
	}
	if len(batch.Texts) != len(batch.IDs) {
		return fmt.Errorf("%w: %d ids but %d texts", ErrValidation, len(batch.IDs), len(batch.Texts))
	}
	if batch.Metadatas != nil && len(batch.Metadatas) != len(batch.IDs) {
		return fmt.Errorf("%w: %d ids but %d metadatas", ErrValidation, len(batch.IDs), len(batch.Metadatas))
	}
	if batch.Embeddings != nil && len(batch.Embeddings) != len(batch.IDs) {
		return fmt.Errorf("%w: %d ids but %d embeddings", ErrValidation, len(batch.IDs), len(batch.Embeddings))
	}

	metadatas := batch.Metadatas
	if metadatas == nil {
		metadatas = make([]map[string]any, len(batch.IDs))
	}
	for i, m := range metadatas {
		if m == nil {
			metadatas[i] = map[string]any{}
		}
	}

	return c.call(ctx, http.MethodPost, "/embed_batch", c.collectionQuery(collection), embedBatchRequest{
		IDs:        batch.IDs,
		Texts:      batch.Texts,
		Metadatas:  metadatas,
		Embeddings: batch.Embeddings,
	}, nil)
}

// QuerySimilar runs a similarity search and returns matches in the worker's
// ranking order. The filter is forwarded verbatim and left out of the
// request entirely when empty.
func (c *Client) QuerySimilar(ctx context.Context, collection string, q Query) ([]Match, error) {
	if q.Text == "" && q.Embedding == nil {
		return nil, fmt.Errorf("%w: query needs text or an embedding", ErrValidation)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	where := q.Filter
	if len(where) == 0 {
		where = nil
	}

	var resp queryResponse
	err := c.call(ctx, http.MethodPost, "/query", c.collectionQuery(collection), queryRequest{
		QueryText: q.Text,
		NResults:  limit,
		Where:     where,
		Embedding: q.Embedding,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// DeleteByIDs removes the named documents from a collection.
func (c *Client) DeleteByIDs(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: no ids given", ErrValidation)
	}
	return c.call(ctx, http.MethodPost, "/delete", c.collectionQuery(collection), deleteRequest{
		IDs: ids,
	}, nil)
}

// DeleteByFilter removes every document matching the filter. An empty filter
// is rejected rather than interpreted as delete-everything.
func (c *Client) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	if len(filter) == 0 {
		return fmt.Errorf("%w: filter is empty", ErrValidation)
	}
	return c.call(ctx, http.MethodPost, "/delete", c.collectionQuery(collection), deleteRequest{
		Where: filter,
	}, nil)
}

// DeleteCollection removes an entire collection.
func (c *Client) DeleteCollection(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name is required", ErrValidation)
	}
	return c.call(ctx, http.MethodDelete, "/collection/"+url.PathEscape(name), nil, nil, nil)
}

// collectionQuery builds the collection_name query param, applying the
// configured default, then the protocol default.
func (c *Client) collectionQuery(name string) url.Values {
	if name == "" {
		name = c.cfg.DefaultCollection
	}
	if name == "" {
		name = DefaultCollectionName
	}
	return url.Values{"collection_name": []string{name}}
}

// call ensures the worker is ready, then performs one request against it.
// Non-2xx responses surface as *BackendError; failures before a response
// arrives wrap ErrTransport.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	if err := c.EnsureReady(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	target := c.endpoint.URL() + path
	c.mu.Unlock()
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %w", ErrTransport, path, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &BackendError{
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(data)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return nil
}
