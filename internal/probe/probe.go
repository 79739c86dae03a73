// Package probe implements the Status Probe (spec §4.3): one pass per
// tick, issuing one health RPC per endpoint, concurrently within a kind,
// sequentially kind-by-kind (NORMAL then ARCHIVE).
package probe

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Exzender/tatum-v3-fork/internal/chain"
	"github.com/Exzender/tatum-v3-fork/internal/codec"
	"github.com/Exzender/tatum-v3-fork/internal/lberrors"
	"github.com/Exzender/tatum-v3-fork/internal/metrics"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
	"github.com/Exzender/tatum-v3-fork/internal/selection"
)

// Headers carries the SDK identification headers sent with every probe
// request (spec §6).
type Headers struct {
	SDKVersion string
	Product    string
	Debug      bool
	APIKey     string
}

// Runner executes probe passes against one balancer instance's registry.
type Runner struct {
	logger              *zap.Logger
	client              *http.Client
	reg                 *registry.Registry
	network             chain.Network
	codec               codec.Codec
	headers             Headers
	timeout             time.Duration
	allowedBlocksBehind int64
}

// New builds a Runner. c must already be resolved via codec.For(network);
// callers construct it once at wiring time so an unsupported network
// fails fast instead of inside the hot probe loop (spec §4.2).
func New(logger *zap.Logger, client *http.Client, reg *registry.Registry, network chain.Network, c codec.Codec, headers Headers, timeout time.Duration, allowedBlocksBehind int64) *Runner {
	return &Runner{
		logger:              logger,
		client:              client,
		reg:                 reg,
		network:             network,
		codec:               c,
		headers:             headers,
		timeout:             timeout,
		allowedBlocksBehind: allowedBlocksBehind,
	}
}

// RunPass executes one complete pass: for each NodeKind in order, probe
// every endpoint concurrently and wait for all of them to settle; once
// both kinds have settled, run Selection Policy per kind and publish the
// new active endpoints. If neither
// kind ends the pass with an active endpoint, it returns
// lberrors.ErrNoActiveNode (the caller, internal/scheduler, treats this
// as non-fatal and logs it).
func (r *Runner) RunPass(ctx context.Context) error {
	for _, kind := range registry.Kinds {
		r.probeKind(ctx, kind)
	}
	for _, kind := range registry.Kinds {
		r.selectActive(kind)
	}

	_, normalOK := r.reg.Active(registry.Normal)
	_, archiveOK := r.reg.Active(registry.Archive)
	if !normalOK && !archiveOK {
		return lberrors.ErrNoActiveNode
	}
	return nil
}

// probeKind runs one health RPC against every endpoint of kind,
// concurrently, using an errgroup purely as a wait-for-all barrier: a
// per-endpoint failure never causes the group to cancel its siblings
// ("wait for all, never reject", spec §4.3).
func (r *Runner) probeKind(ctx context.Context, kind registry.NodeKind) {
	eps := r.reg.Snapshot(kind)
	if len(eps) == 0 {
		return
	}

	var g errgroup.Group
	for _, ep := range eps {
		url := ep.URL
		g.Go(func() error {
			r.probeOne(ctx, kind, url)
			return nil
		})
	}
	_ = g.Wait()
}

// probeOne issues one health RPC against url and records the outcome.
func (r *Runner) probeOne(ctx context.Context, kind registry.NodeKind, url string) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	body, arrived, err := r.doProbe(reqCtx, url)
	elapsed := time.Since(start)
	elapsedMs := elapsed.Milliseconds()

	metrics.ProbeLatency.WithLabelValues(string(r.network), string(kind)).Observe(elapsed.Seconds())

	// lastResponseTime is only updated when a response actually
	// arrived; a timeout or transport error leaves it untouched
	// (spec §4.3).
	responseTimeMs := int64(-1)
	if arrived {
		responseTimeMs = elapsedMs
	}

	if err != nil {
		if r.logger != nil {
			r.logger.Debug("probe failed", zap.String("network", string(r.network)), zap.String("kind", string(kind)), zap.String("url", url), zap.Error(err))
		}
		metrics.ProbeFailuresTotal.WithLabelValues(string(r.network), string(kind)).Inc()
		r.reg.RecordProbeResult(kind, url, true, 0, responseTimeMs)
		return
	}

	height, decodeErr := r.codec.DecodeHeight(body)
	if decodeErr != nil || height < 0 {
		metrics.ProbeFailuresTotal.WithLabelValues(string(r.network), string(kind)).Inc()
		r.reg.RecordProbeResult(kind, url, true, 0, responseTimeMs)
		return
	}

	r.reg.RecordProbeResult(kind, url, false, height, responseTimeMs)
}

// doProbe performs the HTTP round-trip and returns the raw response body.
// arrived is true whenever an HTTP response (of any status) was actually
// received, as opposed to a dial/timeout/transport failure. Any non-OK
// status is reported as an error alongside arrived=true.
func (r *Runner) doProbe(ctx context.Context, url string) (body []byte, arrived bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(r.codec.Request()))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-ttm-sdk-version", r.headers.SDKVersion)
	req.Header.Set("x-ttm-sdk-product", r.headers.Product)
	if r.headers.Debug {
		req.Header.Set("x-ttm-sdk-debug", "true")
	}
	if r.headers.APIKey != "" {
		req.Header.Set("x-api-key", r.headers.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, true, &httpStatusError{code: resp.StatusCode}
	}
	return respBody, true, nil
}

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string {
	return "probe: non-OK status"
}

// selectActive runs Selection Policy over the current snapshot of kind
// and publishes the result as the new active endpoint, or clears it if no
// candidate qualifies. A probe pass is atomic with respect to active[kind]
// selection: apart from Bootstrap's initial random pick and the
// Dispatcher's own failover, this is the only place that writes
// active[kind], and it writes the whole pair at
// once via registry.Registry.SetActive (spec §5).
func (r *Runner) selectActive(kind registry.NodeKind) {
	snapshot := r.reg.Snapshot(kind)
	winner, ok := selection.Select(snapshot, r.allowedBlocksBehind)
	if !ok {
		r.reg.ClearActive(kind)
		metrics.ActiveEndpointIndex.WithLabelValues(string(r.network), string(kind)).Set(-1)
		return
	}
	idx := r.reg.IndexOf(kind, winner.URL)
	if idx == -1 {
		r.reg.ClearActive(kind)
		metrics.ActiveEndpointIndex.WithLabelValues(string(r.network), string(kind)).Set(-1)
		return
	}
	r.reg.SetActive(kind, idx, winner.URL)
	metrics.ActiveEndpointIndex.WithLabelValues(string(r.network), string(kind)).Set(float64(idx))
}
