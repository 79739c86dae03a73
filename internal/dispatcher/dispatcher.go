// Package dispatcher implements the Dispatcher (spec §4.6): resolves the
// active URL for a call (with cross-kind fallback), forwards it to the
// HTTP transport, and on failure marks the endpoint failed, re-selects,
// and retries — as a bounded loop rather than recursion (SPEC_FULL §9),
// bounded by the total endpoint count across both kinds.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/Exzender/tatum-v3-fork/internal/lberrors"
	"github.com/Exzender/tatum-v3-fork/internal/metrics"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
	"github.com/Exzender/tatum-v3-fork/internal/selection"
)

// Dispatcher forwards client RPC calls to the registry's active endpoint
// and fails over on error.
type Dispatcher struct {
	logger              *zap.Logger
	client              *http.Client
	reg                 *registry.Registry
	network             string
	allowedBlocksBehind int64
}

// New builds a Dispatcher over reg. network is used only to label
// metrics.
func New(logger *zap.Logger, client *http.Client, reg *registry.Registry, network string, allowedBlocksBehind int64) *Dispatcher {
	return &Dispatcher{logger: logger, client: client, reg: reg, network: network, allowedBlocksBehind: allowedBlocksBehind}
}

// resolveOrder returns the two kinds to try in order, honoring the
// requested kind first and falling back to the other (spec §4.6
// "Fallback").
func resolveOrder(archiveFirst bool) [2]registry.NodeKind {
	if archiveFirst {
		return [2]registry.NodeKind{registry.Archive, registry.Normal}
	}
	return [2]registry.NodeKind{registry.Normal, registry.Archive}
}

// RawRPCCall posts request to the best available endpoint, trying ARCHIVE
// then NORMAL when archive is true, or NORMAL then ARCHIVE otherwise
// (spec §4.6). On a transport-level error or non-2xx response it marks
// the active endpoint of that kind failed, re-runs Selection Policy, and
// retries with the same request and the same fallback order — until both
// pools are exhausted, at which point it returns
// *lberrors.AllNodesUnavailableError.
func (d *Dispatcher) RawRPCCall(ctx context.Context, request []byte, archive bool) (json.RawMessage, error) {
	return d.call(ctx, request, resolveOrder(archive))
}

// RawBatchRPCCall has identical failover semantics to RawRPCCall but
// always resolves through the ARCHIVE-first fallback path, because batch
// calls may reference historical state (spec §4.6; SPEC_FULL §9 open
// question: preserved even when the caller does not request archive
// semantics).
func (d *Dispatcher) RawBatchRPCCall(ctx context.Context, requests []byte) (json.RawMessage, error) {
	return d.call(ctx, requests, resolveOrder(true))
}

// call is the shared bounded-retry loop backing RawRPCCall and
// RawBatchRPCCall. The bound is the total number of endpoints across both
// kinds: every retry either exhausts a kind's pool (falls back) or
// consumes one more endpoint from the active kind, so the loop cannot
// retry more times than there are endpoints.
func (d *Dispatcher) call(ctx context.Context, body []byte, order [2]registry.NodeKind) (json.RawMessage, error) {
	// +2 covers the (at most one per kind) loop iterations spent
	// discovering that a kind's pool is exhausted and falling back to
	// the other kind, which consume a loop slot without making an HTTP
	// call.
	maxAttempts := d.reg.Len(registry.Normal) + d.reg.Len(registry.Archive) + 2
	if maxAttempts <= 2 {
		maxAttempts = 1
	}

	var lastErr error
	kindIdx := 0

	for attempt := 0; attempt < maxAttempts; attempt++ {
		kind, url, ok := d.resolveURL(order, &kindIdx)
		if !ok {
			// No active endpoint resolved anywhere in order. If a prior
			// attempt this call already tried and failed against a real
			// endpoint, that failure — not "nothing was ever active" — is
			// why we're here, so the caller must see AllNodesUnavailable
			// with the last transport error attached (spec §7).
			if lastErr == nil {
				return nil, lberrors.ErrNoActiveNode
			}
			return nil, lberrors.NewAllNodesUnavailable(order[0], lastErr)
		}

		result, err := d.post(ctx, url, body)
		if err == nil {
			return result, nil
		}
		lastErr = err

		d.reg.MarkFailed(kind, url)
		metrics.DispatcherRetriesTotal.WithLabelValues(d.network, string(kind)).Inc()

		snapshot := d.reg.Snapshot(kind)
		winner, selected := selection.Select(snapshot, d.allowedBlocksBehind)
		if !selected {
			// This kind is exhausted. DESIGN.md open-question decision: rather
			// than failing immediately with AllNodesUnavailable, one more
			// cross-kind fallback is attempted on the next loop iteration
			// by advancing kindIdx — but the call still terminates with
			// AllNodesUnavailable (never ErrNoActiveNode) once the other
			// kind is exhausted too, since lastErr is already set.
			kindIdx++
			continue
		}
		idx := d.reg.IndexOf(kind, winner.URL)
		if idx != -1 {
			d.reg.SetActive(kind, idx, winner.URL)
		}
	}

	return nil, lberrors.NewAllNodesUnavailable(order[0], lastErr)
}

// resolveURL returns the next (kind, url) pair to try, honoring order and
// advancing kindIdx to the fallback kind once the preferred one has no
// active endpoint.
func (d *Dispatcher) resolveURL(order [2]registry.NodeKind, kindIdx *int) (registry.NodeKind, string, bool) {
	for *kindIdx < len(order) {
		kind := order[*kindIdx]
		if url, ok := d.reg.Active(kind); ok {
			return kind, url, true
		}
		*kindIdx++
	}
	return "", "", false
}

// Post performs a plain HTTP POST to activeNormalURL+path, with no
// failover and no retry (spec §4.6). It is used by non-RPC chain
// endpoints (e.g. a Tron HTTP API or Solana JSON REST surface) layered on
// top of this balancer by an external collaborator.
func (d *Dispatcher) Post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	base, ok := d.reg.Active(registry.Normal)
	if !ok {
		return nil, lberrors.ErrNoActiveNode
	}
	result, err := d.post(ctx, base+path, body)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("dispatcher: post failed", zap.String("path", path), zap.Error(err))
		}
		return nil, err
	}
	return result, nil
}

// post performs the raw HTTP round-trip shared by RPC calls and Post.
func (d *Dispatcher) post(ctx context.Context, url string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dispatcher: %s returned status %d", url, resp.StatusCode)
	}
	return respBody, nil
}
