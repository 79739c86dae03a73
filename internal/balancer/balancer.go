// Package balancer wires the Registry, Selection Policy, Scheduler,
// Status Probe, Bootstrap and Dispatcher into one constructed instance
// (spec §2). There is no process-wide container: every component is an
// explicit constructor parameter, so multiple concurrent Balancer
// instances never share state (SPEC_FULL §9).
package balancer

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Exzender/tatum-v3-fork/internal/bootstrap"
	"github.com/Exzender/tatum-v3-fork/internal/codec"
	"github.com/Exzender/tatum-v3-fork/internal/config"
	"github.com/Exzender/tatum-v3-fork/internal/dispatcher"
	"github.com/Exzender/tatum-v3-fork/internal/httpclient"
	"github.com/Exzender/tatum-v3-fork/internal/probe"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
	"github.com/Exzender/tatum-v3-fork/internal/scheduler"
)

// Balancer is one RPC load balancer instance for one network.
type Balancer struct {
	cfg        config.Config
	logger     *zap.Logger
	registry   *registry.Registry
	dispatcher *dispatcher.Dispatcher
	scheduler  *scheduler.Scheduler
	client     *http.Client
}

// New constructs a Balancer but does not populate its registry; call
// Init to run Bootstrap and start the Scheduler. Networks whose family
// has no Status Payload Codec fail here, eagerly, rather than inside the
// probe loop (spec §4.2).
func New(cfg config.Config, logger *zap.Logger) (*Balancer, error) {
	c, err := codec.For(cfg.Network)
	if err != nil {
		return nil, err
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = config.DefaultProbeTimeout
	}
	if cfg.LBInterval <= 0 {
		cfg.LBInterval = config.DefaultLBInterval
	}

	reg := registry.New()
	client := httpclient.New(0)

	disp := dispatcher.New(logger, client, reg, string(cfg.Network), cfg.AllowedBlocksBehind)

	b := &Balancer{
		cfg:        cfg,
		logger:     logger,
		registry:   reg,
		dispatcher: disp,
		client:     client,
	}

	headers := probe.Headers{
		SDKVersion: cfg.SDKVersion,
		Product:    "go-sdk",
		Debug:      cfg.Verbose,
		APIKey:     cfg.APIKey,
	}
	runner := probe.New(logger, client, reg, cfg.Network, c, headers, cfg.ProbeTimeout, cfg.AllowedBlocksBehind)
	b.scheduler = scheduler.New(logger, cfg.LBInterval, cfg.OneTimeLoadBalancing, runner.RunPass)

	return b, nil
}

// Init populates the registry via Bootstrap and, unless
// cfg.OneTimeLoadBalancing is set, arms the periodic probe timer. It
// mirrors the source's "init" lifecycle phase (spec §3 Lifecycle): the
// registry is created empty by New and populated exactly once here.
func (b *Balancer) Init(ctx context.Context) error {
	if err := bootstrap.Run(ctx, b.logger, b.client, b.cfg, b.registry); err != nil {
		return err
	}
	return b.scheduler.Start(ctx)
}

// Destroy cancels the scheduler's pending timer (spec §3 Lifecycle,
// §4.5). In-flight HTTP probes are not individually cancelled; they
// complete or time out on their own.
func (b *Balancer) Destroy() {
	b.scheduler.Stop()
}

// RawRPCCall exposes dispatcher.Dispatcher.RawRPCCall (spec §4.6).
func (b *Balancer) RawRPCCall(ctx context.Context, request []byte, archive bool) (json.RawMessage, error) {
	return b.dispatcher.RawRPCCall(ctx, request, archive)
}

// RawBatchRPCCall exposes dispatcher.Dispatcher.RawBatchRPCCall
// (spec §4.6; always archive-first).
func (b *Balancer) RawBatchRPCCall(ctx context.Context, requests []byte) (json.RawMessage, error) {
	return b.dispatcher.RawBatchRPCCall(ctx, requests)
}

// Post exposes dispatcher.Dispatcher.Post (spec §4.6).
func (b *Balancer) Post(ctx context.Context, path string, body []byte) (json.RawMessage, error) {
	return b.dispatcher.Post(ctx, path, body)
}

// Registry returns the balancer's registry, for read-only diagnostics
// (e.g. cmd/lbmonitor's Snapshot-based status endpoint).
func (b *Balancer) Registry() *registry.Registry {
	return b.registry
}

// Dispatcher returns the balancer's Dispatcher, which satisfies
// facade.Caller, for wiring a typed per-chain adapter (spec §4.7).
func (b *Balancer) Dispatcher() *dispatcher.Dispatcher {
	return b.dispatcher
}
