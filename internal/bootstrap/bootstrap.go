// Package bootstrap populates a registry.Registry exactly once (spec
// §4.1), either from caller-supplied nodes (Static mode, trusted) or from
// a remote manifest fetched over HTTP (Remote mode, SSRF-filtered).
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Exzender/tatum-v3-fork/internal/chain"
	"github.com/Exzender/tatum-v3-fork/internal/config"
	"github.com/Exzender/tatum-v3-fork/internal/lberrors"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
	"github.com/Exzender/tatum-v3-fork/internal/ssrf"
)

// manifestNode is one entry of the remote manifest's JSON array
// (spec §6: `{ "url": string, "type": "normal"|"archive" }`; additional
// fields are ignored).
type manifestNode struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Run populates reg from cfg, choosing Static mode when cfg.Nodes is
// non-empty and Remote mode otherwise. It returns
// lberrors.ErrAlreadyBootstrapped if reg has already been populated
// (SPEC_FULL §9 open-question decision: bootstrap is idempotent by
// rejection, not by silent no-op).
func Run(ctx context.Context, logger *zap.Logger, client *http.Client, cfg config.Config, reg *registry.Registry) error {
	if reg.Bootstrapped() {
		return lberrors.ErrAlreadyBootstrapped
	}

	if len(cfg.Nodes) > 0 {
		runStatic(cfg, reg)
	} else {
		if err := runRemote(ctx, logger, client, cfg, reg); err != nil {
			return err
		}
	}

	randomizeActive(reg)

	if reg.Len(registry.Normal) == 0 && reg.Len(registry.Archive) == 0 {
		return lberrors.ErrNoActiveNode
	}
	return nil
}

// runStatic appends every caller-supplied node whose Type matches kind to
// endpoints[kind]. The SSRF check is bypassed entirely: the caller is
// trusted (spec §4.1).
func runStatic(cfg config.Config, reg *registry.Registry) {
	for _, kind := range registry.Kinds {
		var urls []string
		for _, n := range cfg.Nodes {
			if n.Type == kind {
				urls = append(urls, n.URL)
			}
		}
		reg.Populate(kind, urls)
	}
}

// runRemote fetches the two manifest URLs concurrently and inserts every
// node that passes the SSRF check into the kind(s) matching its declared
// type. A single manifest's nodes only ever land in the one kind list
// matching their type (SPEC_FULL §9: "cross-pool write" preserved exactly
// as that — never cross-inserted). A manifest fetch failure is logged and
// non-fatal as long as at least one endpoint ends up registered overall.
func runRemote(ctx context.Context, logger *zap.Logger, client *http.Client, cfg config.Config, reg *registry.Registry) error {
	manifestName := chain.ManifestName(cfg.Network)
	base := cfg.ManifestBaseURL
	if base == "" {
		base = config.DefaultManifestHost
	}
	normalURL := fmt.Sprintf("%s/%s/list.json", base, manifestName)
	archiveURL := fmt.Sprintf("%s/%s-archive/list.json", base, manifestName)

	var normalNodes, archiveNodes []manifestNode

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		nodes, err := fetchManifest(gctx, client, normalURL)
		if err != nil {
			logIfVerbose(logger, cfg.Verbose, "bootstrap: normal manifest fetch failed", err)
			return nil // non-fatal, see doc comment
		}
		normalNodes = nodes
		return nil
	})
	g.Go(func() error {
		nodes, err := fetchManifest(gctx, client, archiveURL)
		if err != nil {
			logIfVerbose(logger, cfg.Verbose, "bootstrap: archive manifest fetch failed", err)
			return nil
		}
		archiveNodes = nodes
		return nil
	})
	_ = g.Wait() // fetch errors are recorded above, never propagated from here

	// Both manifests' entries are pooled and then filtered by their own
	// declared type into the matching kind list — a node never lands in
	// a kind list that doesn't match its type, regardless of which
	// manifest URL it came back on (SPEC_FULL §9 "cross-pool write").
	insertFiltered(reg, registry.Normal, normalNodes)
	insertFiltered(reg, registry.Normal, archiveNodes)
	insertFiltered(reg, registry.Archive, normalNodes)
	insertFiltered(reg, registry.Archive, archiveNodes)

	return nil
}

// insertFiltered appends the URLs of nodes whose Type matches kind and
// whose URL passes the SSRF allow-list check (spec §4.1, §8 invariant 5).
func insertFiltered(reg *registry.Registry, kind registry.NodeKind, nodes []manifestNode) {
	var urls []string
	for _, n := range nodes {
		if registry.NodeKind(n.Type) != kind {
			continue
		}
		if !ssrf.AllowedHost(n.URL) {
			continue
		}
		urls = append(urls, n.URL)
	}
	reg.Populate(kind, urls)
}

// fetchManifest GETs url and decodes it as a manifest array, retrying a
// bounded number of times with exponential backoff (the teacher's
// cenkalti/backoff/v4 idiom for a single flaky network call).
func fetchManifest(ctx context.Context, client *http.Client, url string) ([]manifestNode, error) {
	var nodes []manifestNode

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("bootstrap: manifest %s: status %d", url, resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var parsed []manifestNode
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("bootstrap: manifest %s: %w", url, err))
		}
		nodes = parsed
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return nodes, nil
}

// randomizeActive picks a uniformly random initial active endpoint for
// each kind with at least one endpoint, spreading initial load across
// balancer instances (spec §4.1, §9: genuine randomness, not a
// deterministic hash of the URL list).
func randomizeActive(reg *registry.Registry) {
	for _, kind := range registry.Kinds {
		reg.SetActiveRandom(kind, rand.Intn)
	}
}

func logIfVerbose(logger *zap.Logger, verbose bool, msg string, err error) {
	if logger == nil {
		return
	}
	if verbose {
		logger.Warn(msg, zap.Error(err))
	} else {
		logger.Debug(msg, zap.Error(err))
	}
}
