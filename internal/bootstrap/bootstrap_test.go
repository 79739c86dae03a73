package bootstrap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Exzender/tatum-v3-fork/internal/bootstrap"
	"github.com/Exzender/tatum-v3-fork/internal/chain"
	"github.com/Exzender/tatum-v3-fork/internal/config"
	"github.com/Exzender/tatum-v3-fork/internal/httpclient"
	"github.com/Exzender/tatum-v3-fork/internal/lberrors"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
)

func TestRun_StaticModeBypassesSSRFCheck(t *testing.T) {
	reg := registry.New()
	cfg := config.Config{
		Network: chain.Bitcoin,
		Nodes: []config.Node{
			{URL: "https://not-on-allowlist.example.com", Type: registry.Normal},
			{URL: "https://rpc.tatum.io/archive", Type: registry.Archive},
		},
	}

	err := bootstrap.Run(context.Background(), nil, http.DefaultClient, cfg, reg)
	require.NoError(t, err)

	normal := reg.Snapshot(registry.Normal)
	require.Len(t, normal, 1)
	assert.Equal(t, "https://not-on-allowlist.example.com", normal[0].URL, "static mode trusts caller-supplied nodes unconditionally")
}

func TestRun_RemoteModeFiltersDisallowedHosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []map[string]string
		if strings.Contains(r.URL.Path, "-archive/") {
			body = []map[string]string{
				{"url": "https://archive.rpc.tatum.io", "type": "archive"},
			}
		} else {
			body = []map[string]string{
				{"url": "https://normal.rpc.tatum.io", "type": "normal"},
				{"url": "https://evil.attacker.com", "type": "normal"},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	reg := registry.New()
	cfg := config.Config{Network: chain.Bitcoin, ManifestBaseURL: srv.URL}

	err := bootstrap.Run(context.Background(), nil, srv.Client(), cfg, reg)
	require.NoError(t, err)

	normal := reg.Snapshot(registry.Normal)
	require.Len(t, normal, 1, "the disallowed host must be dropped")
	assert.Equal(t, "https://normal.rpc.tatum.io", normal[0].URL)

	archive := reg.Snapshot(registry.Archive)
	require.Len(t, archive, 1)
	assert.Equal(t, "https://archive.rpc.tatum.io", archive[0].URL)
}

func TestRun_RemoteModeCrossPoolTypeFiltering(t *testing.T) {
	// Both manifests return a mix of normal- and archive-typed nodes; each
	// node must land only in the kind list matching its own declared type,
	// regardless of which manifest URL it came back on.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := []map[string]string{
			{"url": "https://mixed-a.rpc.tatum.io", "type": "normal"},
			{"url": "https://mixed-b.rpc.tatum.io", "type": "archive"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	reg := registry.New()
	cfg := config.Config{Network: chain.Bitcoin, ManifestBaseURL: srv.URL}

	err := bootstrap.Run(context.Background(), nil, srv.Client(), cfg, reg)
	require.NoError(t, err)

	normal := reg.Snapshot(registry.Normal)
	archive := reg.Snapshot(registry.Archive)
	require.Len(t, normal, 2, "normal-typed nodes from both manifests land in the normal pool")
	require.Len(t, archive, 2, "archive-typed nodes from both manifests land in the archive pool")
}

func TestRun_ManifestFetchFailureIsNonFatalWhenOtherSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "-archive/") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		body := []map[string]string{{"url": "https://ok.rpc.tatum.io", "type": "normal"}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	reg := registry.New()
	cfg := config.Config{Network: chain.Bitcoin, ManifestBaseURL: srv.URL}

	err := bootstrap.Run(context.Background(), nil, srv.Client(), cfg, reg)
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len(registry.Normal))
	assert.Equal(t, 0, reg.Len(registry.Archive))
}

func TestRun_BothManifestsEmptyReturnsNoActiveNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	reg := registry.New()
	cfg := config.Config{Network: chain.Bitcoin, ManifestBaseURL: srv.URL}

	err := bootstrap.Run(context.Background(), nil, srv.Client(), cfg, reg)
	assert.ErrorIs(t, err, lberrors.ErrNoActiveNode)
}

func TestRun_RejectsSecondBootstrap(t *testing.T) {
	reg := registry.New()
	cfg := config.Config{
		Network: chain.Bitcoin,
		Nodes:   []config.Node{{URL: "https://a", Type: registry.Normal}},
	}

	require.NoError(t, bootstrap.Run(context.Background(), nil, http.DefaultClient, cfg, reg))
	err := bootstrap.Run(context.Background(), nil, http.DefaultClient, cfg, reg)
	assert.ErrorIs(t, err, lberrors.ErrAlreadyBootstrapped)
}

func TestRun_StaticModeSelectsAnActiveEndpoint(t *testing.T) {
	reg := registry.New()
	cfg := config.Config{
		Network: chain.Bitcoin,
		Nodes:   []config.Node{{URL: "https://only.example.com", Type: registry.Normal}},
	}

	require.NoError(t, bootstrap.Run(context.Background(), nil, http.DefaultClient, cfg, reg))

	url, ok := reg.Active(registry.Normal)
	require.True(t, ok)
	assert.Equal(t, "https://only.example.com", url)
}

func TestRun_UsesSharedHTTPClient(t *testing.T) {
	// Sanity check that the production client constructor is wireable into
	// Run without a type mismatch.
	client := httpclient.New(0)
	reg := registry.New()
	cfg := config.Config{
		Network: chain.Bitcoin,
		Nodes:   []config.Node{{URL: "https://a", Type: registry.Normal}},
	}
	require.NoError(t, bootstrap.Run(context.Background(), nil, client, cfg, reg))
}
