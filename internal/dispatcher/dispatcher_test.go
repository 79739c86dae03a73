package dispatcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Exzender/tatum-v3-fork/internal/dispatcher"
	"github.com/Exzender/tatum-v3-fork/internal/lberrors"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
)

func newActiveRegistry(t *testing.T, kind registry.NodeKind, urls ...string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.Populate(kind, urls)
	reg.SetActive(kind, 0, urls[0])
	return reg
}

func TestRawRPCCall_ReturnsResultOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"ok"}`))
	}))
	defer srv.Close()

	reg := newActiveRegistry(t, registry.Normal, srv.URL)
	d := dispatcher.New(nil, srv.Client(), reg, "bitcoin", 10)

	result, err := d.RawRPCCall(context.Background(), []byte(`{"method":"getblockcount"}`), false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"ok"}`, string(result))
}

func TestRawRPCCall_FailsOverToNextEndpointInPool(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"second"}`))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer bad.Close()

	reg := registry.New()
	reg.Populate(registry.Normal, []string{bad.URL, good.URL})
	reg.SetActive(registry.Normal, 0, bad.URL)

	d := dispatcher.New(nil, http.DefaultClient, reg, "bitcoin", 10)

	result, err := d.RawRPCCall(context.Background(), []byte(`{}`), false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"second"}`, string(result))

	snap := reg.Snapshot(registry.Normal)
	assert.True(t, snap[0].Failed, "the first endpoint must be marked failed after the failover")
}

func TestRawRPCCall_FallsBackToArchiveWhenNormalPoolEmpty(t *testing.T) {
	archiveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"from-archive"}`))
	}))
	defer archiveSrv.Close()

	reg := registry.New()
	reg.Populate(registry.Archive, []string{archiveSrv.URL})
	reg.SetActive(registry.Archive, 0, archiveSrv.URL)
	// registry.Normal is intentionally left empty.

	d := dispatcher.New(nil, archiveSrv.Client(), reg, "bitcoin", 10)

	result, err := d.RawRPCCall(context.Background(), []byte(`{}`), false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"from-archive"}`, string(result))
}

func TestRawRPCCall_AllNodesUnavailableAfterExhaustion(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer down.Close()

	reg := newActiveRegistry(t, registry.Normal, down.URL)
	d := dispatcher.New(nil, down.Client(), reg, "bitcoin", 10)

	_, err := d.RawRPCCall(context.Background(), []byte(`{}`), false)
	require.Error(t, err)

	var unavailable *lberrors.AllNodesUnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, lberrors.ErrAllNodesUnavailable)
}

func TestRawRPCCall_NoActiveNodeWhenRegistryEmpty(t *testing.T) {
	reg := registry.New()
	d := dispatcher.New(nil, http.DefaultClient, reg, "bitcoin", 10)

	_, err := d.RawRPCCall(context.Background(), []byte(`{}`), false)
	assert.ErrorIs(t, err, lberrors.ErrNoActiveNode)
}

func TestRawBatchRPCCall_AlwaysPrefersArchive(t *testing.T) {
	archiveSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"archive-batch"}`))
	}))
	defer archiveSrv.Close()
	normalSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"normal-batch"}`))
	}))
	defer normalSrv.Close()

	reg := registry.New()
	reg.Populate(registry.Normal, []string{normalSrv.URL})
	reg.SetActive(registry.Normal, 0, normalSrv.URL)
	reg.Populate(registry.Archive, []string{archiveSrv.URL})
	reg.SetActive(registry.Archive, 0, archiveSrv.URL)

	d := dispatcher.New(nil, http.DefaultClient, reg, "bitcoin", 10)

	result, err := d.RawBatchRPCCall(context.Background(), []byte(`[{}]`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"archive-batch"}`, string(result))
}

func TestPost_NoFailoverOnError(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer down.Close()

	reg := newActiveRegistry(t, registry.Normal, down.URL, "https://unused")
	d := dispatcher.New(nil, down.Client(), reg, "bitcoin", 10)

	_, err := d.Post(context.Background(), "/status", []byte(`{}`))
	require.Error(t, err)

	snap := reg.Snapshot(registry.Normal)
	assert.False(t, snap[0].Failed, "Post must never mark an endpoint failed or retry")
}
