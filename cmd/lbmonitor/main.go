// Command lbmonitor serves a read-only diagnostics view over one or more
// running balancer.Balancer instances, adapted from the teacher's
// cmd/cb-monitor (which served the same purpose for circuit breakers).
// It never mutates balancer state; it only snapshots registries.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Exzender/tatum-v3-fork/internal/balancer"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
)

// Monitor serves JSON snapshots of a set of named balancer instances.
type Monitor struct {
	mu        sync.RWMutex
	balancers map[string]*balancer.Balancer
	logger    *zap.Logger
}

// NewMonitor builds an empty Monitor.
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{balancers: make(map[string]*balancer.Balancer), logger: logger}
}

// Register adds a balancer under name so it's reachable at
// /healthz/{name}.
func (m *Monitor) Register(name string, b *balancer.Balancer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balancers[name] = b
}

// endpointView is the JSON shape returned per endpoint in a snapshot.
type endpointView struct {
	URL              string `json:"url"`
	LastBlock        int64  `json:"last_block"`
	LastResponseTime int64  `json:"last_response_time_ms"`
	Failed           bool   `json:"failed"`
	Active           bool   `json:"active"`
}

// kindView groups a kind's endpoints under its active URL.
type kindView struct {
	Active    string         `json:"active,omitempty"`
	Endpoints []endpointView `json:"endpoints"`
}

// snapshotView is the full JSON body of a /healthz/{name} response.
type snapshotView struct {
	Network string              `json:"network"`
	Kinds   map[string]kindView `json:"kinds"`
}

func (m *Monitor) healthzHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	m.mu.RLock()
	b, ok := m.balancers[name]
	m.mu.RUnlock()
	if !ok {
		http.Error(w, "unknown balancer: "+name, http.StatusNotFound)
		return
	}

	view := snapshotView{Network: name, Kinds: map[string]kindView{}}
	reg := b.Registry()
	for _, kind := range registry.Kinds {
		activeURL, _ := reg.Active(kind)
		eps := reg.Snapshot(kind)
		kv := kindView{Active: activeURL, Endpoints: make([]endpointView, 0, len(eps))}
		for _, e := range eps {
			kv.Endpoints = append(kv.Endpoints, endpointView{
				URL:              e.URL,
				LastBlock:        e.LastBlock,
				LastResponseTime: e.LastResponseTime,
				Failed:           e.Failed,
				Active:           e.URL == activeURL,
			})
		}
		view.Kinds[string(kind)] = kv
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}

func main() {
	port := flag.String("port", "8090", "lbmonitor listen port")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	monitor := NewMonitor(logger)

	router := mux.NewRouter()
	router.HandleFunc("/healthz/{name}", monitor.healthzHandler).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:    ":" + *port,
		Handler: router,
	}

	go func() {
		logger.Info("lbmonitor: listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("lbmonitor: server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
