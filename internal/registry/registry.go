// Package registry holds, per node kind, the ordered list of endpoint
// records and the currently active selection for one balancer instance
// (spec §3). It is the single writer/reader boundary for endpoint state:
// every other package observes endpoints only through Snapshot or through
// the narrow mutation methods below, never through a shared pointer.
package registry

import "sync"

// NodeKind distinguishes recent-state endpoints from full-history ones.
type NodeKind string

const (
	Normal  NodeKind = "normal"
	Archive NodeKind = "archive"
)

// Kinds lists both NodeKind values in the order the Status Probe and
// Bootstrap iterate them (spec §4.3: "NORMAL then ARCHIVE").
var Kinds = [2]NodeKind{Normal, Archive}

// Endpoint is one record per URL per kind. LastBlock is zero before the
// first successful probe; LastResponseTime is zero until a probe response
// (of any status) first arrives.
type Endpoint struct {
	URL              string
	Kind             NodeKind
	LastBlock        int64
	LastResponseTime int64 // milliseconds
	Failed           bool
}

// active is the (url, index) pair naming the currently selected endpoint
// of a kind. It is always replaced as a whole value so a reader can never
// observe a mismatched pair (spec §5).
type active struct {
	url   string
	index int
	set   bool
}

// Registry holds the two ordered endpoint lists and the two active
// selections for one balancer instance. All fields are guarded by mu;
// every exported method takes the lock it needs and never hands out a
// pointer into the protected state.
type Registry struct {
	mu           sync.RWMutex
	endpoints    map[NodeKind][]Endpoint
	active       map[NodeKind]active
	bootstrapped bool
}

// New returns an empty Registry. It is populated exactly once, by
// Bootstrap (spec §3 Lifecycle).
func New() *Registry {
	return &Registry{
		endpoints: map[NodeKind][]Endpoint{
			Normal:  nil,
			Archive: nil,
		},
		active: map[NodeKind]active{},
	}
}

// Bootstrapped reports whether Populate has already run once.
func (r *Registry) Bootstrapped() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bootstrapped
}

// Populate appends urls to endpoints[kind] and marks the registry as
// bootstrapped; an empty urls is a no-op. Bootstrap calls it once per kind
// in Static mode and once per (kind, manifest) pair in Remote mode. It does
// not itself enforce idempotence; the caller (internal/bootstrap) is
// responsible for rejecting a second Run (lberrors.ErrAlreadyBootstrapped).
func (r *Registry) Populate(kind NodeKind, urls []string) {
	if len(urls) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range urls {
		r.endpoints[kind] = append(r.endpoints[kind], Endpoint{URL: u, Kind: kind})
	}
	r.bootstrapped = true
}

// SetActiveRandom picks a uniformly random endpoint of kind as the initial
// active selection, spreading initial load across balancer instances
// (spec §4.1, §9). It is a no-op if the kind has no endpoints.
func (r *Registry) SetActiveRandom(kind NodeKind, randIndex func(n int) int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[kind]
	if len(eps) == 0 {
		return
	}
	idx := randIndex(len(eps))
	r.active[kind] = active{url: eps[idx].URL, index: idx, set: true}
}

// Snapshot returns a value-copied slice of endpoints[kind], safe to read
// without further synchronization. Selection Policy operates exclusively
// on snapshots (spec §4.4).
func (r *Registry) Snapshot(kind NodeKind) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.endpoints[kind]
	out := make([]Endpoint, len(src))
	copy(out, src)
	return out
}

// Active returns the active (url, ok) pair for kind. ok is false when no
// endpoint of that kind is currently selected (never set, or cleared by
// ClearActive).
func (r *Registry) Active(kind NodeKind) (url string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, exists := r.active[kind]
	if !exists || !a.set {
		return "", false
	}
	return a.url, true
}

// SetActive atomically replaces active[kind] with the endpoint at index
// in endpoints[kind]. It is the caller's responsibility to pass an index
// that is valid against the current snapshot; SetActive re-validates
// against the live slice and is a no-op if the index or URL no longer
// matches (the slice order is fixed after bootstrap, so this only rejects
// an index/URL pair that does not name the same entry).
func (r *Registry) SetActive(kind NodeKind, index int, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[kind]
	if index < 0 || index >= len(eps) || eps[index].URL != url {
		return
	}
	r.active[kind] = active{url: url, index: index, set: true}
}

// ClearActive empties active[kind], e.g. when a pass ends with no winner.
func (r *Registry) ClearActive(kind NodeKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, kind)
}

// RecordProbeResult writes the outcome of one Status Probe round-trip for
// the endpoint at url in kind. It is a no-op if the URL is not present
// (e.g. the registry was mutated concurrently, which cannot happen after
// bootstrap but is guarded defensively).
func (r *Registry) RecordProbeResult(kind NodeKind, url string, failed bool, lastBlock, responseTimeMs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[kind]
	for i := range eps {
		if eps[i].URL != url {
			continue
		}
		eps[i].Failed = failed
		if !failed {
			eps[i].LastBlock = lastBlock
		}
		if responseTimeMs >= 0 {
			eps[i].LastResponseTime = responseTimeMs
		}
		return
	}
}

// MarkFailed flips the failed flag for the endpoint at url in kind,
// without touching LastBlock/LastResponseTime. Used by the Dispatcher
// when a client RPC call fails against the currently active endpoint.
func (r *Registry) MarkFailed(kind NodeKind, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eps := r.endpoints[kind]
	for i := range eps {
		if eps[i].URL == url {
			eps[i].Failed = true
			return
		}
	}
}

// IndexOf returns the index of url within endpoints[kind], or -1 if
// absent. Used by callers that need to pass a validated index to
// SetActive after running Selection Policy on a Snapshot.
func (r *Registry) IndexOf(kind NodeKind, url string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i, e := range r.endpoints[kind] {
		if e.URL == url {
			return i
		}
	}
	return -1
}

// Len reports how many endpoints are registered for kind.
func (r *Registry) Len(kind NodeKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints[kind])
}
