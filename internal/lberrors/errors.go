// Package lberrors defines the load balancer's error taxonomy (spec §7).
//
// Individual endpoint errors (a single probe timing out, a single RPC
// call failing) are never surfaced through this package: they are
// recovered locally by marking the endpoint failed and failing over.
// Only pool-exhaustion, unsupported-network and repeated-bootstrap
// conditions reach the caller as one of these sentinels.
package lberrors

import (
	"errors"
	"fmt"

	"github.com/Exzender/tatum-v3-fork/internal/registry"
)

// ErrUnsupportedNetwork is raised when a network's family has no Status
// Payload Codec. Such networks must not reach the Status Probe.
var ErrUnsupportedNetwork = errors.New("rpclb: network has no status payload codec")

// ErrNoActiveNode is raised from checkStatuses and from URL resolution
// when no endpoint of either kind is usable.
var ErrNoActiveNode = errors.New("rpclb: no active node")

// ErrAlreadyBootstrapped is returned by a second Bootstrap.Run call on an
// instance whose registry is already populated (SPEC_FULL §9 open
// question: bootstrap is rejected rather than silently re-run).
var ErrAlreadyBootstrapped = errors.New("rpclb: registry already bootstrapped")

// AllNodesUnavailableError is raised when the Dispatcher has exhausted
// every endpoint of a kind via failover. The last transport error is
// attached and retrievable with errors.Unwrap.
type AllNodesUnavailableError struct {
	Kind    registry.NodeKind
	LastErr error
}

func (e *AllNodesUnavailableError) Error() string {
	return fmt.Sprintf("rpclb: all %s nodes unavailable: %v", e.Kind, e.LastErr)
}

func (e *AllNodesUnavailableError) Unwrap() error {
	return e.LastErr
}

// ErrAllNodesUnavailable is the sentinel checked with errors.Is against any
// *AllNodesUnavailableError.
var ErrAllNodesUnavailable = errors.New("rpclb: all nodes unavailable")

func (e *AllNodesUnavailableError) Is(target error) bool {
	return target == ErrAllNodesUnavailable
}

// NewAllNodesUnavailable builds an AllNodesUnavailableError for the given
// kind and last observed transport error.
func NewAllNodesUnavailable(kind registry.NodeKind, lastErr error) *AllNodesUnavailableError {
	return &AllNodesUnavailableError{Kind: kind, LastErr: lastErr}
}
