// Package selection implements the Selection Policy (spec §4.4): a pure
// function that picks the best endpoint from a registry snapshot. It has
// no dependency on internal/registry's mutable state — it only consumes
// registry.Endpoint values — so it is trivially unit-testable and
// idempotent over a fixed snapshot.
package selection

import (
	"math"

	"github.com/Exzender/tatum-v3-fork/internal/registry"
)

// winner tracks the running best candidate while iterating in list order.
// The synthetic seed has lastBlock = -inf and responseTime = +inf so the
// first non-failed candidate strictly ahead of it always wins rule 2.
type winner struct {
	endpoint         registry.Endpoint
	index            int
	lastBlock        float64
	lastResponseTime float64
}

// Select chooses the best endpoint among servers given allowedBlocksBehind
// tolerance, following the four-rule iteration of spec §4.4:
//
//  1. A failed candidate is always skipped.
//  2. A candidate strictly ahead of the incumbent by more than
//     allowedBlocksBehind replaces it, regardless of latency.
//  3. A candidate tied on lastBlock with the incumbent replaces it only
//     if its lastResponseTime is strictly lower.
//  4. Otherwise the incumbent is kept.
//
// Earlier list position is an implicit tie-breaker: rules 2 and 3 use
// strict inequalities, so the incumbent (whichever came first) wins ties.
// Select never returns a failed endpoint. ok is false if no candidate
// ever replaced the synthetic seed.
func Select(servers []registry.Endpoint, allowedBlocksBehind int64) (registry.Endpoint, bool) {
	w := winner{
		index:            -1,
		lastBlock:        math.Inf(-1),
		lastResponseTime: math.Inf(1),
	}

	for i, c := range servers {
		if c.Failed {
			continue
		}
		cBlock := float64(c.LastBlock)
		cRT := float64(c.LastResponseTime)

		switch {
		case cBlock-float64(allowedBlocksBehind) > w.lastBlock:
			w = winner{endpoint: c, index: i, lastBlock: cBlock, lastResponseTime: cRT}
		case cBlock == w.lastBlock && cRT < w.lastResponseTime:
			w = winner{endpoint: c, index: i, lastBlock: cBlock, lastResponseTime: cRT}
		}
	}

	if w.index == -1 {
		return registry.Endpoint{}, false
	}
	return w.endpoint, true
}
