// Package httpclient builds the single *http.Client shared by one
// balancer instance: manifest fetches, health probes and client RPC
// calls all go through it, so they share one connection pool and one
// custom resolver. Adapted from the teacher's internal/netx/resolver.go,
// generalized away from its Bitcoin-Sprint-specific SPRINT_DNS naming.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// ResolverEnv names the environment variable holding a comma-separated
// list of DNS servers (host:port) the balancer's resolver should try, in
// order, before falling back to the platform resolver.
const ResolverEnv = "TATUM_DNS_SERVERS"

// customResolver returns a *net.Resolver that prefers Go's own resolver
// and dials the servers named by ResolverEnv, defaulting to Cloudflare
// and Google's public resolvers.
func customResolver() *net.Resolver {
	dnsEnv := os.Getenv(ResolverEnv)
	if dnsEnv == "" {
		dnsEnv = "1.1.1.1:53,8.8.8.8:53"
	}
	servers := strings.Split(dnsEnv, ",")
	dialer := &net.Dialer{Timeout: 5 * time.Second}

	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			for _, s := range servers {
				if conn, err := dialer.DialContext(ctx, "udp", strings.TrimSpace(s)); err == nil {
					return conn, nil
				}
			}
			return dialer.DialContext(ctx, network, address)
		},
	}
}

// dialContext resolves address's host through customResolver and dials
// its IPs one at a time in order, returning the first connection that
// succeeds, falling back to the default dial
// behavior if resolution fails or address isn't host:port.
func dialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 10 * time.Second}
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return d.DialContext(ctx, network, address)
	}

	ips, err := customResolver().LookupIPAddr(ctx, host)
	if err != nil || len(ips) == 0 {
		return d.DialContext(ctx, network, address)
	}

	var lastErr error
	for _, ip := range ips {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		conn, dialErr := d.DialContext(ctx, network, net.JoinHostPort(ip.IP.String(), port))
		if dialErr == nil {
			return conn, nil
		}
		lastErr = dialErr
	}
	return nil, lastErr
}

// New returns an *http.Client wired to the resolver-aware dialer above.
// requestTimeout, if non-zero, becomes the client's overall Timeout;
// leave it zero for the client used for client RPC calls, which carry no
// timeout at this layer (spec §5) and rely on the caller's context
// instead.
func New(requestTimeout time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext:           dialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   requestTimeout,
	}
}
