// Package ssrf implements the allow-list filter required when Bootstrap
// populates the registry from a remote manifest (spec §4.1, §6, §8
// invariant 5). It is deliberately the only place in the module that
// decides whether a remotely discovered URL may be dialed.
package ssrf

import (
	"net/url"
	"strings"
)

// AllowedSuffix is the only host suffix the remote manifest may return.
// Static (caller-supplied) nodes bypass this check entirely: the caller
// is trusted (spec §4.1).
const AllowedSuffix = "rpc.tatum.io"

// AllowedHost reports whether rawURL is an absolute http(s) URL whose host
// ends in AllowedSuffix, as either the whole host or a dot-separated
// subdomain of it (so "evil-rpc.tatum.io.attacker.com" is rejected).
func AllowedHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == "" {
		return false
	}
	host = strings.ToLower(host)
	return host == AllowedSuffix || strings.HasSuffix(host, "."+AllowedSuffix)
}
