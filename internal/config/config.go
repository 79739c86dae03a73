// Package config loads the configuration recognized at Bootstrap time
// (spec §3 Configuration table): nodes, allowedBlocksBehind,
// oneTimeLoadBalancing, network and verbose, plus the SDK/HTTP settings
// the Go ambient stack needs. It follows the teacher's env-loading idiom
// (github.com/joho/godotenv plus small getEnv* helpers).
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Exzender/tatum-v3-fork/internal/chain"
	"github.com/Exzender/tatum-v3-fork/internal/registry"
)

// Node is one caller-supplied endpoint for Static mode bootstrap
// (spec §4.1). Type must be "normal" or "archive".
type Node struct {
	URL  string
	Type registry.NodeKind
}

// Config is the configuration for one balancer instance. It is built by
// the caller (directly, or starting from Load()'s env defaults) and
// passed explicitly into balancer.New — there is no process-wide
// container (SPEC_FULL §9).
type Config struct {
	// Nodes, if non-empty, selects Static bootstrap mode and is used
	// as-is (SSRF check bypassed: the caller is trusted).
	Nodes []Node

	// Network selects the manifest URLs and the Status Payload Codec.
	Network chain.Network

	// AllowedBlocksBehind is the Selection Policy tolerance.
	AllowedBlocksBehind int64

	// OneTimeLoadBalancing, if set, performs exactly one probe pass at
	// init and does not install the periodic timer.
	OneTimeLoadBalancing bool

	// Verbose enables diagnostic logging of recovered per-endpoint
	// errors (spec §7 propagation policy).
	Verbose bool

	// APIKey is forwarded as the x-api-key probe header when set.
	APIKey string

	// SDKVersion is forwarded as the x-ttm-sdk-version probe header.
	SDKVersion string

	// ProbeTimeout bounds each individual health-probe HTTP call
	// (spec §4.3 default: 5s).
	ProbeTimeout time.Duration

	// LBInterval is the delay between periodic probe passes
	// (spec §4.5, "LB_INTERVAL").
	LBInterval time.Duration

	// ManifestBaseURL overrides the "https://rpc.tatum.io" scheme+host
	// the remote manifest fetch targets. Empty means the real default;
	// tests set it to an httptest.Server URL.
	ManifestBaseURL string
}

// Default values for the fields above when not explicitly set by Load
// or the caller.
const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultLBInterval   = 30 * time.Second
	DefaultManifestHost = "https://rpc.tatum.io"
)

// Load reads a Config from environment variables, using the teacher's
// .env-then-environment precedence (godotenv.Load is non-fatal: a missing
// .env file falls back to whatever is already in the process environment).
// Network, Nodes and AllowedBlocksBehind are typically still set
// programmatically by the caller after Load returns, since they vary per
// balancer instance rather than per process.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("config: loaded .env")
	} else {
		log.Printf("config: no .env file found, using process environment")
	}

	cfg := Config{
		Verbose:              getEnvBool("TATUM_VERBOSE", false),
		APIKey:               getEnv("TATUM_API_KEY", ""),
		SDKVersion:           getEnv("TATUM_SDK_VERSION", "dev"),
		ProbeTimeout:         getEnvDuration("TATUM_PROBE_TIMEOUT", DefaultProbeTimeout),
		LBInterval:           getEnvDuration("TATUM_LB_INTERVAL", DefaultLBInterval),
		ManifestBaseURL:      getEnv("TATUM_MANIFEST_BASE_URL", DefaultManifestHost),
		AllowedBlocksBehind:  int64(getEnvInt("TATUM_ALLOWED_BLOCKS_BEHIND", 10)),
		OneTimeLoadBalancing: getEnvBool("TATUM_ONE_TIME_LB", false),
	}

	if nodes := getEnv("TATUM_NODES", ""); nodes != "" {
		cfg.Nodes = parseNodes(nodes)
	}

	return cfg
}

// parseNodes parses a "url=type,url=type,..." list into Node values, used
// to seed TATUM_NODES from the environment. Entries with an unrecognized
// or missing type default to NORMAL.
func parseNodes(spec string) []Node {
	parts := strings.Split(spec, ",")
	nodes := make([]Node, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		url, kind, found := strings.Cut(part, "=")
		kind = strings.ToLower(strings.TrimSpace(kind))
		nk := registry.Normal
		if found && kind == string(registry.Archive) {
			nk = registry.Archive
		}
		nodes = append(nodes, Node{URL: strings.TrimSpace(url), Type: nk})
	}
	return nodes
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true")
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
