// Package chain defines the closed set of blockchain networks the load
// balancer knows how to probe, and the family each one belongs to.
package chain

// Network is a chain identifier recognized by the balancer. It is a closed
// enumeration: an unrecognized value is a configuration error, not a
// wildcard.
type Network string

const (
	Bitcoin        Network = "bitcoin"
	BitcoinTestnet Network = "bitcoin-testnet"
	Litecoin       Network = "litecoin"
	Dogecoin       Network = "dogecoin"

	Ethereum Network = "ethereum"
	Polygon  Network = "polygon"
	BSC      Network = "bsc"
	Arbitrum Network = "arbitrum"
	Optimism Network = "optimism"
	Tron     Network = "tron"

	XRP    Network = "xrp"
	Solana Network = "solana"
	Tezos  Network = "tezos"
)

// Family groups networks that share a Status Payload Codec and, for some
// families, share whether they participate in load balancing at all.
type Family string

const (
	FamilyUTXO   Family = "utxo"
	FamilyEVM    Family = "evm" // also covers Tron, which speaks eth_blockNumber
	FamilyXRP    Family = "xrp"
	FamilySolana Family = "solana"
	FamilyTezos  Family = "tezos"
)

var families = map[Network]Family{
	Bitcoin:        FamilyUTXO,
	BitcoinTestnet: FamilyUTXO,
	Litecoin:       FamilyUTXO,
	Dogecoin:       FamilyUTXO,

	Ethereum: FamilyEVM,
	Polygon:  FamilyEVM,
	BSC:      FamilyEVM,
	Arbitrum: FamilyEVM,
	Optimism: FamilyEVM,
	Tron:     FamilyEVM,

	XRP:    FamilyXRP,
	Solana: FamilySolana,
	Tezos:  FamilyTezos,
}

// FamilyOf reports the Family a Network belongs to. ok is false for a
// Network this package does not recognize.
func FamilyOf(n Network) (Family, bool) {
	f, ok := families[n]
	return f, ok
}

// mappedNetworks translates a Network into the path segment used by the
// remote manifest URLs (spec §4.1, §6). Networks absent from this table
// fall back to their own string value.
var mappedNetworks = map[Network]string{
	Bitcoin:  "bitcoin-mainnet",
	Litecoin: "litecoin-mainnet",
	Dogecoin: "dogecoin-mainnet",
	Ethereum: "ethereum-mainnet",
	Polygon:  "polygon-mainnet",
	BSC:      "bsc-mainnet",
	Arbitrum: "arbitrum-one-mainnet",
	Optimism: "optimism-mainnet",
	Tron:     "tron-mainnet",
}

// ManifestName returns the {mapped-network} path segment for the remote
// manifest URLs of spec §4.1/§6.
func ManifestName(n Network) string {
	if m, ok := mappedNetworks[n]; ok {
		return m
	}
	return string(n)
}
