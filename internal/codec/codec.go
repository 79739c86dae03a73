// Package codec implements the Status Payload Codec (spec §4.2):
// network-family-aware encoding of the probe request and decoding of the
// block height from its response.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/Exzender/tatum-v3-fork/internal/chain"
	"github.com/Exzender/tatum-v3-fork/internal/lberrors"
)

// probeRequest is the JSON-RPC 2.0 envelope every codec sends.
type probeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// probeResponse is the minimal shape every codec needs to read back.
// Result is json.RawMessage because its underlying type (a number for
// UTXO, a hex string for EVM) varies by family.
type probeResponse struct {
	Result json.RawMessage `json:"result"`
}

// Codec encodes one family's probe request and decodes its response.
type Codec interface {
	// Request returns the marshaled JSON-RPC body to POST to a probe
	// target.
	Request() []byte

	// DecodeHeight parses body (a raw HTTP response) and returns the
	// observed chain height. A missing or falsy result decodes to -1,
	// the sentinel for "did not answer correctly" (spec §4.2).
	DecodeHeight(body []byte) (int64, error)
}

type utxoCodec struct{ body []byte }

func newUTXOCodec() *utxoCodec {
	b, _ := json.Marshal(probeRequest{JSONRPC: "2.0", ID: 1, Method: "getblockcount", Params: []interface{}{}})
	return &utxoCodec{body: b}
}

func (c *utxoCodec) Request() []byte { return c.body }

func (c *utxoCodec) DecodeHeight(body []byte) (int64, error) {
	var resp probeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return -1, fmt.Errorf("codec: malformed utxo probe response: %w", err)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return -1, nil
	}
	var height int64
	if err := json.Unmarshal(resp.Result, &height); err != nil {
		return -1, nil
	}
	if height == 0 {
		return -1, nil
	}
	return height, nil
}

type evmCodec struct{ body []byte }

func newEVMCodec() *evmCodec {
	b, _ := json.Marshal(probeRequest{JSONRPC: "2.0", ID: 1, Method: "eth_blockNumber", Params: []interface{}{}})
	return &evmCodec{body: b}
}

func (c *evmCodec) Request() []byte { return c.body }

func (c *evmCodec) DecodeHeight(body []byte) (int64, error) {
	var resp probeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return -1, fmt.Errorf("codec: malformed evm probe response: %w", err)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" || string(resp.Result) == `""` {
		return -1, nil
	}
	var hex string
	if err := json.Unmarshal(resp.Result, &hex); err != nil {
		return -1, nil
	}
	height, err := parseHexQuantity(hex)
	if err != nil || height == 0 {
		return -1, nil
	}
	return height, nil
}

// parseHexQuantity parses an eth_blockNumber-style "0x..." quantity.
func parseHexQuantity(hex string) (int64, error) {
	if len(hex) < 3 || hex[0] != '0' || (hex[1] != 'x' && hex[1] != 'X') {
		return 0, fmt.Errorf("codec: not a hex quantity: %q", hex)
	}
	var n int64
	if _, err := fmt.Sscanf(hex[2:], "%x", &n); err != nil {
		return 0, err
	}
	return n, nil
}

var codecs = map[chain.Family]Codec{
	chain.FamilyUTXO: newUTXOCodec(),
	chain.FamilyEVM:  newEVMCodec(),
}

// For gives the Codec for network's family, or ErrUnsupportedNetwork if
// the family has none. Other families (XRP, Solana, Tezos in this build)
// are not subject to load balancing; balancer.New calls this for every
// network and rejects them with that error.
func For(n chain.Network) (Codec, error) {
	family, ok := chain.FamilyOf(n)
	if !ok {
		return nil, fmt.Errorf("%w: %s", lberrors.ErrUnsupportedNetwork, n)
	}
	c, ok := codecs[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s", lberrors.ErrUnsupportedNetwork, n)
	}
	return c, nil
}
