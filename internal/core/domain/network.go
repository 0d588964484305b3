package domain

import "fmt"

type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
	NetworkDevnet  Network = "devnet"
)

// NanosPerIOTA is the number of smallest units in one IOTA.
const NanosPerIOTA uint64 = 1_000_000_000

// NetworkFullnodeURL maps a network to its public fullnode endpoint.
var NetworkFullnodeURL = map[Network]string{
	NetworkMainnet: "https://api.mainnet.iota.cafe",
	NetworkTestnet: "https://api.testnet.iota.cafe",
	NetworkDevnet:  "https://api.devnet.iota.cafe",
}

// NetworkFaucetURL maps a network to its gas faucet. Mainnet has none.
var NetworkFaucetURL = map[Network]string{
	NetworkTestnet: "https://faucet.testnet.iota.cafe/v1/gas",
	NetworkDevnet:  "https://faucet.devnet.iota.cafe/v1/gas",
}

// DefaultValidators is used when no validator file is present on a
// non-production network.
var DefaultValidators = []string{
	"0x1c6b89f4d5ee1af5d0b9c0f67f7c8e4a2b1a3c4d5e6f7a8b9c0d1e2f3a4b5c6d",
	"0x2d7c9a5f6e7a1b6f5d0c9b8f6e7a1c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b",
	"0x3e8d0b6f7e8a2c7f6e1d0c9b8f6e7a2d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a1c",
}

// ParseNetwork validates a network name.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(s); n {
	case NetworkMainnet, NetworkTestnet, NetworkDevnet:
		return n, nil
	case "":
		return NetworkTestnet, nil
	default:
		return "", fmt.Errorf("%w: unknown network %q", ErrConfiguration, s)
	}
}

// IsProduction reports whether the network carries real value.
func (n Network) IsProduction() bool {
	return n == NetworkMainnet
}

// HasFaucet reports whether the network exposes a gas faucet.
func (n Network) HasFaucet() bool {
	_, ok := NetworkFaucetURL[n]
	return ok
}
