package solana

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/netutil"
)

// Environment is the RPC endpoint of a Solana cluster.
type Environment string

const (
	EnvironmentDev  Environment = "https://api.devnet.solana.com"
	EnvironmentTest Environment = "https://api.testnet.solana.com"
	EnvironmentProd Environment = "https://api.mainnet-beta.solana.com"

	// EnvironmentLocal is the default endpoint of solana-test-validator.
	EnvironmentLocal Environment = "http://127.0.0.1:8899"
)

// Genesis hashes of the public clusters.
const (
	GenesisHashMainnet = "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d"
	GenesisHashDevnet  = "EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG"
	GenesisHashTestnet = "4uhcVJyU9pJkvQyS88uRDiswHXSCkY3zQawwpjk2NsNY"
)

// ParseEnvironment resolves a cluster name (devnet, testnet, mainnet-beta, localnet) or
// an RPC URL into an Environment.
func ParseEnvironment(v string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "devnet":
		return EnvironmentDev, nil
	case "testnet":
		return EnvironmentTest, nil
	case "mainnet", "mainnet-beta":
		return EnvironmentProd, nil
	case "localnet", "localhost":
		return EnvironmentLocal, nil
	}

	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		if err := netutil.ValidateHttpUrl(v, false); err != nil {
			return "", errors.Wrapf(err, "invalid solana rpc endpoint %q", v)
		}
		return Environment(v), nil
	}

	return "", errors.Errorf("unknown solana environment: %q", v)
}

// SupportsAirdrop reports whether the cluster's faucet can be used, judged
// by the endpoint alone. Custom endpoints may still front mainnet, so callers
// should also check the cluster with IsMainnet.
func (e Environment) SupportsAirdrop() bool {
	return e != EnvironmentProd
}

// IsMainnet reports whether genesisHash identifies mainnet-beta.
func IsMainnet(genesisHash string) bool {
	return genesisHash == GenesisHashMainnet
}
