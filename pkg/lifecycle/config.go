package lifecycle

import (
	"github.com/code-payments/token-lifecycle/pkg/config"
	"github.com/code-payments/token-lifecycle/pkg/config/env"
	"github.com/code-payments/token-lifecycle/pkg/config/memory"
	"github.com/code-payments/token-lifecycle/pkg/config/wrapper"
)

const (
	// Environment variables are read as TOKEN_LIFECYCLE_<NAME>.
	envConfigNamespace = env.Namespace("token_lifecycle")

	CounterpartyConfigEnvName = "COUNTERPARTY"
	defaultCounterparty       = "8vU3WgmVnVDa13hXAevKA3Vhe7XtbwHrQja6aVx15KwV"

	DecimalsConfigEnvName = "DECIMALS"
	defaultDecimals       = 9

	MintAmountConfigEnvName = "MINT_AMOUNT"
	defaultMintAmount       = 100

	TransferAmountConfigEnvName = "TRANSFER_AMOUNT"
	defaultTransferAmount       = 1

	CommitmentConfigEnvName = "COMMITMENT"
	defaultCommitment       = "confirmed"

	AirdropLamportsConfigEnvName = "AIRDROP_LAMPORTS"
	defaultAirdropLamports       = 1_000_000_000
)

type conf struct {
	counterparty    config.String
	decimals        config.Uint64
	mintAmount      config.Uint64
	transferAmount  config.Uint64
	commitment      config.String
	airdropLamports config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			counterparty:    envConfigNamespace.String(CounterpartyConfigEnvName, defaultCounterparty),
			decimals:        envConfigNamespace.Uint64(DecimalsConfigEnvName, defaultDecimals),
			mintAmount:      envConfigNamespace.Uint64(MintAmountConfigEnvName, defaultMintAmount),
			transferAmount:  envConfigNamespace.Uint64(TransferAmountConfigEnvName, defaultTransferAmount),
			commitment:      envConfigNamespace.String(CommitmentConfigEnvName, defaultCommitment),
			airdropLamports: envConfigNamespace.Uint64(AirdropLamportsConfigEnvName, defaultAirdropLamports),
		}
	}
}

type testOverrides struct {
	counterparty   string
	mintAmount     uint64
	transferAmount uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		mintAmount := overrides.mintAmount
		if mintAmount == 0 {
			mintAmount = defaultMintAmount
		}
		transferAmount := overrides.transferAmount
		if transferAmount == 0 {
			transferAmount = defaultTransferAmount
		}

		return &conf{
			counterparty:    wrapper.NewStringConfig(memory.NewConfig(overrides.counterparty), defaultCounterparty),
			decimals:        wrapper.NewUint64Config(memory.NewConfig(uint64(defaultDecimals)), defaultDecimals),
			mintAmount:      wrapper.NewUint64Config(memory.NewConfig(mintAmount), defaultMintAmount),
			transferAmount:  wrapper.NewUint64Config(memory.NewConfig(transferAmount), defaultTransferAmount),
			commitment:      wrapper.NewStringConfig(memory.NewConfig(defaultCommitment), defaultCommitment),
			airdropLamports: wrapper.NewUint64Config(memory.NewConfig(uint64(defaultAirdropLamports)), defaultAirdropLamports),
		}
	}
}
