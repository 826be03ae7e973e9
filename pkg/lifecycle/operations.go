package lifecycle

import (
	"context"
	"crypto/ed25519"
	"math"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/token-lifecycle/pkg/solana"
	"github.com/code-payments/token-lifecycle/pkg/solana/system"
	"github.com/code-payments/token-lifecycle/pkg/solana/token"
	"github.com/code-payments/token-lifecycle/pkg/wallet"
)

// CreateToken creates a new mint with the connected identity as both its
// mint and freeze authority. On success the mint becomes the token every
// other operation acts on.
func (o *Orchestrator) CreateToken(ctx context.Context) *Result {
	return o.run(ctx, OperationCreateToken, requireNoMint(o), func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		decimals, err := o.decimals(ctx)
		if err != nil {
			return nil, err
		}

		pub, mintKey, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate mint keypair")
		}

		lamports, err := o.rentExemptMinimum(token.MintSize)
		if err != nil {
			return nil, err
		}

		return &plan{
			mint: pub,
			instructions: []solana.Instruction{
				system.CreateAccount(owner, pub, token.ProgramKey, lamports, token.MintSize),
				token.InitializeMint(pub, owner, owner, decimals),
			},
			signers: []ed25519.PrivateKey{mintKey},
			onConfirmed: func() error {
				if err := o.setMint(pub, decimals); err != nil {
					// A concurrent create won. This mint exists on chain
					// but is not tracked.
					o.log.WithError(err).WithField("orphaned_mint", base58.Encode(pub)).Warn("created mint was not recorded")
					return err
				}
				return nil
			},
		}, nil
	})
}

// MintTokens mints the configured amount into the identity's associated
// token account, creating the account if needed.
func (o *Orchestrator) MintTokens(ctx context.Context) *Result {
	return o.run(ctx, OperationMintTokens, requireMint(o), func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		mint, decimals, _ := o.mintState()

		amount, err := toQuarks(o.conf.mintAmount.Get(ctx), decimals)
		if err != nil {
			return nil, err
		}

		create, ata, err := token.CreateAssociatedTokenAccountIdempotent(owner, owner, mint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive associated token account")
		}

		return &plan{
			mint:   mint,
			amount: amount,
			instructions: []solana.Instruction{
				create,
				token.MintToChecked(mint, ata, owner, amount, decimals),
			},
		}, nil
	})
}

// SendTokens transfers the configured amount to the counterparty's
// associated token account, creating it if needed.
func (o *Orchestrator) SendTokens(ctx context.Context) *Result {
	return o.run(ctx, OperationSendTokens, requireMint(o), func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		mint, decimals, _ := o.mintState()

		counterparty, err := o.Counterparty(ctx)
		if err != nil {
			return nil, err
		}

		amount, err := toQuarks(o.conf.transferAmount.Get(ctx), decimals)
		if err != nil {
			return nil, err
		}

		source, err := token.GetAssociatedAccount(owner, mint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive associated token account")
		}

		create, dest, err := token.CreateAssociatedTokenAccountIdempotent(owner, counterparty, mint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive counterparty token account")
		}

		return &plan{
			mint:         mint,
			counterparty: counterparty,
			amount:       amount,
			instructions: []solana.Instruction{
				create,
				token.Transfer(source, dest, owner, amount),
			},
		}, nil
	})
}

// BurnTokens burns the configured amount from the identity's associated
// token account.
func (o *Orchestrator) BurnTokens(ctx context.Context) *Result {
	return o.run(ctx, OperationBurnTokens, requireMint(o), func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		mint, decimals, _ := o.mintState()

		amount, err := toQuarks(o.conf.transferAmount.Get(ctx), decimals)
		if err != nil {
			return nil, err
		}

		ata, err := token.GetAssociatedAccount(owner, mint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive associated token account")
		}

		return &plan{
			mint:   mint,
			amount: amount,
			instructions: []solana.Instruction{
				token.BurnChecked(ata, mint, owner, amount, decimals),
			},
		}, nil
	})
}

// DelegateTokens approves the counterparty to spend the configured amount
// from the identity's associated token account.
func (o *Orchestrator) DelegateTokens(ctx context.Context) *Result {
	return o.run(ctx, OperationDelegateTokens, requireMint(o), func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		mint, decimals, _ := o.mintState()

		counterparty, err := o.Counterparty(ctx)
		if err != nil {
			return nil, err
		}

		amount, err := toQuarks(o.conf.transferAmount.Get(ctx), decimals)
		if err != nil {
			return nil, err
		}

		ata, err := token.GetAssociatedAccount(owner, mint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive associated token account")
		}

		return &plan{
			mint:         mint,
			counterparty: counterparty,
			amount:       amount,
			instructions: []solana.Instruction{
				token.ApproveChecked(ata, mint, counterparty, owner, amount, decimals),
			},
		}, nil
	})
}

// RevokeDelegate removes any delegate from the identity's associated token
// account.
func (o *Orchestrator) RevokeDelegate(ctx context.Context) *Result {
	return o.run(ctx, OperationRevokeDelegate, requireMint(o), func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		mint, _, _ := o.mintState()

		ata, err := token.GetAssociatedAccount(owner, mint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive associated token account")
		}

		return &plan{
			mint: mint,
			instructions: []solana.Instruction{
				token.Revoke(ata, owner),
			},
		}, nil
	})
}

// CloseTokenAccount closes the identity's associated token account and
// returns its rent to the identity. The account must be empty.
func (o *Orchestrator) CloseTokenAccount(ctx context.Context) *Result {
	return o.run(ctx, OperationCloseTokenAccount, requireMint(o), func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		mint, _, _ := o.mintState()

		ata, err := token.GetAssociatedAccount(owner, mint)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive associated token account")
		}

		return &plan{
			mint: mint,
			instructions: []solana.Instruction{
				token.CloseAccount(ata, owner, owner),
			},
		}, nil
	})
}

// Airdrop requests lamports for the connected identity from the cluster
// faucet. A lamports value of zero uses the configured default.
func (o *Orchestrator) Airdrop(ctx context.Context, lamports uint64) *Result {
	check := func() error {
		if !o.env.SupportsAirdrop() {
			return ErrAirdropNotSupported
		}

		// Custom endpoints can front mainnet too.
		mainnet, err := o.onMainnet()
		if err != nil {
			return err
		}
		if mainnet {
			return ErrAirdropNotSupported
		}

		owner, _ := o.wallet.PublicKey()
		allowed, err := o.airdropLimiter.Allow(base58.Encode(owner))
		if err != nil {
			return errors.Wrap(err, "failed to check airdrop rate limit")
		}
		if !allowed {
			return ErrAirdropRateLimited
		}
		return nil
	}

	return o.run(ctx, OperationAirdrop, check, func(ctx context.Context, owner ed25519.PublicKey) (*plan, error) {
		if lamports == 0 {
			lamports = o.conf.airdropLamports.Get(ctx)
		}

		return &plan{
			amount: lamports,
			send: func(commitment solana.Commitment) (solana.Signature, error) {
				sig, err := o.sc.RequestAirdrop(owner, lamports, commitment)
				if err != nil {
					return solana.Signature{}, errors.Wrap(err, "failed to request airdrop")
				}
				return sig, nil
			},
		}, nil
	})
}

// Balance returns the lamport balance of the connected identity.
func (o *Orchestrator) Balance(_ context.Context) (uint64, error) {
	owner, ok := o.wallet.PublicKey()
	if !ok {
		return 0, wallet.ErrWalletNotConnected
	}
	return o.sc.GetBalance(owner)
}

func (o *Orchestrator) decimals(ctx context.Context) (uint8, error) {
	decimals := o.conf.decimals.Get(ctx)
	if decimals > math.MaxUint8 {
		return 0, errors.Errorf("invalid decimals: %d", decimals)
	}
	return uint8(decimals), nil
}
