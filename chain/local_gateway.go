package chain

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/liquidityos/lnescrow/domain"
	"github.com/liquidityos/lnescrow/escrow"
)

// LocalGateway implements Gateway against an in-process *escrow.Contract,
// the same role teacher's adapters/mock.MockSettlementAdapter plays for its
// production settlement.SettlementDriver interface: a real implementation
// of the production port, backed by in-memory state, for tests rather than
// a real chain RPC endpoint.
type LocalGateway struct {
	contract      *escrow.Contract
	operator      string
	tokenDecimals int

	nonce *NonceLane
	txSeq uint64
}

// NewLocalGateway wraps contract, submitting every claim/transfer as
// operator and converting sats to token units using tokenDecimals (must be
// in [8, 77] per spec §4.2).
func NewLocalGateway(contract *escrow.Contract, operator string, tokenDecimals int) (*LocalGateway, error) {
	if tokenDecimals < 8 || tokenDecimals > 77 {
		return nil, fmt.Errorf("chain: token_decimals %d out of range [8,77]", tokenDecimals)
	}
	g := &LocalGateway{
		contract:      contract,
		operator:      operator,
		tokenDecimals: tokenDecimals,
	}
	g.nonce = NewNonceLane(func(ctx context.Context) (uint64, error) { return 0, nil })
	return g, nil
}

func (g *LocalGateway) LoadEscrow(ctx context.Context, hash domain.Hash) (LockedPosition, error) {
	pos := g.contract.GetEscrow(hash)
	if pos.Phase != domain.PhaseLocked {
		return LockedPosition{}, domain.ErrNotLockedOnChain
	}
	return LockedPosition{
		Hash:      pos.Hash,
		User:      pos.User,
		Amount:    pos.Amount,
		LockedAt:  pos.LockedAt,
		ExpiresAt: pos.ExpiresAt,
	}, nil
}

func (g *LocalGateway) SubmitClaim(ctx context.Context, hash domain.Hash, preimage domain.Preimage) (string, error) {
	var txHash string
	err := g.nonce.WithNonce(ctx, func(ctx context.Context, nonce uint64) error {
		if err := g.contract.Claim(g.operator, hash, preimage); err != nil {
			return err
		}
		g.txSeq++
		txHash = fmt.Sprintf("0xlocal_claim_%d_n%d", g.txSeq, nonce)
		return nil
	})
	return txHash, err
}

func (g *LocalGateway) SubmitTransfer(ctx context.Context, recipient string, amountSats uint64) (string, domain.Uint256, error) {
	amountUnits, err := satsToUnits(amountSats, g.tokenDecimals)
	if err != nil {
		return "", domain.Uint256{}, err
	}

	var txHash string
	err = g.nonce.WithNonce(ctx, func(ctx context.Context, nonce uint64) error {
		g.contract.Credit(recipient, amountUnits)
		g.txSeq++
		txHash = fmt.Sprintf("0xlocal_transfer_%d_n%d", g.txSeq, nonce)
		return nil
	})
	return txHash, amountUnits, err
}

// satsToUnits converts a satoshi amount to token units:
// amount_units = amount_sats * 10^(decimals-8).
func satsToUnits(amountSats uint64, decimals int) (domain.Uint256, error) {
	if amountSats == 0 {
		return domain.Uint256{}, domain.ErrAmountZero
	}
	sats := decimal.NewFromInt(int64(amountSats))
	shifted := sats.Shift(int32(decimals - 8))
	units, err := domain.NewUint256FromBigInt(shifted.BigInt())
	if err != nil {
		return domain.Uint256{}, fmt.Errorf("chain: sats-to-units conversion: %w", err)
	}
	return units, nil
}
