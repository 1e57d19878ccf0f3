package stakepool

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"
)

// DepositSol adds lamports to the pool reserve and mints pool tokens at the current exchange
// rate. The SOL deposit fee is taken in pool tokens and split between the manager fee account and
// the referrer.
func (c *Controller) DepositSol(ctx context.Context, params DepositParams) (*DepositResult, error) {
	if params.Lamports == 0 {
		return nil, newError(ErrInvalidAmount).withField("lamports")
	}
	if params.Funding.IsZero() {
		return nil, newError(ErrMissingAddress).withField("funding")
	}
	if params.Destination.IsZero() {
		return nil, newError(ErrMissingAddress).withField("destination")
	}
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive)
	if err != nil {
		return nil, err
	}
	if params.Referrer.IsZero() {
		params.Referrer = pool.ManagerFeeAccount
	}

	newTokens, err := tokensForLamports(pool, params.Lamports)
	if err != nil {
		return nil, err
	}
	depositFee := pool.SolDepositFee.Apply(newTokens)
	referralFee, _ := mulDiv(depositFee, uint64(pool.SolReferralFee), 100)
	result := &DepositResult{
		PoolTokens:  newTokens - depositFee,
		ManagerFee:  depositFee - referralFee,
		ReferralFee: referralFee,
	}
	if result.PoolTokens == 0 {
		return nil, newError(ErrInvalidAmount).withField("lamports").because("deposit of %d lamports mints no pool tokens", params.Lamports)
	}

	updated := *pool
	var ok bool
	if updated.PoolTokenSupply, ok = addU64(pool.PoolTokenSupply, newTokens); !ok {
		return nil, newError(ErrInvalidAmount).withField("lamports").because("pool token supply overflow")
	}
	if updated.TotalLamports, ok = addU64(pool.TotalLamports, params.Lamports); !ok {
		return nil, newError(ErrInvalidAmount).withField("lamports").because("total lamports overflow")
	}

	m := &Mutation{
		Op:        OpDepositSol,
		Pool:      params.Pool,
		PoolState: pool,
		Signers:   []solana.PublicKey{params.Funding},
		Request:   &params,
	}
	if err := c.writeSupply(m, params.Pool, &updated); err != nil {
		return nil, err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return nil, err
	}
	observe(params.Pool, &updated, list)
	return result, nil
}

// WithdrawSol burns pool tokens and returns lamports from the reserve. Withdrawals remain open
// while a pool is decommissioning so holders can exit.
func (c *Controller) WithdrawSol(ctx context.Context, params WithdrawParams) (*WithdrawResult, error) {
	if params.PoolTokens == 0 {
		return nil, newError(ErrInvalidAmount).withField("pool_tokens")
	}
	if params.Recipient.IsZero() {
		return nil, newError(ErrMissingAddress).withField("recipient")
	}
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive, StateDecommissioning)
	if err != nil {
		return nil, err
	}
	if params.PoolTokens > pool.PoolTokenSupply {
		return nil, newError(ErrInvalidAmount).withField("pool_tokens").because("%d exceeds supply %d", params.PoolTokens, pool.PoolTokenSupply)
	}

	fee := pool.SolWithdrawalFee.Apply(params.PoolTokens)
	burn := params.PoolTokens - fee
	lamports, ok := mulDiv(burn, pool.TotalLamports, pool.PoolTokenSupply)
	if !ok {
		return nil, newError(ErrInvalidAmount).withField("pool_tokens").because("lamport conversion overflow")
	}
	if lamports == 0 {
		return nil, newError(ErrInvalidAmount).withField("pool_tokens").because("withdrawal of %d tokens returns no lamports", params.PoolTokens)
	}
	reserve := pool.TotalLamports - min(pool.TotalLamports, list.TotalLamports())
	if lamports > reserve {
		return nil, newError(ErrInvalidAmount).withField("pool_tokens").because("reserve holds %d lamports, %d requested", reserve, lamports)
	}

	updated := *pool
	updated.PoolTokenSupply -= burn
	updated.TotalLamports -= lamports

	m := &Mutation{
		Op:        OpWithdrawSol,
		Pool:      params.Pool,
		PoolState: pool,
		Signers:   []solana.PublicKey{params.Authority},
		Request:   &params,
	}
	if err := c.writeSupply(m, params.Pool, &updated); err != nil {
		return nil, err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return nil, err
	}
	observe(params.Pool, &updated, list)
	return &WithdrawResult{Lamports: lamports, ManagerFee: fee}, nil
}

// UpdatePoolBalance recomputes total lamports from the reserve and the validator list, mints the
// epoch fee on any reward and, at an epoch boundary, moves staged fees one step closer.
func (c *Controller) UpdatePoolBalance(ctx context.Context, params BalanceParams) (*BalanceResult, error) {
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive, StateDecommissioning)
	if err != nil {
		return nil, err
	}
	updated := *pool
	total, ok := addU64(params.ReserveLamports, list.TotalLamports())
	if !ok {
		return nil, newError(ErrInvalidAmount).withField("reserve_lamports").because("total lamports overflow")
	}
	result := &BalanceResult{TotalLamports: total}

	if total > pool.TotalLamports && pool.PoolTokenSupply > 0 {
		result.Reward = total - pool.TotalLamports
		feeLamports := pool.EpochFee.Apply(result.Reward)
		if feeLamports > 0 && total > feeLamports {
			feeTokens, ok := mulDiv(feeLamports, pool.PoolTokenSupply, total-feeLamports)
			if !ok {
				return nil, fmt.Errorf("epoch fee of %d lamports overflows pool token supply", feeLamports)
			}
			result.FeeTokens = feeTokens
			if updated.PoolTokenSupply, ok = addU64(pool.PoolTokenSupply, feeTokens); !ok {
				return nil, fmt.Errorf("epoch fee of %d pool tokens overflows pool token supply", feeTokens)
			}
		}
	}
	updated.TotalLamports = total

	if params.Epoch > pool.LastUpdateEpoch {
		if fee, ok := updated.NextEpochFee.advance(); ok {
			updated.EpochFee = fee
		}
		if fee, ok := updated.NextStakeWithdrawalFee.advance(); ok {
			updated.StakeWithdrawalFee = fee
		}
		if fee, ok := updated.NextSolWithdrawalFee.advance(); ok {
			updated.SolWithdrawalFee = fee
		}
		updated.LastEpochPoolTokenSupply = pool.PoolTokenSupply
		updated.LastEpochTotalLamports = pool.TotalLamports
		updated.LastUpdateEpoch = params.Epoch
	}
	if updated == *pool {
		return result, nil
	}

	m := &Mutation{
		Op:        OpUpdatePoolBalance,
		Pool:      params.Pool,
		PoolState: pool,
		Request:   &params,
	}
	if err := c.writeSupply(m, params.Pool, &updated); err != nil {
		return nil, err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return nil, err
	}
	observe(params.Pool, &updated, list)
	return result, nil
}

// tokensForLamports converts lamports to pool tokens at the pool's current rate, 1:1 for an
// empty pool.
func tokensForLamports(pool *StakePool, lamports uint64) (uint64, error) {
	if pool.PoolTokenSupply == 0 || pool.TotalLamports == 0 {
		return lamports, nil
	}
	tokens, ok := mulDiv(lamports, pool.PoolTokenSupply, pool.TotalLamports)
	if !ok {
		return 0, newError(ErrInvalidAmount).withField("lamports").because("token conversion overflow")
	}
	return tokens, nil
}

func addU64(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}

// writeSupply writes the pool along with the mint so supply is mirrored in both.
func (c *Controller) writeSupply(m *Mutation, poolAddr solana.PublicKey, pool *StakePool) error {
	if err := c.writePool(m, poolAddr, pool); err != nil {
		return err
	}
	withdrawAuthority, _, err := FindWithdrawAuthority(c.programID, poolAddr)
	if err != nil {
		return fmt.Errorf("unable to derive withdraw authority: %w", err)
	}
	return c.writeMint(m, pool, withdrawAuthority)
}
