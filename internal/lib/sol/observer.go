package sol

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

func (l *RPCLedger) CurrentEpoch(ctx context.Context) (uint64, error) {
	info, err := l.client.GetEpochInfo(ctx, l.Commitment)
	if err != nil {
		return 0, stakepool.Unavailable(err)
	}
	return info.Epoch, nil
}

// ObserveValidatorStake reads the validator and transient stake accounts of an entry, net of
// their rent reserve. A missing account counts as zero.
func (l *RPCLedger) ObserveValidatorStake(ctx context.Context, poolAddr solana.PublicKey, info stakepool.ValidatorStakeInfo) (uint64, uint64, error) {
	keys := PoolKeys{ProgramID: l.programID, Pool: poolAddr}
	stake, err := keys.validatorStake(info)
	if err != nil {
		return 0, 0, err
	}
	transient, err := keys.transientStake(info)
	if err != nil {
		return 0, 0, err
	}
	rent, err := l.rentExempt(ctx, stakepool.StakeAccountSize)
	if err != nil {
		return 0, 0, err
	}
	resp, err := l.client.GetMultipleAccountsWithOpts(ctx, []solana.PublicKey{stake, transient}, &rpc.GetMultipleAccountsOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: l.Commitment,
	})
	if err != nil {
		return 0, 0, stakepool.Unavailable(err)
	}
	balances := make([]uint64, 2)
	for i, account := range resp.Value {
		if i < len(balances) && account != nil {
			balances[i] = account.Lamports - min(account.Lamports, rent)
		}
	}
	return balances[0], balances[1], nil
}

// ReserveBalance is the reserve stake account balance above its rent reserve.
func (l *RPCLedger) ReserveBalance(ctx context.Context, _ solana.PublicKey, pool *stakepool.StakePool) (uint64, error) {
	rent, err := l.rentExempt(ctx, stakepool.StakeAccountSize)
	if err != nil {
		return 0, err
	}
	resp, err := l.client.GetBalance(ctx, pool.ReserveStake, l.Commitment)
	if err != nil {
		return 0, stakepool.Unavailable(err)
	}
	return resp.Value - min(resp.Value, rent), nil
}
