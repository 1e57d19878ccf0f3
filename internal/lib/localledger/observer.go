package localledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

// CurrentEpoch counts EpochDuration periods since the ledger was first created.
func (l *Ledger) CurrentEpoch(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	val, err := l.db.Get(genesisKey, nil)
	if err != nil {
		return 0, fmt.Errorf("reading local genesis: %w", err)
	}
	genesis := time.Unix(int64(binary.BigEndian.Uint64(val)), 0)
	if l.EpochDuration <= 0 {
		return 0, nil
	}
	elapsed := l.now().Sub(genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return uint64(elapsed / l.EpochDuration), nil
}

// ObserveValidatorStake reports the recorded active stake. Local stake has no warmup or cooldown
// so transient stake always reads as fully drained.
func (l *Ledger) ObserveValidatorStake(ctx context.Context, poolAddr solana.PublicKey, info stakepool.ValidatorStakeInfo) (uint64, uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	return info.ActiveStakeLamports, 0, nil
}

// ReserveBalance returns the undelegated lamports the ledger tracks for the pool.
func (l *Ledger) ReserveBalance(ctx context.Context, poolAddr solana.PublicKey, _ *stakepool.StakePool) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reserve(poolAddr)
}
