package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/stakepoolmgr/internal/lib/localledger"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

type refreshFixture struct {
	ctx       context.Context
	ledger    *localledger.Ledger
	ctrl      *stakepool.Controller
	refresher *poolRefresher
	pool      solana.PublicKey
	manager   solana.PublicKey
	staker    solana.PublicKey
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

// newRefreshFixture creates a pool holding 10 SOL with 4 SOL and 3 SOL delegated to two validators.
func newRefreshFixture(t *testing.T) (*refreshFixture, []solana.PublicKey) {
	t.Helper()
	ledger, err := localledger.NewMem(slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })
	ctrl := stakepool.New(slog.Default(), ledger, stakepool.ProgramID)

	f := &refreshFixture{
		ctx:    context.Background(),
		ledger: ledger,
		ctrl:   ctrl,
		refresher: &poolRefresher{
			logger:      slog.Default(),
			controller:  ctrl,
			observer:    ledger,
			parallelism: 2,
		},
		pool:    newKey(),
		manager: newKey(),
		staker:  newKey(),
	}
	_, err = ctrl.Create(f.ctx, stakepool.CreateParams{
		Pool:              f.pool,
		ValidatorList:     newKey(),
		Mint:              newKey(),
		Reserve:           newKey(),
		ManagerFeeAccount: newKey(),
		Manager:           f.manager,
		Staker:            f.staker,
		Fee:               stakepool.NewFee(1, 10),
		WithdrawalFee:     stakepool.ZeroFee,
		DepositFee:        stakepool.ZeroFee,
		Capacity:          5,
	})
	require.NoError(t, err)
	_, err = ctrl.DepositSol(f.ctx, stakepool.DepositParams{
		Pool:        f.pool,
		Funding:     newKey(),
		Destination: newKey(),
		Lamports:    10 * stakepool.LamportsPerSol,
	})
	require.NoError(t, err)

	votes := []solana.PublicKey{newKey(), newKey()}
	for i, stake := range []uint64{4, 3} {
		err = ctrl.AddValidator(f.ctx, stakepool.ValidatorParams{
			Pool:     f.pool,
			Staker:   f.staker,
			Vote:     votes[i],
			Lamports: stake * stakepool.LamportsPerSol,
		})
		require.NoError(t, err)
	}
	return f, votes
}

func TestRefreshFinishesRemoval(t *testing.T) {
	f, votes := newRefreshFixture(t)
	require.NoError(t, f.ctrl.BeginRemoveValidator(f.ctx, stakepool.ValidatorParams{Pool: f.pool, Staker: f.staker, Vote: votes[1]}))

	summary, err := f.refresher.refresh(f.ctx, f.pool)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Refreshed)
	assert.Equal(t, 1, summary.Finalized)
	assert.Equal(t, 1, summary.Cleaned)
	assert.False(t, summary.Closed)
	require.NotNil(t, summary.Balance)
	assert.Equal(t, uint64(10*stakepool.LamportsPerSol), summary.Balance.TotalLamports)
	assert.Zero(t, summary.Balance.Reward)

	_, list, err := f.ctrl.LoadState(f.ctx, f.pool)
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
	assert.Equal(t, votes[0], list.Validators[0].VoteAccount)

	// the drained stake went back to the reserve
	reserve, err := f.ledger.ReserveBalance(f.ctx, f.pool, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(6*stakepool.LamportsPerSol), reserve)

	// nothing changed, so a second pass has nothing to do
	summary, err = f.refresher.refresh(f.ctx, f.pool)
	require.NoError(t, err)
	assert.Zero(t, summary.Refreshed)
	assert.Zero(t, summary.Finalized)
	assert.Zero(t, summary.Cleaned)
}

func TestRefreshDecommissioning(t *testing.T) {
	tests := []struct {
		name       string
		closeWith  func(solana.PublicKey) bool
		wantClosed bool
		wantState  stakepool.PoolState
	}{
		{"no manager key", nil, false, stakepool.StateDecommissioning},
		{"other manager", func(solana.PublicKey) bool { return false }, false, stakepool.StateDecommissioning},
		{"manager key held", func(solana.PublicKey) bool { return true }, true, stakepool.StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newRefreshFixture(t)
			f.refresher.closeWith = tt.closeWith
			require.NoError(t, f.ctrl.BeginDecommission(f.ctx, stakepool.DecommissionParams{Pool: f.pool, Manager: f.manager}))

			summary, err := f.refresher.refresh(f.ctx, f.pool)
			require.NoError(t, err)
			assert.Equal(t, 2, summary.Finalized)
			assert.Zero(t, summary.Cleaned)
			assert.Equal(t, tt.wantClosed, summary.Closed)

			pool, list, err := f.ctrl.LoadState(f.ctx, f.pool)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, pool.State)
			assert.True(t, list.AllReadyForRemoval())

			if tt.wantClosed {
				// closed pools are skipped
				summary, err = f.refresher.refresh(f.ctx, f.pool)
				require.NoError(t, err)
				assert.Nil(t, summary.Balance)
			}
		})
	}
}

type failingObserver struct {
	stakepool.Observer
	fail solana.PublicKey
}

func (o failingObserver) ObserveValidatorStake(ctx context.Context, poolAddr solana.PublicKey, info stakepool.ValidatorStakeInfo) (uint64, uint64, error) {
	if info.VoteAccount == o.fail {
		return 0, 0, errors.New("node unavailable")
	}
	return o.Observer.ObserveValidatorStake(ctx, poolAddr, info)
}

func TestRefreshObserveError(t *testing.T) {
	f, votes := newRefreshFixture(t)
	f.refresher.observer = failingObserver{Observer: f.ledger, fail: votes[1]}

	_, err := f.refresher.refresh(f.ctx, f.pool)
	assert.ErrorContains(t, err, "node unavailable")
	assert.ErrorContains(t, err, votes[1].String())
}
