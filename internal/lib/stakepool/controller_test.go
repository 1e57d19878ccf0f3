package stakepool_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/stakepoolmgr/internal/lib/localledger"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

type fixture struct {
	ctx     context.Context
	ledger  *localledger.Ledger
	ctrl    *stakepool.Controller
	params  stakepool.CreateParams
	manager solana.PublicKey
	staker  solana.PublicKey
}

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ledger, err := localledger.NewMem(slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	f := &fixture{
		ctx:     context.Background(),
		ledger:  ledger,
		ctrl:    stakepool.New(slog.Default(), ledger, solana.PublicKey{}),
		manager: newKey(),
		staker:  newKey(),
	}
	f.params = stakepool.CreateParams{
		Pool:              newKey(),
		ValidatorList:     newKey(),
		Mint:              newKey(),
		Reserve:           newKey(),
		ManagerFeeAccount: newKey(),
		Manager:           f.manager,
		Staker:            f.staker,
		Fee:               stakepool.NewFee(1, 1000),
		WithdrawalFee:     stakepool.ZeroFee,
		DepositFee:        stakepool.ZeroFee,
		ReferralFee:       20,
		Capacity:          10,
	}
	return f
}

func (f *fixture) create(t *testing.T) *stakepool.StakePool {
	t.Helper()
	pool, err := f.ctrl.Create(f.ctx, f.params)
	require.NoError(t, err)
	return pool
}

func (f *fixture) validator(vote solana.PublicKey, lamports uint64) stakepool.ValidatorParams {
	return stakepool.ValidatorParams{Pool: f.params.Pool, Staker: f.staker, Vote: vote, Lamports: lamports}
}

func (f *fixture) deposit(t *testing.T, lamports uint64) *stakepool.DepositResult {
	t.Helper()
	res, err := f.ctrl.DepositSol(f.ctx, stakepool.DepositParams{
		Pool:        f.params.Pool,
		Funding:     newKey(),
		Destination: newKey(),
		Lamports:    lamports,
	})
	require.NoError(t, err)
	return res
}

func TestCreatePool(t *testing.T) {
	f := newFixture(t)
	created := f.create(t)
	assert.Equal(t, stakepool.StateActive, created.State)

	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, created, pool)
	assert.Equal(t, f.manager, pool.Manager)
	assert.Equal(t, f.staker, pool.Staker)
	assert.Equal(t, stakepool.NewFee(1, 1000), pool.EpochFee)
	assert.Equal(t, uint8(20), pool.SolReferralFee)
	assert.Equal(t, uint8(20), pool.StakeReferralFee)

	list, err := f.ctrl.GetValidatorList(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), list.MaxValidators)
	assert.Equal(t, 0, list.Len())

	mintData, err := f.ledger.GetAccount(f.ctx, f.params.Mint)
	require.NoError(t, err)
	mint, err := stakepool.DecodeMint(mintData)
	require.NoError(t, err)
	withdrawAuthority, _, err := stakepool.FindWithdrawAuthority(stakepool.ProgramID, f.params.Pool)
	require.NoError(t, err)
	require.NotNil(t, mint.MintAuthority)
	assert.Equal(t, withdrawAuthority, *mint.MintAuthority)
	assert.Equal(t, uint8(stakepool.PoolDecimals), mint.Decimals)

	_, err = f.ctrl.Create(f.ctx, f.params)
	assert.ErrorIs(t, err, stakepool.ErrPoolExists)
	assert.Equal(t, stakepool.KindState, stakepool.KindOf(err))
}

func TestCreatePoolValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *stakepool.CreateParams)
		wantErr error
		field   string
	}{
		{"zero denominator", func(p *stakepool.CreateParams) { p.Fee = stakepool.Fee{} }, stakepool.ErrDivisionByZero, "fee"},
		{"withdrawal fee too high", func(p *stakepool.CreateParams) { p.WithdrawalFee = stakepool.NewFee(2, 1) }, stakepool.ErrFeeTooHigh, "withdrawal_fee"},
		{"deposit fee zero denominator", func(p *stakepool.CreateParams) { p.DepositFee = stakepool.NewFee(1, 0) }, stakepool.ErrDivisionByZero, "deposit_fee"},
		{"referral over 100", func(p *stakepool.CreateParams) { p.ReferralFee = 101 }, stakepool.ErrInvalidReferralFee, "referral_fee"},
		{"zero capacity", func(p *stakepool.CreateParams) { p.Capacity = 0 }, stakepool.ErrInvalidCapacity, "capacity"},
		{"missing mint", func(p *stakepool.CreateParams) { p.Mint = solana.PublicKey{} }, stakepool.ErrMissingAddress, "mint"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(&f.params)
			_, err := f.ctrl.Create(f.ctx, f.params)
			require.ErrorIs(t, err, tt.wantErr)
			var spErr *stakepool.Error
			require.ErrorAs(t, err, &spErr)
			assert.Equal(t, tt.field, spErr.Field)
			assert.Equal(t, stakepool.KindValidation, spErr.Kind)

			// nothing was written
			_, err = f.ledger.GetAccount(f.ctx, f.params.Pool)
			assert.ErrorIs(t, err, stakepool.ErrAccountNotFound)
			_, err = f.ledger.GetAccount(f.ctx, f.params.ValidatorList)
			assert.ErrorIs(t, err, stakepool.ErrAccountNotFound)
		})
	}
}

func TestAttachMetadata(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	params := stakepool.MetadataParams{Pool: f.params.Pool, Manager: f.manager, Name: "test_name", Symbol: "SYM", URI: "test_uri"}
	addr, err := f.ctrl.AttachMetadata(f.ctx, params)
	require.NoError(t, err)

	data, err := f.ledger.GetAccount(f.ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "test_name", strings.TrimRight(string(data[69:69+32]), "\x00"))
	assert.Equal(t, "SYM", strings.TrimRight(string(data[105:105+10]), "\x00"))
	assert.Equal(t, "test_uri", strings.TrimRight(string(data[119:119+200]), "\x00"))

	md, mdAddr, err := f.ctrl.GetMetadata(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, addr, mdAddr)
	assert.Equal(t, f.params.Mint, md.Mint)
	withdrawAuthority, _, err := stakepool.FindWithdrawAuthority(stakepool.ProgramID, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, withdrawAuthority, md.UpdateAuthority)

	// attaching again updates the same account
	params.Name, params.Symbol, params.URI = "renamed", "RN", "https://example.com/rn.json"
	addr2, err := f.ctrl.AttachMetadata(f.ctx, params)
	require.NoError(t, err)
	assert.Equal(t, addr, addr2)
	md, _, err = f.ctrl.GetMetadata(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, "renamed", md.Name)
	assert.Equal(t, "RN", md.Symbol)
	assert.Equal(t, "https://example.com/rn.json", md.URI)

	history, err := f.ledger.History(f.ctx, f.params.Pool)
	require.NoError(t, err)
	var ops []string
	for _, rec := range history {
		ops = append(ops, rec.Op)
	}
	assert.Equal(t, []string{"create-pool", "create-metadata", "update-metadata"}, ops)

	params.Manager = f.staker
	_, err = f.ctrl.AttachMetadata(f.ctx, params)
	assert.ErrorIs(t, err, stakepool.ErrWrongAuthority)

	params.Manager = f.manager
	params.Symbol = "WAY_TOO_LONG"
	_, err = f.ctrl.AttachMetadata(f.ctx, params)
	assert.ErrorIs(t, err, stakepool.ErrFieldTooLong)
}

func TestMetadataOnMissingPool(t *testing.T) {
	f := newFixture(t)
	_, err := f.ctrl.AttachMetadata(f.ctx, stakepool.MetadataParams{Pool: f.params.Pool, Manager: f.manager, Name: "x"})
	assert.ErrorIs(t, err, stakepool.ErrPoolNotActive)
}

func TestValidatorLifecycle(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	f.deposit(t, 10*stakepool.LamportsPerSol)

	v1, v2 := newKey(), newKey()
	require.NoError(t, f.ctrl.AddValidator(f.ctx, f.validator(v1, 3*stakepool.LamportsPerSol)))
	require.NoError(t, f.ctrl.AddValidator(f.ctx, f.validator(v2, 0)))
	assert.ErrorIs(t, f.ctrl.AddValidator(f.ctx, f.validator(v1, 0)), stakepool.ErrDuplicateValidator)

	notStaker := f.validator(newKey(), 0)
	notStaker.Staker = f.manager
	assert.ErrorIs(t, f.ctrl.AddValidator(f.ctx, notStaker), stakepool.ErrWrongAuthority)

	reserve, err := f.ledger.ReserveBalance(f.ctx, f.params.Pool, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7*stakepool.LamportsPerSol), reserve)

	require.NoError(t, f.ctrl.BeginRemoveValidator(f.ctx, f.validator(v1, 0)))
	assert.ErrorIs(t, f.ctrl.FinalizeRemoveValidator(f.ctx, f.validator(v1, 0)), stakepool.ErrTransientStakeNonZero)

	// the stake drains
	require.NoError(t, f.ctrl.RefreshValidatorStake(f.ctx, f.validator(v1, 0)))
	require.NoError(t, f.ctrl.FinalizeRemoveValidator(f.ctx, f.validator(v1, 0)))
	reserve, err = f.ledger.ReserveBalance(f.ctx, f.params.Pool, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(10*stakepool.LamportsPerSol), reserve)

	list, err := f.ctrl.GetValidatorList(f.ctx, f.params.Pool)
	require.NoError(t, err)
	require.Equal(t, 2, list.Len())
	assert.Equal(t, stakepool.StatusReadyForRemoval, list.Validators[0].Status)
	assert.Equal(t, v2, list.Validators[1].VoteAccount)

	dropped, err := f.ctrl.CleanupRemovedValidators(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	dropped, err = f.ctrl.CleanupRemovedValidators(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)

	list, err = f.ctrl.GetValidatorList(f.ctx, f.params.Pool)
	require.NoError(t, err)
	require.Equal(t, 1, list.Len())
	assert.Equal(t, v2, list.Validators[0].VoteAccount)
}

func TestListCapacity(t *testing.T) {
	f := newFixture(t)
	f.params.Capacity = 1
	f.create(t)
	require.NoError(t, f.ctrl.AddValidator(f.ctx, f.validator(newKey(), 0)))
	err := f.ctrl.AddValidator(f.ctx, f.validator(newKey(), 0))
	assert.ErrorIs(t, err, stakepool.ErrListFull)
}

func TestDecommission(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	f.deposit(t, 4*stakepool.LamportsPerSol)
	v1, v2 := newKey(), newKey()
	require.NoError(t, f.ctrl.AddValidator(f.ctx, f.validator(v1, stakepool.LamportsPerSol)))
	require.NoError(t, f.ctrl.AddValidator(f.ctx, f.validator(v2, stakepool.LamportsPerSol)))

	decommission := stakepool.DecommissionParams{Pool: f.params.Pool, Manager: f.manager}
	assert.ErrorIs(t, f.ctrl.Decommission(f.ctx, decommission), stakepool.ErrValidatorsStillActive)
	assert.ErrorIs(t, f.ctrl.BeginDecommission(f.ctx, stakepool.DecommissionParams{Pool: f.params.Pool, Manager: f.staker}), stakepool.ErrWrongAuthority)

	require.NoError(t, f.ctrl.BeginDecommission(f.ctx, decommission))
	require.NoError(t, f.ctrl.BeginDecommission(f.ctx, decommission))
	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, stakepool.StateDecommissioning, pool.State)

	assert.ErrorIs(t, f.ctrl.AddValidator(f.ctx, f.validator(newKey(), 0)), stakepool.ErrPoolNotActive)
	_, err = f.ctrl.DepositSol(f.ctx, stakepool.DepositParams{Pool: f.params.Pool, Funding: newKey(), Destination: newKey(), Lamports: 5})
	assert.ErrorIs(t, err, stakepool.ErrPoolNotActive)
	assert.ErrorIs(t, f.ctrl.Decommission(f.ctx, decommission), stakepool.ErrValidatorsStillActive)

	for _, vote := range []solana.PublicKey{v1, v2} {
		require.NoError(t, f.ctrl.RefreshValidatorStake(f.ctx, f.validator(vote, 0)))
		require.NoError(t, f.ctrl.FinalizeRemoveValidator(f.ctx, f.validator(vote, 0)))
	}

	// holders can still leave while the pool winds down
	res, err := f.ctrl.WithdrawSol(f.ctx, stakepool.WithdrawParams{Pool: f.params.Pool, Authority: newKey(), Source: newKey(), Recipient: newKey(), PoolTokens: stakepool.LamportsPerSol})
	require.NoError(t, err)
	assert.Equal(t, uint64(stakepool.LamportsPerSol), res.Lamports)

	require.NoError(t, f.ctrl.Decommission(f.ctx, decommission))
	pool, err = f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, stakepool.StateClosed, pool.State)

	assert.ErrorIs(t, f.ctrl.BeginDecommission(f.ctx, decommission), stakepool.ErrPoolNotActive)
	_, err = f.ctrl.WithdrawSol(f.ctx, stakepool.WithdrawParams{Pool: f.params.Pool, Recipient: newKey(), PoolTokens: 1})
	assert.ErrorIs(t, err, stakepool.ErrPoolNotActive)
}

func TestDecommissionEmptyPool(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	require.NoError(t, f.ctrl.Decommission(f.ctx, stakepool.DecommissionParams{Pool: f.params.Pool, Manager: f.manager}))
	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, stakepool.StateClosed, pool.State)
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	res := f.deposit(t, 10*stakepool.LamportsPerSol)
	assert.Equal(t, uint64(10*stakepool.LamportsPerSol), res.PoolTokens)
	assert.Zero(t, res.ManagerFee)

	require.NoError(t, f.ctrl.SetFee(f.ctx, stakepool.FeeParams{
		Pool: f.params.Pool, Manager: f.manager, Type: stakepool.FeeSolDeposit, Fee: stakepool.NewFee(1, 100),
	}))
	res = f.deposit(t, stakepool.LamportsPerSol)
	assert.Equal(t, uint64(990_000_000), res.PoolTokens)
	assert.Equal(t, uint64(8_000_000), res.ManagerFee)
	assert.Equal(t, uint64(2_000_000), res.ReferralFee)

	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(11*stakepool.LamportsPerSol), pool.TotalLamports)
	assert.Equal(t, uint64(11*stakepool.LamportsPerSol), pool.PoolTokenSupply)

	mintData, err := f.ledger.GetAccount(f.ctx, f.params.Mint)
	require.NoError(t, err)
	mint, err := stakepool.DecodeMint(mintData)
	require.NoError(t, err)
	assert.Equal(t, pool.PoolTokenSupply, mint.Supply)

	withdraw := stakepool.WithdrawParams{Pool: f.params.Pool, Authority: newKey(), Source: newKey(), Recipient: newKey(), PoolTokens: stakepool.LamportsPerSol}
	wres, err := f.ctrl.WithdrawSol(f.ctx, withdraw)
	require.NoError(t, err)
	assert.Equal(t, uint64(stakepool.LamportsPerSol), wres.Lamports)

	withdraw.PoolTokens = 100 * stakepool.LamportsPerSol
	_, err = f.ctrl.WithdrawSol(f.ctx, withdraw)
	assert.ErrorIs(t, err, stakepool.ErrInvalidAmount)

	_, err = f.ctrl.DepositSol(f.ctx, stakepool.DepositParams{Pool: f.params.Pool, Funding: newKey(), Destination: newKey()})
	assert.ErrorIs(t, err, stakepool.ErrInvalidAmount)
}

func TestDepositLargeAmounts(t *testing.T) {
	f := newFixture(t)
	f.params.DepositFee = stakepool.NewFee(1, 2)
	f.create(t)

	res := f.deposit(t, 2e18)
	assert.Equal(t, uint64(1e18), res.PoolTokens)
	assert.Equal(t, uint64(2e17), res.ReferralFee)
	assert.Equal(t, uint64(8e17), res.ManagerFee)

	_, err := f.ctrl.DepositSol(f.ctx, stakepool.DepositParams{
		Pool:        f.params.Pool,
		Funding:     newKey(),
		Destination: newKey(),
		Lamports:    17e18,
	})
	assert.ErrorIs(t, err, stakepool.ErrInvalidAmount)

	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(2e18), pool.TotalLamports)
	assert.Equal(t, uint64(2e18), pool.PoolTokenSupply)
}

func TestUpdatePoolBalance(t *testing.T) {
	f := newFixture(t)
	f.params.Epoch = 100
	f.create(t)
	f.deposit(t, 10*stakepool.LamportsPerSol)

	vote := newKey()
	require.NoError(t, f.ctrl.AddValidator(f.ctx, f.validator(vote, 4*stakepool.LamportsPerSol)))

	// a full SOL of rewards shows up on the validator
	refresh := f.validator(vote, 5*stakepool.LamportsPerSol)
	refresh.Epoch = 101
	require.NoError(t, f.ctrl.RefreshValidatorStake(f.ctx, refresh))

	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	reserve, err := f.ledger.ReserveBalance(f.ctx, f.params.Pool, pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(6*stakepool.LamportsPerSol), reserve)

	res, err := f.ctrl.UpdatePoolBalance(f.ctx, stakepool.BalanceParams{Pool: f.params.Pool, Epoch: 101, ReserveLamports: reserve})
	require.NoError(t, err)
	assert.Equal(t, uint64(11*stakepool.LamportsPerSol), res.TotalLamports)
	assert.Equal(t, uint64(stakepool.LamportsPerSol), res.Reward)
	assert.Equal(t, uint64(909_173), res.FeeTokens)

	pool, err = f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), pool.LastUpdateEpoch)
	assert.Equal(t, uint64(10*stakepool.LamportsPerSol+909_173), pool.PoolTokenSupply)
	assert.Equal(t, uint64(10*stakepool.LamportsPerSol), pool.LastEpochTotalLamports)
}

func TestStagedFees(t *testing.T) {
	f := newFixture(t)
	f.params.Epoch = 10
	f.create(t)

	require.NoError(t, f.ctrl.SetFee(f.ctx, stakepool.FeeParams{
		Pool: f.params.Pool, Manager: f.manager, Type: stakepool.FeeEpoch, Fee: stakepool.NewFee(2, 100),
	}))
	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, stakepool.NewFee(1, 1000), pool.EpochFee)
	assert.Equal(t, stakepool.FutureFee{Epochs: 2, Fee: stakepool.NewFee(2, 100)}, pool.NextEpochFee)

	for _, epoch := range []uint64{11, 12} {
		_, err := f.ctrl.UpdatePoolBalance(f.ctx, stakepool.BalanceParams{Pool: f.params.Pool, Epoch: epoch})
		require.NoError(t, err)
	}
	pool, err = f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, stakepool.NewFee(2, 100), pool.EpochFee)
	assert.False(t, pool.NextEpochFee.IsSet())

	err = f.ctrl.SetFee(f.ctx, stakepool.FeeParams{Pool: f.params.Pool, Manager: f.manager, Type: stakepool.FeeSolWithdrawal, Fee: stakepool.NewFee(3, 2)})
	assert.ErrorIs(t, err, stakepool.ErrFeeTooHigh)
	err = f.ctrl.SetReferralFee(f.ctx, f.params.Pool, f.manager, stakepool.FeeSolReferral, 101)
	assert.ErrorIs(t, err, stakepool.ErrInvalidReferralFee)
	err = f.ctrl.SetReferralFee(f.ctx, f.params.Pool, f.manager, stakepool.FeeEpoch, 5)
	assert.ErrorIs(t, err, stakepool.ErrInvalidFeeType)
	require.NoError(t, f.ctrl.SetReferralFee(f.ctx, f.params.Pool, f.manager, stakepool.FeeStakeReferral, 0))
	err = f.ctrl.SetFee(f.ctx, stakepool.FeeParams{Pool: f.params.Pool, Manager: f.staker, Type: stakepool.FeeEpoch, Fee: stakepool.ZeroFee})
	assert.ErrorIs(t, err, stakepool.ErrWrongAuthority)
}

func TestSetAuthorities(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	newStaker := newKey()
	require.NoError(t, f.ctrl.SetStaker(f.ctx, stakepool.AuthorityParams{Pool: f.params.Pool, Authority: f.staker, New: newStaker}))
	assert.ErrorIs(t, f.ctrl.SetStaker(f.ctx, stakepool.AuthorityParams{Pool: f.params.Pool, Authority: f.staker, New: newKey()}), stakepool.ErrWrongAuthority)
	require.NoError(t, f.ctrl.SetStaker(f.ctx, stakepool.AuthorityParams{Pool: f.params.Pool, Authority: f.manager, New: f.staker}))

	newManager, newFeeAccount := newKey(), newKey()
	require.NoError(t, f.ctrl.SetManager(f.ctx, stakepool.AuthorityParams{
		Pool: f.params.Pool, Authority: f.manager, New: newManager, NewFeeAccount: newFeeAccount,
	}))
	pool, err := f.ctrl.GetPool(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.Equal(t, newManager, pool.Manager)
	assert.Equal(t, newFeeAccount, pool.ManagerFeeAccount)
	assert.Equal(t, f.staker, pool.Staker)

	err = f.ctrl.SetManager(f.ctx, stakepool.AuthorityParams{Pool: f.params.Pool, Authority: f.manager, New: newKey()})
	assert.ErrorIs(t, err, stakepool.ErrWrongAuthority)
	err = f.ctrl.SetManager(f.ctx, stakepool.AuthorityParams{Pool: f.params.Pool, Authority: newManager})
	assert.ErrorIs(t, err, stakepool.ErrMissingAddress)
}

func TestLoadState(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.ctrl.LoadState(f.ctx, f.params.Pool)
	assert.ErrorIs(t, err, stakepool.ErrAccountNotFound)

	f.create(t)
	pool, list, err := f.ctrl.LoadState(f.ctx, f.params.Pool)
	require.NoError(t, err)
	assert.True(t, pool.IsActive())
	assert.Equal(t, 0, list.Len())
}
