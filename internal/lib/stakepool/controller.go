package stakepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gagliardetto/solana-go"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
)

// Controller drives pool lifecycle transitions against a Ledger. Every operation reads current
// state, computes the next state on a private copy and submits it as one Mutation, so a failed
// submit leaves the ledger untouched. The controller holds no state of its own and never retries.
type Controller struct {
	Logger    *slog.Logger
	ledger    Ledger
	programID solana.PublicKey
}

func New(logger *slog.Logger, ledger Ledger, programID solana.PublicKey) *Controller {
	if programID.IsZero() {
		programID = ProgramID
	}
	misc.Debugf(logger, "stake pool controller initialized, program:%s", programID)
	return &Controller{
		Logger:    logger,
		ledger:    ledger,
		programID: programID,
	}
}

func (c *Controller) ProgramID() solana.PublicKey {
	return c.programID
}

// Create initializes a pool together with its empty validator list and pool mint. The three
// accounts are submitted as one mutation so either all of them exist afterwards or none do.
func (c *Controller) Create(ctx context.Context, params CreateParams) (*StakePool, error) {
	for _, f := range []struct {
		name string
		fee  Fee
	}{
		{"fee", params.Fee},
		{"withdrawal_fee", params.WithdrawalFee},
		{"deposit_fee", params.DepositFee},
	} {
		if err := f.fee.Validate(); err != nil {
			return nil, err.(*Error).withField(f.name)
		}
	}
	if params.ReferralFee > MaxReferralFee {
		return nil, newError(ErrInvalidReferralFee).withField("referral_fee").because("%d", params.ReferralFee)
	}
	if params.Capacity == 0 {
		return nil, newError(ErrInvalidCapacity).withField("capacity")
	}
	for _, addr := range []struct {
		name string
		key  solana.PublicKey
	}{
		{"pool", params.Pool},
		{"validator_list", params.ValidatorList},
		{"mint", params.Mint},
		{"reserve", params.Reserve},
		{"manager_fee_account", params.ManagerFeeAccount},
		{"manager", params.Manager},
	} {
		if addr.key.IsZero() {
			return nil, newError(ErrMissingAddress).withField(addr.name)
		}
	}
	if params.Staker.IsZero() {
		params.Staker = params.Manager
	}

	existing, err := c.loadPool(ctx, params.Pool)
	if err != nil {
		return nil, err
	}
	if existing.State != StateUninitialized {
		return nil, newError(ErrPoolExists).at(params.Pool).because("pool is %s", existing.State)
	}

	withdrawAuthority, bump, err := FindWithdrawAuthority(c.programID, params.Pool)
	if err != nil {
		return nil, fmt.Errorf("unable to derive withdraw authority: %w", err)
	}
	depositAuthority, _, err := FindDepositAuthority(c.programID, params.Pool)
	if err != nil {
		return nil, fmt.Errorf("unable to derive deposit authority: %w", err)
	}

	pool := &StakePool{
		Manager:               params.Manager,
		Staker:                params.Staker,
		StakeDepositAuthority: depositAuthority,
		StakeWithdrawBumpSeed: bump,
		ValidatorList:         params.ValidatorList,
		ReserveStake:          params.Reserve,
		PoolMint:              params.Mint,
		ManagerFeeAccount:     params.ManagerFeeAccount,
		TokenProgramID:        solana.TokenProgramID,
		LastUpdateEpoch:       params.Epoch,
		EpochFee:              params.Fee,
		StakeDepositFee:       params.DepositFee,
		StakeWithdrawalFee:    params.WithdrawalFee,
		StakeReferralFee:      params.ReferralFee,
		SolDepositFee:         params.DepositFee,
		SolWithdrawalFee:      params.WithdrawalFee,
		SolReferralFee:        params.ReferralFee,
		State:                 StateActive,
	}
	list := NewValidatorList(params.Capacity)

	m := &Mutation{
		Op:          OpCreatePool,
		Pool:        params.Pool,
		PoolState:   pool,
		Signers:     []solana.PublicKey{params.Manager},
		NewAccounts: []solana.PublicKey{params.Pool, params.ValidatorList, params.Mint},
		Request:     &params,
	}
	if err := c.writePool(m, params.Pool, pool); err != nil {
		return nil, err
	}
	if err := c.writeList(m, pool, list); err != nil {
		return nil, err
	}
	if err := c.writeMint(m, pool, withdrawAuthority); err != nil {
		return nil, err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return nil, err
	}
	observe(params.Pool, pool, list)
	return pool, nil
}

// AttachMetadata writes name, symbol and uri to the metadata account of the pool mint. The
// account address depends only on the mint; attaching again overwrites the previous values.
func (c *Controller) AttachMetadata(ctx context.Context, params MetadataParams) (solana.PublicKey, error) {
	pool, err := c.loadPool(ctx, params.Pool)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := requireState(params.Pool, pool, StateActive); err != nil {
		return solana.PublicKey{}, err
	}
	if err := requireAuthority("manager", pool.Manager, params.Manager); err != nil {
		return solana.PublicKey{}, err
	}
	withdrawAuthority, _, err := FindWithdrawAuthority(c.programID, params.Pool)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("unable to derive withdraw authority: %w", err)
	}
	data, err := Encode(&TokenMetadata{
		UpdateAuthority: withdrawAuthority,
		Mint:            pool.PoolMint,
		Name:            params.Name,
		Symbol:          params.Symbol,
		URI:             params.URI,
	})
	if err != nil {
		return solana.PublicKey{}, err
	}
	metadataAddr, _, err := FindMetadataAddress(pool.PoolMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("unable to derive metadata address: %w", err)
	}

	op := OpCreateMetadata
	if _, err := c.ledger.GetAccount(ctx, metadataAddr); err == nil {
		op = OpUpdateMetadata
	} else if !errors.Is(err, ErrAccountNotFound) {
		return solana.PublicKey{}, external(err)
	}
	params.Metadata = metadataAddr

	m := &Mutation{
		Op:        op,
		Pool:      params.Pool,
		PoolState: pool,
		Signers:   []solana.PublicKey{pool.Manager},
		Request:   &params,
	}
	m.write(metadataAddr, MetadataProgramID, data)
	if _, err := c.commit(ctx, m); err != nil {
		return solana.PublicKey{}, err
	}
	return metadataAddr, nil
}

// AddValidator appends a validator to the pool's list. Only the staker may add validators.
func (c *Controller) AddValidator(ctx context.Context, params ValidatorParams) error {
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive)
	if err != nil {
		return err
	}
	if err := requireAuthority("staker", pool.Staker, params.Staker); err != nil {
		return err
	}
	epoch := max(params.Epoch, pool.LastUpdateEpoch)
	return c.changeList(ctx, OpAddValidator, pool, list, params, []solana.PublicKey{pool.Staker}, func(next *ValidatorList) error {
		return next.Add(params.Vote, params.Lamports, epoch)
	})
}

// BeginRemoveValidator starts deactivating a validator's stake.
func (c *Controller) BeginRemoveValidator(ctx context.Context, params ValidatorParams) error {
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive, StateDecommissioning)
	if err != nil {
		return err
	}
	if err := requireAuthority("staker", pool.Staker, params.Staker); err != nil {
		return err
	}
	return c.changeList(ctx, OpBeginRemoveValidator, pool, list, params, []solana.PublicKey{pool.Staker}, func(next *ValidatorList) error {
		return next.BeginRemove(params.Vote)
	})
}

// FinalizeRemoveValidator completes a removal once the transient stake drained. Anyone may
// call it.
func (c *Controller) FinalizeRemoveValidator(ctx context.Context, params ValidatorParams) error {
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive, StateDecommissioning)
	if err != nil {
		return err
	}
	return c.changeList(ctx, OpFinalizeRemoveValidator, pool, list, params, nil, func(next *ValidatorList) error {
		return next.FinalizeRemove(params.Vote)
	})
}

// RefreshValidatorStake records observed active / transient stake for a validator.
func (c *Controller) RefreshValidatorStake(ctx context.Context, params ValidatorParams) error {
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive, StateDecommissioning)
	if err != nil {
		return err
	}
	epoch := max(params.Epoch, pool.LastUpdateEpoch)
	return c.changeList(ctx, OpRefreshValidator, pool, list, params, nil, func(next *ValidatorList) error {
		return next.UpdateStake(params.Vote, params.Lamports, params.Transient, epoch)
	})
}

// CleanupRemovedValidators compacts ReadyForRemoval entries out of the list, returning how
// many were dropped.
func (c *Controller) CleanupRemovedValidators(ctx context.Context, poolAddr solana.PublicKey) (int, error) {
	pool, list, err := c.loadPoolAndList(ctx, poolAddr, StateActive, StateDecommissioning)
	if err != nil {
		return 0, err
	}
	next := list.clone()
	dropped := next.Compact()
	if dropped == 0 {
		return 0, nil
	}
	m := &Mutation{
		Op:        OpCleanupValidators,
		Pool:      poolAddr,
		PoolState: pool,
		Request:   poolAddr,
	}
	if err := c.writeList(m, pool, next); err != nil {
		return 0, err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return 0, err
	}
	observe(poolAddr, pool, next)
	return dropped, nil
}

// BeginDecommission moves an Active pool to Decommissioning and starts removal of every
// validator still Active. Repeating it on a decommissioning pool does nothing.
func (c *Controller) BeginDecommission(ctx context.Context, params DecommissionParams) error {
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive, StateDecommissioning)
	if err != nil {
		return err
	}
	if err := requireAuthority("manager", pool.Manager, params.Manager); err != nil {
		return err
	}
	if pool.State == StateDecommissioning {
		return nil
	}
	next := list.clone()
	m := &Mutation{
		Op:        OpBeginDecommission,
		Pool:      params.Pool,
		PoolState: pool,
		Signers:   []solana.PublicKey{pool.Manager, pool.Staker},
		Request:   &params,
	}
	for i, info := range list.Validators {
		if info.Status != StatusActive {
			continue
		}
		if err := next.BeginRemove(info.VoteAccount); err != nil {
			return err
		}
		m.Touched = append(m.Touched, TouchedEntry{Index: i, Info: next.Validators[i]})
	}
	updated := *pool
	updated.State = StateDecommissioning
	if err := c.writePool(m, params.Pool, &updated); err != nil {
		return err
	}
	if err := c.writeList(m, pool, next); err != nil {
		return err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return err
	}
	observe(params.Pool, &updated, next)
	return nil
}

// Decommission closes a pool once every validator reached ReadyForRemoval (or the list is empty).
func (c *Controller) Decommission(ctx context.Context, params DecommissionParams) error {
	pool, list, err := c.loadPoolAndList(ctx, params.Pool, StateActive, StateDecommissioning)
	if err != nil {
		return err
	}
	if err := requireAuthority("manager", pool.Manager, params.Manager); err != nil {
		return err
	}
	if !list.AllReadyForRemoval() {
		counts := list.CountByStatus()
		return newError(ErrValidatorsStillActive).at(params.Pool).because("%d active, %d deactivating",
			counts[StatusActive], counts[StatusDeactivatingTransient])
	}
	updated := *pool
	updated.State = StateClosed
	m := &Mutation{
		Op:        OpDecommission,
		Pool:      params.Pool,
		PoolState: pool,
		Signers:   []solana.PublicKey{pool.Manager},
		Request:   &params,
	}
	if err := c.writePool(m, params.Pool, &updated); err != nil {
		return err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return err
	}
	observe(params.Pool, &updated, list)
	return nil
}

// SetFee changes one of the pool fees. Epoch and withdrawal fees are staged and take effect two
// epoch boundaries later; deposit and referral fees apply immediately.
func (c *Controller) SetFee(ctx context.Context, params FeeParams) error {
	pool, err := c.loadPool(ctx, params.Pool)
	if err != nil {
		return err
	}
	if err := requireState(params.Pool, pool, StateActive); err != nil {
		return err
	}
	if err := requireAuthority("manager", pool.Manager, params.Manager); err != nil {
		return err
	}
	if params.Type.IsReferral() {
		if params.Referral > MaxReferralFee {
			return newError(ErrInvalidReferralFee).withField(params.Type.String()).because("%d", params.Referral)
		}
	} else if err := params.Fee.Validate(); err != nil {
		return err.(*Error).withField(params.Type.String())
	}

	updated := *pool
	staged := FutureFee{Epochs: 2, Fee: params.Fee}
	switch params.Type {
	case FeeSolReferral:
		updated.SolReferralFee = params.Referral
	case FeeStakeReferral:
		updated.StakeReferralFee = params.Referral
	case FeeEpoch:
		updated.NextEpochFee = staged
	case FeeStakeWithdrawal:
		updated.NextStakeWithdrawalFee = staged
	case FeeSolWithdrawal:
		updated.NextSolWithdrawalFee = staged
	case FeeSolDeposit:
		updated.SolDepositFee = params.Fee
	case FeeStakeDeposit:
		updated.StakeDepositFee = params.Fee
	default:
		return newError(ErrInvalidFeeType).because("%d", params.Type)
	}
	return c.updatePool(ctx, OpSetFee, params.Pool, pool, &updated, []solana.PublicKey{pool.Manager}, &params)
}

// SetReferralFee sets the percentage of deposit fees paid to referrers.
func (c *Controller) SetReferralFee(ctx context.Context, pool, manager solana.PublicKey, feeType FeeType, pct uint8) error {
	if !feeType.IsReferral() {
		return newError(ErrInvalidFeeType).because("%s is not a referral fee", feeType)
	}
	return c.SetFee(ctx, FeeParams{Pool: pool, Manager: manager, Type: feeType, Referral: pct})
}

// SetManager hands the pool to a new manager (and optionally a new fee account). Both the
// current and the new manager sign.
func (c *Controller) SetManager(ctx context.Context, params AuthorityParams) error {
	pool, err := c.loadPool(ctx, params.Pool)
	if err != nil {
		return err
	}
	if err := requireState(params.Pool, pool, StateActive); err != nil {
		return err
	}
	if err := requireAuthority("manager", pool.Manager, params.Authority); err != nil {
		return err
	}
	if params.New.IsZero() {
		return newError(ErrMissingAddress).withField("new_manager")
	}
	updated := *pool
	updated.Manager = params.New
	if !params.NewFeeAccount.IsZero() {
		updated.ManagerFeeAccount = params.NewFeeAccount
	}
	params.NewFeeAccount = updated.ManagerFeeAccount
	return c.updatePool(ctx, OpSetManager, params.Pool, pool, &updated, []solana.PublicKey{pool.Manager, params.New}, &params)
}

// SetStaker changes the staker. Either the manager or the current staker may do this.
func (c *Controller) SetStaker(ctx context.Context, params AuthorityParams) error {
	pool, err := c.loadPool(ctx, params.Pool)
	if err != nil {
		return err
	}
	if err := requireState(params.Pool, pool, StateActive); err != nil {
		return err
	}
	if params.Authority != pool.Manager {
		if err := requireAuthority("staker", pool.Staker, params.Authority); err != nil {
			return err
		}
	}
	if params.New.IsZero() {
		return newError(ErrMissingAddress).withField("new_staker")
	}
	updated := *pool
	updated.Staker = params.New
	return c.updatePool(ctx, OpSetStaker, params.Pool, pool, &updated, []solana.PublicKey{params.Authority}, &params)
}

// GetPool returns the decoded pool account.
func (c *Controller) GetPool(ctx context.Context, poolAddr solana.PublicKey) (*StakePool, error) {
	data, err := c.ledger.GetAccount(ctx, poolAddr)
	if err != nil {
		return nil, external(err)
	}
	pool, err := DecodeStakePool(data)
	if err != nil {
		return nil, withAddress(err, poolAddr)
	}
	return pool, nil
}

// GetValidatorList returns the decoded validator list of a pool.
func (c *Controller) GetValidatorList(ctx context.Context, poolAddr solana.PublicKey) (*ValidatorList, error) {
	pool, err := c.GetPool(ctx, poolAddr)
	if err != nil {
		return nil, err
	}
	return c.loadList(ctx, pool)
}

// GetMetadata returns the metadata attached to the pool mint and its address.
func (c *Controller) GetMetadata(ctx context.Context, poolAddr solana.PublicKey) (*TokenMetadata, solana.PublicKey, error) {
	pool, err := c.GetPool(ctx, poolAddr)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	metadataAddr, _, err := FindMetadataAddress(pool.PoolMint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("unable to derive metadata address: %w", err)
	}
	data, err := c.ledger.GetAccount(ctx, metadataAddr)
	if err != nil {
		return nil, metadataAddr, external(err)
	}
	md, err := DecodeTokenMetadata(data)
	if err != nil {
		return nil, metadataAddr, withAddress(err, metadataAddr)
	}
	return md, metadataAddr, nil
}

// LoadState fetches the pool and its validator list and refreshes the exported gauges for it.
func (c *Controller) LoadState(ctx context.Context, poolAddr solana.PublicKey) (*StakePool, *ValidatorList, error) {
	pool, err := c.GetPool(ctx, poolAddr)
	if err != nil {
		return nil, nil, err
	}
	list, err := c.loadList(ctx, pool)
	if err != nil {
		return nil, nil, err
	}
	observe(poolAddr, pool, list)
	c.Logger.Debug("state loaded", "pool", poolAddr.String(), "state", pool.State.String(), "validators", list.Len())
	return pool, list, nil
}

// loadPool treats a missing or uninitialized account as an Uninitialized pool.
func (c *Controller) loadPool(ctx context.Context, poolAddr solana.PublicKey) (*StakePool, error) {
	data, err := c.ledger.GetAccount(ctx, poolAddr)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return &StakePool{State: StateUninitialized}, nil
		}
		return nil, external(err)
	}
	pool, err := DecodeStakePool(data)
	if err != nil {
		if errors.Is(err, ErrUninitializedAccount) {
			return &StakePool{State: StateUninitialized}, nil
		}
		return nil, withAddress(err, poolAddr)
	}
	return pool, nil
}

func (c *Controller) loadList(ctx context.Context, pool *StakePool) (*ValidatorList, error) {
	data, err := c.ledger.GetAccount(ctx, pool.ValidatorList)
	if err != nil {
		return nil, external(err)
	}
	list, err := DecodeValidatorList(data)
	if err != nil {
		return nil, withAddress(err, pool.ValidatorList)
	}
	return list, nil
}

func (c *Controller) loadPoolAndList(ctx context.Context, poolAddr solana.PublicKey, allowed ...PoolState) (*StakePool, *ValidatorList, error) {
	pool, err := c.loadPool(ctx, poolAddr)
	if err != nil {
		return nil, nil, err
	}
	if err := requireState(poolAddr, pool, allowed...); err != nil {
		return nil, nil, err
	}
	list, err := c.loadList(ctx, pool)
	if err != nil {
		return nil, nil, err
	}
	return pool, list, nil
}

// changeList applies fn to a copy of list and submits the result. When fn leaves the list as it
// was, nothing is submitted.
func (c *Controller) changeList(ctx context.Context, op Operation, pool *StakePool, list *ValidatorList,
	params ValidatorParams, signers []solana.PublicKey, fn func(next *ValidatorList) error) error {

	next := list.clone()
	if err := fn(next); err != nil {
		return err
	}
	if slices.Equal(list.Validators, next.Validators) {
		misc.Debugf(c.Logger, "%s for %s on pool %s changed nothing", op, params.Vote, params.Pool)
		return nil
	}
	m := &Mutation{
		Op:        op,
		Pool:      params.Pool,
		PoolState: pool,
		Signers:   signers,
		Request:   &params,
	}
	if idx := next.Find(params.Vote); idx != -1 {
		m.Touched = []TouchedEntry{{Index: idx, Info: next.Validators[idx]}}
	}
	if err := c.writeList(m, pool, next); err != nil {
		return err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return err
	}
	observe(params.Pool, pool, next)
	return nil
}

func (c *Controller) updatePool(ctx context.Context, op Operation, poolAddr solana.PublicKey, before, after *StakePool,
	signers []solana.PublicKey, request any) error {

	m := &Mutation{
		Op:        op,
		Pool:      poolAddr,
		PoolState: before,
		Signers:   signers,
		Request:   request,
	}
	if err := c.writePool(m, poolAddr, after); err != nil {
		return err
	}
	if _, err := c.commit(ctx, m); err != nil {
		return err
	}
	observe(poolAddr, after, nil)
	return nil
}

func (c *Controller) commit(ctx context.Context, m *Mutation) (*Receipt, error) {
	receipt, err := c.ledger.Submit(ctx, m)
	if err != nil {
		misc.Warnf(c.Logger, "%s for pool %s not applied: %v", m.Op, m.Pool, err)
		return nil, external(err)
	}
	misc.Infof(c.Logger, "%s committed for pool %s, receipt:%s", m.Op, m.Pool, receipt)
	return receipt, nil
}

func (c *Controller) writePool(m *Mutation, poolAddr solana.PublicKey, pool *StakePool) error {
	data, err := Encode(pool)
	if err != nil {
		return err
	}
	m.write(poolAddr, c.programID, data)
	return nil
}

func (c *Controller) writeList(m *Mutation, pool *StakePool, list *ValidatorList) error {
	data, err := Encode(list)
	if err != nil {
		return err
	}
	m.write(pool.ValidatorList, c.programID, data)
	return nil
}

// writeMint keeps the mint record's supply in step with the pool.
func (c *Controller) writeMint(m *Mutation, pool *StakePool, withdrawAuthority solana.PublicKey) error {
	data, err := Encode(&Mint{
		MintAuthority: &withdrawAuthority,
		Supply:        pool.PoolTokenSupply,
		Decimals:      PoolDecimals,
		IsInitialized: true,
	})
	if err != nil {
		return err
	}
	m.write(pool.PoolMint, pool.TokenProgramID, data)
	return nil
}

func requireState(poolAddr solana.PublicKey, pool *StakePool, allowed ...PoolState) error {
	if slices.Contains(allowed, pool.State) {
		return nil
	}
	return newError(ErrPoolNotActive).at(poolAddr).because("pool is %s", pool.State)
}

func requireAuthority(role string, expected, actual solana.PublicKey) error {
	if expected == actual {
		return nil
	}
	return newError(ErrWrongAuthority).withField(role).at(actual).because("expected %s", expected)
}

// external passes through errors that already carry a kind and classifies everything else as
// an unavailable ledger.
func external(err error) error {
	var spErr *Error
	if errors.As(err, &spErr) {
		return err
	}
	return Unavailable(err)
}

func withAddress(err error, address solana.PublicKey) error {
	var spErr *Error
	if errors.As(err, &spErr) && spErr.Address.IsZero() {
		spErr.Address = address
	}
	return err
}
