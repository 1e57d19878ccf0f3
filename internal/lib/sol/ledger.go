package sol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/ssgreg/repeat"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

// RPCLedger applies mutations by sending stake pool program instructions to a cluster. Reads
// come straight from the node; the account writes a Mutation carries are ignored since the
// program computes the same state itself.
type RPCLedger struct {
	log       *slog.Logger
	client    *rpc.Client
	signer    MultipleWalletSigner
	programID solana.PublicKey

	// Payer pays transaction fees and funds new accounts. When zero the first required signer pays.
	Payer solana.PublicKey
	// Commitment used for reads.
	Commitment rpc.CommitmentType

	rentMu sync.Mutex
	rent   map[uint64]uint64
}

func NewRPCLedger(log *slog.Logger, client *rpc.Client, signer MultipleWalletSigner, programID, payer solana.PublicKey) *RPCLedger {
	return &RPCLedger{
		log:        log,
		client:     client,
		signer:     signer,
		programID:  programID,
		Payer:      payer,
		Commitment: rpc.CommitmentConfirmed,
		rent:       map[uint64]uint64{},
	}
}

func (l *RPCLedger) GetAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	var data []byte
	err := l.retry(ctx, "getAccountInfo", func() error {
		resp, err := l.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
			Encoding:   solana.EncodingBase64,
			Commitment: l.Commitment,
		})
		if errors.Is(err, rpc.ErrNotFound) {
			return stakepool.NotFound(address)
		}
		if err != nil {
			return repeat.HintTemporary(err)
		}
		if resp == nil || resp.Value == nil || resp.Value.Data == nil {
			return stakepool.NotFound(address)
		}
		data = resp.Value.Data.GetBinary()
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

// Submit builds the transactions for m, signs them with the wallet and waits for each to
// confirm before sending the next.
func (l *RPCLedger) Submit(ctx context.Context, m *stakepool.Mutation) (*stakepool.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, stakepool.Unavailable(err)
	}
	if missing := MissingSigners(l.signer, m.Signers); len(missing) > 0 {
		return nil, stakepool.Rejected("no key available for signer %s", missing[0])
	}
	payer := l.Payer
	if payer.IsZero() {
		if len(m.Signers) == 0 {
			return nil, stakepool.Rejected("%s needs a fee payer", m.Op)
		}
		payer = m.Signers[0]
	}
	for _, addr := range m.NewAccounts {
		if _, err := l.GetAccount(ctx, addr); err == nil {
			return nil, stakepool.Rejected("account %s already exists", addr)
		} else if !errors.Is(err, stakepool.ErrAccountNotFound) {
			return nil, err
		}
	}

	batches, err := l.buildTransactions(ctx, m, payer)
	if err != nil {
		return nil, err
	}
	receipt := &stakepool.Receipt{}
	for i, instructions := range batches {
		sig, err := l.send(ctx, payer, instructions)
		if err != nil {
			if i > 0 {
				misc.Warnf(l.log, "%s failed after %d of %d transactions confirmed: %v", m.Op, i, len(batches), err)
			}
			return nil, err
		}
		receipt.Signatures = append(receipt.Signatures, sig.String())
	}
	return receipt, nil
}

func (l *RPCLedger) buildTransactions(ctx context.Context, m *stakepool.Mutation, payer solana.PublicKey) ([][]solana.Instruction, error) {
	if m.Op == stakepool.OpCreatePool {
		params, ok := m.Request.(*stakepool.CreateParams)
		if !ok {
			return nil, stakepool.Rejected("%s without create parameters", m.Op)
		}
		return l.createPoolTransactions(ctx, m, params, payer)
	}
	if m.PoolState == nil {
		return nil, stakepool.Rejected("%s without pool state", m.Op)
	}
	keys, err := NewPoolKeys(l.programID, m.Pool, m.PoolState)
	if err != nil {
		return nil, err
	}
	single := func(ix solana.Instruction, err error) ([][]solana.Instruction, error) {
		if err != nil {
			return nil, err
		}
		return [][]solana.Instruction{{ix}}, nil
	}

	switch m.Op {
	case stakepool.OpCreateMetadata, stakepool.OpUpdateMetadata:
		params, ok := m.Request.(*stakepool.MetadataParams)
		if !ok {
			return nil, stakepool.Rejected("%s without metadata parameters", m.Op)
		}
		if m.Op == stakepool.OpCreateMetadata {
			return single(CreateTokenMetadataInstruction(keys, payer, params.Metadata, params.Name, params.Symbol, params.URI))
		}
		return single(UpdateTokenMetadataInstruction(keys, params.Metadata, params.Name, params.Symbol, params.URI))

	case stakepool.OpAddValidator, stakepool.OpBeginRemoveValidator, stakepool.OpFinalizeRemoveValidator, stakepool.OpRefreshValidator:
		if len(m.Touched) != 1 {
			return nil, stakepool.Rejected("%s must touch exactly one validator, got %d", m.Op, len(m.Touched))
		}
		entry := m.Touched[0]
		switch m.Op {
		case stakepool.OpAddValidator:
			return single(AddValidatorInstruction(keys, entry.Info))
		case stakepool.OpBeginRemoveValidator:
			return single(RemoveValidatorInstruction(keys, entry.Info))
		}
		return single(UpdateValidatorListBalanceInstruction(keys, uint32(entry.Index), false, []stakepool.ValidatorStakeInfo{entry.Info}))

	case stakepool.OpCleanupValidators:
		return single(CleanupRemovedValidatorsInstruction(keys))

	case stakepool.OpSetFee:
		params, ok := m.Request.(*stakepool.FeeParams)
		if !ok {
			return nil, stakepool.Rejected("%s without fee parameters", m.Op)
		}
		return single(SetFeeInstruction(keys, params.Type, params.Fee, params.Referral))

	case stakepool.OpSetManager, stakepool.OpSetStaker:
		params, ok := m.Request.(*stakepool.AuthorityParams)
		if !ok {
			return nil, stakepool.Rejected("%s without authority parameters", m.Op)
		}
		if m.Op == stakepool.OpSetManager {
			return single(SetManagerInstruction(keys, params.New, params.NewFeeAccount))
		}
		return single(SetStakerInstruction(keys, params.Authority, params.New))

	case stakepool.OpDepositSol:
		params, ok := m.Request.(*stakepool.DepositParams)
		if !ok {
			return nil, stakepool.Rejected("%s without deposit parameters", m.Op)
		}
		return single(DepositSolInstruction(keys, params.Funding, params.Destination, params.Referrer, params.Lamports))

	case stakepool.OpWithdrawSol:
		params, ok := m.Request.(*stakepool.WithdrawParams)
		if !ok {
			return nil, stakepool.Rejected("%s without withdraw parameters", m.Op)
		}
		return single(WithdrawSolInstruction(keys, params.Authority, params.Source, params.Recipient, params.PoolTokens))

	case stakepool.OpUpdatePoolBalance:
		return l.balanceTransactions(ctx, keys)
	}
	return nil, stakepool.Rejected("%s has no on-chain instruction", m.Op)
}

// createPoolTransactions funds and initializes the reserve, mint and fee accounts first, then
// allocates the pool and list and initializes the pool in a second transaction.
func (l *RPCLedger) createPoolTransactions(ctx context.Context, m *stakepool.Mutation, params *stakepool.CreateParams, payer solana.PublicKey) ([][]solana.Instruction, error) {
	keys, err := NewPoolKeys(l.programID, params.Pool, m.PoolState)
	if err != nil {
		return nil, err
	}
	stakeRent, err := l.rentExempt(ctx, stakepool.StakeAccountSize)
	if err != nil {
		return nil, err
	}
	mintRent, err := l.rentExempt(ctx, stakepool.MintSize)
	if err != nil {
		return nil, err
	}
	tokenRent, err := l.rentExempt(ctx, stakepool.TokenAccountSize)
	if err != nil {
		return nil, err
	}
	listSize := stakepool.ValidatorListSize(params.Capacity)
	listRent, err := l.rentExempt(ctx, listSize)
	if err != nil {
		return nil, err
	}
	poolRent, err := l.rentExempt(ctx, stakepool.StakePoolMaxSize)
	if err != nil {
		return nil, err
	}

	var setup []solana.Instruction
	add := func(ix solana.Instruction, err error) error {
		if err != nil {
			return err
		}
		setup = append(setup, ix)
		return nil
	}
	if !l.exists(ctx, params.Reserve) {
		// the reserve holds one lamport over rent so it is never empty
		setup = append(setup, CreateAccountInstruction(payer, params.Reserve, solana.StakeProgramID, stakeRent+1, stakepool.StakeAccountSize))
		if err := add(InitializeStakeInstruction(params.Reserve, keys.WithdrawAuthority, keys.WithdrawAuthority, stakepool.Lockup{})); err != nil {
			return nil, err
		}
	}
	setup = append(setup, CreateAccountInstruction(payer, params.Mint, solana.TokenProgramID, mintRent, stakepool.MintSize))
	if err := add(InitializeMintInstruction(params.Mint, keys.WithdrawAuthority, stakepool.PoolDecimals)); err != nil {
		return nil, err
	}
	if !l.exists(ctx, params.ManagerFeeAccount) {
		setup = append(setup, CreateAccountInstruction(payer, params.ManagerFeeAccount, solana.TokenProgramID, tokenRent, stakepool.TokenAccountSize))
		if err := add(InitializeTokenAccountInstruction(params.ManagerFeeAccount, params.Mint, params.Manager)); err != nil {
			return nil, err
		}
	}

	initialize, err := InitializeInstruction(keys, params.Capacity)
	if err != nil {
		return nil, err
	}
	create := []solana.Instruction{
		CreateAccountInstruction(payer, params.ValidatorList, l.programID, listRent, listSize),
		CreateAccountInstruction(payer, params.Pool, l.programID, poolRent, stakepool.StakePoolMaxSize),
		initialize,
	}
	return [][]solana.Instruction{setup, create}, nil
}

// balanceTransactions refreshes every list entry in chunks, then updates the pool totals and
// drops entries that finished removal.
func (l *RPCLedger) balanceTransactions(ctx context.Context, keys PoolKeys) ([][]solana.Instruction, error) {
	data, err := l.GetAccount(ctx, keys.State.ValidatorList)
	if err != nil {
		return nil, err
	}
	list, err := stakepool.DecodeValidatorList(data)
	if err != nil {
		return nil, err
	}
	var batches [][]solana.Instruction
	for start := 0; start < len(list.Validators); start += MaxValidatorsPerUpdate {
		end := min(start+MaxValidatorsPerUpdate, len(list.Validators))
		ix, err := UpdateValidatorListBalanceInstruction(keys, uint32(start), false, list.Validators[start:end])
		if err != nil {
			return nil, err
		}
		batches = append(batches, []solana.Instruction{ix})
	}
	update, err := UpdateStakePoolBalanceInstruction(keys)
	if err != nil {
		return nil, err
	}
	cleanup, err := CleanupRemovedValidatorsInstruction(keys)
	if err != nil {
		return nil, err
	}
	return append(batches, []solana.Instruction{update, cleanup}), nil
}

func (l *RPCLedger) send(ctx context.Context, payer solana.PublicKey, instructions []solana.Instruction) (solana.Signature, error) {
	hash, err := LatestBlockhash(ctx, l.log, l.client)
	if err != nil {
		return solana.Signature{}, stakepool.Unavailable(err)
	}
	tx, err := solana.NewTransaction(instructions, hash, solana.TransactionPayer(payer))
	if err != nil {
		return solana.Signature{}, stakepool.Rejected("building transaction: %v", err)
	}
	if err := SignTransaction(ctx, l.signer, tx); err != nil {
		return solana.Signature{}, stakepool.Rejected("%v", err)
	}
	sig, err := l.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			return solana.Signature{}, stakepool.Rejected("%s", rpcErr.Message)
		}
		return solana.Signature{}, stakepool.Unavailable(err)
	}
	misc.Infof(l.log, "sent transaction %s", sig)
	if err := l.confirm(ctx, sig); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

// confirm polls the signature until it reaches confirmed commitment or fails.
func (l *RPCLedger) confirm(ctx context.Context, sig solana.Signature) error {
	err := repeat.Repeat(
		repeat.Fn(func() error {
			resp, err := l.client.GetSignatureStatuses(ctx, false, sig)
			if err != nil {
				return repeat.HintTemporary(err)
			}
			if resp == nil || len(resp.Value) == 0 || resp.Value[0] == nil {
				return repeat.HintTemporary(fmt.Errorf("signature %s not yet seen", sig))
			}
			status := resp.Value[0]
			if status.Err != nil {
				return stakepool.Rejected("transaction %s failed: %v", sig, status.Err)
			}
			switch status.ConfirmationStatus {
			case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
				return nil
			}
			return repeat.HintTemporary(fmt.Errorf("signature %s is %s", sig, status.ConfirmationStatus))
		}),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(60),
		repeat.WithDelay(
			repeat.SetContext(ctx),
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 500 * time.Millisecond,
				MaxDelay:  2 * time.Second,
			}).Set(),
		),
	)
	if err != nil {
		return classify(err)
	}
	misc.Debugf(l.log, "transaction %s confirmed", sig)
	return nil
}

func (l *RPCLedger) exists(ctx context.Context, address solana.PublicKey) bool {
	_, err := l.GetAccount(ctx, address)
	return err == nil
}

func (l *RPCLedger) rentExempt(ctx context.Context, size uint64) (uint64, error) {
	l.rentMu.Lock()
	defer l.rentMu.Unlock()
	if lamports, found := l.rent[size]; found {
		return lamports, nil
	}
	lamports, err := RentExempt(ctx, l.client, size)
	if err != nil {
		return 0, stakepool.Unavailable(err)
	}
	l.rent[size] = lamports
	return lamports, nil
}

func (l *RPCLedger) retry(ctx context.Context, what string, fn func() error) error {
	return repeat.Repeat(
		repeat.Fn(fn),
		repeat.StopOnSuccess(),
		repeat.LimitMaxTries(5),
		repeat.FnOnError(func(err error) error {
			misc.Debugf(l.log, "retrying %s, error:%v", what, err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContext(ctx),
			repeat.SetContextHintStop(),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: 250 * time.Millisecond,
				MaxDelay:  2 * time.Second,
			}).Set(),
		),
	)
}

// classify keeps engine errors as they are and reports anything else as an unreachable ledger.
func classify(err error) error {
	if stakepool.KindOf(err) != stakepool.KindUnknown {
		return err
	}
	return stakepool.Unavailable(err)
}
