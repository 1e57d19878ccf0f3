package stakepool

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Ledger is the external account store the controller drives. GetAccount returns an error
// matching ErrAccountNotFound for missing accounts. Submit applies a Mutation atomically or
// returns an error matching ErrLedgerRejected / ErrLedgerUnavailable with nothing applied.
type Ledger interface {
	GetAccount(ctx context.Context, address solana.PublicKey) ([]byte, error)
	Submit(ctx context.Context, m *Mutation) (*Receipt, error)
}

type Operation int

const (
	OpCreatePool Operation = iota + 1
	OpCreateMetadata
	OpUpdateMetadata
	OpAddValidator
	OpBeginRemoveValidator
	OpFinalizeRemoveValidator
	OpRefreshValidator
	OpCleanupValidators
	OpSetFee
	OpSetManager
	OpSetStaker
	OpDepositSol
	OpWithdrawSol
	OpUpdatePoolBalance
	OpBeginDecommission
	OpDecommission
)

var opNames = map[Operation]string{
	OpCreatePool:              "create-pool",
	OpCreateMetadata:          "create-metadata",
	OpUpdateMetadata:          "update-metadata",
	OpAddValidator:            "add-validator",
	OpBeginRemoveValidator:    "begin-remove-validator",
	OpFinalizeRemoveValidator: "finalize-remove-validator",
	OpRefreshValidator:        "refresh-validator",
	OpCleanupValidators:       "cleanup-validators",
	OpSetFee:                  "set-fee",
	OpSetManager:              "set-manager",
	OpSetStaker:               "set-staker",
	OpDepositSol:              "deposit-sol",
	OpWithdrawSol:             "withdraw-sol",
	OpUpdatePoolBalance:       "update-pool-balance",
	OpBeginDecommission:       "begin-decommission",
	OpDecommission:            "decommission",
}

func (o Operation) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// AccountWrite is the full new content of one account.
type AccountWrite struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
}

// TouchedEntry is a validator list entry changed by a mutation, with its list index.
type TouchedEntry struct {
	Index int
	Info  ValidatorStakeInfo
}

// Mutation is everything a ledger needs to apply one logical operation. Ledgers that store
// raw bytes apply Writes; ledgers that speak to the on-chain program build instructions from
// Op, Request, Pool and Touched.
type Mutation struct {
	Op   Operation
	Pool solana.PublicKey
	// PoolState is the pool as read before the change (or the new pool for OpCreatePool).
	PoolState *StakePool
	// Signers must authorize the mutation.
	Signers []solana.PublicKey
	// NewAccounts must not exist before the mutation is applied.
	NewAccounts []solana.PublicKey
	Writes      []AccountWrite
	Touched     []TouchedEntry
	Request     any
}

func (m *Mutation) write(address, owner solana.PublicKey, data []byte) {
	m.Writes = append(m.Writes, AccountWrite{Address: address, Owner: owner, Data: data})
}

// Receipt identifies a committed mutation on its ledger.
type Receipt struct {
	Signatures []string
}

func (r *Receipt) String() string {
	if r == nil || len(r.Signatures) == 0 {
		return "(none)"
	}
	return fmt.Sprint(r.Signatures)
}

// CreateParams describes a brand new pool. Account addresses are chosen by the caller, who also
// holds their keys when the ledger needs them to sign.
type CreateParams struct {
	Pool              solana.PublicKey
	ValidatorList     solana.PublicKey
	Mint              solana.PublicKey
	Reserve           solana.PublicKey
	ManagerFeeAccount solana.PublicKey
	Manager           solana.PublicKey
	Staker            solana.PublicKey

	Fee           Fee
	WithdrawalFee Fee
	DepositFee    Fee
	ReferralFee   uint8
	Capacity      uint32
	Epoch         uint64
}

type MetadataParams struct {
	Pool    solana.PublicKey
	Manager solana.PublicKey
	Name    string
	Symbol  string
	URI     string
	// Metadata is the derived metadata account, filled in by the controller.
	Metadata solana.PublicKey
}

type ValidatorParams struct {
	Pool      solana.PublicKey
	Staker    solana.PublicKey
	Vote      solana.PublicKey
	Lamports  uint64
	Transient uint64
	Epoch     uint64
}

type FeeType uint8

// Values match the on-chain fee type tags.
const (
	FeeSolReferral FeeType = iota
	FeeStakeReferral
	FeeEpoch
	FeeStakeWithdrawal
	FeeSolDeposit
	FeeStakeDeposit
	FeeSolWithdrawal
)

var feeTypeNames = map[FeeType]string{
	FeeSolReferral:     "sol-referral",
	FeeStakeReferral:   "stake-referral",
	FeeEpoch:           "epoch",
	FeeStakeWithdrawal: "stake-withdrawal",
	FeeSolDeposit:      "sol-deposit",
	FeeStakeDeposit:    "stake-deposit",
	FeeSolWithdrawal:   "sol-withdrawal",
}

func (f FeeType) String() string {
	if name, ok := feeTypeNames[f]; ok {
		return name
	}
	return fmt.Sprintf("fee-type(%d)", uint8(f))
}

func (f FeeType) IsReferral() bool {
	return f == FeeSolReferral || f == FeeStakeReferral
}

// ParseFeeType maps the names used on the command line to a FeeType.
func ParseFeeType(name string) (FeeType, error) {
	for feeType, feeName := range feeTypeNames {
		if feeName == name {
			return feeType, nil
		}
	}
	return 0, fmt.Errorf("unknown fee type:%s", name)
}

type FeeParams struct {
	Pool     solana.PublicKey
	Manager  solana.PublicKey
	Type     FeeType
	Fee      Fee
	Referral uint8
}

type AuthorityParams struct {
	Pool      solana.PublicKey
	Authority solana.PublicKey
	New       solana.PublicKey
	// NewFeeAccount is only used when changing the manager.
	NewFeeAccount solana.PublicKey
}

type DepositParams struct {
	Pool        solana.PublicKey
	Funding     solana.PublicKey
	Destination solana.PublicKey
	Referrer    solana.PublicKey
	Lamports    uint64
}

type DepositResult struct {
	PoolTokens  uint64
	ManagerFee  uint64
	ReferralFee uint64
}

type WithdrawParams struct {
	Pool       solana.PublicKey
	Authority  solana.PublicKey
	Source     solana.PublicKey
	Recipient  solana.PublicKey
	PoolTokens uint64
}

type WithdrawResult struct {
	Lamports   uint64
	ManagerFee uint64
}

type BalanceParams struct {
	Pool            solana.PublicKey
	Epoch           uint64
	ReserveLamports uint64
}

type BalanceResult struct {
	TotalLamports uint64
	Reward        uint64
	FeeTokens     uint64
}

type DecommissionParams struct {
	Pool    solana.PublicKey
	Manager solana.PublicKey
}

// Observer reports what the ledger currently holds for pool stake accounts. The epoch refresh
// feeds these readings back into the validator list and pool balance.
type Observer interface {
	CurrentEpoch(ctx context.Context) (uint64, error)
	ObserveValidatorStake(ctx context.Context, poolAddr solana.PublicKey, info ValidatorStakeInfo) (active, transient uint64, err error)
	ReserveBalance(ctx context.Context, poolAddr solana.PublicKey, pool *StakePool) (uint64, error)
}
