package stakepool

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// PoolState is the lifecycle of a pool as tracked by the manager.
type PoolState uint8

const (
	StateUninitialized PoolState = iota
	StateActive
	StateDecommissioning
	StateClosed
)

func (s PoolState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateActive:
		return "Active"
	case StateDecommissioning:
		return "Decommissioning"
	case StateClosed:
		return "Closed"
	}
	return fmt.Sprintf("PoolState(%d)", uint8(s))
}

// Lockup mirrors the stake account lockup the pool applies to its stake accounts.
type Lockup struct {
	UnixTimestamp int64
	Epoch         uint64
	Custodian     solana.PublicKey
}

// FutureFee is a fee change waiting for epoch boundaries. Epochs counts the remaining
// boundaries, 0 meaning nothing is staged.
type FutureFee struct {
	Epochs uint8
	Fee    Fee
}

func (f FutureFee) IsSet() bool {
	return f.Epochs != 0
}

// advance moves the staged fee one epoch closer, returning the fee that takes effect now (if any).
func (f *FutureFee) advance() (Fee, bool) {
	switch f.Epochs {
	case 1:
		fee := f.Fee
		*f = FutureFee{}
		return fee, true
	case 2:
		f.Epochs = 1
	}
	return Fee{}, false
}

// StakePool is the top level pool account.
type StakePool struct {
	Manager               solana.PublicKey
	Staker                solana.PublicKey
	StakeDepositAuthority solana.PublicKey
	StakeWithdrawBumpSeed uint8
	ValidatorList         solana.PublicKey
	ReserveStake          solana.PublicKey
	PoolMint              solana.PublicKey
	ManagerFeeAccount     solana.PublicKey
	TokenProgramID        solana.PublicKey

	TotalLamports   uint64
	PoolTokenSupply uint64
	LastUpdateEpoch uint64
	Lockup          Lockup

	EpochFee     Fee
	NextEpochFee FutureFee

	PreferredDepositValidator  *solana.PublicKey
	PreferredWithdrawValidator *solana.PublicKey

	StakeDepositFee        Fee
	StakeWithdrawalFee     Fee
	NextStakeWithdrawalFee FutureFee
	StakeReferralFee       uint8

	SolDepositAuthority  *solana.PublicKey
	SolDepositFee        Fee
	SolReferralFee       uint8
	SolWithdrawAuthority *solana.PublicKey
	SolWithdrawalFee     Fee
	NextSolWithdrawalFee FutureFee

	LastEpochPoolTokenSupply uint64
	LastEpochTotalLamports   uint64

	// State is the manager lifecycle, stored in a trailing byte after the program fields.
	State PoolState
}

func (p *StakePool) IsActive() bool {
	return p.State == StateActive
}

func (p *StakePool) String() string {
	var out strings.Builder

	out.WriteString(fmt.Sprintf("State: %s\n", p.State))
	out.WriteString(fmt.Sprintf("Manager: %s\n", p.Manager))
	out.WriteString(fmt.Sprintf("Staker: %s\n", p.Staker))
	out.WriteString(fmt.Sprintf("Validator List: %s\n", p.ValidatorList))
	out.WriteString(fmt.Sprintf("Reserve Stake: %s\n", p.ReserveStake))
	out.WriteString(fmt.Sprintf("Pool Mint: %s\n", p.PoolMint))
	out.WriteString(fmt.Sprintf("Manager Fee Account: %s\n", p.ManagerFeeAccount))
	out.WriteString(fmt.Sprintf("Total Lamports: %d\n", p.TotalLamports))
	out.WriteString(fmt.Sprintf("Pool Token Supply: %d\n", p.PoolTokenSupply))
	out.WriteString(fmt.Sprintf("Last Update Epoch: %d\n", p.LastUpdateEpoch))
	out.WriteString(fmt.Sprintf("Epoch Fee: %s\n", p.EpochFee))
	if p.NextEpochFee.IsSet() {
		out.WriteString(fmt.Sprintf("Next Epoch Fee: %s (in %d epochs)\n", p.NextEpochFee.Fee, p.NextEpochFee.Epochs))
	}
	out.WriteString(fmt.Sprintf("SOL Deposit Fee: %s\n", p.SolDepositFee))
	out.WriteString(fmt.Sprintf("SOL Withdrawal Fee: %s\n", p.SolWithdrawalFee))
	out.WriteString(fmt.Sprintf("SOL Referral Fee: %d%%\n", p.SolReferralFee))
	out.WriteString(fmt.Sprintf("Stake Deposit Fee: %s\n", p.StakeDepositFee))
	out.WriteString(fmt.Sprintf("Stake Withdrawal Fee: %s\n", p.StakeWithdrawalFee))
	out.WriteString(fmt.Sprintf("Stake Referral Fee: %d%%\n", p.StakeReferralFee))

	return out.String()
}

// StakeStatus of a validator list entry. Transitions only move forward.
type StakeStatus uint8

const (
	StatusActive StakeStatus = iota
	StatusDeactivatingTransient
	StatusReadyForRemoval

	// written by the on-chain program while a removal is under way
	statusDeactivatingValidator
	statusDeactivatingAll
)

func (s StakeStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusDeactivatingTransient:
		return "DeactivatingTransient"
	case StatusReadyForRemoval:
		return "ReadyForRemoval"
	}
	return fmt.Sprintf("StakeStatus(%d)", uint8(s))
}

// ValidatorStakeInfo is one 73 byte validator list record.
type ValidatorStakeInfo struct {
	ActiveStakeLamports    uint64
	TransientStakeLamports uint64
	LastUpdateEpoch        uint64
	TransientSeedSuffix    uint64
	Unused                 uint32
	ValidatorSeedSuffix    uint32
	Status                 StakeStatus
	VoteAccount            solana.PublicKey
}

func (v ValidatorStakeInfo) TotalLamports() uint64 {
	return v.ActiveStakeLamports + v.TransientStakeLamports
}

// TokenMetadata is the metadata record attached to a pool mint.
type TokenMetadata struct {
	UpdateAuthority      solana.PublicKey
	Mint                 solana.PublicKey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
}

// Mint is the token mint record for pool tokens.
type Mint struct {
	MintAuthority   *solana.PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *solana.PublicKey
}
