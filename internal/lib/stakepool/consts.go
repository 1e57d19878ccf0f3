package stakepool

import (
	"github.com/gagliardetto/solana-go"
)

var (
	// ProgramID is the stake pool program deployed on mainnet-beta, testnet and devnet.
	ProgramID = solana.MustPublicKeyFromBase58("SPoo1Ku8WFXoNDMHPsrGSTSG1Y47rzgn41SLUNakuHy")
	// MetadataProgramID owns token metadata accounts.
	MetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bcuPKnMC")
)

const (
	// Account discriminants (first byte of the account data)
	AccountTypeUninitialized = 0
	AccountTypeStakePool     = 1
	AccountTypeValidatorList = 2
	MetadataKeyV1            = 4

	// PDA seeds
	WithdrawAuthoritySeed = "withdraw"
	DepositAuthoritySeed  = "deposit"
	TransientStakeSeed    = "transient"
	MetadataSeed          = "metadata"

	// Token metadata fixed widths and offsets
	MaxNameLength        = 32
	MaxSymbolLength      = 10
	MaxURILength         = 200
	MetadataNameOffset   = 69
	MetadataSymbolOffset = 105
	MetadataURIOffset    = 119
	// through seller fee basis points
	MetadataMinSize = MetadataURIOffset + MaxURILength + 2
	// plus the empty option / flag tail we always write
	MetadataSize = MetadataMinSize + 7

	ValidatorListHeaderSize = 1 + 4 + 4
	ValidatorStakeInfoSize  = 73
	// StakePoolMaxSize is the allocation size with every optional field present.
	StakePoolMaxSize = 611
	MintSize         = 82
	TokenAccountSize = 165
	StakeAccountSize = 200

	MaxReferralFee = 100
	PoolDecimals   = 9

	LamportsPerSol = 1_000_000_000
)

// ValidatorListSize returns the account size needed for a list holding capacity validators.
func ValidatorListSize(capacity uint32) uint64 {
	return ValidatorListHeaderSize + uint64(capacity)*ValidatorStakeInfoSize
}
