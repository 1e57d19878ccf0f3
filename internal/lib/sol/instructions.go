package sol

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"

	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

// stake pool program instruction tags
const (
	ixInitialize                 uint8 = 0
	ixAddValidatorToPool         uint8 = 1
	ixRemoveValidatorFromPool    uint8 = 2
	ixUpdateValidatorListBalance uint8 = 6
	ixUpdateStakePoolBalance     uint8 = 7
	ixCleanupRemovedValidators   uint8 = 8
	ixSetManager                 uint8 = 11
	ixSetFee                     uint8 = 12
	ixSetStaker                  uint8 = 13
	ixDepositSol                 uint8 = 14
	ixWithdrawSol                uint8 = 16
	ixCreateTokenMetadata        uint8 = 17
	ixUpdateTokenMetadata        uint8 = 18
)

// token and stake program tags used while creating a pool
const (
	tokenInitializeAccount3 uint8  = 18
	tokenInitializeMint2    uint8  = 20
	stakeInitialize         uint32 = 0
)

// MaxValidatorsPerUpdate bounds how many (stake, transient) pairs one UpdateValidatorListBalance
// instruction carries so the transaction stays under the packet size.
const MaxValidatorsPerUpdate = 5

var StakeConfigID = solana.MustPublicKeyFromBase58("StakeConfig11111111111111111111111111111111")

// ixData accumulates little-endian instruction data, keeping the first error.
type ixData struct {
	buf bytes.Buffer
	enc *bin.Encoder
	err error
}

func newIxData(tag uint8) *ixData {
	d := &ixData{}
	d.enc = bin.NewBorshEncoder(&d.buf)
	d.u8(tag)
	return d
}

func (d *ixData) do(fn func() error) {
	if d.err == nil {
		d.err = fn()
	}
}

func (d *ixData) u8(v uint8)   { d.do(func() error { return d.enc.WriteUint8(v) }) }
func (d *ixData) u32(v uint32) { d.do(func() error { return d.enc.WriteUint32(v, bin.LE) }) }
func (d *ixData) u64(v uint64) { d.do(func() error { return d.enc.WriteUint64(v, bin.LE) }) }
func (d *ixData) i64(v int64)  { d.do(func() error { return d.enc.WriteInt64(v, bin.LE) }) }
func (d *ixData) boolean(v bool) {
	d.do(func() error { return d.enc.WriteBool(v) })
}
func (d *ixData) key(k solana.PublicKey) {
	d.do(func() error { return d.enc.WriteBytes(k[:], false) })
}
func (d *ixData) str(s string) { d.do(func() error { return d.enc.WriteString(s) }) }

func (d *ixData) fee(f stakepool.Fee) {
	d.u64(f.Denominator)
	d.u64(f.Numerator)
}

func (d *ixData) instruction(programID solana.PublicKey, accounts ...*solana.AccountMeta) (solana.Instruction, error) {
	if d.err != nil {
		return nil, d.err
	}
	return solana.NewInstruction(programID, accounts, d.buf.Bytes()), nil
}

func readOnly(pk solana.PublicKey) *solana.AccountMeta       { return solana.Meta(pk) }
func writable(pk solana.PublicKey) *solana.AccountMeta       { return solana.Meta(pk).WRITE() }
func signerMeta(pk solana.PublicKey) *solana.AccountMeta     { return solana.Meta(pk).SIGNER() }
func writableSigner(pk solana.PublicKey) *solana.AccountMeta { return solana.Meta(pk).WRITE().SIGNER() }

// PoolKeys are the addresses most pool instructions need.
type PoolKeys struct {
	ProgramID         solana.PublicKey
	Pool              solana.PublicKey
	WithdrawAuthority solana.PublicKey
	State             *stakepool.StakePool
}

func NewPoolKeys(programID, pool solana.PublicKey, state *stakepool.StakePool) (PoolKeys, error) {
	withdrawAuthority, _, err := stakepool.FindWithdrawAuthority(programID, pool)
	if err != nil {
		return PoolKeys{}, err
	}
	return PoolKeys{ProgramID: programID, Pool: pool, WithdrawAuthority: withdrawAuthority, State: state}, nil
}

func (k PoolKeys) validatorStake(info stakepool.ValidatorStakeInfo) (solana.PublicKey, error) {
	addr, _, err := stakepool.FindValidatorStakeAddress(k.ProgramID, info.VoteAccount, k.Pool, info.ValidatorSeedSuffix)
	return addr, err
}

func (k PoolKeys) transientStake(info stakepool.ValidatorStakeInfo) (solana.PublicKey, error) {
	addr, _, err := stakepool.FindTransientStakeAddress(k.ProgramID, info.VoteAccount, k.Pool, info.TransientSeedSuffix)
	return addr, err
}

func InitializeInstruction(k PoolKeys, maxValidators uint32) (solana.Instruction, error) {
	p := k.State
	d := newIxData(ixInitialize)
	d.fee(p.EpochFee)
	d.fee(p.SolWithdrawalFee)
	d.fee(p.SolDepositFee)
	d.u8(p.SolReferralFee)
	d.u32(maxValidators)
	return d.instruction(k.ProgramID,
		writable(k.Pool),
		signerMeta(p.Manager),
		readOnly(p.Staker),
		readOnly(k.WithdrawAuthority),
		writable(p.ValidatorList),
		readOnly(p.ReserveStake),
		writable(p.PoolMint),
		writable(p.ManagerFeeAccount),
		readOnly(p.TokenProgramID),
	)
}

func AddValidatorInstruction(k PoolKeys, info stakepool.ValidatorStakeInfo) (solana.Instruction, error) {
	stake, err := k.validatorStake(info)
	if err != nil {
		return nil, err
	}
	d := newIxData(ixAddValidatorToPool)
	d.u32(info.ValidatorSeedSuffix)
	return d.instruction(k.ProgramID,
		writable(k.Pool),
		signerMeta(k.State.Staker),
		writable(k.State.ReserveStake),
		readOnly(k.WithdrawAuthority),
		writable(k.State.ValidatorList),
		writable(stake),
		readOnly(info.VoteAccount),
		readOnly(solana.SysVarRentPubkey),
		readOnly(solana.SysVarClockPubkey),
		readOnly(solana.SysVarStakeHistoryPubkey),
		readOnly(StakeConfigID),
		readOnly(solana.SystemProgramID),
		readOnly(solana.StakeProgramID),
	)
}

func RemoveValidatorInstruction(k PoolKeys, info stakepool.ValidatorStakeInfo) (solana.Instruction, error) {
	stake, err := k.validatorStake(info)
	if err != nil {
		return nil, err
	}
	transient, err := k.transientStake(info)
	if err != nil {
		return nil, err
	}
	return newIxData(ixRemoveValidatorFromPool).instruction(k.ProgramID,
		writable(k.Pool),
		signerMeta(k.State.Staker),
		readOnly(k.WithdrawAuthority),
		writable(k.State.ValidatorList),
		writable(stake),
		writable(transient),
		readOnly(solana.SysVarClockPubkey),
		readOnly(solana.StakeProgramID),
	)
}

// UpdateValidatorListBalanceInstruction refreshes entries starting at startIndex; validators must
// be the list entries from that index on.
func UpdateValidatorListBalanceInstruction(k PoolKeys, startIndex uint32, noMerge bool, validators []stakepool.ValidatorStakeInfo) (solana.Instruction, error) {
	accounts := []*solana.AccountMeta{
		readOnly(k.Pool),
		readOnly(k.WithdrawAuthority),
		writable(k.State.ValidatorList),
		writable(k.State.ReserveStake),
		readOnly(solana.SysVarClockPubkey),
		readOnly(solana.SysVarStakeHistoryPubkey),
		readOnly(solana.StakeProgramID),
	}
	for _, info := range validators {
		stake, err := k.validatorStake(info)
		if err != nil {
			return nil, err
		}
		transient, err := k.transientStake(info)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, writable(stake), writable(transient))
	}
	d := newIxData(ixUpdateValidatorListBalance)
	d.u32(startIndex)
	d.boolean(noMerge)
	return d.instruction(k.ProgramID, accounts...)
}

func UpdateStakePoolBalanceInstruction(k PoolKeys) (solana.Instruction, error) {
	return newIxData(ixUpdateStakePoolBalance).instruction(k.ProgramID,
		writable(k.Pool),
		readOnly(k.WithdrawAuthority),
		writable(k.State.ValidatorList),
		readOnly(k.State.ReserveStake),
		writable(k.State.ManagerFeeAccount),
		writable(k.State.PoolMint),
		readOnly(k.State.TokenProgramID),
	)
}

func CleanupRemovedValidatorsInstruction(k PoolKeys) (solana.Instruction, error) {
	return newIxData(ixCleanupRemovedValidators).instruction(k.ProgramID,
		readOnly(k.Pool),
		writable(k.State.ValidatorList),
	)
}

func SetManagerInstruction(k PoolKeys, newManager, newFeeAccount solana.PublicKey) (solana.Instruction, error) {
	return newIxData(ixSetManager).instruction(k.ProgramID,
		writable(k.Pool),
		signerMeta(k.State.Manager),
		signerMeta(newManager),
		readOnly(newFeeAccount),
	)
}

func SetFeeInstruction(k PoolKeys, feeType stakepool.FeeType, fee stakepool.Fee, referral uint8) (solana.Instruction, error) {
	d := newIxData(ixSetFee)
	d.u8(uint8(feeType))
	if feeType.IsReferral() {
		d.u8(referral)
	} else {
		d.fee(fee)
	}
	return d.instruction(k.ProgramID,
		writable(k.Pool),
		signerMeta(k.State.Manager),
	)
}

func SetStakerInstruction(k PoolKeys, signer, newStaker solana.PublicKey) (solana.Instruction, error) {
	return newIxData(ixSetStaker).instruction(k.ProgramID,
		writable(k.Pool),
		signerMeta(signer),
		readOnly(newStaker),
	)
}

func DepositSolInstruction(k PoolKeys, funding, destination, referrer solana.PublicKey, lamports uint64) (solana.Instruction, error) {
	d := newIxData(ixDepositSol)
	d.u64(lamports)
	return d.instruction(k.ProgramID,
		writable(k.Pool),
		readOnly(k.WithdrawAuthority),
		writable(k.State.ReserveStake),
		writableSigner(funding),
		writable(destination),
		writable(k.State.ManagerFeeAccount),
		writable(referrer),
		writable(k.State.PoolMint),
		readOnly(solana.SystemProgramID),
		readOnly(k.State.TokenProgramID),
	)
}

func WithdrawSolInstruction(k PoolKeys, authority, burnFrom, recipient solana.PublicKey, poolTokens uint64) (solana.Instruction, error) {
	d := newIxData(ixWithdrawSol)
	d.u64(poolTokens)
	return d.instruction(k.ProgramID,
		writable(k.Pool),
		readOnly(k.WithdrawAuthority),
		signerMeta(authority),
		writable(burnFrom),
		writable(k.State.ReserveStake),
		writable(recipient),
		writable(k.State.ManagerFeeAccount),
		writable(k.State.PoolMint),
		readOnly(solana.SysVarClockPubkey),
		readOnly(solana.SysVarStakeHistoryPubkey),
		readOnly(solana.StakeProgramID),
		readOnly(k.State.TokenProgramID),
	)
}

func CreateTokenMetadataInstruction(k PoolKeys, payer, metadata solana.PublicKey, name, symbol, uri string) (solana.Instruction, error) {
	d := newIxData(ixCreateTokenMetadata)
	d.str(name)
	d.str(symbol)
	d.str(uri)
	return d.instruction(k.ProgramID,
		readOnly(k.Pool),
		signerMeta(k.State.Manager),
		readOnly(k.WithdrawAuthority),
		readOnly(k.State.PoolMint),
		writableSigner(payer),
		writable(metadata),
		readOnly(stakepool.MetadataProgramID),
		readOnly(solana.SystemProgramID),
	)
}

func UpdateTokenMetadataInstruction(k PoolKeys, metadata solana.PublicKey, name, symbol, uri string) (solana.Instruction, error) {
	d := newIxData(ixUpdateTokenMetadata)
	d.str(name)
	d.str(symbol)
	d.str(uri)
	return d.instruction(k.ProgramID,
		readOnly(k.Pool),
		signerMeta(k.State.Manager),
		readOnly(k.WithdrawAuthority),
		writable(metadata),
		readOnly(stakepool.MetadataProgramID),
	)
}

// CreateAccountInstruction allocates a new account owned by owner.
func CreateAccountInstruction(payer, account, owner solana.PublicKey, lamports, space uint64) solana.Instruction {
	return system.NewCreateAccountInstruction(lamports, space, owner, payer, account).Build()
}

func InitializeMintInstruction(mint, authority solana.PublicKey, decimals uint8) (solana.Instruction, error) {
	d := newIxData(tokenInitializeMint2)
	d.u8(decimals)
	d.key(authority)
	// no freeze authority
	d.u8(0)
	return d.instruction(solana.TokenProgramID, writable(mint))
}

func InitializeTokenAccountInstruction(account, mint, owner solana.PublicKey) (solana.Instruction, error) {
	d := newIxData(tokenInitializeAccount3)
	d.key(owner)
	return d.instruction(solana.TokenProgramID, writable(account), readOnly(mint))
}

// InitializeStakeInstruction gives staker and withdrawer authority over a fresh stake account.
func InitializeStakeInstruction(stake, staker, withdrawer solana.PublicKey, lockup stakepool.Lockup) (solana.Instruction, error) {
	d := &ixData{}
	d.enc = bin.NewBorshEncoder(&d.buf)
	d.u32(stakeInitialize)
	d.key(staker)
	d.key(withdrawer)
	d.i64(lockup.UnixTimestamp)
	d.u64(lockup.Epoch)
	d.key(lockup.Custodian)
	return d.instruction(solana.StakeProgramID, writable(stake), readOnly(solana.SysVarRentPubkey))
}
