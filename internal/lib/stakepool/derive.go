package stakepool

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// FindWithdrawAuthority derives the program address that owns pool stake accounts and mints
// pool tokens.
func FindWithdrawAuthority(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{pool[:], []byte(WithdrawAuthoritySeed)}, programID)
}

// FindDepositAuthority derives the default stake deposit authority of a pool.
func FindDepositAuthority(programID, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{pool[:], []byte(DepositAuthoritySeed)}, programID)
}

// FindValidatorStakeAddress derives the stake account a pool holds for a vote account. A zero
// seed suffix is omitted from the seeds.
func FindValidatorStakeAddress(programID, vote, pool solana.PublicKey, seed uint32) (solana.PublicKey, uint8, error) {
	seeds := [][]byte{vote[:], pool[:]}
	if seed != 0 {
		seedBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(seedBytes, seed)
		seeds = append(seeds, seedBytes)
	}
	return solana.FindProgramAddress(seeds, programID)
}

// FindTransientStakeAddress derives the transient stake account used while stake moves in
// or out of a validator.
func FindTransientStakeAddress(programID, vote, pool solana.PublicKey, seed uint64) (solana.PublicKey, uint8, error) {
	seedBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(seedBytes, seed)
	return solana.FindProgramAddress([][]byte{[]byte(TransientStakeSeed), vote[:], pool[:], seedBytes}, programID)
}

// FindMetadataAddress derives the token metadata account of a mint. The address depends only on
// the mint so re-attaching metadata always lands on the same account.
func FindMetadataAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(MetadataSeed), MetadataProgramID[:], mint[:]}, MetadataProgramID)
}
