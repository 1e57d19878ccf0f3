package stakepool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedAddressesAreStable(t *testing.T) {
	pool := testKey(30)
	vote := testKey(31)

	withdraw1, bump1, err := FindWithdrawAuthority(ProgramID, pool)
	require.NoError(t, err)
	withdraw2, bump2, err := FindWithdrawAuthority(ProgramID, pool)
	require.NoError(t, err)
	assert.Equal(t, withdraw1, withdraw2)
	assert.Equal(t, bump1, bump2)

	deposit, _, err := FindDepositAuthority(ProgramID, pool)
	require.NoError(t, err)
	assert.NotEqual(t, withdraw1, deposit)

	otherProgram, _, err := FindWithdrawAuthority(testKey(99), pool)
	require.NoError(t, err)
	assert.NotEqual(t, withdraw1, otherProgram)

	stake0, _, err := FindValidatorStakeAddress(ProgramID, vote, pool, 0)
	require.NoError(t, err)
	stake1, _, err := FindValidatorStakeAddress(ProgramID, vote, pool, 1)
	require.NoError(t, err)
	assert.NotEqual(t, stake0, stake1)

	transient, _, err := FindTransientStakeAddress(ProgramID, vote, pool, 0)
	require.NoError(t, err)
	assert.NotEqual(t, stake0, transient)
}

func TestMetadataAddressDependsOnMintOnly(t *testing.T) {
	a, _, err := FindMetadataAddress(testKey(40))
	require.NoError(t, err)
	b, _, err := FindMetadataAddress(testKey(40))
	require.NoError(t, err)
	c, _, err := FindMetadataAddress(testKey(41))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
