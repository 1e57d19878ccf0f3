package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

func writeDefinition(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadPoolDefinition(t *testing.T) {
	manager, vote := newKey(), newKey()
	path := writeDefinition(t, `
name: main
manager: `+manager.String()+`
epoch_fee: 3%
withdrawal_fee: 1/1000
referral_fee: 20
capacity: 50
metadata:
  name: Main Pool SOL
  symbol: mSOL
  uri: https://example.com/pool.json
validators:
  - vote: `+vote.String()+`
    stake: 1.5
`)
	def, err := LoadPoolDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "main", def.Name)
	require.NotNil(t, def.Metadata)
	assert.Equal(t, "mSOL", def.Metadata.Symbol)

	params, err := def.CreateParams()
	require.NoError(t, err)
	assert.Equal(t, manager, params.Manager)
	assert.True(t, params.Staker.IsZero())
	assert.Equal(t, uint32(50), params.Capacity)
	assert.Equal(t, uint8(20), params.ReferralFee)
	assert.Equal(t, stakepool.NewFee(1, 1000), params.WithdrawalFee)
	assert.Equal(t, stakepool.ZeroFee, params.DepositFee)
	assert.Equal(t, uint64(30), params.Fee.Apply(1000))

	require.Len(t, def.Validators, 1)
	parsedVote, lamports, err := def.Validators[0].parse()
	require.NoError(t, err)
	assert.Equal(t, vote, parsedVote)
	assert.Equal(t, uint64(1_500_000_000), lamports)
}

func TestLoadPoolDefinitionErrors(t *testing.T) {
	manager := newKey().String()
	tests := []struct {
		name    string
		content string
		wantErr []string
	}{
		{
			name:    "unknown field",
			content: "name: a\nmanager: " + manager + "\ncapacity: 1\nfees: 3%\n",
			wantErr: []string{"field fees not found"},
		},
		{
			name:    "missing name and capacity",
			content: "manager: " + manager + "\n",
			wantErr: []string{"name is required", "capacity must be at least 1"},
		},
		{
			name:    "bad manager",
			content: "name: a\nmanager: nobody\ncapacity: 1\n",
			wantErr: []string{"invalid manager"},
		},
		{
			name:    "fee over 100%",
			content: "name: a\nmanager: " + manager + "\ncapacity: 1\nepoch_fee: 3/2\n",
			wantErr: []string{"epoch_fee"},
		},
		{
			name:    "referral over 100",
			content: "name: a\nmanager: " + manager + "\ncapacity: 1\nreferral_fee: 101\n",
			wantErr: []string{"referral_fee 101"},
		},
		{
			name: "too many validators",
			content: "name: a\nmanager: " + manager + "\ncapacity: 1\nvalidators:\n  - vote: " + newKey().String() +
				"\n  - vote: " + newKey().String() + "\n",
			wantErr: []string{"2 validators listed for a capacity of 1"},
		},
		{
			name:    "long symbol",
			content: "name: a\nmanager: " + manager + "\ncapacity: 1\nmetadata:\n  name: n\n  symbol: " + strings.Repeat("S", 11) + "\n",
			wantErr: []string{"metadata symbol is 11 bytes"},
		},
		{
			name:    "nul in metadata name",
			content: "name: a\nmanager: " + manager + "\ncapacity: 1\nmetadata:\n  name: \"a\\0b\"\n  symbol: S\n",
			wantErr: []string{"metadata name contains a NUL byte"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPoolDefinition(writeDefinition(t, tt.content))
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}
