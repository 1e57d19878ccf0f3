package sol

import (
	"testing"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

func TestFormattedSolAmount(t *testing.T) {
	tests := []struct {
		lamports uint64
		want     string
	}{
		{0, "0"},
		{1, "0.000000001"},
		{1_500_000_000, "1.5"},
		{12_000_000_000, "12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormattedSolAmount(tt.lamports))
	}
}

func TestParseSolAmount(t *testing.T) {
	tests := []struct {
		amount  string
		want    uint64
		wantErr string
	}{
		{amount: "1.5", want: 1_500_000_000},
		{amount: " 2 ", want: 2_000_000_000},
		{amount: "0.000000001", want: 1},
		{amount: "0.0000000001", wantErr: "more than 9 decimals"},
		{amount: "-1", wantErr: "negative"},
		{amount: "abc", wantErr: "invalid SOL amount"},
		{amount: "100000000000", wantErr: "too large"},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := ParseSolAmount(tt.amount)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetNetworkConfig(t *testing.T) {
	t.Setenv("SOLANA_RPC_URL", "")
	t.Setenv("STAKEPOOL_PROGRAM_ID", "")
	t.Setenv("SOLANA_RPC_HEADERS", "x-api-key: abc:123, bogus")

	cfg, err := GetNetworkConfig("devnet")
	require.NoError(t, err)
	assert.Equal(t, rpc.DevNet_RPC, cfg.RPCURL)
	assert.Equal(t, stakepool.ProgramID, cfg.ProgramID)
	assert.Equal(t, map[string]string{"x-api-key": "abc:123"}, cfg.RPCHeaders)
	assert.False(t, cfg.IsLocal())

	t.Setenv("STAKEPOOL_LEDGER_DIR", "/tmp/ledger")
	cfg, err = GetNetworkConfig(LocalNetwork)
	require.NoError(t, err)
	assert.True(t, cfg.IsLocal())
	assert.Equal(t, "/tmp/ledger", cfg.LedgerDir)

	t.Setenv("STAKEPOOL_PROGRAM_ID", "junk")
	_, err = GetNetworkConfig("testnet")
	assert.ErrorContains(t, err, "STAKEPOOL_PROGRAM_ID")

	_, err = GetNetworkConfig("nowhere")
	assert.ErrorContains(t, err, "unknown network")
}
