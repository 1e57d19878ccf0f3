package localledger

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

func key(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	return k
}

func newMemLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewMem(slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSubmitAndGet(t *testing.T) {
	ctx := context.Background()
	l := newMemLedger(t)

	_, err := l.GetAccount(ctx, key(1))
	assert.ErrorIs(t, err, stakepool.ErrAccountNotFound)

	m := &stakepool.Mutation{
		Op:          stakepool.OpSetStaker,
		Pool:        key(1),
		Signers:     []solana.PublicKey{key(9)},
		NewAccounts: []solana.PublicKey{key(1), key(2)},
		Writes: []stakepool.AccountWrite{
			{Address: key(1), Owner: stakepool.ProgramID, Data: []byte{1, 2, 3}},
			{Address: key(2), Owner: solana.TokenProgramID, Data: []byte{4}},
		},
	}
	receipt, err := l.Submit(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"local-1"}, receipt.Signatures)

	data, err := l.GetAccount(ctx, key(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	owner, err := l.Owner(ctx, key(2))
	require.NoError(t, err)
	assert.Equal(t, solana.TokenProgramID, owner)

	// creating the same accounts again is refused and changes nothing
	m.Writes[0].Data = []byte{7}
	_, err = l.Submit(ctx, m)
	assert.ErrorIs(t, err, stakepool.ErrLedgerRejected)
	data, err = l.GetAccount(ctx, key(1))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)

	history, err := l.History(ctx, key(1))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "set-staker", history[0].Op)
	assert.Equal(t, []string{key(9).String()}, history[0].Signers)
}

func TestSubmitRejects(t *testing.T) {
	l := newMemLedger(t)

	_, err := l.Submit(context.Background(), &stakepool.Mutation{Op: stakepool.OpSetFee, Pool: key(1)})
	assert.ErrorIs(t, err, stakepool.ErrLedgerRejected)

	_, err = l.Submit(context.Background(), &stakepool.Mutation{
		Op:      stakepool.OpSetFee,
		Pool:    key(1),
		Signers: []solana.PublicKey{{}},
		Writes:  []stakepool.AccountWrite{{Address: key(1)}},
	})
	assert.ErrorIs(t, err, stakepool.ErrLedgerRejected)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Submit(ctx, &stakepool.Mutation{Op: stakepool.OpSetFee, Writes: []stakepool.AccountWrite{{Address: key(1)}}})
	assert.ErrorIs(t, err, stakepool.ErrLedgerUnavailable)
	_, err = l.GetAccount(ctx, key(1))
	assert.ErrorIs(t, err, stakepool.ErrLedgerUnavailable)
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(slog.Default(), dir)
	require.NoError(t, err)
	_, err = l.Submit(context.Background(), &stakepool.Mutation{
		Op:     stakepool.OpSetFee,
		Pool:   key(3),
		Writes: []stakepool.AccountWrite{{Address: key(3), Owner: stakepool.ProgramID, Data: []byte{5}}},
	})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	l, err = Open(slog.Default(), dir)
	require.NoError(t, err)
	defer l.Close()
	data, err := l.GetAccount(context.Background(), key(3))
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, data)

	// sequence numbers continue across restarts
	receipt, err := l.Submit(context.Background(), &stakepool.Mutation{
		Op:     stakepool.OpSetFee,
		Pool:   key(3),
		Writes: []stakepool.AccountWrite{{Address: key(3), Owner: stakepool.ProgramID, Data: []byte{6}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"local-2"}, receipt.Signatures)
}

func TestCurrentEpoch(t *testing.T) {
	l := newMemLedger(t)

	start := time.Now()
	l.now = func() time.Time { return start }
	l.EpochDuration = time.Minute

	epoch, err := l.CurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), epoch)

	l.now = func() time.Time { return start.Add(5*time.Minute + 10*time.Second) }
	epoch, err = l.CurrentEpoch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(5), epoch)
}

func TestShiftBalance(t *testing.T) {
	tests := []struct {
		name             string
		v, before, after uint64
		want             uint64
	}{
		{"up", 10, 100, 105, 15},
		{"down", 10, 105, 100, 5},
		{"down past zero", 10, 100, 50, 0},
		{"beyond int64", 0, 0, 17e18, 17e18},
		{"saturates", math.MaxUint64 - 1, 0, 5, math.MaxUint64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shiftBalance(tt.v, tt.before, tt.after))
		})
	}
}
