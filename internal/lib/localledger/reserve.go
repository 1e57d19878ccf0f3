package localledger

import (
	"encoding/binary"
	"errors"
	"math"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

var reserveSpace = []byte("reserve/")

// Lamports that aren't delegated sit in the pool reserve. The local ledger has no stake program
// so it follows them itself: deposits and withdrawals move the reserve with the pool total,
// delegations draw from it and drained validator stake flows back into it.

func reserveKey(pool solana.PublicKey) []byte {
	return append(append([]byte{}, reserveSpace...), pool[:]...)
}

func (l *Ledger) reserve(pool solana.PublicKey) (uint64, error) {
	val, err := l.db.Get(reserveKey(pool), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(val), nil
}

// applyReserve adds the reserve change implied by m to batch.
func (l *Ledger) applyReserve(batch *leveldb.Batch, m *stakepool.Mutation) error {
	current, err := l.reserve(m.Pool)
	if err != nil {
		return err
	}
	next := current
	switch m.Op {
	case stakepool.OpCreatePool:
		next = 0
	case stakepool.OpDepositSol, stakepool.OpWithdrawSol:
		after, err := writtenPool(m)
		if err != nil {
			return err
		}
		next = shiftBalance(current, m.PoolState.TotalLamports, after.TotalLamports)
	case stakepool.OpAddValidator:
		if req, ok := m.Request.(*stakepool.ValidatorParams); ok {
			if req.Lamports > current {
				return stakepool.Rejected("reserve holds %d lamports, %d needed to delegate", current, req.Lamports)
			}
			next = current - req.Lamports
		}
	case stakepool.OpRefreshValidator:
		returned, err := l.drainedStake(m)
		if err != nil {
			return err
		}
		next = current + returned
	default:
		return nil
	}
	if next != current || m.Op == stakepool.OpCreatePool {
		batch.Put(reserveKey(m.Pool), binary.BigEndian.AppendUint64(nil, next))
	}
	return nil
}

// drainedStake is the stake a deactivating validator lost in this refresh.
func (l *Ledger) drainedStake(m *stakepool.Mutation) (uint64, error) {
	var returned uint64
	if len(m.Touched) == 0 {
		return 0, nil
	}
	_, data, err := l.get(m.PoolState.ValidatorList)
	if err != nil {
		return 0, err
	}
	before, err := stakepool.DecodeValidatorList(data)
	if err != nil {
		return 0, err
	}
	for _, touched := range m.Touched {
		if touched.Info.Status == stakepool.StatusActive || touched.Index >= before.Len() {
			continue
		}
		prev := before.Validators[touched.Index].TotalLamports()
		if now := touched.Info.TotalLamports(); prev > now {
			returned += prev - now
		}
	}
	return returned, nil
}

func writtenPool(m *stakepool.Mutation) (*stakepool.StakePool, error) {
	for _, w := range m.Writes {
		if w.Address == m.Pool {
			return stakepool.DecodeStakePool(w.Data)
		}
	}
	return nil, stakepool.Rejected("%s does not write the pool account", m.Op)
}

// shiftBalance moves v by after-before, clamped to the uint64 range.
func shiftBalance(v, before, after uint64) uint64 {
	if after >= before {
		sum, carry := bits.Add64(v, after-before, 0)
		if carry != 0 {
			return math.MaxUint64
		}
		return sum
	}
	return v - min(v, before-after)
}
