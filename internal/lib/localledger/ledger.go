// Package localledger is a self-contained account store for running pools without a cluster.
// Accounts live in goleveldb as owner+data records and every mutation is applied in one batch.
package localledger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/syndtr/goleveldb/leveldb"
	dberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
	"github.com/TxnLab/stakepoolmgr/internal/lib/stakepool"
)

var (
	accountSpace = []byte("acct/")
	txSpace      = []byte("tx/")
	seqKey       = []byte("meta/seq")
	genesisKey   = []byte("meta/genesis")
)

// DefaultEpochDuration is how long a local epoch lasts unless overridden.
const DefaultEpochDuration = time.Hour

type Ledger struct {
	log *slog.Logger
	db  *leveldb.DB

	// EpochDuration controls CurrentEpoch.
	EpochDuration time.Duration
	now           func() time.Time

	mu sync.Mutex
}

// Open opens or creates a ledger stored under dir.
func Open(logger *slog.Logger, dir string) (*Ledger, error) {
	opts := opt.Options{
		Filter:    filter.NewBloomFilter(10),
		BlockSize: 1024 * 32,
	}
	db, err := leveldb.OpenFile(dir, &opts)
	if _, corrupted := err.(*dberrors.ErrCorrupted); corrupted {
		misc.Warnf(logger, "local ledger at %s corrupted, attempting recovery", dir)
		db, err = leveldb.RecoverFile(dir, &opts)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open local ledger at %s: %w", dir, err)
	}
	l := newLedger(logger, db)
	if err := l.initGenesis(); err != nil {
		db.Close()
		return nil, err
	}
	misc.Infof(logger, "opened local ledger at %s", dir)
	return l, nil
}

// NewMem creates a memory-backed ledger.
func NewMem(logger *slog.Logger) (*Ledger, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory ledger: %w", err)
	}
	l := newLedger(logger, db)
	if err := l.initGenesis(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func newLedger(logger *slog.Logger, db *leveldb.DB) *Ledger {
	return &Ledger{
		log:           logger,
		db:            db,
		EpochDuration: DefaultEpochDuration,
		now:           time.Now,
	}
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// GetAccount returns the data stored at address.
func (l *Ledger) GetAccount(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, stakepool.Unavailable(err)
	}
	_, data, err := l.get(address)
	return data, err
}

// Owner returns the program owning address.
func (l *Ledger) Owner(ctx context.Context, address solana.PublicKey) (solana.PublicKey, error) {
	if err := ctx.Err(); err != nil {
		return solana.PublicKey{}, stakepool.Unavailable(err)
	}
	owner, _, err := l.get(address)
	return owner, err
}

func (l *Ledger) get(address solana.PublicKey) (solana.PublicKey, []byte, error) {
	val, err := l.db.Get(accountKey(address), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return solana.PublicKey{}, nil, stakepool.NotFound(address)
		}
		return solana.PublicKey{}, nil, stakepool.Unavailable(err)
	}
	if len(val) < solana.PublicKeyLength {
		return solana.PublicKey{}, nil, stakepool.Unavailable(fmt.Errorf("corrupt account record for %s", address))
	}
	return solana.PublicKeyFromBytes(val[:solana.PublicKeyLength]), val[solana.PublicKeyLength:], nil
}

// TxRecord is what the ledger keeps in its transaction log.
type TxRecord struct {
	Seq      uint64   `json:"seq"`
	Op       string   `json:"op"`
	Pool     string   `json:"pool"`
	Signers  []string `json:"signers"`
	Accounts []string `json:"accounts"`
	Time     int64    `json:"time"`
}

// Submit applies every write of m in one batch. Accounts listed in NewAccounts must not exist.
func (l *Ledger) Submit(ctx context.Context, m *stakepool.Mutation) (*stakepool.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, stakepool.Unavailable(err)
	}
	if len(m.Writes) == 0 {
		return nil, stakepool.Rejected("%s carries no account writes", m.Op)
	}
	for _, signer := range m.Signers {
		if signer.IsZero() {
			return nil, stakepool.Rejected("%s has an empty signer", m.Op)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, addr := range m.NewAccounts {
		exists, err := l.db.Has(accountKey(addr), nil)
		if err != nil {
			return nil, stakepool.Unavailable(err)
		}
		if exists {
			return nil, stakepool.Rejected("account %s already in use", addr)
		}
	}

	seq, err := l.nextSeq()
	if err != nil {
		return nil, stakepool.Unavailable(err)
	}
	record := TxRecord{
		Seq:  seq,
		Op:   m.Op.String(),
		Pool: m.Pool.String(),
		Time: l.now().Unix(),
	}
	batch := new(leveldb.Batch)
	for _, w := range m.Writes {
		val := make([]byte, 0, solana.PublicKeyLength+len(w.Data))
		val = append(val, w.Owner[:]...)
		val = append(val, w.Data...)
		batch.Put(accountKey(w.Address), val)
		record.Accounts = append(record.Accounts, w.Address.String())
	}
	for _, signer := range m.Signers {
		record.Signers = append(record.Signers, signer.String())
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if err := l.applyReserve(batch, m); err != nil {
		return nil, err
	}
	batch.Put(txKey(seq), recordBytes)
	batch.Put(seqKey, binary.BigEndian.AppendUint64(nil, seq))

	if err := l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return nil, stakepool.Unavailable(err)
	}
	misc.Debugf(l.log, "local ledger applied %s as tx %d, %d accounts", m.Op, seq, len(m.Writes))
	return &stakepool.Receipt{Signatures: []string{txSignature(seq)}}, nil
}

// History returns the logged transactions touching pool, oldest first.
func (l *Ledger) History(ctx context.Context, pool solana.PublicKey) ([]TxRecord, error) {
	iter := l.db.NewIterator(util.BytesPrefix(txSpace), nil)
	defer iter.Release()

	var records []TxRecord
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec TxRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt tx record %q: %w", iter.Key(), err)
		}
		if rec.Pool == pool.String() {
			records = append(records, rec)
		}
	}
	return records, iter.Error()
}

func (l *Ledger) nextSeq() (uint64, error) {
	val, err := l.db.Get(seqKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(val) + 1, nil
}

func (l *Ledger) initGenesis() error {
	exists, err := l.db.Has(genesisKey, nil)
	if err != nil || exists {
		return err
	}
	return l.db.Put(genesisKey, binary.BigEndian.AppendUint64(nil, uint64(l.now().Unix())), nil)
}

func accountKey(address solana.PublicKey) []byte {
	return append(append([]byte{}, accountSpace...), address[:]...)
}

// txKey sorts in sequence order.
func txKey(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, txSpace...), seq)
}

func txSignature(seq uint64) string {
	return fmt.Sprintf("local-%d", seq)
}
