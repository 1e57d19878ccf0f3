/*
 * Copyright (c) 2022. TxnLab Inc.
 * All Rights reserved.
 */

package sol

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/ed25519"

	"github.com/TxnLab/stakepoolmgr/internal/lib/misc"
)

const (
	keypairEnvPrefix  = "STAKEPOOL_KEYPAIR"
	mnemonicEnvPrefix = "STAKEPOOL_MNEMONIC"
)

// NewLocalKeyStore returns a key store seeded from STAKEPOOL_KEYPAIR* (base58 secret or solana-keygen
// json file path) and STAKEPOOL_MNEMONIC* (25 word mnemonic) environment variables.
func NewLocalKeyStore(log *slog.Logger) (*LocalKeyStore, error) {
	keyStore := &LocalKeyStore{
		log:  log,
		keys: map[solana.PublicKey]solana.PrivateKey{},
	}
	if err := keyStore.loadFromEnvironment(); err != nil {
		return nil, err
	}
	return keyStore, nil
}

type LocalKeyStore struct {
	log *slog.Logger

	sync.RWMutex
	keys map[solana.PublicKey]solana.PrivateKey
}

func (lk *LocalKeyStore) HasAccount(pk solana.PublicKey) bool {
	lk.RLock()
	defer lk.RUnlock()
	_, found := lk.keys[pk]
	return found
}

// Accounts returns the public keys held, sorted so output is stable.
func (lk *LocalKeyStore) Accounts() []solana.PublicKey {
	lk.RLock()
	defer lk.RUnlock()
	accounts := make([]solana.PublicKey, 0, len(lk.keys))
	for pk := range lk.keys {
		accounts = append(accounts, pk)
	}
	slices.SortFunc(accounts, func(a, b solana.PublicKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return accounts
}

func (lk *LocalKeyStore) AddKey(key solana.PrivateKey) solana.PublicKey {
	lk.Lock()
	defer lk.Unlock()
	pk := key.PublicKey()
	lk.keys[pk] = key
	return pk
}

// PrivateKey is the getter shape solana.Transaction.Sign expects; nil means unknown.
func (lk *LocalKeyStore) PrivateKey(pk solana.PublicKey) *solana.PrivateKey {
	lk.RLock()
	defer lk.RUnlock()
	key, found := lk.keys[pk]
	if !found {
		return nil
	}
	return &key
}

// NewKey generates, stores and returns a new random key.
func (lk *LocalKeyStore) NewKey() (solana.PrivateKey, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	lk.AddKey(key)
	return key, nil
}

// ExportMnemonic renders a key as a 25 word mnemonic that STAKEPOOL_MNEMONIC* accepts.
func ExportMnemonic(key solana.PrivateKey) (string, error) {
	return mnemonic.FromPrivateKey(ed25519.PrivateKey(key))
}

// loadFromEnvironment loads every STAKEPOOL_KEYPAIR* and STAKEPOOL_MNEMONIC* variable (can be in .env
// files or the secrets dir as well). The number of loaded keys is logged as well as the public key of each.
func (lk *LocalKeyStore) loadFromEnvironment() error {
	var numKeys int
	for _, name := range misc.SecretKeys() {
		value := misc.GetSecret(name)
		if value == "" {
			continue
		}
		var (
			key solana.PrivateKey
			err error
		)
		switch {
		case strings.HasPrefix(name, keypairEnvPrefix):
			key, err = parseKeypair(value)
		case strings.HasPrefix(name, mnemonicEnvPrefix):
			key, err = parseMnemonic(value)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("error in key load, env key:%s, err:%w", name, err)
		}
		misc.Infof(lk.log, "Added key for pk:%s", lk.AddKey(key))
		numKeys++
	}
	misc.Infof(lk.log, "loaded %d keys", numKeys)
	return nil
}

// parseKeypair accepts either a base58 encoded secret key or a path to a solana-keygen json file.
func parseKeypair(value string) (solana.PrivateKey, error) {
	value = strings.TrimSpace(value)
	if _, err := os.Stat(value); err == nil {
		return solana.PrivateKeyFromSolanaKeygenFile(value)
	}
	key, err := solana.PrivateKeyFromBase58(value)
	if err != nil {
		return nil, fmt.Errorf("value is neither a keygen file nor a base58 key: %w", err)
	}
	return key, nil
}

func parseMnemonic(phrase string) (solana.PrivateKey, error) {
	key, err := mnemonic.ToPrivateKey(strings.TrimSpace(phrase))
	if err != nil {
		return nil, fmt.Errorf("failed to parse mnemonic: %w", err)
	}
	return solana.PrivateKey(key), nil
}
