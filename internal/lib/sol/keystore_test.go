package sol

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMnemonicRoundTrip(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	phrase, err := ExportMnemonic(key)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(phrase), 25)

	parsed, err := parseMnemonic(phrase)
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
	assert.Equal(t, key.PublicKey(), parsed.PublicKey())
}

func TestLoadFromEnvironment(t *testing.T) {
	base58Key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	mnemonicKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	fileKey, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	keygen := make([]int, len(fileKey))
	for i, b := range fileKey {
		keygen[i] = int(b)
	}
	content, err := json.Marshal(keygen)
	require.NoError(t, err)
	keyFile := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(keyFile, content, 0600))

	phrase, err := ExportMnemonic(mnemonicKey)
	require.NoError(t, err)
	t.Setenv("STAKEPOOL_KEYPAIR_TEST1", base58Key.String())
	t.Setenv("STAKEPOOL_KEYPAIR_TEST2", keyFile)
	t.Setenv("STAKEPOOL_MNEMONIC_TEST", phrase)

	store, err := NewLocalKeyStore(slog.Default())
	require.NoError(t, err)
	for _, key := range []solana.PrivateKey{base58Key, mnemonicKey, fileKey} {
		assert.True(t, store.HasAccount(key.PublicKey()))
		assert.Equal(t, key, *store.PrivateKey(key.PublicKey()))
	}
	assert.Nil(t, store.PrivateKey(testKey(1)))
	assert.GreaterOrEqual(t, len(store.Accounts()), 3)
}

func TestLoadFromEnvironmentBadKey(t *testing.T) {
	t.Setenv("STAKEPOOL_KEYPAIR_BAD", "not a key")
	_, err := NewLocalKeyStore(slog.Default())
	assert.ErrorContains(t, err, "STAKEPOOL_KEYPAIR_BAD")
}

func TestSignTransaction(t *testing.T) {
	store := &LocalKeyStore{log: slog.Default(), keys: map[solana.PublicKey]solana.PrivateKey{}}
	payer, err := store.NewKey()
	require.NoError(t, err)
	fresh, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	ix := CreateAccountInstruction(payer.PublicKey(), fresh.PublicKey(), solana.StakeProgramID, 1, 200)
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{1}, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)

	assert.Error(t, SignTransaction(context.Background(), store, tx))
	assert.Equal(t, []solana.PublicKey{fresh.PublicKey()}, MissingSigners(store, []solana.PublicKey{payer.PublicKey(), fresh.PublicKey()}))

	require.NoError(t, SignTransaction(context.Background(), store, tx, fresh))
	assert.Len(t, tx.Signatures, 2)
	require.NoError(t, tx.VerifySignatures())
}
