package sol

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

type MultipleWalletSigner interface {
	HasAccount(pk solana.PublicKey) bool
	PrivateKey(pk solana.PublicKey) *solana.PrivateKey
}

// MissingSigners lists the required signers the wallet has no key for.
func MissingSigners(signer MultipleWalletSigner, required []solana.PublicKey) []solana.PublicKey {
	var missing []solana.PublicKey
	for _, pk := range required {
		if !signer.HasAccount(pk) {
			missing = append(missing, pk)
		}
	}
	return missing
}

// SignTransaction signs tx with every signer key the message names, including any freshly
// generated account keys passed in extra.
func SignTransaction(_ context.Context, signer MultipleWalletSigner, tx *solana.Transaction, extra ...solana.PrivateKey) error {
	extraKeys := map[solana.PublicKey]solana.PrivateKey{}
	for _, key := range extra {
		extraKeys[key.PublicKey()] = key
	}
	_, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if key, found := extraKeys[pk]; found {
			return &key
		}
		return signer.PrivateKey(pk)
	})
	if err != nil {
		return fmt.Errorf("error signing transaction: %w", err)
	}
	return nil
}
