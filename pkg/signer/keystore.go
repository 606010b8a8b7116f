// Package signer provides the transaction-signing capability the relay
// injects into the chain client. The default implementation unlocks a
// go-ethereum keystore file; callers that front a hardware wallet or remote
// signer implement chain.TxSigner themselves.
package signer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// KeystoreSigner signs with one unlocked account from a keystore directory.
type KeystoreSigner struct {
	ks      *keystore.KeyStore
	account accounts.Account
}

// NewKeystoreSigner opens dir, finds the account for address, and unlocks it
// with passphrase.
func NewKeystoreSigner(dir, address, passphrase string) (*KeystoreSigner, error) {
	ks := keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.Find(accounts.Account{Address: common.HexToAddress(address)})
	if err != nil {
		return nil, fmt.Errorf("signer: account %s not found in %s: %w", address, dir, err)
	}
	if err := ks.Unlock(account, passphrase); err != nil {
		return nil, fmt.Errorf("signer: unlock %s: %w", address, err)
	}
	return &KeystoreSigner{ks: ks, account: account}, nil
}

// Address returns the signing address in canonical lowercase form.
func (s *KeystoreSigner) Address() string {
	return strings.ToLower(s.account.Address.Hex())
}

// SignTx signs tx with the unlocked account.
func (s *KeystoreSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return s.ks.SignTx(s.account, tx, chainID)
}
