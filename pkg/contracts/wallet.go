package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dapperlabs/dapper-relay/pkg/codec"
)

// Caller performs a read-only eth_call against a contract. Implementations
// are injected; the package never reaches for a global provider.
type Caller interface {
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)
}

// Wallet is a handle to one deployed legacy wallet contract, bound to an
// injected call capability. It is read-only and safe to share across
// sequential operations.
type Wallet struct {
	address string
	caller  Caller
}

// NewWallet binds a wallet handle to its on-chain address.
func NewWallet(address string, caller Caller) (*Wallet, error) {
	b, err := codec.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return &Wallet{address: codec.HexAddress(b), caller: caller}, nil
}

// Address returns the wallet contract address in canonical lowercase form.
func (w *Wallet) Address() string {
	return w.address
}

// AuthVersion reads the raw authVersion word. The return is the decoded ABI
// value as-is; shape validation is the resolver's job.
func (w *Wallet) AuthVersion(ctx context.Context) (any, error) {
	return w.readUint256(ctx, "authVersion")
}

// Authorization reads authorizations[key].
func (w *Wallet) Authorization(ctx context.Context, key *big.Int) (any, error) {
	return w.readUint256(ctx, "authorizations", key)
}

func (w *Wallet) readUint256(ctx context.Context, method string, args ...any) (any, error) {
	data, err := walletABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contracts: pack %s: %w", method, err)
	}
	out, err := w.caller.CallContract(ctx, w.address, data)
	if err != nil {
		return nil, fmt.Errorf("contracts: call %s: %w", method, err)
	}
	vals, err := walletABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("contracts: unpack %s: %w", method, err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("contracts: %s returned %d values, want 1", method, len(vals))
	}
	return vals[0], nil
}

// Invoke0Data packs the invoke0(bytes) calldata carrying an invocation
// payload. This is the transaction data sent to the wallet address itself.
func (w *Wallet) Invoke0Data(payload []byte) ([]byte, error) {
	data, err := walletABI.Pack("invoke0", payload)
	if err != nil {
		return nil, fmt.Errorf("contracts: pack invoke0: %w", err)
	}
	return data, nil
}

// SetAuthorizedData packs setAuthorized(newAuthorized, cosigner) calldata for
// the cosigner registration step. The write is sent by the wallet owner's
// externally-controlled address, not by the relay.
func (w *Wallet) SetAuthorizedData(newAuthorized, cosigner string) ([]byte, error) {
	newAddr, err := codec.NormalizeAddress(newAuthorized)
	if err != nil {
		return nil, err
	}
	coAddr, err := codec.NormalizeAddress(cosigner)
	if err != nil {
		return nil, err
	}
	data, err := walletABI.Pack("setAuthorized",
		common.BytesToAddress(newAddr), common.BytesToAddress(coAddr))
	if err != nil {
		return nil, fmt.Errorf("contracts: pack setAuthorized: %w", err)
	}
	return data, nil
}
