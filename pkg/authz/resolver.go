// Package authz resolves which cosigner address the legacy wallet currently
// authorizes. The wallet keys its authorizations mapping by a 256-bit value
// packing the authorization epoch above an address: key = (version << 160) |
// address. The raw on-chain authVersion carries the epoch in its high bits
// with the low 160 bits reserved, and a mapping entry packs the cosigner in
// its low 160 bits.
package authz

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dapperlabs/dapper-relay/pkg/codec"
)

// WalletReader is the read capability the resolver needs from a wallet
// contract. Implementations return the raw decoded ABI value; the resolver
// validates its shape at this boundary rather than trusting the decoder.
type WalletReader interface {
	// AuthVersion reads the raw authVersion word.
	AuthVersion(ctx context.Context) (any, error)
	// Authorization reads the authorizations mapping entry for key.
	Authorization(ctx context.Context, key *big.Int) (any, error)
}

// AuthVersionError reports an authVersion read that failed or returned a value
// of the wrong shape. It is a contract-interface mismatch and is never
// retried.
type AuthVersionError struct {
	Err error
}

func (e *AuthVersionError) Error() string {
	return fmt.Sprintf("authz: authVersion read failed: %v", e.Err)
}

func (e *AuthVersionError) Unwrap() error { return e.Err }

// CosignerLookupError reports an authorizations read that failed or returned a
// value of the wrong shape.
type CosignerLookupError struct {
	Err error
}

func (e *CosignerLookupError) Error() string {
	return fmt.Sprintf("authz: authorization lookup failed: %v", e.Err)
}

func (e *CosignerLookupError) Unwrap() error { return e.Err }

// VersionFromRaw extracts the epoch from a raw authVersion word. The low 160
// bits are reserved padding and must be discarded, not interpreted.
func VersionFromRaw(raw *big.Int) *big.Int {
	return new(big.Int).Rsh(raw, 160)
}

// AuthorizationKey computes the mapping key (version << 160) | address.
func AuthorizationKey(version *big.Int, addr string) (*big.Int, error) {
	addrInt, err := codec.AddressToInt(addr)
	if err != nil {
		return nil, err
	}
	key := new(big.Int).Lsh(version, 160)
	return key.Or(key, addrInt), nil
}

// ResolveCosigner reads the current authorization epoch, derives the mapping
// key for candidate, and returns the cosigner packed into that slot as a
// lowercase 0x-prefixed 40-hex-digit address. A zero address means candidate
// is not authorized. Any failed or malformed read is fatal to this single
// attempt: the resolver never substitutes a default, since a silently wrong
// cosigner would pass authorization checks it should fail.
func ResolveCosigner(ctx context.Context, candidate string, reader WalletReader) (string, error) {
	raw, err := reader.AuthVersion(ctx)
	if err != nil {
		return "", &AuthVersionError{Err: err}
	}
	rawVersion, ok := raw.(*big.Int)
	if !ok || rawVersion == nil {
		return "", &AuthVersionError{Err: fmt.Errorf("contract returned %T, want *big.Int", raw)}
	}

	key, err := AuthorizationKey(VersionFromRaw(rawVersion), candidate)
	if err != nil {
		return "", err
	}

	slot, err := reader.Authorization(ctx, key)
	if err != nil {
		return "", &CosignerLookupError{Err: err}
	}
	packed, ok := slot.(*big.Int)
	if !ok || packed == nil {
		return "", &CosignerLookupError{Err: fmt.Errorf("contract returned %T, want *big.Int", slot)}
	}

	return codec.AddressFromLowBits(packed), nil
}

// IsAuthorized resolves the cosigner for candidate and reports whether the
// slot names candidate itself (the wallet stores cosigner == address for a
// directly authorized device key).
func IsAuthorized(ctx context.Context, candidate string, reader WalletReader) (bool, string, error) {
	cosigner, err := ResolveCosigner(ctx, candidate, reader)
	if err != nil {
		return false, "", err
	}
	candidateBytes, err := codec.NormalizeAddress(candidate)
	if err != nil {
		return false, "", err
	}
	return cosigner == codec.HexAddress(candidateBytes), cosigner, nil
}
