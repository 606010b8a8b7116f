// Package codec converts integers and addresses to the fixed-width binary
// representations the legacy wallet contract expects. Every field in an
// invocation payload is built from these primitives, so encoding here must be
// bit-exact: a 32-byte big-endian slot is always exactly 32 bytes, and an
// address is always exactly 20.
package codec

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Uint256Bytes is the width of a 256-bit storage slot.
const Uint256Bytes = 32

// AddressBytes is the width of an Ethereum address.
const AddressBytes = 20

var (
	// maxUint256 = 2^256 - 1, the largest value a 32-byte slot can hold.
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// addressMask keeps the low 160 bits of a 256-bit word.
	addressMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 160), big.NewInt(1))
)

// EncodingError reports a numeric value that cannot be represented in the
// fixed-width field it targets. Truncating instead would silently corrupt the
// payload, so the range check is explicit and always fatal.
type EncodingError struct {
	Value  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("codec: cannot encode %s: %s", e.Value, e.Reason)
}

// InvalidAddressError reports an address string that cannot be normalized to
// exactly 20 bytes.
type InvalidAddressError struct {
	Input string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("codec: invalid address %q", e.Input)
}

// EncodeUint256 encodes a non-negative integer as a 32-byte big-endian slot,
// left-padded with zeros. Values outside [0, 2^256-1] are rejected.
func EncodeUint256(v *big.Int) ([]byte, error) {
	if v == nil {
		return nil, &EncodingError{Value: "<nil>", Reason: "nil value"}
	}
	if v.Sign() < 0 {
		return nil, &EncodingError{Value: v.String(), Reason: "negative value"}
	}
	if v.Cmp(maxUint256) > 0 {
		return nil, &EncodingError{Value: v.String(), Reason: "exceeds 2^256-1"}
	}
	slot := make([]byte, Uint256Bytes)
	v.FillBytes(slot)
	return slot, nil
}

// EncodeUint256String encodes a decimal or 0x-prefixed hex numeric string.
func EncodeUint256String(s string) ([]byte, error) {
	v, err := ParseUint256(s)
	if err != nil {
		return nil, err
	}
	return EncodeUint256(v)
}

// EncodeUint64 encodes a uint64 as a 32-byte slot. Cannot fail: every uint64
// fits the slot.
func EncodeUint64(v uint64) []byte {
	slot := make([]byte, Uint256Bytes)
	new(big.Int).SetUint64(v).FillBytes(slot)
	return slot
}

// DecodeUint256 interprets up to 32 bytes as a big-endian unsigned integer.
func DecodeUint256(b []byte) (*big.Int, error) {
	if len(b) > Uint256Bytes {
		return nil, &EncodingError{
			Value:  fmt.Sprintf("%d bytes", len(b)),
			Reason: "longer than 32 bytes",
		}
	}
	return new(big.Int).SetBytes(b), nil
}

// ParseUint256 parses a decimal or 0x-prefixed hex string into a big integer,
// enforcing the uint256 range. An empty string parses as zero.
func ParseUint256(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}
	v, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, &EncodingError{Value: s, Reason: "not a valid integer"}
	}
	if v.Sign() < 0 {
		return nil, &EncodingError{Value: s, Reason: "negative value"}
	}
	if v.Cmp(maxUint256) > 0 {
		return nil, &EncodingError{Value: s, Reason: "exceeds 2^256-1"}
	}
	return v, nil
}

// NormalizeAddress validates an address string and returns its 20-byte form.
// Input may carry a 0x prefix and mixed case; short hex is left-padded to 40
// digits, which defends against short-address inputs reaching the payload.
func NormalizeAddress(addr string) ([]byte, error) {
	hexPart := strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X")
	if hexPart == "" || len(hexPart) > 2*AddressBytes {
		return nil, &InvalidAddressError{Input: addr}
	}
	if len(hexPart) < 2*AddressBytes {
		hexPart = strings.Repeat("0", 2*AddressBytes-len(hexPart)) + hexPart
	}
	b, err := hex.DecodeString(strings.ToLower(hexPart))
	if err != nil {
		return nil, &InvalidAddressError{Input: addr}
	}
	return b, nil
}

// AddressToInt converts an address string to its 160-bit integer value.
func AddressToInt(addr string) (*big.Int, error) {
	b, err := NormalizeAddress(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// AddressFromLowBits masks the low 160 bits of a 256-bit word and renders them
// as a lowercase 0x-prefixed 40-hex-digit address, leading zeros preserved.
func AddressFromLowBits(v *big.Int) string {
	masked := new(big.Int).And(v, addressMask)
	b := make([]byte, AddressBytes)
	masked.FillBytes(b)
	return "0x" + hex.EncodeToString(b)
}

// HexAddress renders 20 raw address bytes in the canonical lowercase form.
func HexAddress(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
