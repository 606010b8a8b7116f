// Package invoke builds the binary argument for the legacy wallet's invoke0
// entry point. The wallet contract is a proxy account: every outgoing call is
// described by a fixed-layout byte sequence and routed through invoke0, so the
// offsets and padding here must match the on-chain decoder exactly.
//
// Layout:
//
//	offset 0   1 byte   revert flag (0 or 1)
//	offset 1   20 bytes target address
//	offset 21  32 bytes value in wei, big-endian
//	offset 53  32 bytes call-data length, big-endian
//	offset 85  N bytes  raw call data
package invoke

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/dapperlabs/dapper-relay/pkg/codec"
)

// Field offsets within a payload.
const (
	OffsetRevertFlag = 0
	OffsetTarget     = 1
	OffsetValue      = 21
	OffsetDataLength = 53
	OffsetCallData   = 85

	// HeaderSize is the length of a payload with empty call data.
	HeaderSize = OffsetCallData
)

// Revert flag values accepted by the wallet contract.
const (
	NoRevert     = 0
	RevertOnFail = 1
)

// Payload is the immutable byte sequence passed to invoke0. Construct it with
// BuildPayload; never mutate one after the fact.
type Payload []byte

// BuildPayload assembles an invocation payload. It is a pure function of its
// inputs: the same arguments always produce the same bytes.
func BuildPayload(revertFlag byte, target string, value *big.Int, callData []byte) (Payload, error) {
	if revertFlag != NoRevert && revertFlag != RevertOnFail {
		return nil, fmt.Errorf("invoke: revert flag must be 0 or 1, got %d", revertFlag)
	}
	targetBytes, err := codec.NormalizeAddress(target)
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = big.NewInt(0)
	}
	valueSlot, err := codec.EncodeUint256(value)
	if err != nil {
		return nil, err
	}
	lengthSlot := codec.EncodeUint64(uint64(len(callData)))

	p := make(Payload, 0, HeaderSize+len(callData))
	p = append(p, revertFlag)
	p = append(p, targetBytes...)
	p = append(p, valueSlot...)
	p = append(p, lengthSlot...)
	p = append(p, callData...)
	return p, nil
}

// Hex renders the payload as a 0x-prefixed hex string, the wire form expected
// as the invoke0 argument.
func (p Payload) Hex() string {
	return "0x" + hex.EncodeToString(p)
}

// RevertFlag returns the revert flag byte.
func (p Payload) RevertFlag() byte {
	return p[OffsetRevertFlag]
}

// Target returns the target address in canonical lowercase hex form.
func (p Payload) Target() string {
	return codec.HexAddress(p[OffsetTarget:OffsetValue])
}

// Value returns the wei value field.
func (p Payload) Value() *big.Int {
	return new(big.Int).SetBytes(p[OffsetValue:OffsetDataLength])
}

// CallData returns the raw call data bytes.
func (p Payload) CallData() []byte {
	return p[OffsetCallData:]
}
