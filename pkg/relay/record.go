package relay

import "time"

// Record status values. Confirmation is tracked on chain, not here; a
// submitted record only means the node accepted the transaction.
const (
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
)

// Record is the persisted trace of one relay attempt.
type Record struct {
	ID         string    `cbor:"id" json:"id"`
	Wallet     string    `cbor:"wallet" json:"wallet"`
	Target     string    `cbor:"target" json:"target"`
	Sender     string    `cbor:"sender" json:"sender"`
	AmountWei  string    `cbor:"amount_wei" json:"amount_wei"`
	PayloadHex string    `cbor:"payload_hex" json:"payload_hex"`
	GasLimit   uint64    `cbor:"gas_limit" json:"gas_limit"`
	TxHash     string    `cbor:"tx_hash,omitempty" json:"tx_hash,omitempty"`
	Status     string    `cbor:"status" json:"status"`
	Error      string    `cbor:"error,omitempty" json:"error,omitempty"`
	CreatedAt  time.Time `cbor:"created_at" json:"created_at"`
}
