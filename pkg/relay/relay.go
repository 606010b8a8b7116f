// Package relay orchestrates a full wrapped call through the legacy wallet:
// encode the target call data, build the invocation payload, estimate gas for
// invoke0 with that exact payload, and submit from the cosigner. Each
// invocation is a single linear attempt with no retries and nothing to roll
// back; every failure surfaces to the caller as a RelayError.
package relay

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dapperlabs/dapper-relay/pkg/codec"
	"github.com/dapperlabs/dapper-relay/pkg/invoke"
	"github.com/dapperlabs/dapper-relay/pkg/logger"
)

// CallProducer yields ABI-encoded call data for the target contract. A nil
// producer means a bare value transfer (empty call data).
type CallProducer interface {
	CallData() ([]byte, error)
}

// ProxyWallet is the wallet-contract handle the relay needs: its address and
// its calldata packers. *contracts.Wallet satisfies it.
type ProxyWallet interface {
	Address() string
	Invoke0Data(payload []byte) ([]byte, error)
	SetAuthorizedData(newAuthorized, cosigner string) ([]byte, error)
}

// Backend submits transactions on behalf of the sender. Gas must be estimated
// against the same calldata that is later sent.
type Backend interface {
	EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error)
	SendTransaction(ctx context.Context, from, to string, value *big.Int, gas uint64, data []byte) (string, error)
}

// RecordStore persists relay records. Optional.
type RecordStore interface {
	Save(rec *Record) error
}

// Notifier publishes relay lifecycle events. Optional.
type Notifier interface {
	Publish(rec *Record) error
}

// RelayError wraps a failure from any step of the pipeline. It carries no
// classification of user rejection versus network fault versus revert; the
// caller surfaces it as a single opaque failure.
type RelayError struct {
	Step string
	Err  error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay: %s failed: %v", e.Step, e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// Request describes one wrapped call.
type Request struct {
	// Target is the contract the wallet should call.
	Target string
	// Call produces the target call data; nil means empty call data.
	Call CallProducer
	// AmountWei is the wei value the wallet forwards, decimal or 0x hex;
	// empty means zero.
	AmountWei string
	// Sender is the cosigner EOA the transaction is sent from.
	Sender string
}

// Relayer builds and submits invoke0 transactions. Collaborators are injected
// at construction; there is no global provider or contract registry.
type Relayer struct {
	backend Backend
	store   RecordStore
	notify  Notifier
	log     zerolog.Logger
}

// Option configures optional collaborators.
type Option func(*Relayer)

// WithStore records every relay attempt in rs.
func WithStore(rs RecordStore) Option {
	return func(r *Relayer) { r.store = rs }
}

// WithNotifier publishes relay lifecycle events to n.
func WithNotifier(n Notifier) Option {
	return func(r *Relayer) { r.notify = n }
}

// New creates a Relayer on the given backend.
func New(backend Backend, opts ...Option) *Relayer {
	r := &Relayer{
		backend: backend,
		log:     logger.L().With().Str("component", "relay").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Invoke performs one wrapped call through wallet. The payload always carries
// revertFlag=1: the wallet propagates target failures instead of swallowing
// them.
func (r *Relayer) Invoke(ctx context.Context, wallet ProxyWallet, req Request) (*Record, error) {
	var callData []byte
	if req.Call != nil {
		var err error
		callData, err = req.Call.CallData()
		if err != nil {
			return nil, &RelayError{Step: "encode call data", Err: err}
		}
	}

	value, err := codec.ParseUint256(req.AmountWei)
	if err != nil {
		return nil, &RelayError{Step: "parse amount", Err: err}
	}

	payload, err := invoke.BuildPayload(invoke.RevertOnFail, req.Target, value, callData)
	if err != nil {
		return nil, &RelayError{Step: "build payload", Err: err}
	}

	txData, err := wallet.Invoke0Data(payload)
	if err != nil {
		return nil, &RelayError{Step: "pack invoke0", Err: err}
	}

	rec := &Record{
		ID:         uuid.NewString(),
		Wallet:     wallet.Address(),
		Target:     payload.Target(),
		Sender:     req.Sender,
		AmountWei:  value.String(),
		PayloadHex: payload.Hex(),
		CreatedAt:  time.Now().UTC(),
	}

	// Estimating and sending use the identical calldata; a payload rebuilt
	// between the two could change the gas requirement.
	gas, err := r.backend.EstimateGas(ctx, req.Sender, wallet.Address(), big.NewInt(0), txData)
	if err != nil {
		return rec, r.fail(rec, "estimate gas", err)
	}
	rec.GasLimit = gas

	txHash, err := r.backend.SendTransaction(ctx, req.Sender, wallet.Address(), big.NewInt(0), gas, txData)
	if err != nil {
		return rec, r.fail(rec, "send transaction", err)
	}

	rec.TxHash = txHash
	rec.Status = StatusSubmitted
	r.finish(rec)
	r.log.Info().
		Str("wallet", rec.Wallet).
		Str("target", rec.Target).
		Str("tx", txHash).
		Uint64("gas", gas).
		Msg("relayed invoke0 transaction")
	return rec, nil
}

// Authorize submits the setAuthorized registration write directly from the
// wallet owner's EOA with zero value. It does not go through invoke0.
func (r *Relayer) Authorize(ctx context.Context, wallet ProxyWallet, newAuthorized, cosigner, owner string) (string, error) {
	txData, err := wallet.SetAuthorizedData(newAuthorized, cosigner)
	if err != nil {
		return "", &RelayError{Step: "pack setAuthorized", Err: err}
	}
	gas, err := r.backend.EstimateGas(ctx, owner, wallet.Address(), big.NewInt(0), txData)
	if err != nil {
		return "", &RelayError{Step: "estimate gas", Err: err}
	}
	txHash, err := r.backend.SendTransaction(ctx, owner, wallet.Address(), big.NewInt(0), gas, txData)
	if err != nil {
		return "", &RelayError{Step: "send transaction", Err: err}
	}
	r.log.Info().Str("wallet", wallet.Address()).Str("tx", txHash).Msg("submitted setAuthorized")
	return txHash, nil
}

func (r *Relayer) fail(rec *Record, step string, err error) error {
	rec.Status = StatusFailed
	rec.Error = err.Error()
	r.finish(rec)
	return &RelayError{Step: step, Err: err}
}

func (r *Relayer) finish(rec *Record) {
	if r.store != nil {
		if err := r.store.Save(rec); err != nil {
			r.log.Warn().Err(err).Str("id", rec.ID).Msg("failed to persist relay record")
		}
	}
	if r.notify != nil {
		if err := r.notify.Publish(rec); err != nil {
			r.log.Warn().Err(err).Str("id", rec.ID).Msg("failed to publish relay event")
		}
	}
}
