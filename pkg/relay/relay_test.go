package relay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/dapper-relay/pkg/invoke"
)

// fakeWallet packs invoke0 calldata by prefixing the payload with a marker so
// tests can recognize it without a real ABI encoder.
type fakeWallet struct {
	addr string
}

func (w *fakeWallet) Address() string { return w.addr }

func (w *fakeWallet) Invoke0Data(payload []byte) ([]byte, error) {
	return append([]byte("invoke0:"), payload...), nil
}

func (w *fakeWallet) SetAuthorizedData(newAuthorized, cosigner string) ([]byte, error) {
	return []byte("setAuthorized:" + newAuthorized + ":" + cosigner), nil
}

type fakeBackend struct {
	estimateErr error
	sendErr     error

	estimatedData []byte
	sentData      []byte
	sentFrom      string
	sentTo        string
	sentGas       uint64
	sentValue     *big.Int
}

func (b *fakeBackend) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	b.estimatedData = data
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return 90000, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, from, to string, value *big.Int, gas uint64, data []byte) (string, error) {
	b.sentFrom, b.sentTo, b.sentGas, b.sentValue, b.sentData = from, to, gas, value, data
	if b.sendErr != nil {
		return "", b.sendErr
	}
	return "0xtxhash", nil
}

type fakeStore struct {
	saved []*Record
}

func (s *fakeStore) Save(rec *Record) error {
	s.saved = append(s.saved, rec)
	return nil
}

type staticCall []byte

func (c staticCall) CallData() ([]byte, error) { return c, nil }

type failingCall struct{}

func (failingCall) CallData() ([]byte, error) { return nil, fmt.Errorf("bad call") }

func TestInvokeSubmits(t *testing.T) {
	backend := &fakeBackend{}
	store := &fakeStore{}
	r := New(backend, WithStore(store))
	wallet := &fakeWallet{addr: "0x00000000000000000000000000000000000000aa"}

	rec, err := r.Invoke(context.Background(), wallet, Request{
		Target:    "0x0000000000000000000000000000000000000001",
		Call:      staticCall{0xde, 0xad, 0xbe, 0xef},
		AmountWei: "1",
		Sender:    "0x00000000000000000000000000000000000000bb",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusSubmitted, rec.Status)
	assert.Equal(t, "0xtxhash", rec.TxHash)
	assert.Equal(t, uint64(90000), rec.GasLimit)
	assert.NotEmpty(t, rec.ID)

	// Estimation and submission must use the identical calldata.
	assert.True(t, bytes.Equal(backend.estimatedData, backend.sentData))

	// Outer transaction targets the wallet with zero value; the forwarded
	// wei value lives inside the payload.
	assert.Equal(t, wallet.Address(), backend.sentTo)
	assert.Equal(t, "0x00000000000000000000000000000000000000bb", backend.sentFrom)
	assert.Zero(t, backend.sentValue.Sign())

	// The embedded payload carries revertFlag=1 and the full header layout.
	payload := invoke.Payload(bytes.TrimPrefix(backend.sentData, []byte("invoke0:")))
	assert.Equal(t, byte(invoke.RevertOnFail), payload.RevertFlag())
	assert.Equal(t, "0x0000000000000000000000000000000000000001", payload.Target())
	assert.Equal(t, int64(1), payload.Value().Int64())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, payload.CallData())
	assert.Len(t, []byte(payload), 89)

	require.Len(t, store.saved, 1)
	assert.Equal(t, rec.ID, store.saved[0].ID)
}

func TestInvokeEmptyCall(t *testing.T) {
	backend := &fakeBackend{}
	r := New(backend)
	wallet := &fakeWallet{addr: "0xaa"}

	rec, err := r.Invoke(context.Background(), wallet, Request{
		Target: "0x01",
		Sender: "0xbb",
	})
	require.NoError(t, err)
	assert.Equal(t, "0", rec.AmountWei)

	payload := invoke.Payload(bytes.TrimPrefix(backend.sentData, []byte("invoke0:")))
	assert.Len(t, []byte(payload), invoke.HeaderSize)
	assert.Empty(t, payload.CallData())
}

func TestInvokeCallProducerError(t *testing.T) {
	r := New(&fakeBackend{})
	_, err := r.Invoke(context.Background(), &fakeWallet{addr: "0xaa"}, Request{
		Target: "0x01",
		Call:   failingCall{},
		Sender: "0xbb",
	})
	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, "encode call data", relayErr.Step)
}

func TestInvokeEstimateFailure(t *testing.T) {
	estimateErr := errors.New("execution reverted")
	store := &fakeStore{}
	r := New(&fakeBackend{estimateErr: estimateErr}, WithStore(store))

	rec, err := r.Invoke(context.Background(), &fakeWallet{addr: "0xaa"}, Request{
		Target: "0x01",
		Sender: "0xbb",
	})
	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.ErrorIs(t, err, estimateErr)

	// The failed attempt is still recorded.
	require.Len(t, store.saved, 1)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.NotEmpty(t, rec.Error)
}

func TestInvokeSendFailure(t *testing.T) {
	sendErr := errors.New("user rejected signature")
	r := New(&fakeBackend{sendErr: sendErr})

	rec, err := r.Invoke(context.Background(), &fakeWallet{addr: "0xaa"}, Request{
		Target: "0x01",
		Sender: "0xbb",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Empty(t, rec.TxHash)
}

func TestInvokeBadAmount(t *testing.T) {
	r := New(&fakeBackend{})
	_, err := r.Invoke(context.Background(), &fakeWallet{addr: "0xaa"}, Request{
		Target:    "0x01",
		AmountWei: "-4",
		Sender:    "0xbb",
	})
	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, "parse amount", relayErr.Step)
}

func TestAuthorize(t *testing.T) {
	backend := &fakeBackend{}
	r := New(backend)
	wallet := &fakeWallet{addr: "0xaa"}

	txHash, err := r.Authorize(context.Background(), wallet, "0x01", "0x02", "0xowner")
	require.NoError(t, err)
	assert.Equal(t, "0xtxhash", txHash)
	assert.Equal(t, []byte("setAuthorized:0x01:0x02"), backend.sentData)
	assert.Zero(t, backend.sentValue.Sign())
}
