package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapperlabs/dapper-relay/pkg/relay"
	"github.com/dapperlabs/dapper-relay/pkg/store"
)

const (
	testWalletAddr = "0x1111111111111111111111111111111111111111"
	testSenderAddr = "0x2222222222222222222222222222222222222222"
	testDeviceAddr = "0x3333333333333333333333333333333333333333"
)

// fakeWallet implements WalletHandle with canned authorization state: the
// device key cosigns for itself under auth version 2.
type fakeWallet struct{}

func (fakeWallet) Address() string { return testWalletAddr }

func (fakeWallet) Invoke0Data(payload []byte) ([]byte, error) {
	return append([]byte("invoke0:"), payload...), nil
}

func (fakeWallet) SetAuthorizedData(newAuthorized, cosigner string) ([]byte, error) {
	return []byte("setAuthorized:" + newAuthorized + ":" + cosigner), nil
}

func (fakeWallet) AuthVersion(ctx context.Context) (any, error) {
	return new(big.Int).Lsh(big.NewInt(2), 160), nil
}

func (fakeWallet) Authorization(ctx context.Context, key *big.Int) (any, error) {
	device, _ := new(big.Int).SetString(strings.TrimPrefix(testDeviceAddr, "0x"), 16)
	want := new(big.Int).Lsh(big.NewInt(2), 160)
	want.Or(want, device)
	if key.Cmp(want) == 0 {
		return device, nil
	}
	return big.NewInt(0), nil
}

type fakeBackend struct {
	estimated []byte
	sent      []byte
	failSend  bool
}

func (b *fakeBackend) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	b.estimated = data
	return 21000, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, from, to string, value *big.Int, gas uint64, data []byte) (string, error) {
	if b.failSend {
		return "", fmt.Errorf("node rejected transaction")
	}
	b.sent = data
	return "0xdeadbeef", nil
}

func newTestServer(t *testing.T, backend *fakeBackend) *Server {
	t.Helper()
	history, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { history.Close() })

	relayer := relay.New(backend, relay.WithStore(history))
	return NewServer(fakeWallet{}, relayer, history, testSenderAddr, ":0")
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestVerifyCosigner(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})

	rr := postJSON(t, s.Handler(), "/api/v1/cosigner/verify", map[string]string{
		"address": testDeviceAddr,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Cosigner   string `json:"cosigner"`
		Authorized bool   `json:"authorized"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Authorized)
	assert.Equal(t, testDeviceAddr, resp.Cosigner)
}

func TestVerifyCosignerUnauthorized(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})

	rr := postJSON(t, s.Handler(), "/api/v1/cosigner/verify", map[string]string{
		"address": "0x4444444444444444444444444444444444444444",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Cosigner   string `json:"cosigner"`
		Authorized bool   `json:"authorized"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Authorized)
	assert.Equal(t, "0x0000000000000000000000000000000000000000", resp.Cosigner)
}

func TestTransferETH(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestServer(t, backend)

	rr := postJSON(t, s.Handler(), "/api/v1/transfers/eth", map[string]string{
		"to":         "0x4444444444444444444444444444444444444444",
		"amount_wei": "1000000000000000000",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp relayResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "submitted", resp.Status)
	assert.Equal(t, "0xdeadbeef", resp.TxHash)
	assert.Equal(t, testSenderAddr, resp.Sender)
	assert.Equal(t, "1000000000000000000", resp.AmountWei)

	// Gas was estimated against the exact bytes that were sent.
	assert.Equal(t, backend.estimated, backend.sent)
}

func TestRelayRawCallData(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestServer(t, backend)

	rr := postJSON(t, s.Handler(), "/api/v1/relay", map[string]string{
		"target":    "0x4444444444444444444444444444444444444444",
		"call_data": "0xdeadbeef",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp relayResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, strings.HasSuffix(resp.PayloadHex, "deadbeef"))
}

func TestRelayBadCallData(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})

	rr := postJSON(t, s.Handler(), "/api/v1/relay", map[string]string{
		"target":    "0x4444444444444444444444444444444444444444",
		"call_data": "not-hex",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransferERC20Validation(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})

	rr := postJSON(t, s.Handler(), "/api/v1/transfers/erc20", map[string]string{
		"token": "0x5555555555555555555555555555555555555555",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSendFailureIsBadGateway(t *testing.T) {
	s := newTestServer(t, &fakeBackend{failSend: true})

	rr := postJSON(t, s.Handler(), "/api/v1/transfers/eth", map[string]string{
		"to":         "0x4444444444444444444444444444444444444444",
		"amount_wei": "1",
	})
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestRelayHistory(t *testing.T) {
	s := newTestServer(t, &fakeBackend{})

	rr := postJSON(t, s.Handler(), "/api/v1/transfers/eth", map[string]string{
		"to":         "0x4444444444444444444444444444444444444444",
		"amount_wei": "7",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var submitted relayResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &submitted))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/relays", nil)
	list := httptest.NewRecorder()
	s.Handler().ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)

	var listResp struct {
		Relays []relayResponse `json:"relays"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listResp))
	require.Len(t, listResp.Relays, 1)
	assert.Equal(t, submitted.ID, listResp.Relays[0].ID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/relays/"+submitted.ID, nil)
	get := httptest.NewRecorder()
	s.Handler().ServeHTTP(get, req)
	assert.Equal(t, http.StatusOK, get.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/relays/missing", nil)
	missing := httptest.NewRecorder()
	s.Handler().ServeHTTP(missing, req)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}
