package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/dapperlabs/dapper-relay/pkg/authz"
	"github.com/dapperlabs/dapper-relay/pkg/codec"
	"github.com/dapperlabs/dapper-relay/pkg/contracts"
	"github.com/dapperlabs/dapper-relay/pkg/relay"
	"github.com/dapperlabs/dapper-relay/pkg/store"
)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// rawCall wraps pre-encoded target calldata for the relay endpoint.
type rawCall []byte

func (c rawCall) CallData() ([]byte, error) { return c, nil }

type relayResponse struct {
	ID         string `json:"id"`
	Wallet     string `json:"wallet"`
	Target     string `json:"target"`
	Sender     string `json:"sender"`
	AmountWei  string `json:"amount_wei"`
	PayloadHex string `json:"payload_hex"`
	GasLimit   uint64 `json:"gas_limit,omitempty"`
	TxHash     string `json:"tx_hash,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toRelayResponse(rec *relay.Record) relayResponse {
	return relayResponse{
		ID:         rec.ID,
		Wallet:     rec.Wallet,
		Target:     rec.Target,
		Sender:     rec.Sender,
		AmountWei:  rec.AmountWei,
		PayloadHex: rec.PayloadHex,
		GasLimit:   rec.GasLimit,
		TxHash:     rec.TxHash,
		Status:     rec.Status,
		Error:      rec.Error,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
	}
}

// relayErrorStatus maps pipeline failures to HTTP codes: input problems are
// the caller's fault, chain problems are upstream's.
func relayErrorStatus(err error) int {
	var relayErr *relay.RelayError
	if errors.As(err, &relayErr) {
		switch relayErr.Step {
		case "estimate gas", "send transaction":
			return http.StatusBadGateway
		}
	}
	return http.StatusBadRequest
}

func (s *Server) runRelay(w http.ResponseWriter, r *http.Request, req relay.Request) {
	if req.Sender == "" {
		req.Sender = s.sender
	}
	rec, err := s.relayer.Invoke(r.Context(), s.wallet, req)
	if err != nil {
		writeError(w, relayErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRelayResponse(rec))
}

func (s *Server) handleVerifyCosigner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	authorized, cosigner, err := authz.IsAuthorized(r.Context(), req.Address, s.wallet)
	if err != nil {
		var badAddr *codec.InvalidAddressError
		if errors.As(err, &badAddr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":    req.Address,
		"cosigner":   cosigner,
		"authorized": authorized,
	})
}

func (s *Server) handleRelay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target    string `json:"target"`
		AmountWei string `json:"amount_wei"`
		CallData  string `json:"call_data"`
		Sender    string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	var call relay.CallProducer
	if req.CallData != "" {
		data, err := hexutil.Decode(req.CallData)
		if err != nil {
			writeError(w, http.StatusBadRequest, "call_data must be 0x-prefixed hex")
			return
		}
		call = rawCall(data)
	}

	s.runRelay(w, r, relay.Request{
		Target:    req.Target,
		Call:      call,
		AmountWei: req.AmountWei,
		Sender:    req.Sender,
	})
}

func (s *Server) handleTransferETH(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To        string `json:"to"`
		AmountWei string `json:"amount_wei"`
		Sender    string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.AmountWei == "" {
		writeError(w, http.StatusBadRequest, "to and amount_wei are required")
		return
	}

	s.runRelay(w, r, relay.Request{
		Target:    req.To,
		AmountWei: req.AmountWei,
		Sender:    req.Sender,
	})
}

func (s *Server) handleTransferERC20(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string `json:"token"`
		To     string `json:"to"`
		Amount string `json:"amount"`
		Sender string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Token == "" || req.To == "" || req.Amount == "" {
		writeError(w, http.StatusBadRequest, "token, to, and amount are required")
		return
	}
	amount, err := codec.ParseUint256(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	s.runRelay(w, r, relay.Request{
		Target: req.Token,
		Call:   contracts.ERC20Transfer{Token: req.Token, To: req.To, Amount: amount},
		Sender: req.Sender,
	})
}

func (s *Server) handleTransferERC721(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Contract string `json:"contract"`
		To       string `json:"to"`
		TokenID  string `json:"token_id"`
		Sender   string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Contract == "" || req.To == "" || req.TokenID == "" {
		writeError(w, http.StatusBadRequest, "contract, to, and token_id are required")
		return
	}
	tokenID, err := codec.ParseUint256(req.TokenID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid token_id")
		return
	}

	s.runRelay(w, r, relay.Request{
		Target: req.Contract,
		Call: contracts.ERC721Transfer{
			Contract: req.Contract,
			From:     s.wallet.Address(),
			To:       req.To,
			TokenID:  tokenID,
		},
		Sender: req.Sender,
	})
}

func (s *Server) handleTransferKitty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To      string `json:"to"`
		KittyID string `json:"kitty_id"`
		Sender  string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.KittyID == "" {
		writeError(w, http.StatusBadRequest, "to and kitty_id are required")
		return
	}
	kittyID, err := codec.ParseUint256(req.KittyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid kitty_id")
		return
	}

	call := contracts.KittyTransfer{To: req.To, KittyID: kittyID}
	s.runRelay(w, r, relay.Request{
		Target: call.Target(),
		Call:   call,
		Sender: req.Sender,
	})
}

func (s *Server) handleTransferPunk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To        string `json:"to"`
		PunkIndex string `json:"punk_index"`
		Sender    string `json:"sender"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.PunkIndex == "" {
		writeError(w, http.StatusBadRequest, "to and punk_index are required")
		return
	}
	punkIndex, err := codec.ParseUint256(req.PunkIndex)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid punk_index")
		return
	}

	call := contracts.PunkTransfer{To: req.To, PunkIndex: punkIndex}
	s.runRelay(w, r, relay.Request{
		Target: call.Target(),
		Call:   call,
		Sender: req.Sender,
	})
}

func (s *Server) handleListRelays(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "relay history disabled")
		return
	}
	recs, err := s.history.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"relays": lo.Map(recs, func(rec *relay.Record, _ int) relayResponse {
			return toRelayResponse(rec)
		}),
	})
}

func (s *Server) handleGetRelay(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "relay history disabled")
		return
	}
	rec, err := s.history.Get(chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "relay not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toRelayResponse(rec))
}
