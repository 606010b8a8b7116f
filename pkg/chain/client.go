// Package chain implements the relay's provider capabilities on top of a
// go-ethereum JSON-RPC client. Dialing retries with backoff; contract reads,
// gas estimation, and submission never do; a failed operation surfaces to
// the caller unchanged.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/avast/retry-go"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/dapperlabs/dapper-relay/pkg/codec"
	"github.com/dapperlabs/dapper-relay/pkg/logger"
)

// TxSigner signs transactions for a single externally-owned address. The
// browser wallet's injected provider becomes this capability.
type TxSigner interface {
	// Address returns the signing address in canonical lowercase form.
	Address() string
	// SignTx signs tx for the given chain.
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client wraps an ethclient connection plus the injected signer. It satisfies
// both contracts.Caller and relay.Backend.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	signer  TxSigner
}

// Dial connects to rpcURL, retrying the initial connection and chain-ID probe
// with backoff. signer may be nil for read-only use.
func Dial(ctx context.Context, rpcURL string, signer TxSigner) (*Client, error) {
	var (
		eth     *ethclient.Client
		chainID *big.Int
	)
	err := retry.Do(
		func() error {
			var err error
			eth, err = ethclient.DialContext(ctx, rpcURL)
			if err != nil {
				return err
			}
			chainID, err = eth.ChainID(ctx)
			if err != nil {
				eth.Close()
				return err
			}
			return nil
		},
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
	)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	logger.Info("Connected to Ethereum node", "url", rpcURL, "chainID", chainID.String())
	return &Client{eth: eth, chainID: chainID, signer: signer}, nil
}

// ChainID returns the connected chain's identifier.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// CallContract performs a read-only eth_call at the latest block.
func (c *Client) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	toAddr, err := parseAddress(to)
	if err != nil {
		return nil, err
	}
	return c.eth.CallContract(ctx, ethereum.CallMsg{To: &toAddr, Data: data}, nil)
}

// EstimateGas estimates gas for the given call.
func (c *Client) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	fromAddr, err := parseAddress(from)
	if err != nil {
		return 0, err
	}
	toAddr, err := parseAddress(to)
	if err != nil {
		return 0, err
	}
	return c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  fromAddr,
		To:    &toAddr,
		Value: value,
		Data:  data,
	})
}

// SendTransaction fills nonce and gas price, signs with the injected signer,
// and submits. from must match the signer's address.
func (c *Client) SendTransaction(ctx context.Context, from, to string, value *big.Int, gas uint64, data []byte) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("chain: no signer configured")
	}
	if !strings.EqualFold(from, c.signer.Address()) {
		return "", fmt.Errorf("chain: sender %s does not match signer %s", from, c.signer.Address())
	}
	toAddr, err := parseAddress(to)
	if err != nil {
		return "", err
	}
	fromAddr, err := parseAddress(from)
	if err != nil {
		return "", err
	}

	nonce, err := c.eth.PendingNonceAt(ctx, fromAddr)
	if err != nil {
		return "", fmt.Errorf("chain: fetch nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("chain: suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, toAddr, value, gas, gasPrice, data)
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return "", fmt.Errorf("chain: sign transaction: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: send transaction: %w", err)
	}
	return signed.Hash().Hex(), nil
}

func parseAddress(addr string) (common.Address, error) {
	b, err := codec.NormalizeAddress(addr)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}
