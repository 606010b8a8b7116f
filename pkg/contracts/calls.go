package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dapperlabs/dapper-relay/pkg/codec"
)

// ERC20Transfer produces transfer(to, amount) calldata for an ERC-20 token.
type ERC20Transfer struct {
	Token  string
	To     string
	Amount *big.Int
}

// Target returns the token contract address.
func (c ERC20Transfer) Target() string { return c.Token }

// CallData packs the transfer call.
func (c ERC20Transfer) CallData() ([]byte, error) {
	to, err := addressArg(c.To)
	if err != nil {
		return nil, err
	}
	if c.Amount == nil || c.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("contracts: erc20 transfer amount must be positive")
	}
	return erc20ABI.Pack("transfer", to, c.Amount)
}

// ERC721Transfer produces transferFrom(from, to, tokenId) calldata. From is
// the legacy wallet address, which owns the token.
type ERC721Transfer struct {
	Contract string
	From     string
	To       string
	TokenID  *big.Int
}

// Target returns the NFT contract address.
func (c ERC721Transfer) Target() string { return c.Contract }

// CallData packs the transferFrom call.
func (c ERC721Transfer) CallData() ([]byte, error) {
	from, err := addressArg(c.From)
	if err != nil {
		return nil, err
	}
	to, err := addressArg(c.To)
	if err != nil {
		return nil, err
	}
	if c.TokenID == nil {
		return nil, fmt.Errorf("contracts: erc721 token id required")
	}
	return erc721ABI.Pack("transferFrom", from, to, c.TokenID)
}

// KittyTransfer produces CryptoKitties transfer(to, kittyId) calldata. The
// kitties contract predates ERC-721 and uses its own transfer signature.
type KittyTransfer struct {
	To      string
	KittyID *big.Int
}

// Target returns the CryptoKitties core contract address.
func (c KittyTransfer) Target() string { return CryptoKittiesAddress }

// CallData packs the transfer call.
func (c KittyTransfer) CallData() ([]byte, error) {
	to, err := addressArg(c.To)
	if err != nil {
		return nil, err
	}
	if c.KittyID == nil {
		return nil, fmt.Errorf("contracts: kitty id required")
	}
	return kittiesABI.Pack("transfer", to, c.KittyID)
}

// PunkTransfer produces CryptoPunks transferPunk(to, punkIndex) calldata.
type PunkTransfer struct {
	To        string
	PunkIndex *big.Int
}

// Target returns the CryptoPunks market contract address.
func (c PunkTransfer) Target() string { return CryptoPunksAddress }

// CallData packs the transferPunk call.
func (c PunkTransfer) CallData() ([]byte, error) {
	to, err := addressArg(c.To)
	if err != nil {
		return nil, err
	}
	if c.PunkIndex == nil {
		return nil, fmt.Errorf("contracts: punk index required")
	}
	return punksABI.Pack("transferPunk", to, c.PunkIndex)
}

func addressArg(addr string) (common.Address, error) {
	b, err := codec.NormalizeAddress(addr)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}
