// Package contracts holds the ABI surface the relay talks to: the legacy
// wallet itself plus the token contracts whose transfers are routed through
// it. Only the methods the relay actually calls are declared.
package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Well-known mainnet contracts (lowercase canonical form).
const (
	CryptoKittiesAddress = "0x06012c8cf97bead5deae237070f9587f8e7a266d"
	CryptoPunksAddress   = "0xb47e3cd837ddf8e4c57f05d70ab865de6e193bbb"
)

const walletABIJSON = `[
	{"type":"function","name":"invoke0","inputs":[{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"bytes32"}],"stateMutability":"payable"},
	{"type":"function","name":"authVersion","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"authorizations","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"setAuthorized","inputs":[{"name":"_authorizedAddress","type":"address"},{"name":"_cosigner","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"transfer","inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"}
]`

const erc721ABIJSON = `[
	{"type":"function","name":"transferFrom","inputs":[{"name":"_from","type":"address"},{"name":"_to","type":"address"},{"name":"_tokenId","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const kittiesABIJSON = `[
	{"type":"function","name":"transfer","inputs":[{"name":"_to","type":"address"},{"name":"_tokenId","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const punksABIJSON = `[
	{"type":"function","name":"transferPunk","inputs":[{"name":"to","type":"address"},{"name":"punkIndex","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

var (
	walletABI  = mustParseABI(walletABIJSON)
	erc20ABI   = mustParseABI(erc20ABIJSON)
	erc721ABI  = mustParseABI(erc721ABIJSON)
	kittiesABI = mustParseABI(kittiesABIJSON)
	punksABI   = mustParseABI(punksABIJSON)
)

func mustParseABI(j string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(j))
	if err != nil {
		panic("contracts: bad ABI literal: " + err.Error())
	}
	return parsed
}
