package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// AssetABI covers the ledger methods the forwarder uses.
const AssetABI = `[
	{"inputs":[],"name":"owner","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"getIsFeeExempt","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"address","name":"account","type":"address"},{"internalType":"bool","name":"exempt","type":"bool"}],"name":"setIsFeeExempt","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// RouterABI covers the Uniswap V2 router methods used for the guarded swap.
const RouterABI = `[
	{"inputs":[],"name":"WETH","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"pure","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactETHForTokensSupportingFeeOnTransferTokens","outputs":[],"stateMutability":"payable","type":"function"}
]`

const (
	methodOwner        = "owner"
	methodIsFeeExempt  = "getIsFeeExempt"
	methodSetFeeExempt = "setIsFeeExempt"
	methodWETH         = "WETH"
	methodSwapExactETH = "swapExactETHForTokensSupportingFeeOnTransferTokens"
)

var (
	assetABI  = mustParseABI(AssetABI)
	routerABI = mustParseABI(RouterABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
