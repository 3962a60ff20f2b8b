package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SepoliaChainID is the only network geomint mints on by default.
const SepoliaChainID = 11155111

// DefaultAddress is the deployed AddressNFT contract on Sepolia.
var DefaultAddress = common.HexToAddress("0x7e9A88b3CD623460BFB0B5a42D872e17FB196D1F")

// DefaultRPCURL is used when no endpoint is configured.
const DefaultRPCURL = "https://rpc.sepolia.org"

const sepoliaExplorer = "https://sepolia.etherscan.io"

// Sepolia returns the expected chain id as a big.Int.
func Sepolia() *big.Int {
	return big.NewInt(SepoliaChainID)
}

// ExplorerTxURL links a transaction hash on the Sepolia block explorer.
func ExplorerTxURL(txHash string) string {
	return sepoliaExplorer + "/tx/" + txHash
}
