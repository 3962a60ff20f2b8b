// Package contract describes the AddressNFT contract surface consumed by
// geomint. Only the ABI is known here; the contract itself is deployed
// separately and treated as an opaque remote dependency.
package contract

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Method and event names on the AddressNFT contract.
const (
	MethodMint        = "mintNFT"
	MethodAddressData = "getAddressData"
	EventTransfer     = "Transfer"
)

// addressNFTABI is the JSON form of:
//
//	function mintNFT(address recipient, string addressText, int256 lat, int256 lon) returns (uint256)
//	function getAddressData(uint256 tokenId) view returns (string, int256, int256)
//	event Transfer(address indexed from, address indexed to, uint256 indexed tokenId)
const addressNFTABI = `[
  {"type":"function","name":"mintNFT","stateMutability":"nonpayable",
   "inputs":[
     {"name":"recipient","type":"address"},
     {"name":"addressText","type":"string"},
     {"name":"lat","type":"int256"},
     {"name":"lon","type":"int256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getAddressData","stateMutability":"view",
   "inputs":[{"name":"tokenId","type":"uint256"}],
   "outputs":[
     {"name":"","type":"string"},
     {"name":"","type":"int256"},
     {"name":"","type":"int256"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[
     {"name":"from","type":"address","indexed":true},
     {"name":"to","type":"address","indexed":true},
     {"name":"tokenId","type":"uint256","indexed":true}]}
]`

// ErrNoTransferEvent is returned when a receipt carries no Transfer log
// emitted by the contract.
var ErrNoTransferEvent = errors.New("transfer event not found in transaction receipt")

// AddressNFT is the parsed ABI. It is safe for concurrent use.
var AddressNFT = mustParseABI(addressNFTABI)

// TransferTopic is the keccak256 signature hash of the Transfer event.
var TransferTopic = AddressNFT.Events[EventTransfer].ID

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("contract: invalid AddressNFT ABI: %v", err))
	}
	return parsed
}

// PackMint builds calldata for mintNFT(recipient, addressText, lat, lon).
func PackMint(recipient common.Address, addressText string, lat, lon *big.Int) ([]byte, error) {
	if lat == nil || lon == nil {
		return nil, errors.New("pack mintNFT: coordinates are required")
	}
	data, err := AddressNFT.Pack(MethodMint, recipient, addressText, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("pack mintNFT: %w", err)
	}
	return data, nil
}

// AddressData is the on-chain record returned by getAddressData. Coordinates
// are still in fixed-point form.
type AddressData struct {
	AddressText string
	Lat         *big.Int
	Lon         *big.Int
}

// PackAddressData builds calldata for getAddressData(tokenId).
func PackAddressData(tokenID *big.Int) ([]byte, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, fmt.Errorf("pack getAddressData: invalid token id %v", tokenID)
	}
	data, err := AddressNFT.Pack(MethodAddressData, tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack getAddressData: %w", err)
	}
	return data, nil
}

// UnpackAddressData decodes the return data of getAddressData.
func UnpackAddressData(output []byte) (*AddressData, error) {
	values, err := AddressNFT.Unpack(MethodAddressData, output)
	if err != nil {
		return nil, fmt.Errorf("unpack getAddressData: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unpack getAddressData: expected 3 values, got %d", len(values))
	}
	text, ok := values[0].(string)
	if !ok {
		return nil, fmt.Errorf("unpack getAddressData: address text has type %T", values[0])
	}
	lat, ok := values[1].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack getAddressData: lat has type %T", values[1])
	}
	lon, ok := values[2].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack getAddressData: lon has type %T", values[2])
	}
	return &AddressData{AddressText: text, Lat: lat, Lon: lon}, nil
}

// Transfer is a decoded Transfer log.
type Transfer struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
	Index   uint
}

// IsMint reports whether the transfer originates from the zero address.
func (t Transfer) IsMint() bool {
	return t.From == (common.Address{})
}

// ParseTransfer decodes a Transfer log. All three arguments are indexed, so
// they live in topics 1..3 and the data section is empty.
func ParseTransfer(l *types.Log) (Transfer, bool) {
	if l == nil || len(l.Topics) != 4 || l.Topics[0] != TransferTopic {
		return Transfer{}, false
	}
	return Transfer{
		From:    common.BytesToAddress(l.Topics[1].Bytes()),
		To:      common.BytesToAddress(l.Topics[2].Bytes()),
		TokenID: new(big.Int).SetBytes(l.Topics[3].Bytes()),
		Index:   l.Index,
	}, true
}

// FindTransfer scans receipt logs for the Transfer emitted by the mint call.
//
// Only logs emitted by contractAddr are considered. A mint (from the zero
// address) to recipient is preferred; failing that the first Transfer from
// the contract is used.
func FindTransfer(logs []*types.Log, contractAddr, recipient common.Address) (Transfer, error) {
	var first *Transfer
	for _, l := range logs {
		if l == nil || l.Address != contractAddr {
			continue
		}
		tr, ok := ParseTransfer(l)
		if !ok {
			continue
		}
		if tr.IsMint() && tr.To == recipient {
			return tr, nil
		}
		if first == nil {
			first = &tr
		}
	}
	if first == nil {
		return Transfer{}, ErrNoTransferEvent
	}
	return *first, nil
}
