package contract

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract  = common.HexToAddress("0x7e9A88b3CD623460BFB0B5a42D872e17FB196D1F")
	testRecipient = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherAccount  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func transferLog(emitter, from, to common.Address, tokenID int64, index uint) *types.Log {
	return &types.Log{
		Address: emitter,
		Topics: []common.Hash{
			TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
			common.BigToHash(big.NewInt(tokenID)),
		},
		Index: index,
	}
}

func TestTransferTopic(t *testing.T) {
	want := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	assert.Equal(t, want, TransferTopic)
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", TransferTopic.Hex())
}

func TestPackMint(t *testing.T) {
	data, err := PackMint(testRecipient, "1 Market St", big.NewInt(37774900), big.NewInt(-122419400))
	require.NoError(t, err)

	selector := crypto.Keccak256([]byte("mintNFT(address,string,int256,int256)"))[:4]
	assert.Equal(t, selector, data[:4])

	args, err := AddressNFT.Methods[MethodMint].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.Equal(t, testRecipient, args[0])
	assert.Equal(t, "1 Market St", args[1])
	assert.Equal(t, big.NewInt(37774900), args[2])
	assert.Equal(t, big.NewInt(-122419400), args[3])
}

func TestPackMint_NilCoordinates(t *testing.T) {
	_, err := PackMint(testRecipient, "x", nil, big.NewInt(1))
	require.Error(t, err)
}

func TestPackAddressData(t *testing.T) {
	data, err := PackAddressData(big.NewInt(7))
	require.NoError(t, err)
	selector := crypto.Keccak256([]byte("getAddressData(uint256)"))[:4]
	assert.Equal(t, selector, data[:4])

	_, err = PackAddressData(big.NewInt(-1))
	require.Error(t, err)
	_, err = PackAddressData(nil)
	require.Error(t, err)
}

func TestUnpackAddressData(t *testing.T) {
	out, err := AddressNFT.Methods[MethodAddressData].Outputs.Pack("Ferry Building", big.NewInt(37795500), big.NewInt(-122393700))
	require.NoError(t, err)

	got, err := UnpackAddressData(out)
	require.NoError(t, err)
	assert.Equal(t, "Ferry Building", got.AddressText)
	assert.Equal(t, big.NewInt(37795500), got.Lat)
	assert.Equal(t, big.NewInt(-122393700), got.Lon)
}

func TestUnpackAddressData_Garbage(t *testing.T) {
	_, err := UnpackAddressData([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unpack getAddressData")
}

func TestParseTransfer(t *testing.T) {
	tr, ok := ParseTransfer(transferLog(testContract, common.Address{}, testRecipient, 42, 3))
	require.True(t, ok)
	assert.True(t, tr.IsMint())
	assert.Equal(t, testRecipient, tr.To)
	assert.Equal(t, big.NewInt(42), tr.TokenID)
	assert.Equal(t, uint(3), tr.Index)

	_, ok = ParseTransfer(&types.Log{Topics: []common.Hash{TransferTopic}})
	assert.False(t, ok, "ERC-20 style transfer with data-encoded fields is not a mint")

	_, ok = ParseTransfer(nil)
	assert.False(t, ok)
}

func TestFindTransfer(t *testing.T) {
	approval := &types.Log{
		Address: testContract,
		Topics:  []common.Hash{crypto.Keccak256Hash([]byte("Approval(address,address,uint256)")), {}, {}, {}},
	}

	tests := []struct {
		name    string
		logs    []*types.Log
		want    int64
		wantErr error
	}{
		{
			name: "single mint",
			logs: []*types.Log{transferLog(testContract, common.Address{}, testRecipient, 5, 0)},
			want: 5,
		},
		{
			name: "prefers mint to recipient",
			logs: []*types.Log{
				transferLog(testContract, otherAccount, testRecipient, 1, 0),
				transferLog(testContract, common.Address{}, testRecipient, 2, 1),
			},
			want: 2,
		},
		{
			name: "falls back to first transfer from contract",
			logs: []*types.Log{
				approval,
				transferLog(testContract, otherAccount, otherAccount, 9, 1),
				transferLog(testContract, otherAccount, testRecipient, 10, 2),
			},
			want: 9,
		},
		{
			name:    "ignores other emitters",
			logs:    []*types.Log{transferLog(otherAccount, common.Address{}, testRecipient, 3, 0)},
			wantErr: ErrNoTransferEvent,
		},
		{
			name:    "no logs",
			logs:    nil,
			wantErr: ErrNoTransferEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := FindTransfer(tt.logs, testContract, testRecipient)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, big.NewInt(tt.want), tr.TokenID)
		})
	}
}

func TestExplorerTxURL(t *testing.T) {
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", ExplorerTxURL("0xabc"))
	assert.Equal(t, int64(11155111), Sepolia().Int64())
}
