package native_test

import (
	"math/big"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/crypto"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/0xSpaceShard/starknet-devnet-go/vm/native"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() sequencer.Config {
	price := felt.New(1)
	balance := felt.New(1000)
	return sequencer.Config{
		Seed:           42,
		TotalAccounts:  2,
		InitialBalance: &balance,
		Network:        utils.Sepolia,
		GasPrices: core.GasPrices{
			L1GasPriceWEI: &price, L1GasPriceFRI: &price,
			L1DataGasPriceWEI: &price, L1DataGasPriceFRI: &price,
			L2GasPriceWEI: &price, L2GasPriceFRI: &price,
		},
		BlockGeneration: sequencer.BlockGeneration{Mode: sequencer.GenerateOnTransaction},
		Archive:         state.CapacityFull,
	}
}

func TestMintThroughNativeExecutor(t *testing.T) {
	seq, err := sequencer.New(testConfig(), native.New(), utils.NewNopZapLogger())
	require.NoError(t, err)

	recipient := felt.New(0x1)
	_, balance, err := seq.Mint(&recipient, big.NewInt(100), core.FRI)
	require.NoError(t, err)
	assert.Equal(t, "100", balance.String())
}

func TestTransferBetweenAccounts(t *testing.T) {
	seq, err := sequencer.New(testConfig(), native.New(), utils.NewNopZapLogger())
	require.NoError(t, err)

	accounts := seq.Accounts()
	require.Len(t, accounts, 2)
	from, to := accounts[0], accounts[1]

	one := felt.New(1)
	amountLow := felt.New(250)
	three := felt.New(3)
	maxFee := felt.New(500)
	sig := felt.New(0x51)
	_, err = seq.AddTransaction(sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version:              &one,
		SenderAddress:        from.Address,
		Nonce:                &felt.Zero,
		MaxFee:               &maxFee,
		TransactionSignature: []*felt.Felt{&sig},
		CallData: []*felt.Felt{
			sequencer.EthFeeTokenAddress,
			mustSelector("transfer"),
			&three,
			to.Address, &amountLow, &felt.Zero,
		},
	}})
	require.NoError(t, err)

	fromBalance, err := seq.BalanceAt(sequencer.LatestBlockID(), from.Address, core.WEI)
	require.NoError(t, err)
	assert.Equal(t, "750", fromBalance.String())

	toBalance, err := seq.BalanceAt(sequencer.LatestBlockID(), to.Address, core.WEI)
	require.NoError(t, err)
	assert.Equal(t, "1250", toBalance.String())
}

func TestOverdraftReverts(t *testing.T) {
	seq, err := sequencer.New(testConfig(), native.New(), utils.NewNopZapLogger())
	require.NoError(t, err)

	accounts := seq.Accounts()
	from := accounts[0]

	one := felt.New(1)
	tooMuch := felt.New(5000)
	three := felt.New(3)
	maxFee := felt.New(500)
	sig := felt.New(0x51)
	hash, err := seq.AddTransaction(sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version:              &one,
		SenderAddress:        from.Address,
		Nonce:                &felt.Zero,
		MaxFee:               &maxFee,
		TransactionSignature: []*felt.Felt{&sig},
		CallData: []*felt.Felt{
			sequencer.EthFeeTokenAddress,
			mustSelector("transfer"),
			&three,
			accounts[1].Address, &tooMuch, &felt.Zero,
		},
	}})
	// Execution-phase reverts are admitted.
	require.NoError(t, err)

	entry, err := seq.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, core.TxnReverted, entry.Receipt.ExecutionStatus)
	assert.Contains(t, entry.Receipt.RevertReason, "exceeds balance")
}

func TestInvalidNonceRejected(t *testing.T) {
	seq, err := sequencer.New(testConfig(), native.New(), utils.NewNopZapLogger())
	require.NoError(t, err)

	from := seq.Accounts()[0]
	one := felt.New(1)
	wrongNonce := felt.New(9)
	maxFee := felt.New(500)
	sig := felt.New(0x51)
	_, err = seq.AddTransaction(sequencer.BroadcastItem{Transaction: &core.InvokeTransaction{
		Version:              &one,
		SenderAddress:        from.Address,
		Nonce:                &wrongNonce,
		MaxFee:               &maxFee,
		TransactionSignature: []*felt.Felt{&sig},
		CallData:             []*felt.Felt{sequencer.EthFeeTokenAddress, mustSelector("transfer"), &felt.Zero},
	}})
	require.Error(t, err)
}

func mustSelector(name string) *felt.Felt {
	return crypto.StarknetKeccak([]byte(name))
}
