package core_test

import (
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInvokeV1(nonce uint64) *core.InvokeTransaction {
	sender := felt.New(0xacc)
	maxFee := felt.New(1000)
	n := felt.New(nonce)
	one := felt.New(1)
	return &core.InvokeTransaction{
		Version:       &one,
		SenderAddress: &sender,
		CallData:      []*felt.Felt{&sender},
		Nonce:         &n,
		MaxFee:        &maxFee,
	}
}

func TestTransactionHashBindsChainID(t *testing.T) {
	sepolia := new(felt.Felt).SetBytes([]byte("SN_SEPOLIA"))
	mainnet := new(felt.Felt).SetBytes([]byte("SN_MAIN"))

	tx := newInvokeV1(0)
	h1, err := core.TransactionHash(tx, sepolia)
	require.NoError(t, err)
	h2, err := core.TransactionHash(tx, mainnet)
	require.NoError(t, err)

	assert.False(t, h1.Equal(h2))
}

func TestTransactionHashBindsNonce(t *testing.T) {
	chainID := new(felt.Felt).SetBytes([]byte("SN_SEPOLIA"))

	h1, err := core.TransactionHash(newInvokeV1(0), chainID)
	require.NoError(t, err)
	h2, err := core.TransactionHash(newInvokeV1(1), chainID)
	require.NoError(t, err)

	assert.False(t, h1.Equal(h2))
}

func TestTransactionHashIsDeterministic(t *testing.T) {
	chainID := new(felt.Felt).SetBytes([]byte("SN_SEPOLIA"))

	h1, err := core.TransactionHash(newInvokeV1(5), chainID)
	require.NoError(t, err)
	h2, err := core.TransactionHash(newInvokeV1(5), chainID)
	require.NoError(t, err)

	assert.True(t, h1.Equal(h2))
}

func TestV3HashUsesResourceBounds(t *testing.T) {
	chainID := new(felt.Felt).SetBytes([]byte("SN_SEPOLIA"))
	sender := felt.New(0xacc)
	three := felt.New(3)
	nonce := felt.Zero
	price := felt.New(10)

	base := &core.InvokeTransaction{
		Version:       &three,
		SenderAddress: &sender,
		Nonce:         &nonce,
		ResourceBounds: map[core.Resource]core.ResourceBounds{
			core.ResourceL1Gas: {MaxAmount: 100, MaxPricePerUnit: &price},
		},
	}
	h1, err := core.TransactionHash(base, chainID)
	require.NoError(t, err)

	bumped := *base
	bumped.ResourceBounds = map[core.Resource]core.ResourceBounds{
		core.ResourceL1Gas: {MaxAmount: 200, MaxPricePerUnit: &price},
	}
	h2, err := core.TransactionHash(&bumped, chainID)
	require.NoError(t, err)

	assert.False(t, h1.Equal(h2))
}

func TestDeployAccountAddressDeterministic(t *testing.T) {
	salt := felt.New(7)
	classHash := felt.New(0xc1a55)
	calldata := []*felt.Felt{&salt}

	a1 := core.ContractAddressFromDeploy(&felt.Zero, &salt, &classHash, calldata)
	a2 := core.ContractAddressFromDeploy(&felt.Zero, &salt, &classHash, calldata)
	assert.True(t, a1.Equal(a2))

	otherSalt := felt.New(8)
	a3 := core.ContractAddressFromDeploy(&felt.Zero, &otherSalt, &classHash, calldata)
	assert.False(t, a1.Equal(a3))
}

func TestTxAccessors(t *testing.T) {
	tx := newInvokeV1(3)
	assert.Equal(t, core.TxnInvoke, tx.Type())
	assert.Equal(t, "0x3", core.TxNonce(tx).String())
	assert.True(t, core.TxSender(tx).Equal(tx.SenderAddress))

	l1h := &core.L1HandlerTransaction{ContractAddress: tx.SenderAddress, Version: &felt.Zero}
	assert.Equal(t, "0x0", core.TxNonce(l1h).String())
	assert.Nil(t, l1h.Signature())
}
