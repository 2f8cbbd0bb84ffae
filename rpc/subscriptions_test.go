package rpc

import (
	"sync"
	"testing"
	"time"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records everything written to it.
type fakeConn struct {
	id     uint64
	mu     sync.Mutex
	writes []string
	closed chan struct{}
}

func newFakeConn(id uint64) *fakeConn {
	return &fakeConn{id: id, closed: make(chan struct{})}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, string(p))
	return len(p), nil
}

func (c *fakeConn) ID() uint64 {
	return c.id
}

func (c *fakeConn) Closed() <-chan struct{} {
	return c.closed
}

func (c *fakeConn) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.writes...)
}

func waitForWrites(t *testing.T, conn *fakeConn, count int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if writes := conn.snapshot(); len(writes) >= count {
			return writes
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d writes, got %d", count, len(conn.snapshot()))
	return nil
}

func sealedBlock(number uint64) *core.Block {
	hash := felt.New(0xb10c + number)
	parent := felt.New(0xdad)
	seqAddr := felt.New(0x5e9)
	price := felt.New(1)
	return &core.Block{
		Header: core.Header{
			Hash:             &hash,
			ParentHash:       &parent,
			Number:           number,
			SequencerAddress: &seqAddr,
			GasPrices: core.GasPrices{
				L1GasPriceWEI: &price, L1GasPriceFRI: &price,
				L1DataGasPriceWEI: &price, L1DataGasPriceFRI: &price,
				L2GasPriceWEI: &price, L2GasPriceFRI: &price,
			},
		},
		Status: core.BlockAcceptedOnL2,
	}
}

func entryWithHash(hashValue uint64, finality core.FinalityStatus) *blockchain.TransactionEntry {
	hash := felt.New(hashValue)
	sender := felt.New(0xacc)
	one := felt.New(1)
	return &blockchain.TransactionEntry{
		Transaction: &core.InvokeTransaction{
			TransactionHash: &hash,
			Version:         &one,
			SenderAddress:   &sender,
		},
		Receipt: &core.TransactionReceipt{
			TransactionHash: &hash,
			ActualFee:       &felt.Zero,
			FinalityStatus:  finality,
		},
	}
}

func TestNewHeadsNotification(t *testing.T) {
	hub := NewSubscriptionHub(utils.NewNopZapLogger())
	conn := newFakeConn(1)
	hub.register(conn, &subscription{kind: subNewHeads})

	hub.OnBlockSealed(sealedBlock(3), nil)

	writes := waitForWrites(t, conn, 1)
	assert.Contains(t, writes[0], "starknet_subscriptionNewHeads")
	assert.Contains(t, writes[0], `"block_number":3`)
}

func TestNewTransactionsDefaultFilterIsAcceptedOnL2(t *testing.T) {
	hub := NewSubscriptionHub(utils.NewNopZapLogger())
	conn := newFakeConn(2)
	filter, rpcErr := parseFinalityFilter(nil)
	require.Nil(t, rpcErr)
	hub.register(conn, &subscription{kind: subNewTransactions, finalityFilter: filter})

	// Admission (pre-confirmed) does not match the default filter.
	hub.OnTransactionAdmitted(entryWithHash(0xaa, core.TxnPreConfirmed))
	// Sealing does.
	hub.OnBlockSealed(sealedBlock(1),
		[]*blockchain.TransactionEntry{entryWithHash(0xaa, core.TxnAcceptedOnL2)})

	writes := waitForWrites(t, conn, 1)
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0], "starknet_subscriptionNewTransactions")
}

func TestPreConfirmedFilterSeesAdmissionOnly(t *testing.T) {
	hub := NewSubscriptionHub(utils.NewNopZapLogger())
	conn := newFakeConn(3)
	filter, rpcErr := parseFinalityFilter([]string{"PRE_CONFIRMED"})
	require.Nil(t, rpcErr)
	hub.register(conn, &subscription{kind: subNewTransactions, finalityFilter: filter})

	hub.OnTransactionAdmitted(entryWithHash(0xbb, core.TxnPreConfirmed))
	writes := waitForWrites(t, conn, 1)
	require.Len(t, writes, 1)

	// The same transaction sealing produces no further notification for
	// this filter.
	hub.OnBlockSealed(sealedBlock(1),
		[]*blockchain.TransactionEntry{entryWithHash(0xbb, core.TxnAcceptedOnL2)})
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, conn.snapshot(), 1)
}

func TestTransactionStatusSubscription(t *testing.T) {
	hub := NewSubscriptionHub(utils.NewNopZapLogger())
	conn := newFakeConn(4)
	watched := felt.New(0xcc)
	hub.register(conn, &subscription{kind: subTxStatus, txHash: &watched})

	hub.OnTransactionAdmitted(entryWithHash(0xcc, core.TxnPreConfirmed))
	hub.OnTransactionAdmitted(entryWithHash(0xdd, core.TxnPreConfirmed)) // other hash, ignored

	writes := waitForWrites(t, conn, 1)
	require.Len(t, writes, 1)
	assert.Contains(t, writes[0], "starknet_subscriptionTransactionStatus")
	assert.Contains(t, writes[0], "PRE_CONFIRMED")
}

func TestReorgNotificationAndSuppression(t *testing.T) {
	hub := NewSubscriptionHub(utils.NewNopZapLogger())
	conn := newFakeConn(5)
	watched := felt.New(0xee)
	hub.register(conn, &subscription{kind: subTxStatus, txHash: &watched})

	first := felt.New(0xf1)
	last := felt.New(0xf2)
	hub.OnReorg(&sequencer.Reorg{
		FirstHash:   &first,
		LastHash:    &last,
		FirstNumber: 1,
		LastNumber:  2,
		AbortedTxns: []*felt.Felt{&watched},
	})

	writes := waitForWrites(t, conn, 1)
	assert.Contains(t, writes[0], "starknet_subscriptionReorg")

	// Status updates for aborted transactions are suppressed afterwards.
	hub.OnTransactionAdmitted(entryWithHash(0xee, core.TxnPreConfirmed))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, conn.snapshot(), 1)
}

func TestUnsubscribeOwnership(t *testing.T) {
	hub := NewSubscriptionHub(utils.NewNopZapLogger())
	owner := newFakeConn(6)
	other := newFakeConn(7)

	id := hub.register(owner, &subscription{kind: subNewHeads})
	hub.register(other, &subscription{kind: subNewHeads})

	assert.False(t, hub.Unsubscribe(other, id))
	assert.True(t, hub.Unsubscribe(owner, id))
	assert.False(t, hub.Unsubscribe(owner, id))
}

func TestClosedSocketIsDropped(t *testing.T) {
	hub := NewSubscriptionHub(utils.NewNopZapLogger())
	conn := newFakeConn(8)
	id := hub.register(conn, &subscription{kind: subNewHeads})

	close(conn.closed)
	time.Sleep(100 * time.Millisecond)
	assert.False(t, hub.Unsubscribe(conn, id))
}
