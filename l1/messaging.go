// Package l1 implements the postman: the bidirectional message broker
// between the devnet and an Ethereum node. L2->L1 messages are collected
// from finalized blocks and refcounted for consumption; L1->L2 messages
// become synthetic L1 handler transactions fed through the sequencer.
package l1

import (
	"context"
	"math/big"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
)

var (
	ErrNotConfigured     = errors.New("l1 messaging is not configured")
	ErrMessageNotPresent = errors.New("message is not present in the l2-to-l1 queue")
)

// MessageHash computes the canonical hash of an L2->L1 message:
// keccak256(from || to || payload_len || payload...), each word 32 bytes.
func MessageHash(message *core.L2ToL1Message) common.Hash {
	data := make([]byte, 0, (3+len(message.Payload))*32)
	from := message.From.Bytes()
	data = append(data, from[:]...)
	to := message.To.Bytes()
	data = append(data, to[:]...)
	length := new(felt.Felt).SetUint64(uint64(len(message.Payload))).Bytes()
	data = append(data, length[:]...)
	for _, elem := range message.Payload {
		word := elem.Bytes()
		data = append(data, word[:]...)
	}
	return common.BytesToHash(gethcrypto.Keccak256(data))
}

// BlockSource is the broker's view of the block log; the sequencer
// implements it.
type BlockSource interface {
	LatestBlockNumber() (uint64, bool)
	MessagesOfBlock(number uint64) ([]*core.L2ToL1Message, error)
}

// EthereumNode abstracts the L1 JSON-RPC connection. Implemented by
// ethereumClient over go-ethereum; tests swap it out.
type EthereumNode interface {
	ChainID(ctx context.Context) (*big.Int, error)
	SendMockMessages(ctx context.Context, messages []*core.L2ToL1Message) error
	MessagingContract() common.Address
}

type ethereumClient struct {
	client   *ethclient.Client
	url      string
	contract common.Address
}

// Dial connects to the L1 node and pins the messaging contract address.
func Dial(ctx context.Context, url string, contract string) (EthereumNode, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "dial l1 node")
	}
	return &ethereumClient{
		client:   client,
		url:      url,
		contract: common.HexToAddress(contract),
	}, nil
}

func (c *ethereumClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.client.ChainID(ctx)
}

func (c *ethereumClient) MessagingContract() common.Address {
	return c.contract
}

var mockSendSelector = gethcrypto.Keccak256(
	[]byte("mockSendMessageFromL2(uint256,uint256,uint256[])"))[:4]

// SendMockMessages calls the mock messaging contract's
// mockSendMessageFromL2 for each message, incrementing its on-chain
// refcount so it can be consumed on L1 without a proof.
func (c *ethereumClient) SendMockMessages(ctx context.Context, messages []*core.L2ToL1Message) error {
	for _, message := range messages {
		data := make([]byte, 0, 4+(4+len(message.Payload))*32)
		data = append(data, mockSendSelector...)
		from := message.From.Bytes()
		data = append(data, from[:]...)
		to := message.To.Bytes()
		data = append(data, to[:]...)
		// Offset of the dynamic payload array, then its length and words.
		offset := new(felt.Felt).SetUint64(3 * 32).Bytes()
		data = append(data, offset[:]...)
		length := new(felt.Felt).SetUint64(uint64(len(message.Payload))).Bytes()
		data = append(data, length[:]...)
		for _, elem := range message.Payload {
			word := elem.Bytes()
			data = append(data, word[:]...)
		}

		if _, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil); err != nil {
			return errors.Wrapf(err, "flush message %s", MessageHash(message))
		}
	}
	return nil
}

// Broker holds the two queues and the collection high-water mark.
type Broker struct {
	node EthereumNode

	lastLocalBlock    uint64
	messageHashCounts map[common.Hash]uint32
	messagesToFlush   []*core.L2ToL1Message
	l1ToL2TxHashes    map[common.Hash][]*felt.Felt

	log utils.SimpleLogger
}

func NewBroker(log utils.SimpleLogger) *Broker {
	return &Broker{
		messageHashCounts: make(map[common.Hash]uint32),
		l1ToL2TxHashes:    make(map[common.Hash][]*felt.Felt),
		log:               log,
	}
}

// Configure installs (or replaces) the Ethereum connection.
func (b *Broker) Configure(node EthereumNode) {
	b.node = node
}

func (b *Broker) Configured() bool {
	return b.node != nil
}

// CollectMessagesToL1 scans blocks from the high-water mark to the latest,
// queues their messages for flushing and bumps each hash's refcount.
// Returns everything collected and not yet flushed.
func (b *Broker) CollectMessagesToL1(source BlockSource) ([]*core.L2ToL1Message, error) {
	latest, ok := source.LatestBlockNumber()
	if !ok || b.lastLocalBlock > latest {
		// Nothing new sealed since the last collection.
		return b.messagesToFlush, nil
	}

	var collected []*core.L2ToL1Message
	for number := b.lastLocalBlock; number <= latest; number++ {
		messages, err := source.MessagesOfBlock(number)
		if err != nil {
			return nil, err
		}
		collected = append(collected, messages...)
	}

	for _, message := range collected {
		b.messageHashCounts[MessageHash(message)]++
	}
	b.messagesToFlush = append(b.messagesToFlush, collected...)
	b.lastLocalBlock = latest + 1

	return b.messagesToFlush, nil
}

// Flush ships the queued messages to the L1 node and clears the queue.
// Without a configured node the queue is returned as a dry run.
func (b *Broker) Flush(ctx context.Context) ([]*core.L2ToL1Message, error) {
	flushed := b.messagesToFlush
	if b.node != nil {
		if err := b.node.SendMockMessages(ctx, flushed); err != nil {
			return nil, err
		}
	}
	b.messagesToFlush = nil
	b.log.Infow("Flushed messages to L1", "count", len(flushed))
	return flushed, nil
}

// ConsumeMessageFromL2 decrements the refcount of the message's hash,
// failing when it is already zero.
func (b *Broker) ConsumeMessageFromL2(message *core.L2ToL1Message) (common.Hash, error) {
	hash := MessageHash(message)
	if b.messageHashCounts[hash] == 0 {
		return common.Hash{}, errors.Wrapf(ErrMessageNotPresent, "hash %s", hash)
	}
	b.messageHashCounts[hash]--
	return hash, nil
}

// RecordL1Transaction maps an L1 transaction hash to the L2 transactions it
// spawned.
func (b *Broker) RecordL1Transaction(l1TxHash common.Hash, l2TxHash *felt.Felt) {
	b.l1ToL2TxHashes[l1TxHash] = append(b.l1ToL2TxHashes[l1TxHash], l2TxHash)
}

// L1HandlerPayload is the wire form of postman_sendMessageToL2.
type L1HandlerPayload struct {
	L1ContractAddress  *felt.Felt   `json:"l1_contract_address"`
	L2ContractAddress  *felt.Felt   `json:"l2_contract_address"`
	EntryPointSelector *felt.Felt   `json:"entry_point_selector"`
	Payload            []*felt.Felt `json:"payload"`
	Nonce              *felt.Felt   `json:"nonce"`
	PaidFeeOnL1        *felt.Felt   `json:"paid_fee_on_l1"`
}

// BuildL1HandlerTransaction turns a payload into the synthetic transaction
// the sequencer executes. The sender address is prepended to the calldata.
func BuildL1HandlerTransaction(payload *L1HandlerPayload) *core.L1HandlerTransaction {
	calldata := make([]*felt.Felt, 0, len(payload.Payload)+1)
	calldata = append(calldata, payload.L1ContractAddress)
	calldata = append(calldata, payload.Payload...)

	return &core.L1HandlerTransaction{
		Version:            &felt.Zero,
		ContractAddress:    payload.L2ContractAddress,
		EntryPointSelector: payload.EntryPointSelector,
		Nonce:              payload.Nonce,
		CallData:           calldata,
		PaidFeeOnL1:        payload.PaidFeeOnL1,
	}
}
