// Package origin is the JSON-RPC client for the fork origin: the remote
// network the devnet overlays. Reads are pinned to the fork block by the
// caller; this client only speaks the wire protocol.
package origin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/pkg/errors"
)

// RPCError is a spec-shaped error the origin returned; it is surfaced to
// clients transparently.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("origin rpc error %d: %s", e.Code, e.Message)
}

type Backoff func(wait time.Duration) time.Duration

func ExponentialBackoff(wait time.Duration) time.Duration {
	return wait * 2
}

func NopBackoff(d time.Duration) time.Duration {
	return 0
}

type Client struct {
	url        string
	client     *http.Client
	backoff    Backoff
	maxRetries int
	maxWait    time.Duration
	minWait    time.Duration
	log        utils.SimpleLogger
}

func NewClient(clientURL string) *Client {
	return &Client{
		url:        clientURL,
		client:     http.DefaultClient,
		backoff:    ExponentialBackoff,
		maxRetries: 5,
		maxWait:    4 * time.Second,
		minWait:    time.Second,
		log:        utils.NewNopZapLogger(),
	}
}

func (c *Client) WithBackoff(b Backoff) *Client {
	c.backoff = b
	return c
}

func (c *Client) WithMaxRetries(num int) *Client {
	c.maxRetries = num
	return c
}

func (c *Client) WithLogger(log utils.SimpleLogger) *Client {
	c.log = log
	return c
}

type request struct {
	Version string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call performs one JSON-RPC request with transport-level retries. RPC
// errors are returned as *RPCError without retrying.
func (c *Client) Call(ctx context.Context, method string, params, result any) error {
	body, err := json.Marshal(request{Version: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return errors.Wrap(err, "marshal origin request")
	}

	var lastErr error
	wait := time.Duration(0)
	for i := 0; i <= c.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			resp, err := c.post(ctx, body)
			if err == nil {
				if resp.Error != nil {
					return resp.Error
				}
				if result == nil {
					return nil
				}
				return json.Unmarshal(resp.Result, result)
			}
			lastErr = err

			if wait < c.minWait {
				wait = c.minWait
			}
			wait = c.backoff(wait)
			if wait > c.maxWait {
				wait = c.maxWait
			}
			c.log.Warnw("origin request failed, retrying", "method", method, "retryAfter", wait.String())
		}
	}
	return errors.Wrapf(lastErr, "origin %s after %d retries", method, c.maxRetries)
}

func (c *Client) post(ctx context.Context, body []byte) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body) //nolint:errcheck
		return nil, errors.Errorf("origin responded %s", res.Status)
	}

	decoded := new(response)
	if err := json.NewDecoder(res.Body).Decode(decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}

type blockNumberID struct {
	BlockNumber uint64 `json:"block_number"`
}

// StorageAt reads one storage cell at the given origin block.
func (c *Client) StorageAt(ctx context.Context, address, key *felt.Felt, blockNumber uint64) (*felt.Felt, error) {
	value := new(felt.Felt)
	err := c.Call(ctx, "starknet_getStorageAt",
		[]any{address, key, blockNumberID{blockNumber}}, value)
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Nonce reads an account nonce at the given origin block.
func (c *Client) Nonce(ctx context.Context, address *felt.Felt, blockNumber uint64) (*felt.Felt, error) {
	nonce := new(felt.Felt)
	err := c.Call(ctx, "starknet_getNonce", []any{blockNumberID{blockNumber}, address}, nonce)
	if err != nil {
		return nil, err
	}
	return nonce, nil
}

// ClassHashAt reads the class hash a contract instantiates.
func (c *Client) ClassHashAt(ctx context.Context, address *felt.Felt, blockNumber uint64) (*felt.Felt, error) {
	classHash := new(felt.Felt)
	err := c.Call(ctx, "starknet_getClassHashAt", []any{blockNumberID{blockNumber}, address}, classHash)
	if err != nil {
		return nil, err
	}
	return classHash, nil
}

// ClassByHash fetches a class definition as raw JSON; the overlay adapts
// it.
func (c *Client) ClassByHash(ctx context.Context, classHash *felt.Felt, blockNumber uint64) (json.RawMessage, error) {
	var class json.RawMessage
	err := c.Call(ctx, "starknet_getClass", []any{blockNumberID{blockNumber}, classHash}, &class)
	if err != nil {
		return nil, err
	}
	return class, nil
}

// Block is the origin's block shape, reduced to what the overlay serves.
type Block struct {
	BlockHash        *felt.Felt   `json:"block_hash"`
	ParentHash       *felt.Felt   `json:"parent_hash"`
	BlockNumber      uint64       `json:"block_number"`
	SequencerAddress *felt.Felt   `json:"sequencer_address"`
	Timestamp        uint64       `json:"timestamp"`
	Status           string       `json:"status"`
	Transactions     []*felt.Felt `json:"transactions"`
}

func (c *Client) BlockByNumber(ctx context.Context, blockNumber uint64) (*Block, error) {
	block := new(Block)
	err := c.Call(ctx, "starknet_getBlockWithTxHashes", []any{blockNumberID{blockNumber}}, block)
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (c *Client) BlockByHash(ctx context.Context, hash *felt.Felt) (*Block, error) {
	block := new(Block)
	err := c.Call(ctx, "starknet_getBlockWithTxHashes",
		[]any{map[string]*felt.Felt{"block_hash": hash}}, block)
	if err != nil {
		return nil, err
	}
	return block, nil
}

// TransactionByHash fetches a transaction as raw JSON.
func (c *Client) TransactionByHash(ctx context.Context, hash *felt.Felt) (json.RawMessage, error) {
	var tx json.RawMessage
	err := c.Call(ctx, "starknet_getTransactionByHash", []any{hash}, &tx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
