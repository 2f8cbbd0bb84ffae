package fork_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/0xSpaceShard/starknet-devnet-go/blockchain"
	"github.com/0xSpaceShard/starknet-devnet-go/clients/origin"
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/fork"
	"github.com/0xSpaceShard/starknet-devnet-go/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestOrigin serves a minimal origin: one storage value, one class hash
// and one block, counting requests so caching is observable.
func newTestOrigin(t *testing.T, requests *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req struct {
			ID     uint64          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		write := func(result any) {
			resp := map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}

		switch req.Method {
		case "starknet_getStorageAt":
			write("0x64")
		case "starknet_getClassHashAt":
			write("0xc1a55")
		case "starknet_getNonce":
			write("0x5")
		case "starknet_getBlockWithTxHashes":
			write(map[string]any{
				"block_hash":        "0xb10c",
				"parent_hash":       "0xdad",
				"block_number":      7,
				"sequencer_address": "0x5e9",
				"timestamp":         1000,
				"status":            "ACCEPTED_ON_L1",
				"transactions":      []string{"0x7a"},
			})
		default:
			resp := map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": 24, "message": "Block not found"},
			}
			require.NoError(t, json.NewEncoder(w).Encode(resp))
		}
	}))
}

func newOverlay(t *testing.T, requests *atomic.Int64) *fork.Overlay {
	t.Helper()
	srv := newTestOrigin(t, requests)
	t.Cleanup(srv.Close)
	client := origin.NewClient(srv.URL).WithBackoff(origin.NopBackoff).WithMaxRetries(0)
	return fork.NewOverlay(client, 10, utils.NewNopZapLogger())
}

func TestStorageReadsAreCached(t *testing.T) {
	var requests atomic.Int64
	overlay := newOverlay(t, &requests)

	addr := felt.New(0xa)
	key := felt.New(0x1)

	value, err := overlay.ContractStorage(&addr, &key)
	require.NoError(t, err)
	assert.Equal(t, "0x64", value.String())

	before := requests.Load()
	value, err = overlay.ContractStorage(&addr, &key)
	require.NoError(t, err)
	assert.Equal(t, "0x64", value.String())
	assert.Equal(t, before, requests.Load(), "second read must come from the cache")
}

func TestClassHashAndNonce(t *testing.T) {
	var requests atomic.Int64
	overlay := newOverlay(t, &requests)

	addr := felt.New(0xa)
	classHash, err := overlay.ContractClassHash(&addr)
	require.NoError(t, err)
	assert.Equal(t, "0xc1a55", classHash.String())

	nonce, err := overlay.ContractNonce(&addr)
	require.NoError(t, err)
	assert.Equal(t, "0x5", nonce.String())
}

func TestBlockNumberGate(t *testing.T) {
	var requests atomic.Int64
	overlay := newOverlay(t, &requests)

	block, err := overlay.BlockByNumber(7)
	require.NoError(t, err)
	assert.EqualValues(t, 7, block.Number)
	assert.Equal(t, core.BlockAcceptedOnL1, block.Status)

	// Numbers above the fork block never reach the origin.
	before := requests.Load()
	_, err = overlay.BlockByNumber(11)
	assert.ErrorIs(t, err, blockchain.ErrBlockNotFound)
	assert.Equal(t, before, requests.Load())
}

func TestAdaptClassFlavors(t *testing.T) {
	legacy, err := fork.AdaptClass(json.RawMessage(
		`{"abi":[],"program":"{}","entry_points_by_type":{"EXTERNAL":[]}}`))
	require.NoError(t, err)
	assert.EqualValues(t, 0, legacy.Version())

	sierra, err := fork.AdaptClass(json.RawMessage(
		`{"abi":"[]","sierra_program":["0x1","0x2"],"contract_class_version":"0.1.0",` +
			`"entry_points_by_type":{"EXTERNAL":[],"L1_HANDLER":[],"CONSTRUCTOR":[]}}`))
	require.NoError(t, err)
	assert.EqualValues(t, 1, sierra.Version())
}
