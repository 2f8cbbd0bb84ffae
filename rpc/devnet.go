package rpc

import (
	"context"
	"math/big"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/jsonrpc"
	"github.com/0xSpaceShard/starknet-devnet-go/l1"
	"github.com/0xSpaceShard/starknet-devnet-go/sequencer"
	"github.com/pkg/errors"
)

// Amount is a u256-capable quantity accepted as a JSON number or a
// (possibly hex) string.
type Amount struct {
	big.Int
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) > 1 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	if _, ok := a.SetString(s, 0); !ok {
		return errors.Errorf("invalid amount %q", s)
	}
	return nil
}

func parseUnit(unit *string) (core.FeeUnit, *jsonrpc.Error) {
	if unit == nil {
		return core.WEI, nil
	}
	var parsed core.FeeUnit
	if err := parsed.UnmarshalText([]byte(*unit)); err != nil {
		return core.WEI, jsonrpc.Err(jsonrpc.InvalidParams, err.Error())
	}
	return parsed, nil
}

type MintResponse struct {
	NewBalance      string     `json:"new_balance"`
	Unit            string     `json:"unit"`
	TransactionHash *felt.Felt `json:"tx_hash"`
}

func (h *Handler) Mint(address *felt.Felt, amount Amount, unit *string) (*MintResponse, *jsonrpc.Error) {
	return guard(h, "devnet_mint", func() (*MintResponse, *jsonrpc.Error) {
		feeUnit, rpcErr := parseUnit(unit)
		if rpcErr != nil {
			return nil, rpcErr
		}
		hash, balance, err := h.sequencer.Mint(address, &amount.Int, feeUnit)
		if err != nil {
			return nil, mapError(err)
		}
		return &MintResponse{
			NewBalance:      balance.String(),
			Unit:            feeUnitString(feeUnit),
			TransactionHash: hash,
		}, nil
	})
}

type BalanceResponse struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

func (h *Handler) AccountBalance(address *felt.Felt, unit *string, id *BlockID) (*BalanceResponse, *jsonrpc.Error) {
	return guard(h, "devnet_getAccountBalance", func() (*BalanceResponse, *jsonrpc.Error) {
		feeUnit, rpcErr := parseUnit(unit)
		if rpcErr != nil {
			return nil, rpcErr
		}
		blockID := sequencer.LatestBlockID()
		if id != nil {
			blockID = id.toSequencer()
		}
		balance, err := h.sequencer.BalanceAt(blockID, address, feeUnit)
		if err != nil {
			return nil, mapError(err)
		}
		return &BalanceResponse{Amount: balance.String(), Unit: feeUnitString(feeUnit)}, nil
	})
}

func (h *Handler) PredeployedAccounts() ([]*sequencer.Account, *jsonrpc.Error) {
	return guard(h, "devnet_getPredeployedAccounts", func() ([]*sequencer.Account, *jsonrpc.Error) {
		return h.sequencer.Accounts(), nil
	})
}

func (h *Handler) GetConfig() (sequencer.Config, *jsonrpc.Error) {
	return guard(h, "devnet_getConfig", func() (sequencer.Config, *jsonrpc.Error) {
		return h.sequencer.Config(), nil
	})
}

type CreateBlockResponse struct {
	BlockHash *felt.Felt `json:"block_hash"`
}

func (h *Handler) CreateBlock() (*CreateBlockResponse, *jsonrpc.Error) {
	return guard(h, "devnet_createBlock", func() (*CreateBlockResponse, *jsonrpc.Error) {
		block, err := h.sequencer.CreateBlock()
		if err != nil {
			return nil, mapError(err)
		}
		return &CreateBlockResponse{BlockHash: block.Hash}, nil
	})
}

type AbortedBlocksResponse struct {
	Aborted []*felt.Felt `json:"aborted"`
}

func (h *Handler) AbortBlocks(startingBlockID BlockID) (*AbortedBlocksResponse, *jsonrpc.Error) {
	return guard(h, "devnet_abortBlocks", func() (*AbortedBlocksResponse, *jsonrpc.Error) {
		aborted, err := h.sequencer.AbortBlocks(startingBlockID.toSequencer())
		if err != nil {
			return nil, mapError(err)
		}
		return &AbortedBlocksResponse{Aborted: aborted}, nil
	})
}

type AcceptedOnL1Response struct {
	Accepted []*felt.Felt `json:"accepted"`
}

func (h *Handler) AcceptOnL1(startingBlockID BlockID) (*AcceptedOnL1Response, *jsonrpc.Error) {
	return guard(h, "devnet_acceptOnL1", func() (*AcceptedOnL1Response, *jsonrpc.Error) {
		accepted, err := h.sequencer.AcceptOnL1(startingBlockID.toSequencer())
		if err != nil {
			return nil, mapError(err)
		}
		return &AcceptedOnL1Response{Accepted: accepted}, nil
	})
}

func (h *Handler) UpdateGas(update sequencer.GasModification) (core.GasPrices, *jsonrpc.Error) {
	return guard(h, "devnet_updateGas", func() (core.GasPrices, *jsonrpc.Error) {
		prices, err := h.sequencer.UpdateGas(update)
		if err != nil {
			return core.GasPrices{}, mapError(err)
		}
		return prices, nil
	})
}

func (h *Handler) ImpersonateAccount(address *felt.Felt) (bool, *jsonrpc.Error) {
	return guard(h, "devnet_impersonateAccount", func() (bool, *jsonrpc.Error) {
		if err := h.sequencer.ImpersonateAccount(address); err != nil {
			return false, mapError(err)
		}
		return true, nil
	})
}

func (h *Handler) StopImpersonateAccount(address *felt.Felt) (bool, *jsonrpc.Error) {
	return guard(h, "devnet_stopImpersonateAccount", func() (bool, *jsonrpc.Error) {
		if err := h.sequencer.StopImpersonateAccount(address); err != nil {
			return false, mapError(err)
		}
		return true, nil
	})
}

func (h *Handler) AutoImpersonate() (bool, *jsonrpc.Error) {
	return guard(h, "devnet_autoImpersonate", func() (bool, *jsonrpc.Error) {
		if err := h.sequencer.SetAutoImpersonate(true); err != nil {
			return false, mapError(err)
		}
		return true, nil
	})
}

func (h *Handler) StopAutoImpersonate() (bool, *jsonrpc.Error) {
	return guard(h, "devnet_stopAutoImpersonate", func() (bool, *jsonrpc.Error) {
		if err := h.sequencer.SetAutoImpersonate(false); err != nil {
			return false, mapError(err)
		}
		return true, nil
	})
}

func (h *Handler) Dump(path *string) (bool, *jsonrpc.Error) {
	return guard(h, "devnet_dump", func() (bool, *jsonrpc.Error) {
		target := ""
		if path != nil {
			target = *path
		}
		if err := h.sequencer.Dump(target); err != nil {
			return false, mapError(err)
		}
		return true, nil
	})
}

func (h *Handler) Load(path string) (bool, *jsonrpc.Error) {
	return guard(h, "devnet_load", func() (bool, *jsonrpc.Error) {
		file, err := sequencer.ReadDumpFile(path)
		if err != nil {
			return false, mapError(err)
		}
		if err := h.sequencer.Load(file, sequencer.Decoder(DecodeBroadcast)); err != nil {
			return false, mapError(err)
		}
		return true, nil
	})
}

func (h *Handler) Restart() (bool, *jsonrpc.Error) {
	return guard(h, "devnet_restart", func() (bool, *jsonrpc.Error) {
		if err := h.sequencer.Restart(); err != nil {
			return false, mapError(err)
		}
		return true, nil
	})
}

type PostmanLoadResponse struct {
	MessagingContractAddress string `json:"messaging_contract_address"`
}

func (h *Handler) PostmanLoad(networkURL string, address *string) (*PostmanLoadResponse, *jsonrpc.Error) {
	return guard(h, "devnet_postmanLoad", func() (*PostmanLoadResponse, *jsonrpc.Error) {
		contract := ""
		if address != nil {
			contract = *address
		}
		node, err := l1.Dial(context.Background(), networkURL, contract)
		if err != nil {
			return nil, mapError(err)
		}
		if err := h.sequencer.ConfigureMessaging(node); err != nil {
			return nil, mapError(err)
		}
		return &PostmanLoadResponse{
			MessagingContractAddress: node.MessagingContract().Hex(),
		}, nil
	})
}

type FlushResponse struct {
	MessagesToL1 []*MessageToL1 `json:"messages_to_l1"`
}

func (h *Handler) PostmanFlush(dryRun *bool) (*FlushResponse, *jsonrpc.Error) {
	return guard(h, "devnet_postmanFlush", func() (*FlushResponse, *jsonrpc.Error) {
		dry := dryRun != nil && *dryRun
		messages, err := h.sequencer.PostmanFlush(context.Background(), dry)
		if err != nil {
			return nil, mapError(err)
		}
		out := &FlushResponse{MessagesToL1: []*MessageToL1{}}
		for _, message := range messages {
			out.MessagesToL1 = append(out.MessagesToL1, &MessageToL1{
				From: message.From, To: message.To, Payload: message.Payload,
			})
		}
		return out, nil
	})
}

func (h *Handler) PostmanSendMessageToL2(message l1.L1HandlerPayload) (*AddTxResponse, *jsonrpc.Error) {
	return guard(h, "devnet_postmanSendMessageToL2", func() (*AddTxResponse, *jsonrpc.Error) {
		hash, err := h.sequencer.PostmanSendMessageToL2(&message)
		if err != nil {
			return nil, mapError(err)
		}
		return &AddTxResponse{TransactionHash: hash}, nil
	})
}

type ConsumeResponse struct {
	MessageHash string `json:"message_hash"`
}

func (h *Handler) PostmanConsumeMessageFromL2(message MessageToL1) (*ConsumeResponse, *jsonrpc.Error) {
	return guard(h, "devnet_postmanConsumeMessageFromL2", func() (*ConsumeResponse, *jsonrpc.Error) {
		hash, err := h.sequencer.PostmanConsume(&core.L2ToL1Message{
			From:    message.From,
			To:      message.To,
			Payload: message.Payload,
		})
		if err != nil {
			return nil, mapError(err)
		}
		return &ConsumeResponse{MessageHash: hash.Hex()}, nil
	})
}
