package sequencer

import (
	"encoding/json"
	"math/big"
	"math/rand"
	"os"

	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/crypto"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/0xSpaceShard/starknet-devnet-go/fork"
	"github.com/0xSpaceShard/starknet-devnet-go/state"
	"github.com/pkg/errors"
)

func mustFelt(s string) *felt.Felt {
	f, err := new(felt.Felt).SetString(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Canonical system contract addresses, matching the public networks.
var (
	EthFeeTokenAddress  = mustFelt("0x049d36570d4e46f48e99674bd3fcc84644ddd6b96f7c741b1562b82f9e004dc7")
	StrkFeeTokenAddress = mustFelt("0x04718f5a0fc34cc1af16a1cdee98ffb20c31f5cd61d6ab07201858f4287c938d")
	UDCAddress          = mustFelt("0x041a78e741e5af2fec34b695679bc6891742439f7afb8484ecd7766661ad02bf")
	ChargeableAddress   = mustFelt("0x01caf2df5ed5dde1ae3fcfa93f8d38c724436ad3498c2cc59db80a2c6ff90a2b")

	balancesSelector = crypto.StarknetKeccak([]byte("ERC20_balances"))
	// MintSelector is the fee token entry point devnet_mint invokes.
	MintSelector = crypto.StarknetKeccak([]byte("permissioned_mint"))
	// TransferSelector identifies ERC20 Transfer events.
	TransferSelector = crypto.StarknetKeccak([]byte("Transfer"))
)

// chargeableBalance funds the internal account that signs devnet_mint
// invokes; large enough to never run out.
var chargeableBalance = mustFelt("0xffffffffffffffffffffffffffffffff")

// Account is one predeployed, funded account.
type Account struct {
	PrivateKey     *felt.Felt `json:"private_key"`
	PublicKey      *felt.Felt `json:"public_key"`
	Address        *felt.Felt `json:"address"`
	ClassHash      *felt.Felt `json:"class_hash"`
	InitialBalance *felt.Felt `json:"initial_balance"`
}

// BalanceSlots returns the storage keys of an address's ERC20 balance, low
// and high halves of the u256.
func BalanceSlots(address *felt.Felt) (*felt.Felt, *felt.Felt) {
	low := crypto.Pedersen(balancesSelector, address)
	one := felt.New(1)
	high := new(felt.Felt).Add(low, &one)
	return low, high
}

func feeTokenFor(unit core.FeeUnit) *felt.Felt {
	if unit == core.FRI {
		return StrkFeeTokenAddress
	}
	return EthFeeTokenAddress
}

// erc20Class and the account classes are the minimal class bodies the
// devnet registers for its system contracts, so class lookups on them
// resolve.
func erc20Class() *core.Cairo0Class {
	return &core.Cairo0Class{
		Abi:     json.RawMessage(`[{"name":"transfer","type":"function"},{"name":"permissioned_mint","type":"function"}]`),
		Program: `{"builtins":["pedersen","range_check"],"identifiers":{"erc20":{}}}`,
		Externals: []core.EntryPoint{
			{Selector: crypto.StarknetKeccak([]byte("transfer")), Offset: &felt.Zero},
			{Selector: MintSelector, Offset: &felt.Zero},
		},
	}
}

func udcClass() *core.Cairo0Class {
	return &core.Cairo0Class{
		Abi:     json.RawMessage(`[{"name":"deployContract","type":"function"}]`),
		Program: `{"builtins":["pedersen","range_check"],"identifiers":{"udc":{}}}`,
		Externals: []core.EntryPoint{
			{Selector: crypto.StarknetKeccak([]byte("deployContract")), Offset: &felt.Zero},
		},
	}
}

func cairo0AccountClass() core.Class {
	return &core.Cairo0Class{
		Abi:     json.RawMessage(`[{"name":"__execute__","type":"function"},{"name":"__validate__","type":"function"}]`),
		Program: `{"builtins":["pedersen","range_check","ecdsa"],"identifiers":{"account":{}}}`,
		Externals: []core.EntryPoint{
			{Selector: crypto.StarknetKeccak([]byte("__execute__")), Offset: &felt.Zero},
			{Selector: crypto.StarknetKeccak([]byte("__validate__")), Offset: &felt.Zero},
		},
	}
}

func cairo1AccountClass() core.Class {
	return &core.Cairo1Class{
		Abi:             `[{"name":"__execute__","type":"function"},{"name":"__validate__","type":"function"}]`,
		SemanticVersion: "0.1.0",
		Program:         []*felt.Felt{mustFelt("0x1"), mustFelt("0xa"), mustFelt("0xdead")},
		EntryPoints: core.SierraEntryPoints{
			External: []core.SierraEntryPoint{
				{Index: 0, Selector: crypto.StarknetKeccak([]byte("__execute__"))},
				{Index: 1, Selector: crypto.StarknetKeccak([]byte("__validate__"))},
			},
		},
	}
}

// predeploy writes the fee tokens, the universal deployer, the seeded
// accounts and the chargeable account into the genesis scope.
func (s *Sequencer) predeploy(scope *state.TxScope) error {
	erc20 := erc20Class()
	erc20Hash, err := erc20.Hash()
	if err != nil {
		return errors.Wrap(err, "hash erc20 class")
	}
	if err := scope.PutClass(erc20Hash, erc20); err != nil {
		return err
	}
	for _, token := range []*felt.Felt{EthFeeTokenAddress, StrkFeeTokenAddress} {
		if err := scope.SetContractClassHash(token, erc20Hash); err != nil {
			return err
		}
	}

	udc := udcClass()
	udcHash, err := udc.Hash()
	if err != nil {
		return errors.Wrap(err, "hash udc class")
	}
	if err := scope.PutClass(udcHash, udc); err != nil {
		return err
	}
	if err := scope.SetContractClassHash(UDCAddress, udcHash); err != nil {
		return err
	}

	accountClass, err := s.accountClass()
	if err != nil {
		return err
	}
	accountClassHash, err := accountClass.Hash()
	if err != nil {
		return errors.Wrap(err, "hash account class")
	}
	if err := scope.PutClass(accountClassHash, accountClass); err != nil {
		return err
	}

	s.accounts = generateAccounts(s.cfg.Seed, s.cfg.TotalAccounts, accountClassHash, s.cfg.InitialBalance)
	for _, account := range s.accounts {
		if err := deployFunded(scope, account.Address, accountClassHash, account.InitialBalance); err != nil {
			return err
		}
	}

	if s.cfg.PredeclareArgent {
		for _, class := range argentClasses() {
			classHash, err := class.Hash()
			if err != nil {
				return errors.Wrap(err, "hash argent class")
			}
			if err := scope.PutClass(classHash, class); err != nil {
				return err
			}
		}
	}

	s.chargeable = &Account{
		Address:        ChargeableAddress,
		ClassHash:      accountClassHash,
		InitialBalance: chargeableBalance,
	}
	return deployFunded(scope, ChargeableAddress, accountClassHash, chargeableBalance)
}

// accountClass resolves the predeployed account class: a custom definition
// file when configured, otherwise the built-in flavor.
func (s *Sequencer) accountClass() (core.Class, error) {
	if s.cfg.AccountClassCustomPath != "" {
		data, err := os.ReadFile(s.cfg.AccountClassCustomPath)
		if err != nil {
			return nil, errors.Wrap(err, "read custom account class")
		}
		class, err := fork.AdaptClass(data)
		if err != nil {
			return nil, errors.Wrap(err, "decode custom account class")
		}
		return class, nil
	}
	if s.cfg.AccountClass == "cairo1" {
		return cairo1AccountClass(), nil
	}
	return cairo0AccountClass(), nil
}

// argentClasses are the declare-only Argent account flavors: regular and
// multisig.
func argentClasses() []core.Class {
	regular := cairo1AccountClass().(*core.Cairo1Class)
	regular.Abi = `[{"name":"__execute__","type":"function"},{"name":"__validate__","type":"function"},{"name":"argent_account","type":"impl"}]`

	multisig := cairo1AccountClass().(*core.Cairo1Class)
	multisig.Abi = `[{"name":"__execute__","type":"function"},{"name":"__validate__","type":"function"},{"name":"argent_multisig","type":"impl"}]`

	return []core.Class{regular, multisig}
}

func deployFunded(scope *state.TxScope, address, classHash, balance *felt.Felt) error {
	if err := scope.SetContractClassHash(address, classHash); err != nil {
		return err
	}
	low, _ := BalanceSlots(address)
	for _, token := range []*felt.Felt{EthFeeTokenAddress, StrkFeeTokenAddress} {
		if err := scope.SetContractStorage(token, low, balance); err != nil {
			return err
		}
	}
	return nil
}

// generateAccounts derives the account key material deterministically from
// the seed, so repeated runs with the same seed predeploy the same
// addresses.
func generateAccounts(seed uint32, total uint8, classHash, initialBalance *felt.Felt) []*Account {
	rng := rand.New(rand.NewSource(int64(seed))) //nolint:gosec // reproducibility is the point
	accounts := make([]*Account, 0, total)
	for i := uint8(0); i < total; i++ {
		keyBytes := make([]byte, 31)
		rng.Read(keyBytes)
		privateKey := new(felt.Felt).SetBytes(keyBytes)
		publicKey := crypto.Poseidon(privateKey, &felt.Zero)
		address := core.ContractAddressFromDeploy(&felt.Zero, publicKey, classHash, []*felt.Felt{publicKey})
		accounts = append(accounts, &Account{
			PrivateKey:     privateKey,
			PublicKey:      publicKey,
			Address:        address,
			ClassHash:      classHash,
			InitialBalance: initialBalance.Clone(),
		})
	}
	return accounts
}

// Accounts lists the predeployed accounts.
func (s *Sequencer) Accounts() []*Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Account, len(s.accounts))
	copy(out, s.accounts)
	return out
}

// BalanceAt reads an address's fee token balance at a block id.
func (s *Sequencer) BalanceAt(id BlockID, address *felt.Felt, unit core.FeeUnit) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceAtLocked(id, address, unit)
}

func (s *Sequencer) balanceAtLocked(id BlockID, address *felt.Felt, unit core.FeeUnit) (*big.Int, error) {
	reader, err := s.stateByIDLocked(id)
	if err != nil {
		return nil, err
	}

	token := feeTokenFor(unit)
	lowKey, highKey := BalanceSlots(address)
	low, err := reader.ContractStorage(token, lowKey)
	if err != nil {
		return nil, err
	}
	high, err := reader.ContractStorage(token, highKey)
	if err != nil {
		return nil, err
	}

	balance := high.BigInt(new(big.Int))
	balance.Lsh(balance, 128)
	return balance.Add(balance, low.BigInt(new(big.Int))), nil
}

// Mint funds an address by pushing a fee token mint invoke from the
// chargeable account through the regular pipeline. Returns the transaction
// hash and the post-mint balance.
func (s *Sequencer) Mint(address *felt.Felt, amount *big.Int, unit core.FeeUnit) (*felt.Felt, *big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount == nil || amount.Sign() < 0 {
		return nil, nil, errors.New("mint amount must be non-negative")
	}

	nonce, err := s.layers.PreConfirmed().ContractNonce(ChargeableAddress)
	if err != nil {
		return nil, nil, err
	}

	token := feeTokenFor(unit)
	amountLow, amountHigh := splitU256(amount)
	one := felt.New(1)
	three := felt.New(3)
	tx := &core.InvokeTransaction{
		Version:       &one,
		SenderAddress: ChargeableAddress,
		Nonce:         nonce.Clone(),
		MaxFee:        chargeableBalance,
		// Standard account __execute__ call encoding: target, selector,
		// calldata length, then the mint arguments.
		CallData: []*felt.Felt{token, MintSelector, &three, address, amountLow, amountHigh},
	}

	broadcast, err := json.Marshal(map[string]any{
		"type":           "INVOKE",
		"version":        "0x1",
		"sender_address": ChargeableAddress.String(),
		"nonce":          nonce.String(),
		"max_fee":        chargeableBalance.String(),
		"signature":      []string{},
		"calldata":       feltStrings(tx.CallData),
		"devnet_mint": map[string]string{
			"address": address.String(),
			"amount":  amount.String(),
			"unit":    feeUnitString(unit),
		},
	})
	if err != nil {
		return nil, nil, err
	}

	hash, err := s.addTransactionLocked(tx, nil, nil, broadcast)
	if err != nil {
		return nil, nil, err
	}

	balance, err := s.balanceAtLocked(PreConfirmedBlockID(), address, unit)
	if err != nil {
		return nil, nil, err
	}
	return hash, balance, nil
}

func splitU256(v *big.Int) (*felt.Felt, *felt.Felt) {
	mask := new(big.Int).Lsh(big.NewInt(1), 128)
	mask.Sub(mask, big.NewInt(1))
	low := new(big.Int).And(v, mask)
	high := new(big.Int).Rsh(v, 128)
	return new(felt.Felt).SetBigInt(low), new(felt.Felt).SetBigInt(high)
}

func feltStrings(felts []*felt.Felt) []string {
	out := make([]string, len(felts))
	for i, f := range felts {
		out[i] = f.String()
	}
	return out
}

func feeUnitString(unit core.FeeUnit) string {
	text, _ := unit.MarshalText()
	return string(text)
}
