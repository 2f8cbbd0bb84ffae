package core

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core/crypto"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
	"github.com/pkg/errors"
)

type TransactionType uint8

const (
	TxnInvoke TransactionType = iota
	TxnDeclare
	TxnDeployAccount
	TxnL1Handler
)

func (t TransactionType) String() string {
	switch t {
	case TxnInvoke:
		return "INVOKE"
	case TxnDeclare:
		return "DECLARE"
	case TxnDeployAccount:
		return "DEPLOY_ACCOUNT"
	case TxnL1Handler:
		return "L1_HANDLER"
	default:
		return "UNKNOWN"
	}
}

func (t TransactionType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type Resource uint8

const (
	ResourceL1Gas Resource = iota
	ResourceL2Gas
	ResourceL1DataGas
)

func (r Resource) MarshalText() ([]byte, error) {
	switch r {
	case ResourceL1Gas:
		return []byte("l1_gas"), nil
	case ResourceL2Gas:
		return []byte("l2_gas"), nil
	case ResourceL1DataGas:
		return []byte("l1_data_gas"), nil
	default:
		return nil, errors.New("unknown resource")
	}
}

func (r *Resource) UnmarshalText(text []byte) error {
	switch string(text) {
	case "l1_gas", "L1_GAS":
		*r = ResourceL1Gas
	case "l2_gas", "L2_GAS":
		*r = ResourceL2Gas
	case "l1_data_gas", "L1_DATA_GAS":
		*r = ResourceL1DataGas
	default:
		return errors.Errorf("unknown resource %q", text)
	}
	return nil
}

// ResourceBounds bounds how much of one resource a v3 transaction may buy
// and at what unit price.
type ResourceBounds struct {
	MaxAmount       uint64     `json:"max_amount"`
	MaxPricePerUnit *felt.Felt `json:"max_price_per_unit"`
}

type DAMode uint8

const (
	DAModeL1 DAMode = iota
	DAModeL2
)

func (m DAMode) MarshalText() ([]byte, error) {
	switch m {
	case DAModeL1:
		return []byte("L1"), nil
	case DAModeL2:
		return []byte("L2"), nil
	default:
		return nil, errors.New("unknown da mode")
	}
}

func (m *DAMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "L1":
		*m = DAModeL1
	case "L2":
		*m = DAModeL2
	default:
		return errors.Errorf("unknown da mode %q", text)
	}
	return nil
}

// Transaction is the union over the supported transaction kinds. Hash is
// immutable once computed; TxNonce reads the nonce as zero where a kind has
// none.
type Transaction interface {
	Hash() *felt.Felt
	Signature() []*felt.Felt
	TxVersion() *felt.Felt
	Type() TransactionType
}

type InvokeTransaction struct {
	TransactionHash      *felt.Felt
	Version              *felt.Felt
	SenderAddress        *felt.Felt
	CallData             []*felt.Felt
	TransactionSignature []*felt.Felt
	Nonce                *felt.Felt
	MaxFee               *felt.Felt // v1 only

	// v3 only
	ResourceBounds        map[Resource]ResourceBounds
	Tip                   uint64
	PaymasterData         []*felt.Felt
	AccountDeploymentData []*felt.Felt
	NonceDAMode           DAMode
	FeeDAMode             DAMode
}

func (t *InvokeTransaction) Hash() *felt.Felt        { return t.TransactionHash }
func (t *InvokeTransaction) Signature() []*felt.Felt { return t.TransactionSignature }
func (t *InvokeTransaction) TxVersion() *felt.Felt   { return t.Version }
func (t *InvokeTransaction) Type() TransactionType   { return TxnInvoke }

type DeclareTransaction struct {
	TransactionHash      *felt.Felt
	Version              *felt.Felt
	SenderAddress        *felt.Felt
	ClassHash            *felt.Felt
	TransactionSignature []*felt.Felt
	Nonce                *felt.Felt
	MaxFee               *felt.Felt // v1/v2 only

	// v2+; the Sierra declaration witness
	CompiledClassHash *felt.Felt

	// v3 only
	ResourceBounds        map[Resource]ResourceBounds
	Tip                   uint64
	PaymasterData         []*felt.Felt
	AccountDeploymentData []*felt.Felt
	NonceDAMode           DAMode
	FeeDAMode             DAMode
}

func (t *DeclareTransaction) Hash() *felt.Felt        { return t.TransactionHash }
func (t *DeclareTransaction) Signature() []*felt.Felt { return t.TransactionSignature }
func (t *DeclareTransaction) TxVersion() *felt.Felt   { return t.Version }
func (t *DeclareTransaction) Type() TransactionType   { return TxnDeclare }

type DeployAccountTransaction struct {
	TransactionHash      *felt.Felt
	Version              *felt.Felt
	ContractAddress      *felt.Felt // deterministic from salt, class and calldata
	ContractAddressSalt  *felt.Felt
	ClassHash            *felt.Felt
	ConstructorCallData  []*felt.Felt
	TransactionSignature []*felt.Felt
	Nonce                *felt.Felt
	MaxFee               *felt.Felt // v1 only

	// v3 only
	ResourceBounds map[Resource]ResourceBounds
	Tip            uint64
	PaymasterData  []*felt.Felt
	NonceDAMode    DAMode
	FeeDAMode      DAMode
}

func (t *DeployAccountTransaction) Hash() *felt.Felt        { return t.TransactionHash }
func (t *DeployAccountTransaction) Signature() []*felt.Felt { return t.TransactionSignature }
func (t *DeployAccountTransaction) TxVersion() *felt.Felt   { return t.Version }
func (t *DeployAccountTransaction) Type() TransactionType   { return TxnDeployAccount }

type L1HandlerTransaction struct {
	TransactionHash    *felt.Felt
	Version            *felt.Felt
	ContractAddress    *felt.Felt
	EntryPointSelector *felt.Felt
	Nonce              *felt.Felt
	CallData           []*felt.Felt

	// Fee paid on L1 when the originating message was sent; not part of the
	// hash.
	PaidFeeOnL1 *felt.Felt
}

func (t *L1HandlerTransaction) Hash() *felt.Felt        { return t.TransactionHash }
func (t *L1HandlerTransaction) Signature() []*felt.Felt { return nil }
func (t *L1HandlerTransaction) TxVersion() *felt.Felt   { return t.Version }
func (t *L1HandlerTransaction) Type() TransactionType   { return TxnL1Handler }

var (
	invokePrefix        = new(felt.Felt).SetBytes([]byte("invoke"))
	declarePrefix       = new(felt.Felt).SetBytes([]byte("declare"))
	deployAccountPrefix = new(felt.Felt).SetBytes([]byte("deploy_account"))
	l1HandlerPrefix     = new(felt.Felt).SetBytes([]byte("l1_handler"))
	contractAddrPrefix  = new(felt.Felt).SetBytes([]byte("STARKNET_CONTRACT_ADDRESS"))

	felt3 = new(felt.Felt).SetUint64(3)
)

// TransactionHash computes the canonical hash of a transaction bound to a
// chain id. v1/v2 transactions hash with Pedersen, v3 with Poseidon.
func TransactionHash(transaction Transaction, chainID *felt.Felt) (*felt.Felt, error) {
	switch t := transaction.(type) {
	case *InvokeTransaction:
		if t.Version.Equal(felt3) {
			return v3Hash(invokePrefix, chainID, t.Version, t.SenderAddress, t.Nonce,
				t.Tip, t.ResourceBounds, t.PaymasterData, t.NonceDAMode, t.FeeDAMode,
				crypto.PoseidonArray(t.AccountDeploymentData...),
				crypto.PoseidonArray(t.CallData...),
			), nil
		}
		return crypto.PedersenArray(
			invokePrefix,
			t.Version,
			t.SenderAddress,
			&felt.Zero, // entry point selector, unused since v1
			crypto.PedersenArray(t.CallData...),
			t.MaxFee,
			chainID,
			t.Nonce,
		), nil
	case *DeclareTransaction:
		if t.Version.Equal(felt3) {
			return v3Hash(declarePrefix, chainID, t.Version, t.SenderAddress, t.Nonce,
				t.Tip, t.ResourceBounds, t.PaymasterData, t.NonceDAMode, t.FeeDAMode,
				crypto.PoseidonArray(t.AccountDeploymentData...),
				t.ClassHash,
				t.CompiledClassHash,
			), nil
		}
		elems := []*felt.Felt{
			declarePrefix,
			t.Version,
			t.SenderAddress,
			&felt.Zero,
			crypto.PedersenArray(t.ClassHash),
			t.MaxFee,
			chainID,
			t.Nonce,
		}
		if t.CompiledClassHash != nil { // v2
			elems = append(elems, t.CompiledClassHash)
		}
		return crypto.PedersenArray(elems...), nil
	case *DeployAccountTransaction:
		calldata := append([]*felt.Felt{t.ClassHash, t.ContractAddressSalt}, t.ConstructorCallData...)
		if t.Version.Equal(felt3) {
			return v3Hash(deployAccountPrefix, chainID, t.Version, t.ContractAddress, t.Nonce,
				t.Tip, t.ResourceBounds, t.PaymasterData, t.NonceDAMode, t.FeeDAMode,
				crypto.PoseidonArray(t.ConstructorCallData...),
				t.ClassHash,
				t.ContractAddressSalt,
			), nil
		}
		return crypto.PedersenArray(
			deployAccountPrefix,
			t.Version,
			t.ContractAddress,
			&felt.Zero,
			crypto.PedersenArray(calldata...),
			t.MaxFee,
			chainID,
			t.Nonce,
		), nil
	case *L1HandlerTransaction:
		return crypto.PedersenArray(
			l1HandlerPrefix,
			t.Version,
			t.ContractAddress,
			t.EntryPointSelector,
			crypto.PedersenArray(t.CallData...),
			&felt.Zero, // no fee bound to the hash
			chainID,
			t.Nonce,
		), nil
	default:
		return nil, errors.Errorf("unsupported transaction type %T", transaction)
	}
}

func v3Hash(prefix, chainID, version, sender, nonce *felt.Felt, tip uint64,
	bounds map[Resource]ResourceBounds, paymasterData []*felt.Felt,
	nonceDAMode, feeDAMode DAMode, tail ...*felt.Felt,
) *felt.Felt {
	elems := []*felt.Felt{
		prefix,
		version,
		sender,
		tipAndResourcesHash(tip, bounds),
		crypto.PoseidonArray(paymasterData...),
		chainID,
		nonce,
		daModesFelt(nonceDAMode, feeDAMode),
	}
	elems = append(elems, tail...)
	return crypto.PoseidonArray(elems...)
}

func tipAndResourcesHash(tip uint64, bounds map[Resource]ResourceBounds) *felt.Felt {
	elems := []*felt.Felt{new(felt.Felt).SetUint64(tip)}
	for _, resource := range []Resource{ResourceL1Gas, ResourceL2Gas, ResourceL1DataGas} {
		b := bounds[resource]
		name, _ := resource.MarshalText()
		price := b.MaxPricePerUnit
		if price == nil {
			price = &felt.Zero
		}
		elems = append(elems,
			new(felt.Felt).SetBytes(name),
			new(felt.Felt).SetUint64(b.MaxAmount),
			price,
		)
	}
	return crypto.PoseidonArray(elems...)
}

func daModesFelt(nonceDAMode, feeDAMode DAMode) *felt.Felt {
	return new(felt.Felt).SetUint64(uint64(nonceDAMode)<<32 | uint64(feeDAMode))
}

// ContractAddressFromDeploy computes the deterministic address a
// deploy-account transaction instantiates.
func ContractAddressFromDeploy(deployerAddress, salt, classHash *felt.Felt, constructorCalldata []*felt.Felt) *felt.Felt {
	return crypto.PedersenArray(
		contractAddrPrefix,
		deployerAddress,
		salt,
		classHash,
		crypto.PedersenArray(constructorCalldata...),
	)
}

// TxNonce reads the transaction's nonce, zero where the kind carries none.
func TxNonce(transaction Transaction) *felt.Felt {
	switch t := transaction.(type) {
	case *InvokeTransaction:
		return nilToZero(t.Nonce)
	case *DeclareTransaction:
		return nilToZero(t.Nonce)
	case *DeployAccountTransaction:
		return nilToZero(t.Nonce)
	case *L1HandlerTransaction:
		return nilToZero(t.Nonce)
	default:
		return &felt.Zero
	}
}

// TxSender reads the address whose account pays for and authorizes the
// transaction.
func TxSender(transaction Transaction) *felt.Felt {
	switch t := transaction.(type) {
	case *InvokeTransaction:
		return t.SenderAddress
	case *DeclareTransaction:
		return t.SenderAddress
	case *DeployAccountTransaction:
		return t.ContractAddress
	case *L1HandlerTransaction:
		return t.ContractAddress
	default:
		return nil
	}
}

func nilToZero(f *felt.Felt) *felt.Felt {
	if f == nil {
		return &felt.Zero
	}
	return f
}
