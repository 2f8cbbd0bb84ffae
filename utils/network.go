package utils

import (
	"encoding"
	"fmt"

	"github.com/spf13/pflag"
)

// Network identifies the chain the devnet advertises to clients. Only the
// chain id matters for hashing and signatures; the devnet never talks to the
// network it names.
type Network struct {
	Name    string `json:"name" validate:"required"`
	ChainID string `json:"chain_id" validate:"required"`
}

var (
	Mainnet = Network{Name: "mainnet", ChainID: "SN_MAIN"}
	Sepolia = Network{Name: "sepolia", ChainID: "SN_SEPOLIA"}
	Testnet = Network{Name: "testnet", ChainID: "SN_GOERLI"}

	ErrUnknownNetwork = fmt.Errorf("unknown network (known: %s, %s, %s)",
		Mainnet.Name, Sepolia.Name, Testnet.Name)
)

var (
	_ pflag.Value              = (*Network)(nil)
	_ encoding.TextUnmarshaler = (*Network)(nil)
)

func (n *Network) String() string {
	return n.Name
}

func (n *Network) Set(s string) error {
	switch s {
	case "MAINNET", "mainnet":
		*n = Mainnet
	case "SEPOLIA", "sepolia":
		*n = Sepolia
	case "TESTNET", "testnet":
		*n = Testnet
	default:
		return ErrUnknownNetwork
	}
	return nil
}

func (n *Network) Type() string {
	return "Network"
}

func (n *Network) UnmarshalText(text []byte) error {
	return n.Set(string(text))
}
