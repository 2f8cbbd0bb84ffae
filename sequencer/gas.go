package sequencer

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core"
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

// GasModification updates a subset of the gas price vector. Nil fields keep
// their current value.
type GasModification struct {
	L1GasPriceWEI     *felt.Felt `json:"gas_price_wei,omitempty"`
	L1GasPriceFRI     *felt.Felt `json:"gas_price_fri,omitempty"`
	L1DataGasPriceWEI *felt.Felt `json:"data_gas_price_wei,omitempty"`
	L1DataGasPriceFRI *felt.Felt `json:"data_gas_price_fri,omitempty"`
	L2GasPriceWEI     *felt.Felt `json:"l2_gas_price_wei,omitempty"`
	L2GasPriceFRI     *felt.Felt `json:"l2_gas_price_fri,omitempty"`
	GenerateBlock     bool       `json:"generate_block,omitempty"`
}

// UpdateGas changes the prices of the next sealed block; the current
// pre-confirmed block keeps its prices. With GenerateBlock the current
// pre-confirmed block seals immediately at the old prices and the new ones
// take effect right away.
func (s *Sequencer) UpdateGas(mod GasModification) (core.GasPrices, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mod.GenerateBlock {
		if _, err := s.sealLocked(); err != nil {
			return core.GasPrices{}, err
		}
	}

	apply := func(target **felt.Felt, value *felt.Felt) {
		if value != nil {
			*target = value.Clone()
		}
	}
	apply(&s.gasPrices.L1GasPriceWEI, mod.L1GasPriceWEI)
	apply(&s.gasPrices.L1GasPriceFRI, mod.L1GasPriceFRI)
	apply(&s.gasPrices.L1DataGasPriceWEI, mod.L1DataGasPriceWEI)
	apply(&s.gasPrices.L1DataGasPriceFRI, mod.L1DataGasPriceFRI)
	apply(&s.gasPrices.L2GasPriceWEI, mod.L2GasPriceWEI)
	apply(&s.gasPrices.L2GasPriceFRI, mod.L2GasPriceFRI)

	if mod.GenerateBlock {
		// The freshly opened pre-confirmed block starts at the new prices.
		s.chain.PreConfirmed().GasPrices = s.gasPrices.Clone()
	}
	return s.gasPrices.Clone(), nil
}

// GasPrices reports the prices the next sealed block will carry.
func (s *Sequencer) GasPrices() core.GasPrices {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gasPrices.Clone()
}
