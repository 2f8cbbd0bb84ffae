package sequencer

import (
	"github.com/0xSpaceShard/starknet-devnet-go/core/felt"
)

// ImpersonateAccount lets transactions from the given address skip
// signature validation. Fork-only: without a fork there is no foreign
// account worth impersonating.
func (s *Sequencer) ImpersonateAccount(address *felt.Felt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Forked() {
		return ErrNotForked
	}
	s.impersonated[*address] = struct{}{}
	return nil
}

// StopImpersonateAccount restores normal validation for the address.
func (s *Sequencer) StopImpersonateAccount(address *felt.Felt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Forked() {
		return ErrNotForked
	}
	delete(s.impersonated, *address)
	return nil
}

// SetAutoImpersonate toggles impersonation for every sender.
func (s *Sequencer) SetAutoImpersonate(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Forked() {
		return ErrNotForked
	}
	s.autoImpersonate = enabled
	return nil
}

func (s *Sequencer) isImpersonatedLocked(sender *felt.Felt) bool {
	if !s.cfg.Forked() || sender == nil {
		return false
	}
	if s.autoImpersonate {
		return true
	}
	_, ok := s.impersonated[*sender]
	return ok
}
