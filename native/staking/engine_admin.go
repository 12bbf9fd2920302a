package staking

import (
	"errors"
	"math/big"
)

// Admin surface. Every mutation re-validates ROLE_STAKING_ADMIN against the
// role store before acting.

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(RoleAdmin, caller[:]) {
		return ErrUnauthorized
	}
	return nil
}

// SetFeeReceiver redirects exit fees.
func (e *Engine) SetFeeReceiver(caller, receiver [20]byte) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if receiver == ([20]byte{}) {
		return ErrNilFeeReceiver
	}
	e.params.FeeReceiver = receiver
	return nil
}

// SetTierBps registers or retunes a plot tier address. A zero multiplier
// removes the tier.
func (e *Engine) SetTierBps(caller, plotAddress [20]byte, bps uint64) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if bps > bpsDenominator {
		return errors.New("staking: tier multiplier above 100%")
	}
	if bps == 0 {
		delete(e.params.TierBps, plotAddress)
		return nil
	}
	e.params.TierBps[plotAddress] = bps
	return nil
}

// SetDailyRate swaps the global accrual constant.
func (e *Engine) SetDailyRate(caller [20]byte, rate *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() <= 0 {
		return errors.New("staking: daily rate must be positive")
	}
	e.params.DailyRate = new(big.Int).Set(rate)
	return nil
}
