package epoch

import (
	"errors"
	"math/big"
	"sync"
)

// ErrSafeInsufficientBalance is returned when a withdrawal would overdraw the
// pool safe.
var ErrSafeInsufficientBalance = errors.New("pool safe: insufficient balance")

// Safe is an in-memory pool liquidity safe. It satisfies the epoch manager's
// PoolSafe interface and the first-loss engines' transfer hooks, standing in
// for the production treasury collaborator.
type Safe struct {
	mu      sync.Mutex
	balance *big.Int
}

// NewSafe constructs a safe holding the given opening balance.
func NewSafe(balance *big.Int) *Safe {
	s := &Safe{balance: big.NewInt(0)}
	if balance != nil {
		s.balance.Set(balance)
	}
	return s
}

// AvailableBalanceForPool returns the liquidity available for settlement.
func (s *Safe) AvailableBalanceForPool() *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.balance)
}

// Deposit credits the safe.
func (s *Safe) Deposit(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance.Add(s.balance, amount)
}

// Withdraw debits the safe for settled redemptions.
func (s *Safe) Withdraw(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balance.Cmp(amount) < 0 {
		return ErrSafeInsufficientBalance
	}
	s.balance.Sub(s.balance, amount)
	return nil
}

// ReceiveFromCover implements the first-loss engine's safe hook.
func (s *Safe) ReceiveFromCover(amount *big.Int) {
	s.Deposit(amount)
}

// ReturnToCover implements the first-loss engine's safe hook.
func (s *Safe) ReturnToCover(amount *big.Int) error {
	return s.Withdraw(amount)
}
