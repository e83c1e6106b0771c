package bank

import (
	"math/big"
	"sync"
)

// Memory is an in-process payment sender for local development and tests. It
// credits payouts to an internal balance table instead of moving real funds.
type Memory struct {
	mu       sync.RWMutex
	balances map[[20]byte]*big.Int
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[[20]byte]*big.Int)}
}

// Pay credits the amount to the recipient's balance.
func (m *Memory) Pay(to [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.balances[to]
	if !ok || current == nil {
		current = big.NewInt(0)
	}
	m.balances[to] = new(big.Int).Add(current, amount)
	return nil
}

// Balance reports the total amount paid out to the recipient so far.
func (m *Memory) Balance(addr [20]byte) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if balance, ok := m.balances[addr]; ok && balance != nil {
		return new(big.Int).Set(balance)
	}
	return big.NewInt(0)
}
