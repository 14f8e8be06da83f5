// Package funds moves accepted payments to the sale wallet and returns
// refunds to buyers. The sale engine only talks to the Forwarder interface;
// deployments plug in whatever settlement rail they use.
package funds

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	dErrors "crowdgate/pkg/domain-errors"
)

// Forwarder settles payment flows decided by the sale engine. Both methods
// are invoked only after ledger state has been committed.
type Forwarder interface {
	// Forward moves an accepted payment to the funds wallet.
	Forward(ctx context.Context, to common.Address, amount *big.Int) error

	// Refund returns an over-payment to the sender.
	Refund(ctx context.Context, to common.Address, amount *big.Int) error
}

// MemoryForwarder tracks cumulative transfers per address. It backs tests and
// single-node deployments where settlement is reconciled out of band.
type MemoryForwarder struct {
	mu        sync.RWMutex
	forwarded map[common.Address]*big.Int
	refunded  map[common.Address]*big.Int
}

func NewMemoryForwarder() *MemoryForwarder {
	return &MemoryForwarder{
		forwarded: make(map[common.Address]*big.Int),
		refunded:  make(map[common.Address]*big.Int),
	}
}

func (f *MemoryForwarder) Forward(_ context.Context, to common.Address, amount *big.Int) error {
	return f.add(f.forwarded, to, amount)
}

func (f *MemoryForwarder) Refund(_ context.Context, to common.Address, amount *big.Int) error {
	return f.add(f.refunded, to, amount)
}

// Forwarded returns the cumulative amount forwarded to addr.
func (f *MemoryForwarder) Forwarded(addr common.Address) *big.Int {
	return f.total(f.forwarded, addr)
}

// Refunded returns the cumulative amount refunded to addr.
func (f *MemoryForwarder) Refunded(addr common.Address) *big.Int {
	return f.total(f.refunded, addr)
}

func (f *MemoryForwarder) add(m map[common.Address]*big.Int, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer amount must not be negative")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	cur := m[to]
	if cur == nil {
		cur = big.NewInt(0)
	}
	m[to] = new(big.Int).Add(cur, amount)
	return nil
}

func (f *MemoryForwarder) total(m map[common.Address]*big.Int, addr common.Address) *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if cur, ok := m[addr]; ok {
		return new(big.Int).Set(cur)
	}
	return big.NewInt(0)
}
