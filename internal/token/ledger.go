package token

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is an in-process ERC20-style token: capped, mintable until the owner
// finishes minting, and pausable. It starts paused so holders cannot move
// tokens until the sale is finalized. All amounts are copied on the way in
// and out; callers never share big.Int instances with the ledger.
type Ledger struct {
	mu sync.RWMutex

	owner           common.Address
	cap             *big.Int
	totalSupply     *big.Int
	balances        map[common.Address]*big.Int
	allowances      map[common.Address]map[common.Address]*big.Int
	paused          bool
	mintingFinished bool
}

// NewLedger creates a paused token with the given cap, owned by owner.
func NewLedger(cap *big.Int, owner common.Address) (*Ledger, error) {
	if cap == nil || cap.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if owner == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	return &Ledger{
		owner:       owner,
		cap:         new(big.Int).Set(cap),
		totalSupply: big.NewInt(0),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
		paused:      true,
	}, nil
}

// Mint creates amount tokens for to. Owner-only; rejected beyond the cap or
// after minting has been finished.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if l.mintingFinished {
		return ErrMintingFinished
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	next := new(big.Int).Add(l.totalSupply, amount)
	if next.Cmp(l.cap) > 0 {
		return ErrCapExceeded
	}

	l.totalSupply = next
	l.credit(to, amount)
	return nil
}

// FinishMinting irreversibly disables Mint. Owner-only.
func (l *Ledger) FinishMinting(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if l.mintingFinished {
		return ErrMintingFinished
	}
	l.mintingFinished = true
	return nil
}

// MintingFinished reports whether Mint has been disabled.
func (l *Ledger) MintingFinished() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.mintingFinished
}

// Pause blocks transfers, approvals, and burns. Owner-only.
func (l *Ledger) Pause(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if l.paused {
		return ErrPaused
	}
	l.paused = true
	return nil
}

// Unpause lifts the transfer restriction. Owner-only.
func (l *Ledger) Unpause(caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if !l.paused {
		return ErrNotPaused
	}
	l.paused = false
	return nil
}

// Paused reports the transfer restriction state.
func (l *Ledger) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.paused
}

// TotalSupply returns a copy of the minted supply.
func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

// BalanceOf returns a copy of addr's balance.
func (l *Ledger) BalanceOf(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return big.NewInt(0)
}

// Cap returns a copy of the supply cap.
func (l *Ledger) Cap() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.cap)
}

// Allowance returns a copy of the amount spender may transfer from holder.
func (l *Ledger) Allowance(holder, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if a, ok := l.allowances[holder][spender]; ok {
		return new(big.Int).Set(a)
	}
	return big.NewInt(0)
}

// Owner returns the current owner address.
func (l *Ledger) Owner() common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.owner
}

// TransferOwnership hands the owner role to newOwner. Used once before the
// sale starts to give the engine minting authority.
func (l *Ledger) TransferOwnership(caller, newOwner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrNotOwner
	}
	if newOwner == (common.Address{}) {
		return ErrZeroAddress
	}
	l.owner = newOwner
	return nil
}

// Transfer moves amount from caller to to. Rejected while paused.
func (l *Ledger) Transfer(caller, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	return l.move(caller, to, amount)
}

// Approve sets spender's allowance over caller's tokens. Rejected while paused.
func (l *Ledger) Approve(caller, spender common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.setAllowance(caller, spender, new(big.Int).Set(amount))
	return nil
}

// IncreaseApproval raises spender's allowance by amount. Rejected while paused.
func (l *Ledger) IncreaseApproval(caller, spender common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	cur := l.allowanceLocked(caller, spender)
	l.setAllowance(caller, spender, new(big.Int).Add(cur, amount))
	return nil
}

// DecreaseApproval lowers spender's allowance by amount, flooring at zero.
// Rejected while paused.
func (l *Ledger) DecreaseApproval(caller, spender common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	cur := l.allowanceLocked(caller, spender)
	next := new(big.Int).Sub(cur, amount)
	if next.Sign() < 0 {
		next = big.NewInt(0)
	}
	l.setAllowance(caller, spender, next)
	return nil
}

// TransferFrom moves amount from holder to to using caller's allowance.
// Rejected while paused.
func (l *Ledger) TransferFrom(caller, holder, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	allowance := l.allowanceLocked(holder, caller)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.move(holder, to, amount); err != nil {
		return err
	}
	l.setAllowance(holder, caller, new(big.Int).Sub(allowance, amount))
	return nil
}

// Burn destroys amount of caller's tokens. Rejected while paused.
func (l *Ledger) Burn(caller common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	return l.burn(caller, amount)
}

// BurnFrom destroys amount of holder's tokens using caller's allowance.
// Rejected while paused.
func (l *Ledger) BurnFrom(caller, holder common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return ErrPaused
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	allowance := l.allowanceLocked(holder, caller)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := l.burn(holder, amount); err != nil {
		return err
	}
	l.setAllowance(holder, caller, new(big.Int).Sub(allowance, amount))
	return nil
}

// move transfers between balances; callers hold the lock.
func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) burn(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)
	return nil
}

func (l *Ledger) credit(to common.Address, amount *big.Int) {
	balance := l.balances[to]
	if balance == nil {
		balance = big.NewInt(0)
	}
	l.balances[to] = new(big.Int).Add(balance, amount)
}

func (l *Ledger) allowanceLocked(holder, spender common.Address) *big.Int {
	if a, ok := l.allowances[holder][spender]; ok {
		return a
	}
	return big.NewInt(0)
}

func (l *Ledger) setAllowance(holder, spender common.Address, amount *big.Int) {
	m := l.allowances[holder]
	if m == nil {
		m = make(map[common.Address]*big.Int)
		l.allowances[holder] = m
	}
	m[spender] = amount
}
