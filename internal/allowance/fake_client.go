package allowance

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// FakeChain emulates the stablecoin contract in memory for one owner.
// Approvals raise the allowance unless a scripted error is queued.
type FakeChain struct {
	mu          sync.Mutex
	current     *big.Int
	approveErrs []error
	approvals   int
	stuck       bool // when set, Approve succeeds but the allowance stays put
}

func NewFakeChain() *FakeChain {
	return &FakeChain{current: big.NewInt(0)}
}

// SetAllowance seeds the current allowance.
func (f *FakeChain) SetAllowance(amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = new(big.Int).Set(amount)
}

// QueueApproveError makes the next Approve call fail.
func (f *FakeChain) QueueApproveError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approveErrs = append(f.approveErrs, err)
}

// Stick makes approvals succeed without moving the allowance, emulating a
// replaced or underpriced transaction.
func (f *FakeChain) Stick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stuck = true
}

// Approvals reports how many approval transactions were submitted.
func (f *FakeChain) Approvals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.approvals
}

func (f *FakeChain) Allowance(_ context.Context, _ common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.current), nil
}

func (f *FakeChain) Approve(_ context.Context, amount *big.Int) (Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approvals++
	if len(f.approveErrs) > 0 {
		err := f.approveErrs[0]
		f.approveErrs = f.approveErrs[1:]
		return Receipt{}, err
	}
	if !f.stuck {
		f.current = new(big.Int).Set(amount)
	}
	return Receipt{TxHash: fakeHash(amount.String())}, nil
}

func fakeHash(input string) string {
	sum := sha256.Sum256([]byte(input))
	return "0x" + hex.EncodeToString(sum[:])
}
