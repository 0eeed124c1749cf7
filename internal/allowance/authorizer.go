package allowance

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"giftrails/internal/fault"
)

// Status is one observation of the owner's spending allowance. Approved is
// derived from a fresh on-chain read every time; it is never cached.
type Status struct {
	Required *big.Int
	Current  *big.Int
	Approved bool
}

// Authorizer coordinates allowance checks and approval transactions for the
// configured (token, spender) pair.
type Authorizer struct {
	chain   Chain
	timeout time.Duration
	log     *logrus.Logger

	mu       sync.Mutex
	inflight map[common.Address]bool
}

func NewAuthorizer(chain Chain, timeout time.Duration, log *logrus.Logger) *Authorizer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Authorizer{
		chain:    chain,
		timeout:  timeout,
		log:      log,
		inflight: make(map[common.Address]bool),
	}
}

// Check reads the current allowance and compares it to the required amount.
// A zero allowance is a normal result; only an unreachable provider returns
// an error, and then Approved is conservatively false.
func (a *Authorizer) Check(ctx context.Context, owner common.Address, required *big.Int) (Status, error) {
	readCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	current, err := a.chain.Allowance(readCtx, owner)
	if err != nil {
		a.log.WithFields(logrus.Fields{"owner": owner.Hex(), "error": err}).Warn("allowance read failed")
		return Status{Required: required, Approved: false}, err
	}

	return Status{
		Required: required,
		Current:  current,
		Approved: current.Cmp(required) >= 0,
	}, nil
}

// Approve submits an approval for the required amount, waits for one
// confirmation, then re-reads the allowance before reporting Approved. If
// the re-read still falls short (underpriced or replaced transaction) the
// caller is told to retry. A second Approve for the same owner while one is
// pending is rejected, not queued.
func (a *Authorizer) Approve(ctx context.Context, owner common.Address, required *big.Int) (Status, error) {
	a.mu.Lock()
	if a.inflight[owner] {
		a.mu.Unlock()
		return Status{Required: required, Approved: false},
			fault.New(fault.KindAllowance, "an approval is already in flight for this wallet")
	}
	a.inflight[owner] = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		delete(a.inflight, owner)
		a.mu.Unlock()
	}()

	receipt, err := a.chain.Approve(ctx, required)
	if err != nil {
		return Status{Required: required, Approved: false}, err
	}

	status, err := a.Check(ctx, owner, required)
	if err != nil {
		return status, err
	}
	if !status.Approved {
		a.log.WithFields(logrus.Fields{
			"owner":   owner.Hex(),
			"tx_hash": receipt.TxHash,
			"current": status.Current.String(),
		}).Warn("allowance below required after approval")
		return status, fault.New(fault.KindAllowance, "allowance still below the required amount, retry the approval")
	}

	a.log.WithFields(logrus.Fields{
		"owner":   owner.Hex(),
		"tx_hash": receipt.TxHash,
	}).Info("allowance approved")
	return status, nil
}
