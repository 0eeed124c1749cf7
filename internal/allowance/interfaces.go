package allowance

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Chain abstracts the ERC-20 calls made through the wallet provider for a
// configured (token, spender) pair.
type Chain interface {
	// Allowance reads the current spending allowance granted by owner to
	// the configured spender.
	Allowance(ctx context.Context, owner common.Address) (*big.Int, error)
	// Approve submits an approval transaction for the given amount and
	// waits for one confirmation.
	Approve(ctx context.Context, amount *big.Int) (Receipt, error)
}

// Receipt describes a mined approval transaction.
type Receipt struct {
	TxHash string
}

// HealthChecker is implemented by chain clients that can probe the RPC.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
