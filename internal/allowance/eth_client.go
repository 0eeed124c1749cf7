package allowance

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"giftrails/internal/contracts"
	"giftrails/internal/fault"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthClient performs allowance reads and approval transactions against the
// stablecoin contract.
type EthClient struct {
	client    *ethclient.Client
	contract  *bind.BoundContract
	abi       abi.ABI
	token     common.Address
	spender   common.Address
	chainID   *big.Int
	transacts *bind.TransactOpts
}

type EthClientConfig struct {
	RPCURL         string
	PrivateKeyHex  string
	TokenAddress   string
	SpenderAddress string
}

func NewEthClient(ctx context.Context, cfg EthClientConfig) (*EthClient, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.TokenAddress) {
		return nil, fmt.Errorf("token address is required")
	}
	if !common.IsHexAddress(cfg.SpenderAddress) {
		return nil, fmt.Errorf("spender address is required")
	}

	cli, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(contracts.ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	token := common.HexToAddress(cfg.TokenAddress)
	bound := bind.NewBoundContract(token, parsedABI, cli, cli, cli)

	c := &EthClient{
		client:   cli,
		contract: bound,
		abi:      parsedABI,
		token:    token,
		spender:  common.HexToAddress(cfg.SpenderAddress),
	}

	if cfg.PrivateKeyHex == "" {
		// Read-only client: allowance checks work, approvals fail fast.
		return c, nil
	}

	pk, err := parsePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return nil, err
	}

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	txOpts, err := bind.NewKeyedTransactorWithChainID(pk, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	txOpts.GasLimit = 0 // let node estimate
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	c.chainID = chainID
	c.transacts = txOpts
	return c, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

func (c *EthClient) Allowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx}
	if err := c.contract.Call(opts, &out, "allowance", owner, c.spender); err != nil {
		return nil, fault.Wrap(fault.KindNetwork, err, "allowance read")
	}
	if len(out) == 0 {
		return nil, fault.New(fault.KindNetwork, "allowance read returned no value")
	}
	current, ok := out[0].(*big.Int)
	if !ok {
		return nil, fault.New(fault.KindNetwork, "allowance read returned unexpected type")
	}
	return current, nil
}

func (c *EthClient) Approve(ctx context.Context, amount *big.Int) (Receipt, error) {
	if c.transacts == nil {
		return Receipt{}, fault.New(fault.KindChain, "client is read-only, no signing key configured")
	}
	if amount == nil || amount.Sign() < 0 {
		return Receipt{}, fault.New(fault.KindValidation, "approval amount must be non-negative")
	}

	opts := *c.transacts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, "approve", c.spender, amount)
	if err != nil {
		return Receipt{}, classifyChainError(err, "approve tx")
	}

	receipt, err := waitForReceipt(ctx, c.client, tx)
	if err != nil {
		return Receipt{}, classifyChainError(err, "wait for approval")
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return Receipt{}, fault.Chain(fault.ChainReverted, nil, "approval transaction reverted")
	}

	return Receipt{TxHash: tx.Hash().Hex()}, nil
}

func (c *EthClient) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := c.client.BlockNumber(ctx)
	return err
}

// classifyChainError maps provider error text into a display category once,
// here; downstream code never re-parses messages.
func classifyChainError(err error, msg string) error {
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "insufficient funds"):
		return fault.Chain(fault.ChainInsufficientFunds, err, msg)
	case strings.Contains(lower, "user denied"), strings.Contains(lower, "rejected"):
		return fault.Chain(fault.ChainRejected, err, msg)
	case strings.Contains(lower, "revert"):
		return fault.Chain(fault.ChainReverted, err, msg)
	default:
		return fault.Wrap(fault.KindChain, err, msg)
	}
}

// waitForReceipt polls until the transaction is mined or context cancelled.
func waitForReceipt(ctx context.Context, client *ethclient.Client, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, tx.Hash())
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && err.Error() != "not found" {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
