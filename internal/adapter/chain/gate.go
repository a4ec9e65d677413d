// Package chain answers advisory balance questions against an EVM JSON-RPC node.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"secure-escrow/internal/core/ports"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// NativeAsset selects the chain's native coin.
const NativeAsset = "native"

const nativeDecimals = 18

// ERC20 read-only subset
const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// Client is the slice of ethclient.Client the gate needs.
type Client interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// Gate implements ports.BalanceGate.
type Gate struct {
	client  Client
	erc20   abi.ABI
	timeout time.Duration

	mu       sync.RWMutex
	decimals map[common.Address]uint8
}

var _ ports.BalanceGate = (*Gate)(nil)

// Dial connects to rpcURL and returns a gate using it.
func Dial(ctx context.Context, rpcURL string, timeout time.Duration) (*Gate, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewGate(client, timeout)
}

// NewGate wraps an existing client. timeout bounds each lookup; zero means none.
func NewGate(client Client, timeout time.Duration) (*Gate, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	return &Gate{
		client:   client,
		erc20:    parsed,
		timeout:  timeout,
		decimals: make(map[common.Address]uint8),
	}, nil
}

// Close releases the RPC connection.
func (g *Gate) Close() {
	g.client.Close()
}

// CheckBalance reports whether holder owns at least amount of assetID,
// where assetID is a token contract address or NativeAsset.
func (g *Gate) CheckBalance(ctx context.Context, holder string, assetID string, amount decimal.Decimal) (*ports.BalanceReport, error) {
	if !common.IsHexAddress(holder) {
		return nil, fmt.Errorf("invalid holder address %q", holder)
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	owner := common.HexToAddress(holder)
	var (
		raw      *big.Int
		decimals uint8
		err      error
	)
	if strings.EqualFold(assetID, NativeAsset) {
		raw, err = g.client.BalanceAt(ctx, owner, nil)
		if err != nil {
			return nil, fmt.Errorf("native balance: %w", err)
		}
		decimals = nativeDecimals
	} else {
		if !common.IsHexAddress(assetID) {
			return nil, fmt.Errorf("invalid token address %q", assetID)
		}
		token := common.HexToAddress(assetID)
		if decimals, err = g.tokenDecimals(ctx, token); err != nil {
			return nil, err
		}
		if raw, err = g.tokenBalance(ctx, token, owner); err != nil {
			return nil, err
		}
	}

	balance := decimal.NewFromBigInt(raw, -int32(decimals))
	shortfall := amount.Sub(balance)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}

	return &ports.BalanceReport{
		Holder:     owner.Hex(),
		AssetID:    assetID,
		Required:   amount,
		Balance:    balance,
		Shortfall:  shortfall,
		Sufficient: balance.GreaterThanOrEqual(amount),
	}, nil
}

func (g *Gate) tokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := g.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", out[0])
	}
	return balance, nil
}

// tokenDecimals is cached per contract; decimals never change after deploy.
func (g *Gate) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	g.mu.RLock()
	d, ok := g.decimals[token]
	g.mu.RUnlock()
	if ok {
		return d, nil
	}

	out, err := g.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	d, ok = out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals returned %T", out[0])
	}

	g.mu.Lock()
	g.decimals[token] = d
	g.mu.Unlock()
	return d, nil
}

func (g *Gate) call(ctx context.Context, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := g.erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s call: %w", method, err)
	}
	result, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := g.erc20.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return out, nil
}
