// Package chain reads on-chain wallet balances over JSON-RPC, for guardian
// deployments that watch external wallets instead of the internal ledger.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/minitoshi/scream/internal/coin"
)

// Client is an RPC-backed balance source.
type Client struct {
	eth *ethclient.Client
	// decimals of the chain's native unit; balances are rescaled to the
	// ledger's 9-decimal base unit so risk scoring sees consistent numbers.
	decimals int
	logger   *slog.Logger
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string, decimals int, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", rpcURL, err)
	}
	logger.Info("chain RPC connected", "url", rpcURL, "decimals", decimals)
	return &Client{eth: eth, decimals: decimals, logger: logger}, nil
}

// Balance returns the latest balance of address, rescaled to base units.
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address %q", address)
	}
	wei, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", address, err)
	}
	return Rescale(wei, c.decimals), nil
}

// SubscribeHeads pushes a fresh balance for each watched address on every new
// block, via observe. Requires a WebSocket RPC endpoint; callers fall back to
// polling when the subscription is unavailable. Returns after the first
// successful subscribe; the feed stops when ctx is cancelled.
func (c *Client) SubscribeHeads(ctx context.Context, addresses []string, observe func(address string, balance *big.Int)) error {
	heads := make(chan *types.Header, 8)
	sub, err := c.eth.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				c.logger.Warn("head subscription closed", "error", err)
				return
			case head := <-heads:
				for _, addr := range addresses {
					bal, err := c.Balance(ctx, addr)
					if err != nil {
						c.logger.Warn("balance fetch failed", "address", addr, "block", head.Number, "error", err)
						continue
					}
					observe(addr, bal)
				}
			}
		}
	}()
	return nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// Rescale converts an amount with the given number of decimals into the
// ledger's base unit. Precision beyond 9 decimals is truncated.
func Rescale(amount *big.Int, decimals int) *big.Int {
	if amount == nil {
		return big.NewInt(0)
	}
	diff := decimals - coin.Decimals
	switch {
	case diff > 0:
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(diff)), nil)
		return new(big.Int).Quo(amount, div)
	case diff < 0:
		mul := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-diff)), nil)
		return new(big.Int).Mul(amount, mul)
	default:
		return new(big.Int).Set(amount)
	}
}
