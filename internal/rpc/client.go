package rpc

import (
	"ammindex/internal/config"
	"ammindex/internal/domain"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/puzpuzpuz/xsync/v4"
	"gitlab.com/nevasik7/alerting/logger"
)

/*
	ERC-20 metadata lookups over eth_call.
	Results, including "not a token", are cached per address so the deterministic
	pass never waits on the network once a block's candidates were prefetched.
	Transport failures are not cached; the next lookup calls the node again.
*/

var (
	ErrNotToken   = errors.New("rpc: contract is not an erc-20 token")
	ErrCallFailed = errors.New("rpc: token call failed")
)

// Node answers that say the contract itself refused the call
var vmFailures = []string{"execution reverted", "invalid opcode", "out of gas", "invalid jump"}

const (
	defaultTimeout = 5 * time.Second
	defaultWorkers = 8
)

// *ethclient.Client satisfies it
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type result struct {
	token *domain.Token
	err   error
}

type Client struct {
	log     logger.Logger
	caller  Caller
	closer  func()
	timeout time.Duration

	pool  pond.Pool
	cache *xsync.Map[string, result]
}

func Dial(ctx context.Context, log logger.Logger, cfg *config.RPCConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the rpc client")
	}

	ec, err := ethclient.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.Endpoint, err)
	}

	c, err := New(log, cfg, ec)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closer = ec.Close

	return c, nil
}

func New(log logger.Logger, cfg *config.RPCConfig, caller Caller) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required to the rpc client")
	}
	if caller == nil {
		return nil, errors.New("caller is required to the rpc client")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	workers := cfg.PrefetchWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Client{
		log:     log,
		caller:  caller,
		timeout: timeout,
		pool:    pond.NewPool(workers),
		cache:   xsync.NewMap[string, result](),
	}, nil
}

// Metadata of the token at address. ErrNotToken when the contract reverts or answers badly,
// ErrCallFailed when the node could not be asked.
func (c *Client) TokenMetadata(ctx context.Context, address string) (*domain.Token, error) {
	if r, ok := c.cache.Load(address); ok {
		return r.token, r.err
	}

	token, err := c.fetch(ctx, address)
	if err != nil && (ctx.Err() != nil || !errors.Is(err, ErrNotToken)) {
		// says nothing about the contract
		return nil, err
	}

	c.cache.Store(address, result{token: token, err: err})
	return token, err
}

// Fills the cache for addresses concurrently
func (c *Client) Prefetch(ctx context.Context, addresses []string) error {
	group := c.pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, addr := range addresses {
		if _, ok := c.cache.Load(addr); ok {
			continue
		}
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			if _, err := c.TokenMetadata(groupCtx, addr); err != nil && !errors.Is(err, ErrNotToken) {
				c.log.Debugf("Prefetch of %s failed: %v", addr, err)
			}
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	return ctx.Err()
}

func (c *Client) Close() {
	c.pool.StopAndWait()
	if c.closer != nil {
		c.closer()
	}
}

func (c *Client) fetch(ctx context.Context, address string) (*domain.Token, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: bad address %q", ErrNotToken, address)
	}
	to := common.HexToAddress(address)

	raw := make([][]byte, 0, 3)
	for _, selector := range [][]byte{selectorDecimals, selectorName, selectorSymbol} {
		out, err := c.call(ctx, to, selector)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !isVMFailure(err) {
				return nil, fmt.Errorf("%w: %s call %x: %v", ErrCallFailed, address, selector, err)
			}
			return nil, fmt.Errorf("%w: %s call %x: %v", ErrNotToken, address, selector, err)
		}
		raw = append(raw, out)
	}

	decimals, err := DecodeUint32(raw[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %s decimals: %v", ErrNotToken, address, err)
	}
	if !domain.ValidDecimals(decimals) {
		return nil, fmt.Errorf("%w: %s decimals: %d above %d", ErrNotToken, address, decimals, domain.MaxTokenDecimals)
	}
	name, err := DecodeString(raw[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %s name: %v", ErrNotToken, address, err)
	}
	symbol, err := DecodeString(raw[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %s symbol: %v", ErrNotToken, address, err)
	}

	return &domain.Token{Address: address, Name: name, Symbol: symbol, Decimals: decimals}, nil
}

func (c *Client) call(ctx context.Context, to common.Address, selector []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: selector}, nil)
}

func isVMFailure(err error) bool {
	var dataErr gethrpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range vmFailures {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
