//go:build ignore

// Run: go run ./build-tools/blockgen.go -url nats://localhost:4222 -subject blocks.bsc -start 1 -bps 3 -duration 60s

package main

import (
	"ammindex/internal/chaintest"
	"ammindex/internal/config"
	"ammindex/internal/pubsub/nats"
	"context"
	"flag"
	"fmt"
	"math/big"
	mrand "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gitlab.com/nevasik7/alerting/logger"
	lgcfg "gitlab.com/nevasik7/alerting/config"
)

// Replays a synthetic WBNB/BUSD market: the pair is created in the first block, every next block swaps against it
func main() {
	var (
		url      = flag.String("url", "nats://localhost:4222", "nats url")
		subject  = flag.String("subject", "blocks.bsc", "block subject")
		start    = flag.Uint64("start", 1, "first block number")
		bps      = flag.Int("bps", 3, "blocks per second")
		duration = flag.Duration("duration", 30*time.Second, "how long to run")
		swaps    = flag.Int("swaps", 5, "swaps per block")
	)
	flag.Parse()

	if *bps <= 0 {
		fmt.Println("bps must be positive")
		os.Exit(1)
	}

	lg := logger.New(lgcfg.LoggerCfg{Level: "info", Format: "console"})
	cl, err := nats.New(lg, &config.NATSConfig{URL: *url})
	if err != nil {
		fmt.Printf("nats init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cl.Close() }()

	fmt.Printf("blockgen → url=%s subject=%s start=%d bps=%d duration=%s\n", *url, *subject, *start, *bps, duration.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		wbnb    = common.HexToAddress(config.DefaultNativeWrapper)
		busd    = common.HexToAddress(config.DefaultWhitelist[1])
		pair    = common.HexToAddress(config.DefaultBUSDPair)
		factory = common.HexToAddress(config.DefaultFactory)
		trader  = chaintest.Addr(0xbeef)

		reserve0 = chaintest.Amount(10_000, 18)    // WBNB
		reserve1 = chaintest.Amount(6_000_000, 18) // BUSD
	)

	number := *start
	ts := time.Now().Unix()
	end := time.Now().Add(*duration)

	tick := time.NewTicker(time.Second / time.Duration(*bps))
	defer tick.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			fmt.Println("signal received, stopping…")
			break loop
		case now := <-tick.C:
			if now.After(end) {
				break loop
			}

			b := chaintest.NewBlock(number, ts)
			if number == *start {
				b.Tx(trader, factory).PairCreated(wbnb, busd, pair, 1)
				b.Tx(trader, pair).
					Transfer(trader, pair, reserve0).
					Transfer(trader, pair, reserve1).
					Sync(reserve0, reserve1).
					Mint(trader, reserve0, reserve1)
			}

			for i := 0; i < *swaps; i++ {
				in, out := randomSwap(reserve0, reserve1)
				reserve0 = new(big.Int).Add(reserve0, in)
				reserve1 = new(big.Int).Sub(reserve1, out)
				b.Tx(trader, pair).
					Transfer(pair, trader, out).
					Sync(reserve0, reserve1).
					Swap(trader, trader, in, big.NewInt(0), big.NewInt(0), out)
			}

			if err = cl.Publish(ctx, *subject, b.Build()); err != nil {
				fmt.Printf("publish error: %v\n", err)
				continue
			}
			number++
			ts += 3
		}
	}

	fmt.Printf("done, last block=%d\n", number-1)
}

// WBNB in, BUSD out at the constant-product price minus 0.25% fee
func randomSwap(r0, r1 *big.Int) (*big.Int, *big.Int) {
	in := chaintest.Amount(int64(1+mrand.Intn(20)), 17) // 0.1..2 WBNB

	inWithFee := new(big.Int).Mul(in, big.NewInt(9975))
	num := new(big.Int).Mul(inWithFee, r1)
	den := new(big.Int).Add(new(big.Int).Mul(r0, big.NewInt(10000)), inWithFee)
	return in, num.Div(num, den)
}
