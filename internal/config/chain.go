package config

import "strings"

// PancakeSwap v2 on BSC
const (
	DefaultFactory       = "0xca143ce32fe78f1f7019d7d551a6402fc5350c73"
	DefaultNativeWrapper = "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c" // WBNB
	DefaultBUSDPair      = "0x58f876857a02d6762e0101bb5c46a8c1ed44dc16"
	DefaultUSDTPair      = "0x16b9a82891338f9ba80e2d6970fdda79d1eb0dae"

	DefaultLiquidityThreshold = "5"
	DefaultMinTokenCodeSize   = 150
)

var DefaultWhitelist = []string{
	DefaultNativeWrapper,
	"0xe9e7cea3dedca5984780bafc599bd69add087d56", // BUSD
	"0x55d398326f99059ff775485246999027b3197955", // USDT
	"0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", // USDC
	"0x23396cf899ca06c4472205fc903bdb4de249d6fc", // UST
	"0x7130d2a12b9bcbfae4f2634d864a1ee1ce3ead9c", // BTCB
	"0x2170ed0880ac9a755fd29b2688956bd959f933f8", // WETH
}

var DefaultExcludedDeployers = []string{
	"0xbcfccbde45ce874adcb698cc183debcf17952812", // factory v1
	"0x0000000000004946c0e9f43f4dee607b0ef1fa1c",
	"0x00000000687f5b66638856396bee28c1db0178d1",
}

func DefaultChain() ChainConfig {
	var c ChainConfig
	c.applyDefaults()
	return c
}

func (c *ChainConfig) applyDefaults() {
	if c.Factory == "" {
		c.Factory = DefaultFactory
	}
	if c.NativeWrapper == "" {
		c.NativeWrapper = DefaultNativeWrapper
	}
	if c.BUSDPair == "" {
		c.BUSDPair = DefaultBUSDPair
	}
	if c.USDTPair == "" {
		c.USDTPair = DefaultUSDTPair
	}
	if len(c.Whitelist) == 0 {
		c.Whitelist = append([]string(nil), DefaultWhitelist...)
	}
	if c.LiquidityThreshold == "" {
		c.LiquidityThreshold = DefaultLiquidityThreshold
	}
	if c.ExcludedDeployers == nil {
		c.ExcludedDeployers = append([]string(nil), DefaultExcludedDeployers...)
	}
	if c.MinTokenCodeSize <= 0 {
		c.MinTokenCodeSize = DefaultMinTokenCodeSize
	}

	c.Factory = strings.ToLower(c.Factory)
	c.NativeWrapper = strings.ToLower(c.NativeWrapper)
	c.BUSDPair = strings.ToLower(c.BUSDPair)
	c.USDTPair = strings.ToLower(c.USDTPair)
	for i := range c.Whitelist {
		c.Whitelist[i] = strings.ToLower(c.Whitelist[i])
	}
	for i := range c.ExcludedDeployers {
		c.ExcludedDeployers[i] = strings.ToLower(c.ExcludedDeployers[i])
	}
}
