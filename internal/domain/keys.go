package domain

import (
	"fmt"
	"strings"
)

// Store key namespaces, ':'-delimited
const (
	NSPair      = "pair"
	NSTokens    = "tokens"
	NSToken     = "token"
	NSReserve   = "reserve"
	NSPrice     = "price"
	NSDPrice    = "dprice"
	NSDReserve  = "dreserve"
	NSDReserves = "dreserves"
	NSGlobal    = "global"
	NSGlobalDay = "global_day"
	NSPairDay   = "pair_day"
	NSPairHour  = "pair_hour"
	NSTokenDay  = "token_day"
)

// Reference units of derived prices
const (
	UnitBNB = "bnb"
	UnitUSD = "usd"
)

const (
	secondsPerDay  = 86400
	secondsPerHour = 3600
)

func DayID(timestamp int64) int64  { return timestamp / secondsPerDay }
func HourID(timestamp int64) int64 { return timestamp / secondsPerHour }

func Key(parts ...string) string { return strings.Join(parts, ":") }

func PairKey(pair string) string   { return Key(NSPair, pair) }
func TokenKey(token string) string { return Key(NSToken, token) }

// tokens:<lo>:<hi>, independent of argument order
func TokensKey(tokenA, tokenB string) string {
	if tokenA > tokenB {
		tokenA, tokenB = tokenB, tokenA
	}
	return Key(NSTokens, tokenA, tokenB)
}

// Price of base quoted in quote
func PriceKey(base, quote string) string { return Key(NSPrice, base, quote) }

func ReserveKey(pair, token string) string { return Key(NSReserve, pair, token) }

func DPriceKey(token, unit string) string { return Key(NSDPrice, token, unit) }

func DReserveKey(pair, token, unit string) string { return Key(NSDReserve, pair, token, unit) }

func DReservesKey(pair string) string { return Key(NSDReserves, pair, UnitBNB) }

// Prefix matching every key of one time bucket, e.g. "pair_day:5:"
func BucketPrefix(ns string, id int64) string {
	return fmt.Sprintf("%s:%d:", ns, id)
}

func BucketKey(ns string, id int64, parts ...string) string {
	return BucketPrefix(ns, id) + Key(parts...)
}
