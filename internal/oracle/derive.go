package oracle

import (
	"ammindex/internal/domain"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Price of token in BNB as of ord: identity for WBNB, then the direct WBNB edge,
// then the first whitelist bridge whose reserve is worth more than the liquidity threshold.
func (o *Oracle) BnbPerToken(ord uint64, token string) (decimal.Decimal, bool) {
	if token == o.wbnb {
		return one, true
	}

	if p, ok := positiveAt(o.src.Reserves, ord, domain.PriceKey(token, o.wbnb)); ok {
		return p, true
	}

	for _, w := range o.whitelist {
		if w == token {
			continue
		}

		pair, ok := o.src.Pairs.PairFor(ord, token, w)
		if !ok {
			continue
		}

		wPrice := one
		if w != o.wbnb {
			if wPrice, ok = positiveAt(o.src.Reserves, ord, domain.PriceKey(w, o.wbnb)); !ok {
				continue
			}
		}

		reserve, ok := o.src.Reserves.GetDecimalAt(ord, domain.ReserveKey(pair, w))
		if !ok {
			continue
		}
		if liquidity := reserve.Mul(wPrice); liquidity.LessThanOrEqual(o.threshold) {
			o.log.Debugf("Skip bridge %s for token %s: liquidity %s below threshold", w, token, liquidity.String())
			continue
		}

		price, ok := positiveAt(o.src.Reserves, ord, domain.PriceKey(token, w))
		if !ok {
			continue
		}

		return price.Mul(wPrice), true
	}

	return decimal.Zero, false
}

// Price of BNB in USD as of ord, the two stable pairs weighted by their BNB reserves
func (o *Oracle) USDPerBnb(ord uint64) (decimal.Decimal, bool) {
	var (
		sum, weights decimal.Decimal
		fallback     decimal.Decimal
		found        bool
	)

	for _, pairAddr := range o.usdPairs {
		price, reserve, ok := o.stableSide(ord, pairAddr)
		if !ok {
			continue
		}
		if !found {
			fallback, found = price, true
		}
		sum = sum.Add(price.Mul(reserve))
		weights = weights.Add(reserve)
	}

	if !found {
		return decimal.Zero, false
	}
	if weights.IsZero() {
		return fallback, true
	}

	return sum.DivRound(weights, domain.DivisionPrecision), true
}

// WBNB price quoted in the stable token of the pair and the pair's WBNB reserve
func (o *Oracle) stableSide(ord uint64, pairAddr string) (decimal.Decimal, decimal.Decimal, bool) {
	pair, ok := o.src.Pairs.PairAt(ord, pairAddr)
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}

	stable := pair.Token0Address
	if stable == o.wbnb {
		stable = pair.Token1Address
	}

	price, ok := positiveAt(o.src.Reserves, ord, domain.PriceKey(o.wbnb, stable))
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}

	reserve, ok := o.src.Reserves.GetDecimalAt(ord, domain.ReserveKey(pairAddr, o.wbnb))
	if !ok {
		return decimal.Zero, decimal.Zero, false
	}

	return price, reserve, true
}

// Mean of the present values; unknown when none is present
func Average(values ...*decimal.Decimal) (decimal.Decimal, bool) {
	sum := decimal.Zero
	n := int64(0)

	for _, v := range values {
		if v == nil {
			continue
		}
		sum = sum.Add(*v)
		n++
	}

	switch n {
	case 0:
		return decimal.Zero, false
	case 1:
		return sum, true
	}

	return sum.DivRound(decimal.NewFromInt(n), domain.DivisionPrecision), true
}
