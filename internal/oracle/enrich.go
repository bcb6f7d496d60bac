package oracle

import (
	"ammindex/internal/domain"

	"github.com/shopspring/decimal"
)

// Fills the price-derived amounts of every event, read as of the event ordinal.
// Amounts stay empty when no price is known.
func (o *Oracle) Enrich(events []*domain.Event) {
	for _, ev := range events {
		switch p := ev.Payload.(type) {
		case *domain.Swap:
			o.enrichSwap(ev, p)
		case *domain.Mint:
			p.AmountUSD = o.liquidityUSD(ev, p.Amount0, p.Amount1)
		case *domain.Burn:
			p.AmountUSD = o.liquidityUSD(ev, p.Amount0, p.Amount1)
		}
	}
}

func (o *Oracle) enrichSwap(ev *domain.Event, s *domain.Swap) {
	total0 := sumOf(s.Amount0In, s.Amount0Out)
	total1 := sumOf(s.Amount1In, s.Amount1Out)

	if v, ok := Average(o.valued(ev, ev.Token0, total0, domain.UnitBNB), o.valued(ev, ev.Token1, total1, domain.UnitBNB)); ok {
		s.AmountBNB = v.String()
	}

	if v, ok := Average(o.valued(ev, ev.Token0, total0, domain.UnitUSD), o.valued(ev, ev.Token1, total1, domain.UnitUSD)); ok {
		s.AmountUSD = v.String()
		s.TradeVolumeUSD0 = s.AmountUSD
		s.TradeVolumeUSD1 = s.AmountUSD
		s.VolumeUSD = s.AmountUSD
	}
}

// amount * dprice(token, unit), nil when the price is unknown
func (o *Oracle) valued(ev *domain.Event, token string, amount decimal.Decimal, unit string) *decimal.Decimal {
	price, ok := positiveAt(o.src.Prices, ev.Ordinal, domain.DPriceKey(token, unit))
	if !ok {
		return nil
	}
	v := amount.Mul(price)
	return &v
}

// (dprice(t0,bnb)*amount0 + dprice(t1,bnb)*amount1) * dprice(usd,bnb)
func (o *Oracle) liquidityUSD(ev *domain.Event, amount0, amount1 string) string {
	usd, ok := positiveAt(o.src.Prices, ev.Ordinal, domain.DPriceKey(domain.UnitUSD, domain.UnitBNB))
	if !ok {
		return ""
	}

	v0 := o.valued(ev, ev.Token0, parseOrZero(amount0), domain.UnitBNB)
	v1 := o.valued(ev, ev.Token1, parseOrZero(amount1), domain.UnitBNB)
	if v0 == nil && v1 == nil {
		return ""
	}

	bnb := decimal.Zero
	for _, v := range []*decimal.Decimal{v0, v1} {
		if v != nil {
			bnb = bnb.Add(*v)
		}
	}

	return bnb.Mul(usd).String()
}

func sumOf(a, b string) decimal.Decimal {
	return parseOrZero(a).Add(parseOrZero(b))
}

func parseOrZero(s string) decimal.Decimal {
	d, _ := domain.ParseDecimal(s)
	return d
}
