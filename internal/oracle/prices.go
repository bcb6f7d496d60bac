package oracle

import (
	"ammindex/internal/domain"

	"github.com/shopspring/decimal"
)

// Writes derived prices and reserves for every reserve update of the block.
// The previous day/hour buckets are expired first.
func (o *Oracle) BuildPrices(w Writer, timestamp int64, reserves []*domain.Reserve) {
	day, hour := domain.DayID(timestamp), domain.HourID(timestamp)

	w.DeletePrefix(0, domain.BucketPrefix(domain.NSPairDay, day-1))
	w.DeletePrefix(0, domain.BucketPrefix(domain.NSPairHour, hour-1))
	w.DeletePrefix(0, domain.BucketPrefix(domain.NSTokenDay, day-1))

	for _, r := range reserves {
		pair, ok := o.src.Pairs.PairAt(r.Ordinal, r.PairAddress)
		if !ok {
			o.log.Warnf("Skip prices of unknown pair %s at ordinal %d", r.PairAddress, r.Ordinal)
			continue
		}

		usd, usdOK := o.USDPerBnb(r.Ordinal)
		if usdOK && o.isUSDPair(pair.Address) {
			w.SetDecimal(r.Ordinal, domain.DPriceKey(domain.UnitUSD, domain.UnitBNB), usd)
		}

		b := &bucketWriter{w: w, ord: r.Ordinal, pair: pair.Address, day: day, hour: hour, usd: usd, usdOK: usdOK}
		reservesBNB := decimal.Zero
		for _, side := range [2]struct{ token, amount string }{
			{pair.Token0Address, r.Reserve0},
			{pair.Token1Address, r.Reserve1},
		} {
			price, ok := o.BnbPerToken(r.Ordinal, side.token)
			if !ok {
				continue
			}
			amount, ok := domain.ParseDecimal(side.amount)
			if !ok {
				o.log.Warnf("Skip derived reserve of %s in pair %s: bad amount %q", side.token, pair.Address, side.amount)
				continue
			}
			reservesBNB = reservesBNB.Add(b.token(side.token, price, amount))
		}

		if !reservesBNB.IsZero() {
			w.SetDecimal(r.Ordinal, domain.DReservesKey(pair.Address), reservesBNB)
		}
	}
}

type bucketWriter struct {
	w     Writer
	ord   uint64
	pair  string
	day   int64
	hour  int64
	usd   decimal.Decimal
	usdOK bool
}

// Sets the derived price and reserve of one side, returns the reserve in BNB
func (b *bucketWriter) token(token string, bnbPrice, amount decimal.Decimal) decimal.Decimal {
	reserveBNB := amount.Mul(bnbPrice)

	b.w.SetDecimal(b.ord, domain.DPriceKey(token, domain.UnitBNB), bnbPrice)
	b.w.SetDecimal(b.ord, domain.DReserveKey(b.pair, token, domain.UnitBNB), reserveBNB)

	if !b.usdOK {
		return reserveBNB
	}

	usdPrice := bnbPrice.Mul(b.usd)
	b.w.SetDecimal(b.ord, domain.DPriceKey(token, domain.UnitUSD), usdPrice)
	b.w.SetDecimal(b.ord, domain.BucketKey(domain.NSTokenDay, b.day, domain.NSDPrice, token, domain.UnitUSD), usdPrice)

	reserveUSD := reserveBNB.Mul(b.usd)
	b.w.SetDecimal(b.ord, domain.DReserveKey(b.pair, token, domain.UnitUSD), reserveUSD)
	b.w.SetDecimal(b.ord, domain.BucketKey(domain.NSPairDay, b.day, domain.NSDReserve, token, domain.UnitUSD), reserveUSD)
	b.w.SetDecimal(b.ord, domain.BucketKey(domain.NSPairHour, b.hour, domain.NSDReserve, token, domain.UnitUSD), reserveUSD)

	return reserveBNB
}
