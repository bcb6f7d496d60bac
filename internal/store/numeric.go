package store

import (
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	KeyTypeIntMin   = "im"
	KeyTypeFloatMin = "fm"
)

// previous value (or zero) + delta
func (b *Builder) SumInt64(ord uint64, key string, delta int64) {
	if !b.bumpOrdinal(ord) {
		return
	}

	prev, _ := b.intLast(key)
	b.set(ord, key, KeyTypeIntSum, []byte(strconv.FormatInt(prev+delta, 10)))
}

// previous value (or zero) + delta, arbitrary precision
func (b *Builder) SumBigFloat(ord uint64, key string, delta decimal.Decimal) {
	if !b.bumpOrdinal(ord) {
		return
	}

	prev, _ := b.decimalLast(key)
	b.set(ord, key, KeyTypeFloatSum, []byte(prev.Add(delta).String()))
}

func (b *Builder) SetMinInt64(ord uint64, key string, value int64) {
	if !b.bumpOrdinal(ord) {
		return
	}

	if prev, ok := b.intLast(key); ok && prev <= value {
		return
	}
	b.set(ord, key, KeyTypeIntMin, []byte(strconv.FormatInt(value, 10)))
}

func (b *Builder) SetMinBigFloat(ord uint64, key string, value decimal.Decimal) {
	if !b.bumpOrdinal(ord) {
		return
	}

	if prev, ok := b.decimalLast(key); ok && prev.LessThanOrEqual(value) {
		return
	}
	b.set(ord, key, KeyTypeFloatMin, []byte(value.String()))
}

func (b *Builder) SetDecimal(ord uint64, key string, value decimal.Decimal) {
	b.Set(ord, key, []byte(value.String()))
}

func (b *Builder) GetIntLast(key string) (int64, bool) {
	return b.intLast(key)
}

func (b *Builder) GetDecimalLast(key string) (decimal.Decimal, bool) {
	return b.decimalLast(key)
}

func (b *Builder) GetDecimalAt(ord uint64, key string) (decimal.Decimal, bool) {
	raw, ok := b.GetAt(ord, key)
	if !ok {
		return decimal.Zero, false
	}
	return b.parseDecimal(key, raw)
}

func (b *Builder) GetDecimalFirst(key string) (decimal.Decimal, bool) {
	raw, ok := b.GetFirst(key)
	if !ok {
		return decimal.Zero, false
	}
	return b.parseDecimal(key, raw)
}

func (b *Builder) intLast(key string) (int64, bool) {
	raw, ok := b.GetLast(key)
	if !ok {
		return 0, false
	}

	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		b.fail(&CorruptValueError{Store: b.name, Key: key, Value: raw, Err: err})
		return 0, false
	}

	return v, true
}

func (b *Builder) decimalLast(key string) (decimal.Decimal, bool) {
	raw, ok := b.GetLast(key)
	if !ok {
		return decimal.Zero, false
	}
	return b.parseDecimal(key, raw)
}

func (b *Builder) parseDecimal(key string, raw []byte) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		b.fail(&CorruptValueError{Store: b.name, Key: key, Value: raw, Err: err})
		return decimal.Zero, false
	}

	return d, true
}
