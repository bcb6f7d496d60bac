package diff

import (
	"ammindex/internal/domain"
	"strings"
)

const (
	TablePair         = "pair"
	TableToken        = "token"
	TableFactory      = "pancake_factory"
	TableDayData      = "pancake_day_data"
	TablePairDayData  = "pair_day_data"
	TablePairHourData = "pair_hour_data"
	TableTokenDayData = "token_day_data"
	TableSwap         = "swap"
	TableMint         = "mint"
	TableBurn         = "burn"
)

// store sub-key -> table column
var (
	factoryFields = map[string]string{
		"pair_count":        "total_pairs",
		"transaction_count": "total_transactions",
		"usd":               "total_volume_usd",
		"bnb":               "total_volume_bnb",
		"liquidity_usd":     "total_liquidity_usd",
	}
	pairFields = map[string]string{
		"transaction_count": "total_transactions",
		"swap_count":        "swap_count",
		"mint_count":        "mint_count",
		"burn_count":        "burn_count",
		"usd":               "volume_usd",
		"token0":            "volume_token_0",
		"token1":            "volume_token_1",
		"total_supply":      "total_supply",
	}
	tokenFields = map[string]string{
		"transaction_count": "total_transactions",
		"trade":             "trade_volume",
		"trade_usd":         "trade_volume_usd",
		"liquidity":         "total_liquidity",
	}
	dayFields = map[string]string{
		"transaction_count": "daily_transactions",
		"usd":               "daily_volume_usd",
		"bnb":               "daily_volume_bnb",
	}
	pairDayFields = map[string]string{
		"usd":    "daily_volume_usd",
		"token0": "daily_volume_token_0",
		"token1": "daily_volume_token_1",
	}
	pairHourFields = map[string]string{
		"usd":    "hourly_volume_usd",
		"token0": "hourly_volume_token_0",
		"token1": "hourly_volume_token_1",
	}
	tokenDayFields = map[string]string{
		"usd": "daily_volume_usd",
	}
)

func splitKey(key string) (string, []string) {
	parts := strings.Split(key, ":")
	return parts[0], parts[1:]
}

// Partial single-field update for a counter or sum key; false when the key is not routed
func (e *Emitter) fieldUpdate(blockNum uint64, d *domain.StoreDelta) (*domain.TableChange, bool) {
	ns, rest := splitKey(d.Key)

	var (
		table, pk, sub string
		fields         map[string]string
	)

	switch {
	case ns == domain.NSGlobal && len(rest) == 1:
		table, pk, sub, fields = TableFactory, e.factory, rest[0], factoryFields
	case ns == domain.NSPair && len(rest) == 2:
		table, pk, sub, fields = TablePair, rest[0], rest[1], pairFields
	case ns == domain.NSToken && len(rest) == 2:
		table, pk, sub, fields = TableToken, rest[0], rest[1], tokenFields
	case ns == domain.NSGlobalDay && len(rest) == 2:
		table, pk, sub, fields = TableDayData, rest[0], rest[1], dayFields
	case ns == domain.NSPairDay && len(rest) == 3:
		table, pk, sub, fields = TablePairDayData, rest[1]+"-"+rest[0], rest[2], pairDayFields
	case ns == domain.NSPairHour && len(rest) == 3:
		table, pk, sub, fields = TablePairHourData, rest[1]+"-"+rest[0], rest[2], pairHourFields
	case ns == domain.NSTokenDay && len(rest) == 3:
		table, pk, sub, fields = TableTokenDayData, rest[1]+"-"+rest[0], rest[2], tokenDayFields
	default:
		return nil, false
	}

	column, ok := fields[sub]
	if !ok {
		return nil, false
	}

	return &domain.TableChange{
		Table:     table,
		PK:        pk,
		BlockNum:  blockNum,
		Ordinal:   d.Ordinal,
		Operation: domain.ChangeUpdate,
		Fields:    []domain.Field{{Name: column, NewValue: string(d.NewValue), OldValue: string(d.OldValue)}},
	}, true
}
