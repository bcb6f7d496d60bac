package diff

import (
	"ammindex/internal/domain"
	"encoding/json"
	"fmt"
	"strconv"
)

func create(table, pk string, blockNum, ord uint64, fields ...domain.Field) *domain.TableChange {
	return &domain.TableChange{
		Table:     table,
		PK:        pk,
		BlockNum:  blockNum,
		Ordinal:   ord,
		Operation: domain.ChangeCreate,
		Fields:    fields,
	}
}

func field(name, value string) domain.Field {
	return domain.Field{Name: name, NewValue: value}
}

func (e *Emitter) pairCreate(in *Input, d *domain.StoreDelta) ([]*domain.TableChange, error) {
	if ns, rest := splitKey(d.Key); ns != domain.NSPair || len(rest) != 1 {
		return nil, nil
	}

	var pair domain.Pair
	if err := json.Unmarshal(d.NewValue, &pair); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Key, err)
	}

	return []*domain.TableChange{create(TablePair, pair.Address, in.BlockNum, d.Ordinal,
		field("id", pair.Address),
		field("name", e.symbol(d.Ordinal, pair.Token0Address)+"-"+e.symbol(d.Ordinal, pair.Token1Address)),
		field("token_0", pair.Token0Address),
		field("token_1", pair.Token1Address),
		field("block", strconv.FormatUint(pair.BlockNum, 10)),
		field("timestamp", strconv.FormatInt(in.Timestamp, 10)),
	)}, nil
}

func (e *Emitter) symbol(ord uint64, token string) string {
	t, ok := e.tokens.TokenAt(ord, token)
	if !ok {
		e.log.Warnf("Pair name uses address of token %s: metadata unknown", token)
		return token
	}
	return t.Symbol
}

func tokenCreate(blockNum uint64, d *domain.StoreDelta) ([]*domain.TableChange, error) {
	if ns, rest := splitKey(d.Key); ns != domain.NSToken || len(rest) != 1 {
		return nil, nil
	}

	var token domain.Token
	if err := json.Unmarshal(d.NewValue, &token); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Key, err)
	}

	return []*domain.TableChange{create(TableToken, token.Address, blockNum, d.Ordinal,
		field("id", token.Address),
		field("name", token.Name),
		field("symbol", token.Symbol),
		field("decimals", strconv.FormatUint(uint64(token.Decimals), 10)),
	)}, nil
}

func reserveChange(blockNum uint64, r *domain.Reserve) *domain.TableChange {
	return &domain.TableChange{
		Table:     TablePair,
		PK:        r.PairAddress,
		BlockNum:  blockNum,
		Ordinal:   r.Ordinal,
		Operation: domain.ChangeUpdate,
		Fields: []domain.Field{
			field("reserve_0", r.Reserve0),
			field("reserve_1", r.Reserve1),
			field("token_0_price", r.Token0Price),
			field("token_1_price", r.Token1Price),
		},
	}
}

func eventChange(blockNum uint64, ev *domain.Event) (*domain.TableChange, error) {
	common := []domain.Field{
		field("transaction", ev.TransactionID),
		field("timestamp", strconv.FormatUint(ev.Timestamp, 10)),
		field("pair", ev.PairAddress),
		field("token_0", ev.Token0),
		field("token_1", ev.Token1),
	}

	switch p := ev.Payload.(type) {
	case *domain.Swap:
		return create(TableSwap, p.ID, blockNum, ev.Ordinal, append([]domain.Field{field("id", p.ID)}, append(common,
			field("sender", p.Sender),
			field("to", p.To),
			field("from", p.From),
			field("amount_0_in", p.Amount0In),
			field("amount_1_in", p.Amount1In),
			field("amount_0_out", p.Amount0Out),
			field("amount_1_out", p.Amount1Out),
			field("amount_bnb", p.AmountBNB),
			field("amount_usd", p.AmountUSD),
			field("trade_volume_0", p.TradeVolume0),
			field("trade_volume_1", p.TradeVolume1),
			field("trade_volume_usd_0", p.TradeVolumeUSD0),
			field("trade_volume_usd_1", p.TradeVolumeUSD1),
			field("volume_usd", p.VolumeUSD),
			field("volume_token_0", p.VolumeToken0),
			field("volume_token_1", p.VolumeToken1),
			field("log_address", p.LogAddress),
		)...)...), nil

	case *domain.Mint:
		return create(TableMint, p.ID, blockNum, ev.Ordinal, liquidityFields(p.ID, common,
			p.Sender, p.To, p.FeeTo, p.Amount0, p.Amount1, p.AmountUSD, p.Liquidity, p.FeeLiquidity)...), nil

	case *domain.Burn:
		return create(TableBurn, p.ID, blockNum, ev.Ordinal, liquidityFields(p.ID, common,
			p.Sender, p.To, p.FeeTo, p.Amount0, p.Amount1, p.AmountUSD, p.Liquidity, p.FeeLiquidity)...), nil
	}

	return nil, fmt.Errorf("event at ordinal %d has no payload", ev.Ordinal)
}

func liquidityFields(id string, common []domain.Field, sender, to, feeTo, amount0, amount1, amountUSD, liquidity, feeLiquidity string) []domain.Field {
	return append([]domain.Field{field("id", id)}, append(common,
		field("sender", sender),
		field("to", to),
		field("fee_to", feeTo),
		field("amount_0", amount0),
		field("amount_1", amount1),
		field("amount_usd", amountUSD),
		field("liquidity", liquidity),
		field("fee_liquidity", feeLiquidity),
	)...)
}
