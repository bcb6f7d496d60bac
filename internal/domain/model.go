package domain

// Liquidity pair; immutable after creation, token order fixed by the factory
type Pair struct {
	Address       string `json:"address"`
	Token0Address string `json:"token0_address"`
	Token1Address string `json:"token1_address"`
	CreationTxID  string `json:"creation_tx_id"`
	BlockNum      uint64 `json:"block_num"`
	Ordinal       uint64 `json:"ordinal"`
}

type Token struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint32 `json:"decimals"`
}

// Produced per Sync log; reserves are decimal-adjusted, prices are reciprocal
type Reserve struct {
	PairAddress string `json:"pair_address"`
	Reserve0    string `json:"reserve0"`
	Reserve1    string `json:"reserve1"`
	Ordinal     uint64 `json:"ordinal"`
	Token0Price string `json:"token0_price"` // reserve1 / reserve0
	Token1Price string `json:"token1_price"` // reserve0 / reserve1
}

type EventKind string

const (
	EventSwap EventKind = "swap"
	EventMint EventKind = "mint"
	EventBurn EventKind = "burn"
)

// Closed set of event payloads: *Swap, *Mint, *Burn
type Payload interface {
	Kind() EventKind
	EventID() string
	payload()
}

type Event struct {
	PairAddress   string  `json:"pair_address"`
	Token0        string  `json:"token0"`
	Token1        string  `json:"token1"`
	TransactionID string  `json:"transaction_id"`
	Timestamp     uint64  `json:"timestamp"`
	Ordinal       uint64  `json:"ordinal"`
	Payload       Payload `json:"-"`
}

// Amount fields are decimal strings; an empty AmountUSD/AmountBNB means the price was unknown
type Swap struct {
	ID              string `json:"id"`
	Sender          string `json:"sender"`
	To              string `json:"to"`
	From            string `json:"from"`
	Amount0In       string `json:"amount0_in"`
	Amount1In       string `json:"amount1_in"`
	Amount0Out      string `json:"amount0_out"`
	Amount1Out      string `json:"amount1_out"`
	AmountBNB       string `json:"amount_bnb"`
	AmountUSD       string `json:"amount_usd"`
	TradeVolume0    string `json:"trade_volume0"`
	TradeVolume1    string `json:"trade_volume1"`
	TradeVolumeUSD0 string `json:"trade_volume_usd0"`
	TradeVolumeUSD1 string `json:"trade_volume_usd1"`
	VolumeUSD       string `json:"volume_usd"`
	VolumeToken0    string `json:"volume_token0"`
	VolumeToken1    string `json:"volume_token1"`
	LogAddress      string `json:"log_address"`
}

type Mint struct {
	ID           string `json:"id"`
	Sender       string `json:"sender"`
	To           string `json:"to"`
	FeeTo        string `json:"fee_to"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	AmountUSD    string `json:"amount_usd"`
	Liquidity    string `json:"liquidity"`
	FeeLiquidity string `json:"fee_liquidity"`
}

type Burn struct {
	ID           string `json:"id"`
	Sender       string `json:"sender"`
	To           string `json:"to"`
	FeeTo        string `json:"fee_to"`
	Amount0      string `json:"amount0"`
	Amount1      string `json:"amount1"`
	AmountUSD    string `json:"amount_usd"`
	Liquidity    string `json:"liquidity"`
	FeeLiquidity string `json:"fee_liquidity"`
}

func (*Swap) Kind() EventKind { return EventSwap }
func (*Mint) Kind() EventKind { return EventMint }
func (*Burn) Kind() EventKind { return EventBurn }

func (s *Swap) EventID() string { return s.ID }
func (m *Mint) EventID() string { return m.ID }
func (b *Burn) EventID() string { return b.ID }

func (*Swap) payload() {}
func (*Mint) payload() {}
func (*Burn) payload() {}
