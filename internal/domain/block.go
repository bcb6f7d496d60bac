package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Decoded block as delivered by the upstream firehose/decoder
type Block struct {
	Number       uint64              `json:"number"`
	Hash         common.Hash         `json:"hash"`
	Timestamp    int64               `json:"timestamp"` // unix seconds
	Transactions []*TransactionTrace `json:"transactions"`
}

func (b *Block) Time() time.Time {
	return time.Unix(b.Timestamp, 0).UTC()
}

type TransactionTrace struct {
	Hash   common.Hash    `json:"hash"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Status uint64         `json:"status"`
	Calls  []*Call        `json:"calls"`
}

type CallType string

const (
	CallTypeCall     CallType = "call"
	CallTypeCreate   CallType = "create"
	CallTypeDelegate CallType = "delegate"
	CallTypeStatic   CallType = "static"
)

type Call struct {
	Index         uint32         `json:"index"`
	CallType      CallType       `json:"call_type"`
	Caller        common.Address `json:"caller"`
	Address       common.Address `json:"address"`
	StateReverted bool           `json:"state_reverted"`
	Logs          []*Log         `json:"logs"`
	CodeChanges   []*CodeChange  `json:"code_changes,omitempty"`
}

type CodeChange struct {
	Address common.Address `json:"address"`
	NewCode hexutil.Bytes  `json:"new_code"`
}

// Ordinal is the block-global position of the log; it's the only ordering the core relies on
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
	Ordinal uint64         `json:"ordinal"`
}

// Canonical lowercase 0x-hex form used across all store keys
func Hex(addr common.Address) string {
	return hexutil.Encode(addr.Bytes())
}
