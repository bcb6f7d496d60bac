package extractor

import (
	"ammindex/internal/domain"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var ErrMalformedLog = errors.New("malformed log")

const wordSize = 32

// Decoded log; exactly one of the *Log types below
type LogEvent interface {
	LogOrdinal() uint64
	name() string
}

type PairCreatedLog struct {
	Ordinal uint64
	Token0  common.Address
	Token1  common.Address
	Pair    common.Address
}

type SyncLog struct {
	Ordinal  uint64
	Address  common.Address
	Reserve0 *big.Int
	Reserve1 *big.Int
}

type MintLog struct {
	Ordinal uint64
	Sender  common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

type BurnLog struct {
	Ordinal uint64
	Sender  common.Address
	To      common.Address
	Amount0 *big.Int
	Amount1 *big.Int
}

type SwapLog struct {
	Ordinal    uint64
	Address    common.Address
	Sender     common.Address
	To         common.Address
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
}

type TransferLog struct {
	Ordinal uint64
	From    common.Address
	To      common.Address
	Value   *big.Int
}

type ApprovalLog struct {
	Ordinal uint64
	Owner   common.Address
	Spender common.Address
	Value   *big.Int
}

type UnknownLog struct {
	Ordinal uint64
}

func (l *PairCreatedLog) LogOrdinal() uint64 { return l.Ordinal }
func (l *SyncLog) LogOrdinal() uint64        { return l.Ordinal }
func (l *MintLog) LogOrdinal() uint64        { return l.Ordinal }
func (l *BurnLog) LogOrdinal() uint64        { return l.Ordinal }
func (l *SwapLog) LogOrdinal() uint64        { return l.Ordinal }
func (l *TransferLog) LogOrdinal() uint64    { return l.Ordinal }
func (l *ApprovalLog) LogOrdinal() uint64    { return l.Ordinal }
func (l *UnknownLog) LogOrdinal() uint64     { return l.Ordinal }

func (*PairCreatedLog) name() string { return "PairCreated" }
func (*SyncLog) name() string        { return "Sync" }
func (*MintLog) name() string        { return "Mint" }
func (*BurnLog) name() string        { return "Burn" }
func (*SwapLog) name() string        { return "Swap" }
func (*TransferLog) name() string    { return "Transfer" }
func (*ApprovalLog) name() string    { return "Approval" }
func (*UnknownLog) name() string     { return "unknown" }

// Logs with an unrecognised topic0 decode to *UnknownLog
func DecodeLog(l *domain.Log) (LogEvent, error) {
	if l == nil || len(l.Topics) == 0 {
		return nil, fmt.Errorf("%w: no topics", ErrMalformedLog)
	}

	sig := l.Topics[0]
	switch sig {
	case PairCreatedTopic:
		if err := expectShape(l, 3, 2); err != nil {
			return nil, err
		}
		return &PairCreatedLog{
			Ordinal: l.Ordinal,
			Token0:  topicAddress(l.Topics[1]),
			Token1:  topicAddress(l.Topics[2]),
			Pair:    common.BytesToAddress(word(l.Data, 0)),
		}, nil

	case SyncTopic:
		if err := expectShape(l, 1, 2); err != nil {
			return nil, err
		}
		return &SyncLog{
			Ordinal:  l.Ordinal,
			Address:  l.Address,
			Reserve0: wordInt(l.Data, 0),
			Reserve1: wordInt(l.Data, 1),
		}, nil

	case MintTopic:
		if err := expectShape(l, 2, 2); err != nil {
			return nil, err
		}
		return &MintLog{
			Ordinal: l.Ordinal,
			Sender:  topicAddress(l.Topics[1]),
			Amount0: wordInt(l.Data, 0),
			Amount1: wordInt(l.Data, 1),
		}, nil

	case BurnTopic:
		if err := expectShape(l, 3, 2); err != nil {
			return nil, err
		}
		return &BurnLog{
			Ordinal: l.Ordinal,
			Sender:  topicAddress(l.Topics[1]),
			To:      topicAddress(l.Topics[2]),
			Amount0: wordInt(l.Data, 0),
			Amount1: wordInt(l.Data, 1),
		}, nil

	case SwapTopic:
		if err := expectShape(l, 3, 4); err != nil {
			return nil, err
		}
		return &SwapLog{
			Ordinal:    l.Ordinal,
			Address:    l.Address,
			Sender:     topicAddress(l.Topics[1]),
			To:         topicAddress(l.Topics[2]),
			Amount0In:  wordInt(l.Data, 0),
			Amount1In:  wordInt(l.Data, 1),
			Amount0Out: wordInt(l.Data, 2),
			Amount1Out: wordInt(l.Data, 3),
		}, nil

	case TransferTopic:
		if err := expectShape(l, 3, 1); err != nil {
			return nil, err
		}
		return &TransferLog{
			Ordinal: l.Ordinal,
			From:    topicAddress(l.Topics[1]),
			To:      topicAddress(l.Topics[2]),
			Value:   wordInt(l.Data, 0),
		}, nil

	case ApprovalTopic:
		if err := expectShape(l, 3, 1); err != nil {
			return nil, err
		}
		return &ApprovalLog{
			Ordinal: l.Ordinal,
			Owner:   topicAddress(l.Topics[1]),
			Spender: topicAddress(l.Topics[2]),
			Value:   wordInt(l.Data, 0),
		}, nil
	}

	return &UnknownLog{Ordinal: l.Ordinal}, nil
}

func expectShape(l *domain.Log, topics, words int) error {
	if len(l.Topics) < topics || len(l.Data) < words*wordSize {
		return fmt.Errorf("%w: %s at ordinal %d has %d topics and %d data bytes",
			ErrMalformedLog, topicName(l.Topics[0]), l.Ordinal, len(l.Topics), len(l.Data))
	}
	return nil
}

func topicAddress(h common.Hash) common.Address {
	return common.BytesToAddress(h.Bytes()[12:])
}

func word(data []byte, i int) []byte {
	return data[i*wordSize : (i+1)*wordSize]
}

func wordInt(data []byte, i int) *big.Int {
	return new(big.Int).SetBytes(word(data, i))
}
