package chaintest

import (
	"ammindex/internal/domain"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

/*
	Builder of synthetic decoded blocks for tests and the block generator.
	Log ordinals are assigned in emission order, starting at 1.
*/

var (
	topicPairCreated = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))
	topicApproval    = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
	topicBurn        = crypto.Keccak256Hash([]byte("Burn(address,uint256,uint256,address)"))
	topicMint        = crypto.Keccak256Hash([]byte("Mint(address,uint256,uint256)"))
	topicSwap        = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
	topicSync        = crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))
	topicTransfer    = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// Deterministic test address
func Addr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(n))
}

// units * 10^decimals
func Amount(units int64, decimals uint32) *big.Int {
	exp := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	return new(big.Int).Mul(big.NewInt(units), exp)
}

type BlockBuilder struct {
	block   *domain.Block
	trx     *domain.TransactionTrace
	call    *domain.Call
	ordinal uint64
}

func NewBlock(number uint64, timestamp int64) *BlockBuilder {
	return &BlockBuilder{
		block: &domain.Block{
			Number:    number,
			Hash:      crypto.Keccak256Hash([]byte(fmt.Sprintf("block-%d", number))),
			Timestamp: timestamp,
		},
	}
}

// Starts a transaction whose top-level call targets to
func (b *BlockBuilder) Tx(from, to common.Address) *BlockBuilder {
	idx := len(b.block.Transactions)
	b.trx = &domain.TransactionTrace{
		Hash:   crypto.Keccak256Hash([]byte(fmt.Sprintf("tx-%d-%d", b.block.Number, idx))),
		From:   from,
		To:     to,
		Status: 1,
	}
	b.block.Transactions = append(b.block.Transactions, b.trx)
	return b.Call(from, to)
}

// Adds a call inside the current transaction
func (b *BlockBuilder) Call(caller, address common.Address) *BlockBuilder {
	b.call = &domain.Call{
		Index:    uint32(len(b.trx.Calls)),
		CallType: domain.CallTypeCall,
		Caller:   caller,
		Address:  address,
	}
	b.trx.Calls = append(b.trx.Calls, b.call)
	return b
}

// Moves the current call to position idx of its transaction and renumbers call indexes.
// Models a parent listed before a nested call that logged first.
func (b *BlockBuilder) Hoist(idx int) *BlockBuilder {
	calls := b.trx.Calls
	last := calls[len(calls)-1]
	copy(calls[idx+1:], calls[idx:len(calls)-1])
	calls[idx] = last
	for i, c := range calls {
		c.Index = uint32(i)
	}
	return b
}

func (b *BlockBuilder) Reverted() *BlockBuilder {
	b.call.StateReverted = true
	return b
}

// Contract creation call with codeSize bytes of deployed code
func (b *BlockBuilder) Create(caller, address common.Address, codeSize int) *BlockBuilder {
	b.Call(caller, address)
	b.call.CallType = domain.CallTypeCreate
	b.call.CodeChanges = []*domain.CodeChange{{Address: address, NewCode: make([]byte, codeSize)}}
	return b
}

func (b *BlockBuilder) Log(topics []common.Hash, words ...*big.Int) *BlockBuilder {
	b.ordinal++

	data := make([]byte, 0, len(words)*32)
	for _, w := range words {
		data = append(data, common.LeftPadBytes(w.Bytes(), 32)...)
	}

	b.call.Logs = append(b.call.Logs, &domain.Log{
		Address: b.call.Address,
		Topics:  topics,
		Data:    data,
		Ordinal: b.ordinal,
	})
	return b
}

func (b *BlockBuilder) PairCreated(token0, token1, pair common.Address, index int64) *BlockBuilder {
	return b.Log(
		[]common.Hash{topicPairCreated, addrTopic(token0), addrTopic(token1)},
		new(big.Int).SetBytes(pair.Bytes()), big.NewInt(index),
	)
}

func (b *BlockBuilder) Sync(reserve0, reserve1 *big.Int) *BlockBuilder {
	return b.Log([]common.Hash{topicSync}, reserve0, reserve1)
}

func (b *BlockBuilder) Transfer(from, to common.Address, value *big.Int) *BlockBuilder {
	return b.Log([]common.Hash{topicTransfer, addrTopic(from), addrTopic(to)}, value)
}

func (b *BlockBuilder) Approval(owner, spender common.Address, value *big.Int) *BlockBuilder {
	return b.Log([]common.Hash{topicApproval, addrTopic(owner), addrTopic(spender)}, value)
}

func (b *BlockBuilder) Mint(sender common.Address, amount0, amount1 *big.Int) *BlockBuilder {
	return b.Log([]common.Hash{topicMint, addrTopic(sender)}, amount0, amount1)
}

func (b *BlockBuilder) Burn(sender, to common.Address, amount0, amount1 *big.Int) *BlockBuilder {
	return b.Log([]common.Hash{topicBurn, addrTopic(sender), addrTopic(to)}, amount0, amount1)
}

func (b *BlockBuilder) Swap(sender, to common.Address, amount0In, amount1In, amount0Out, amount1Out *big.Int) *BlockBuilder {
	return b.Log(
		[]common.Hash{topicSwap, addrTopic(sender), addrTopic(to)},
		amount0In, amount1In, amount0Out, amount1Out,
	)
}

// Last assigned log ordinal
func (b *BlockBuilder) Ordinal() uint64 { return b.ordinal }

// Hash of the current transaction
func (b *BlockBuilder) TxHash() common.Hash { return b.trx.Hash }

func (b *BlockBuilder) Build() *domain.Block { return b.block }

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(a.Bytes())
}
