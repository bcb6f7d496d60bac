package extractor

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Topic0 of every log the indexer understands
var (
	PairCreatedTopic = crypto.Keccak256Hash([]byte("PairCreated(address,address,address,uint256)"))
	ApprovalTopic    = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
	BurnTopic        = crypto.Keccak256Hash([]byte("Burn(address,uint256,uint256,address)"))
	MintTopic        = crypto.Keccak256Hash([]byte("Mint(address,uint256,uint256)"))
	SwapTopic        = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
	SyncTopic        = crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))
	TransferTopic    = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

func topicName(topic common.Hash) string {
	switch topic {
	case PairCreatedTopic:
		return "PairCreated"
	case ApprovalTopic:
		return "Approval"
	case BurnTopic:
		return "Burn"
	case MintTopic:
		return "Mint"
	case SwapTopic:
		return "Swap"
	case SyncTopic:
		return "Sync"
	case TransferTopic:
		return "Transfer"
	}
	return "unknown"
}
