package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockID = "<number>:<hash>"; used to drop re-delivered blocks
func MakeBlockID(number uint64, hash string) string {
	return fmt.Sprintf("%d:%s", number, strings.ToLower(hash))
}

type ParsedBlockID struct {
	Number uint64
	Hash   string
}

func ParseBlockID(id string) (ParsedBlockID, error) {
	var out ParsedBlockID
	parts := strings.Split(id, ":")
	if len(parts) != 2 {
		return out, fmt.Errorf("invalid block_id format: %s", id)
	}

	num, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return out, fmt.Errorf("invalid block number, err=%v", err)
	}

	out.Number = num
	out.Hash = strings.ToLower(parts[1])

	return out, nil
}

// EventID = "<tx_hash>-<n>", n counts events of one kind inside a block
func MakeEventID(txHash string, n int) string {
	return fmt.Sprintf("%s-%d", txHash, n)
}
