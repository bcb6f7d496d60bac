package extractor

import (
	"ammindex/internal/domain"
)

type TokenCandidate struct {
	Address string
	Ordinal uint64
}

// Contracts that may be ERC-20 tokens: non-reverted creations with enough code by a
// non-excluded deployer (visible from ordinal 0), then both tokens of each new pair.
func (e *Extractor) TokenCandidates(block *domain.Block, newPairs []*domain.Pair) []TokenCandidate {
	seen := make(map[string]struct{})
	out := make([]TokenCandidate, 0)

	add := func(addr string, ord uint64) {
		if _, ok := seen[addr]; ok {
			return
		}
		seen[addr] = struct{}{}
		out = append(out, TokenCandidate{Address: addr, Ordinal: ord})
	}

	for _, trx := range block.Transactions {
		for _, call := range liveCalls(trx) {
			if call.CallType != domain.CallTypeCreate {
				continue
			}
			if _, ok := e.excluded[call.Caller]; ok {
				continue
			}

			codeSize := 0
			for _, cc := range call.CodeChanges {
				codeSize += len(cc.NewCode)
			}
			if codeSize <= e.minCodeSize {
				e.log.Debugf("Skip contract %s: code too small to be a token (%d bytes)", domain.Hex(call.Address), codeSize)
				continue
			}

			add(domain.Hex(call.Address), 0)
		}
	}

	for _, p := range newPairs {
		add(p.Token0Address, p.Ordinal)
		add(p.Token1Address, p.Ordinal)
	}

	return out
}
