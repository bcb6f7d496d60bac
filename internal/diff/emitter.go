package diff

import (
	"ammindex/internal/domain"
	"errors"
	"fmt"
	"sort"

	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Turns the store deltas, reserves and events of one block into table changes.
	Items are ordered by ordinal, then by stream, then by arrival inside a stream,
	so the output of a replay is identical to the first run.
*/

type Stream int

// Tie-break priority at equal ordinal
const (
	StreamPairs Stream = iota
	StreamTokens
	StreamTotals
	StreamVolumes
	StreamReserves
	StreamEvents
)

var streamNames = [...]string{"pairs", "tokens", "totals", "volumes", "reserves", "events"}

func (s Stream) String() string {
	if s < 0 || int(s) >= len(streamNames) {
		return fmt.Sprintf("stream(%d)", int(s))
	}
	return streamNames[s]
}

// A Delete on an entity key; entities are never removed downstream
type UnsupportedDeleteError struct {
	Stream  Stream
	Key     string
	Ordinal uint64
}

func (e *UnsupportedDeleteError) Error() string {
	return fmt.Sprintf("unsupported delete of %q in %s at ordinal %d", e.Key, e.Stream, e.Ordinal)
}

type TokenLookup interface {
	TokenAt(ord uint64, address string) (*domain.Token, bool)
}

type Input struct {
	BlockNum  uint64
	BlockHash string
	Timestamp int64

	Pairs    domain.StoreDeltas
	Tokens   domain.StoreDeltas
	Totals   domain.StoreDeltas
	Volumes  domain.StoreDeltas
	Reserves []*domain.Reserve
	Events   []*domain.Event
}

type Emitter struct {
	log     logger.Logger
	factory string
	tokens  TokenLookup
}

func New(log logger.Logger, factory string, tokens TokenLookup) (*Emitter, error) {
	if factory == "" {
		return nil, errors.New("factory address is required to the diff emitter")
	}
	if tokens == nil {
		return nil, errors.New("token lookup is required to the diff emitter")
	}

	return &Emitter{log: log, factory: factory, tokens: tokens}, nil
}

type item struct {
	ord     uint64
	stream  Stream
	seq     int
	delta   *domain.StoreDelta
	reserve *domain.Reserve
	event   *domain.Event
}

func (e *Emitter) Emit(in *Input) (*domain.DatabaseChanges, error) {
	out := &domain.DatabaseChanges{
		BlockNum:     in.BlockNum,
		BlockHash:    in.BlockHash,
		Timestamp:    in.Timestamp,
		TableChanges: make([]*domain.TableChange, 0),
	}

	for _, it := range merge(in) {
		changes, err := e.route(in, it)
		if err != nil {
			return nil, err
		}
		out.TableChanges = append(out.TableChanges, changes...)
	}

	return out, nil
}

func merge(in *Input) []item {
	items := make([]item, 0, len(in.Pairs)+len(in.Tokens)+len(in.Totals)+len(in.Volumes)+len(in.Reserves)+len(in.Events))

	for s, deltas := range [...]domain.StoreDeltas{
		StreamPairs:   in.Pairs,
		StreamTokens:  in.Tokens,
		StreamTotals:  in.Totals,
		StreamVolumes: in.Volumes,
	} {
		for i, d := range deltas {
			items = append(items, item{ord: d.Ordinal, stream: Stream(s), seq: i, delta: d})
		}
	}
	for i, r := range in.Reserves {
		items = append(items, item{ord: r.Ordinal, stream: StreamReserves, seq: i, reserve: r})
	}
	for i, ev := range in.Events {
		items = append(items, item{ord: ev.Ordinal, stream: StreamEvents, seq: i, event: ev})
	}

	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ord != b.ord {
			return a.ord < b.ord
		}
		if a.stream != b.stream {
			return a.stream < b.stream
		}
		return a.seq < b.seq
	})

	return items
}

func (e *Emitter) route(in *Input, it item) ([]*domain.TableChange, error) {
	switch {
	case it.reserve != nil:
		return []*domain.TableChange{reserveChange(in.BlockNum, it.reserve)}, nil
	case it.event != nil:
		c, err := eventChange(in.BlockNum, it.event)
		if err != nil {
			return nil, err
		}
		return []*domain.TableChange{c}, nil
	}

	d := it.delta
	switch d.Operation {
	case domain.DeltaDelete:
		return nil, e.routeDelete(it)
	case domain.DeltaCreate:
		switch it.stream {
		case StreamPairs:
			return e.pairCreate(in, d)
		case StreamTokens:
			return tokenCreate(in.BlockNum, d)
		}
	}

	c, ok := e.fieldUpdate(in.BlockNum, d)
	if !ok {
		return nil, nil
	}
	return []*domain.TableChange{c}, nil
}

func (e *Emitter) routeDelete(it item) error {
	ns, _ := splitKey(it.delta.Key)
	switch ns {
	case domain.NSPairDay, domain.NSPairHour, domain.NSTokenDay, domain.NSGlobalDay:
		return nil
	case domain.NSPair, domain.NSToken, domain.NSGlobal:
		return &UnsupportedDeleteError{Stream: it.stream, Key: it.delta.Key, Ordinal: it.delta.Ordinal}
	}

	e.log.Debugf("Drop delete of unrouted key %q in %s", it.delta.Key, it.stream)
	return nil
}
