package dedupe

import "context"

// Skips re-delivered blocks. Ids are domain.MakeBlockID values (<number>:<hash>).
// A block is marked only after it was committed, so a failed block is retried on redelivery.
type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	MarkSeen(ctx context.Context, id string) error
}
