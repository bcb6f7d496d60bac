package pubsub

import (
	"ammindex/internal/domain"
	"context"
	"errors"
	"fmt"
)

// Payload of <prefix>.<table>: the table changes of one block for one table, in emission order
type TableBatch struct {
	BlockNum  uint64                `json:"block_num"`
	BlockHash string                `json:"block_hash"`
	Timestamp int64                 `json:"timestamp"`
	Table     string                `json:"table"`
	Changes   []*domain.TableChange `json:"changes"`
}

func Subject(prefix, table string) string {
	if prefix == "" {
		return table
	}
	return prefix + "." + table
}

// Publishes one batch per touched table; keeps going after a failed subject
func PublishChanges(ctx context.Context, b Broadcaster, prefix string, changes *domain.DatabaseChanges) error {
	if changes == nil || len(changes.TableChanges) == 0 {
		return nil
	}

	order := make([]string, 0, 8)
	byTable := make(map[string]*TableBatch)
	for _, tc := range changes.TableChanges {
		batch, ok := byTable[tc.Table]
		if !ok {
			batch = &TableBatch{
				BlockNum:  changes.BlockNum,
				BlockHash: changes.BlockHash,
				Timestamp: changes.Timestamp,
				Table:     tc.Table,
			}
			byTable[tc.Table] = batch
			order = append(order, tc.Table)
		}
		batch.Changes = append(batch.Changes, tc)
	}

	var errs []error
	for _, table := range order {
		if err := b.Publish(ctx, Subject(prefix, table), byTable[table]); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", table, err))
		}
	}
	return errors.Join(errs...)
}
