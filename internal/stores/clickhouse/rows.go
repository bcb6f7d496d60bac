package clickhouse

import (
	"ammindex/internal/domain"
	"time"
)

// One changed field of one TableChange; rows of a block keep emission order through Seq
type ChangeRow struct {
	BlockNum  uint64
	BlockHash string
	BlockTime time.Time
	Seq       uint32
	Ordinal   uint64
	TableName string
	PK        string
	Operation string
	Field     string
	OldValue  string
	NewValue  string
}

func Rows(changes *domain.DatabaseChanges) []ChangeRow {
	if changes == nil {
		return nil
	}

	blockTime := time.Unix(changes.Timestamp, 0).UTC()
	out := make([]ChangeRow, 0, len(changes.TableChanges)*4)

	var seq uint32
	for _, tc := range changes.TableChanges {
		for _, f := range tc.Fields {
			out = append(out, ChangeRow{
				BlockNum:  changes.BlockNum,
				BlockHash: changes.BlockHash,
				BlockTime: blockTime,
				Seq:       seq,
				Ordinal:   tc.Ordinal,
				TableName: tc.Table,
				PK:        tc.PK,
				Operation: string(tc.Operation),
				Field:     f.Name,
				OldValue:  f.OldValue,
				NewValue:  f.NewValue,
			})
			seq++
		}
	}

	return out
}
