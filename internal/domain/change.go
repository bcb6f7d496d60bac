package domain

type ChangeOperation string

const (
	ChangeCreate ChangeOperation = "CREATE"
	ChangeUpdate ChangeOperation = "UPDATE"
	ChangeDelete ChangeOperation = "DELETE"
)

type Field struct {
	Name     string `json:"name"`
	NewValue string `json:"new_value"`
	OldValue string `json:"old_value,omitempty"`
}

// Sink-facing projection of one or more store deltas
type TableChange struct {
	Table     string          `json:"table"`
	PK        string          `json:"pk"`
	BlockNum  uint64          `json:"block_num"`
	Ordinal   uint64          `json:"ordinal"`
	Operation ChangeOperation `json:"operation"`
	Fields    []Field         `json:"fields"`
}

type DatabaseChanges struct {
	BlockNum     uint64         `json:"block_num"`
	BlockHash    string         `json:"block_hash"`
	Timestamp    int64          `json:"timestamp"`
	TableChanges []*TableChange `json:"table_changes"`
}
