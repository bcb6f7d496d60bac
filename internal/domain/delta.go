package domain

type DeltaOperation string

const (
	DeltaCreate DeltaOperation = "CREATE"
	DeltaUpdate DeltaOperation = "UPDATE"
	DeltaDelete DeltaOperation = "DELETE"
)

// One recorded mutation of a store, in write order
type StoreDelta struct {
	Operation DeltaOperation `json:"operation"`
	Ordinal   uint64         `json:"ordinal"`
	Key       string         `json:"key"`
	OldValue  []byte         `json:"old_value,omitempty"`
	NewValue  []byte         `json:"new_value,omitempty"`
}

type StoreDeltas []*StoreDelta
