package document

// MaxBatchWrites bounds the number of staged writes committed as one unit.
const MaxBatchWrites = 500

// WriteKind distinguishes staged batch operations.
type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteDelete
)

// Write is a single staged batch operation.
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Data       map[string]any
}

// Writes accumulates staged operations for a batch implementation.
type Writes struct {
	ops []Write
}

// Set stages a full overwrite of collection/id.
func (w *Writes) Set(collection, id string, data map[string]any) {
	w.ops = append(w.ops, Write{Kind: WriteSet, Collection: collection, ID: id, Data: NormalizeMap(data)})
}

// Delete stages removal of collection/id.
func (w *Writes) Delete(collection, id string) {
	w.ops = append(w.ops, Write{Kind: WriteDelete, Collection: collection, ID: id})
}

// Len returns the number of staged operations.
func (w *Writes) Len() int { return len(w.ops) }

// Ops returns the staged operations in order.
func (w *Writes) Ops() []Write { return w.ops }
