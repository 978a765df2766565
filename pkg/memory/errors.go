package memory

import "errors"

// ErrNotFound is returned by VectorStore, GraphStore, and HistoryLog
// implementations when an operation references a fact, entity, or relation
// id that does not exist (or has already been deleted). The orchestrator
// translates it into the public NotFound error kind.
var ErrNotFound = errors.New("memory: not found")
