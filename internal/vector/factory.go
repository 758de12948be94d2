package vector

import "fmt"

// Backend names a Store implementation.
type Backend string

const (
	// BackendMemory keeps collections in process, optionally snapshotted to a file.
	BackendMemory Backend = "memory"
	// BackendQdrant talks to a Qdrant server over REST.
	BackendQdrant Backend = "qdrant"
)

// StoreOptions configures NewStore.
type StoreOptions struct {
	// SnapshotPath is the MemoryStore snapshot file ("" disables persistence).
	SnapshotPath string
	Qdrant       QdrantConfig
}

// NewStore creates a Store for the given backend. Supported: "memory" (default), "qdrant".
func NewStore(backend string, opts StoreOptions) (Store, error) {
	switch Backend(backend) {
	case BackendMemory, "":
		m, err := NewMemoryStore(opts.SnapshotPath)
		if err != nil {
			return nil, err
		}
		return m, nil
	case BackendQdrant:
		q, err := NewQdrantStore(opts.Qdrant)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s (supported: memory, qdrant)", backend)
	}
}
