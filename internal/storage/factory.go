package storage

import "fmt"

// NewStore builds a backend by name. target is the sqlite file path or the
// postgres DSN and is ignored by the memory backend.
func NewStore(kind, target string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(target)
	case "postgres":
		return NewPostgresStore(target), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
