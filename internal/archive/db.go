package archive

import (
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// OpenDB opens the archive database under path, creating it when missing.
func OpenDB(path string) (*badger.DB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	opts := badger.DefaultOptions(path).
		WithNumVersionsToKeep(1).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening archive database: %w", err)
	}
	return db, nil
}
