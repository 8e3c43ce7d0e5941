package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
	"github.com/ternarybob/lectern/internal/storage/badger"
	"github.com/ternarybob/lectern/internal/storage/pgvector"
)

// manager routes chunk storage to an alternate backend while lectures and chat stay in Badger
type manager struct {
	interfaces.StorageManager
	chunks interfaces.ChunkStorage
}

func (m *manager) ChunkStorage() interfaces.ChunkStorage {
	return m.chunks
}

func (m *manager) Close() error {
	chunkErr := m.chunks.Close()
	if err := m.StorageManager.Close(); err != nil {
		return err
	}
	return chunkErr
}

// NewStorageManager creates a new storage manager based on config
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	badgerManager, err := badger.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, err
	}

	switch config.Storage.ChunkBackend {
	case "", "badger":
		return badgerManager, nil
	case "pgvector":
		chunks, err := pgvector.NewChunkStore(ctx, &config.Storage.PgVector, logger)
		if err != nil {
			badgerManager.Close()
			return nil, err
		}
		return &manager{StorageManager: badgerManager, chunks: chunks}, nil
	default:
		badgerManager.Close()
		return nil, fmt.Errorf("unsupported chunk backend: %s (expected badger or pgvector)", config.Storage.ChunkBackend)
	}
}
