package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectern/internal/common"
	"github.com/ternarybob/lectern/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db       *BadgerDB
	lectures *LectureStorage
	chunks   *ChunkStorage
	chats    *ChatStorage
	logger   arbor.ILogger
}

// NewManager opens the database and builds every Badger-backed storage
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := newManager(db, logger)
	logger.Info().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

func newManager(db *BadgerDB, logger arbor.ILogger) *Manager {
	return &Manager{
		db:       db,
		lectures: NewLectureStorage(db, logger),
		chunks:   NewChunkStorage(db, logger),
		chats:    NewChatStorage(db, logger),
		logger:   logger,
	}
}

// LectureStorage returns the lecture storage
func (m *Manager) LectureStorage() interfaces.LectureStorage {
	return m.lectures
}

// ChunkStorage returns the Badger chunk storage
func (m *Manager) ChunkStorage() interfaces.ChunkStorage {
	return m.chunks
}

// ChatHistoryStorage returns the chat history storage
func (m *Manager) ChatHistoryStorage() interfaces.ChatHistoryStorage {
	return m.chats
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
