package repository

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/shinyyama/rental-backend/internal/model"
	"gorm.io/gorm"
)

// Store bundles the repositories backed by one storage engine.
type Store struct {
	Conversations ConversationRepository
	Messages      MessageRepository
	Directory     DirectoryRepository
	closer        func() error
}

func NewGormStore(db *gorm.DB, seq Sequencer) *Store {
	return &Store{
		Conversations: NewConversationRepository(db),
		Messages:      NewMessageRepository(db, seq),
		Directory:     NewDirectoryRepository(db),
		closer: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

func NewBadgerStore(db *badger.DB, seq Sequencer) *Store {
	return &Store{
		Conversations: NewBadgerConversationRepository(db),
		Messages:      NewBadgerMessageRepository(db, seq),
		Directory:     NewBadgerDirectoryRepository(db),
		closer:        db.Close,
	}
}

func (s *Store) Close() error {
	if s == nil || s.closer == nil {
		return nil
	}
	return s.closer()
}

// AutoMigrate creates or updates the tables used by the gorm store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.Listing{}, &model.Conversation{}, &model.Message{})
}
