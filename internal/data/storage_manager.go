package data

import (
	"chatserver/internal/entity"
	"chatserver/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open opens (or creates) the chat database and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&entity.ChatState{},
		&entity.Message{},
		&entity.RelationshipRequest{},
	); err != nil {
		return nil, err
	}
	return db, nil
}

// Storage manager gathers all the repositories needed for the chat system in a single container.
type StorageManager struct {
	db *gorm.DB // Under the hood we use the SQLite implementation

	// Repositories
	stateRepo        repository.StateRepository
	messageRepo      repository.MessageRepository
	relationshipRepo repository.RelationshipRepository
}

func NewStorageManager(db *gorm.DB) *StorageManager {
	s := &StorageManager{
		db: db,
	}

	s.stateRepo = repository.NewSQLiteStateRepository(db)
	s.messageRepo = repository.NewSQLiteMessageRepository(db)
	s.relationshipRepo = repository.NewSQLiteRelationshipRepository(db)

	// The chat state row is the id allocator; seed it on first start.
	if _, err := s.stateRepo.GetChatState(); err != nil {
		newState := entity.ChatState{ID: 1, LastMessageID: 0}
		s.stateRepo.Create(&newState)
	}

	return s
}

func (s *StorageManager) GetMessageRepository() repository.MessageRepository {
	return s.messageRepo
}

func (s *StorageManager) GetRelationshipRepository() repository.RelationshipRepository {
	return s.relationshipRepo
}
