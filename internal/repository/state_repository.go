package repository

import (
	"chatserver/internal/entity"

	"gorm.io/gorm"
)

type StateRepository interface {
	Create(*entity.ChatState) error
	GetChatState() (*entity.ChatState, error)
}

type SQLiteStateRepository struct {
	db *gorm.DB
}

func NewSQLiteStateRepository(db *gorm.DB) StateRepository {
	return &SQLiteStateRepository{db}
}

func (s *SQLiteStateRepository) Create(e *entity.ChatState) error {
	return s.db.Create(e).Error
}

func (s *SQLiteStateRepository) GetChatState() (*entity.ChatState, error) {
	var state *entity.ChatState
	err := s.db.First(&state, 1).Error
	return state, err
}
