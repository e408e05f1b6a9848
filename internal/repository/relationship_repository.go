package repository

import (
	"time"

	"chatserver/internal/entity"

	"gorm.io/gorm"
)

type RelationshipRepository interface {
	Create(req *entity.RelationshipRequest) error

	Get(requester, target string) (*entity.RelationshipRequest, error)

	// Resolve moves a pending pair to the given terminal status. Returns false
	// when the pair does not exist or is no longer pending, so a lost
	// accept/reject race observes the already-applied transition as a no-op.
	Resolve(requester, target string, status entity.RequestStatus) (bool, error)

	// Reopen moves a rejected pair back to pending for a fresh request.
	Reopen(requester, target string) (bool, error)

	PendingFor(target string) ([]*entity.RelationshipRequest, error)
	AcceptedOf(user string) ([]*entity.RelationshipRequest, error)
}

type SQLiteRelationshipRepository struct {
	db *gorm.DB
}

func NewSQLiteRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &SQLiteRelationshipRepository{db}
}

func (repo *SQLiteRelationshipRepository) Create(req *entity.RelationshipRequest) error {
	return repo.db.Create(req).Error
}

func (repo *SQLiteRelationshipRepository) Get(requester, target string) (*entity.RelationshipRequest, error) {
	var req entity.RelationshipRequest
	err := repo.db.Where("requester = ? AND target = ?", requester, target).First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (repo *SQLiteRelationshipRepository) Resolve(requester, target string, status entity.RequestStatus) (bool, error) {
	res := repo.db.Model(&entity.RelationshipRequest{}).
		Where("requester = ? AND target = ? AND status = ?", requester, target, entity.StatusPending).
		Update("status", status)
	return res.RowsAffected == 1, res.Error
}

func (repo *SQLiteRelationshipRepository) Reopen(requester, target string) (bool, error) {
	res := repo.db.Model(&entity.RelationshipRequest{}).
		Where("requester = ? AND target = ? AND status = ?", requester, target, entity.StatusRejected).
		Updates(map[string]any{"status": entity.StatusPending, "created_at": time.Now()})
	return res.RowsAffected == 1, res.Error
}

func (repo *SQLiteRelationshipRepository) PendingFor(target string) ([]*entity.RelationshipRequest, error) {
	var reqs []*entity.RelationshipRequest
	err := repo.db.Where("target = ? AND status = ?", target, entity.StatusPending).
		Order("created_at ASC").
		Find(&reqs).Error
	return reqs, err
}

func (repo *SQLiteRelationshipRepository) AcceptedOf(user string) ([]*entity.RelationshipRequest, error) {
	var reqs []*entity.RelationshipRequest
	err := repo.db.Where("status = ? AND (requester = ? OR target = ?)", entity.StatusAccepted, user, user).
		Find(&reqs).Error
	return reqs, err
}
