package service

import (
	"errors"
	"time"

	"chatserver/internal/entity"
	"chatserver/internal/nlog"
	"chatserver/internal/repository"
	apperr "chatserver/pkg/errors"

	"gorm.io/gorm"
)

// RelationshipService runs the friend-request state machine:
//
//	(none) -> pending -> accepted   [terminal]
//	               \--> rejected    [terminal, but a new request reopens the pair]
type RelationshipService interface {
	Request(requester, target string) error
	Respond(requester, target string, accept bool) error
	PendingFor(user string) ([]string, error)
	FriendsOf(user string) ([]string, error)
}

type relationshipService struct {
	repo   repository.RelationshipRepository
	logger nlog.Logger
}

func NewRelationshipService(repo repository.RelationshipRepository, logger nlog.Logger) RelationshipService {
	return &relationshipService{
		repo:   repo,
		logger: logger,
	}
}

func (s *relationshipService) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

func (s *relationshipService) Request(requester, target string) error {
	if requester == target {
		return apperr.ErrSelfRequest
	}
	if target == entity.SystemSender {
		return apperr.ErrReservedName
	}

	existing, err := s.repo.Get(requester, target)
	switch {
	case err == nil:
		if existing.Status == entity.StatusRejected {
			// A fresh request after a rejection reopens the pair.
			reopened, err := s.repo.Reopen(requester, target)
			if err != nil {
				return apperr.ErrStorage(err)
			}
			if !reopened {
				return apperr.ErrRequestExists
			}
			s.Logf("Request %s -> %s reopened", requester, target)
			return nil
		}
		// Pending or accepted: one row, no re-notification.
		return apperr.ErrRequestExists
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Fall through to creation
	default:
		return apperr.ErrStorage(err)
	}

	request := &entity.RelationshipRequest{
		Requester: requester,
		Target:    target,
		Status:    entity.StatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(request); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.ErrRequestExists // Lost a concurrent request race
		}
		return apperr.ErrStorage(err)
	}

	s.Logf("Request %s -> %s created", requester, target)
	return nil
}

func (s *relationshipService) Respond(requester, target string, accept bool) error {
	status := entity.StatusRejected
	if accept {
		status = entity.StatusAccepted
	}

	applied, err := s.repo.Resolve(requester, target, status)
	if err != nil {
		return apperr.ErrStorage(err)
	}
	if !applied {
		// Missing pair, or a concurrent respond already resolved it.
		return apperr.ErrRequestNotFound
	}

	s.Logf("Request %s -> %s resolved to %s", requester, target, status)
	return nil
}

func (s *relationshipService) PendingFor(user string) ([]string, error) {
	requests, err := s.repo.PendingFor(user)
	if err != nil {
		return nil, apperr.ErrStorage(err)
	}

	requesters := make([]string, 0, len(requests))
	for _, request := range requests {
		requesters = append(requesters, request.Requester)
	}
	return requesters, nil
}

// FriendsOf returns every identity with an accepted row in either direction.
func (s *relationshipService) FriendsOf(user string) ([]string, error) {
	requests, err := s.repo.AcceptedOf(user)
	if err != nil {
		return nil, apperr.ErrStorage(err)
	}

	seen := make(map[string]struct{}, len(requests))
	friends := make([]string, 0, len(requests))
	for _, request := range requests {
		other := request.Other(user)
		if _, dup := seen[other]; dup {
			continue
		}
		seen[other] = struct{}{}
		friends = append(friends, other)
	}
	return friends, nil
}
