package services

import (
	"context"
	"errors"
	"fmt"

	"campus-chat/internal/database"
	"campus-chat/internal/models"
)

type GroupService struct {
	db database.Store
}

func NewGroupService(db database.Store) *GroupService {
	return &GroupService{db: db}
}

func (s *GroupService) CreateGroup(ctx context.Context, req *models.CreateGroupRequest, ownerID int) (*models.Group, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("group name is required")
	}

	return s.db.CreateGroup(ctx, req, ownerID)
}

func (s *GroupService) ListUserGroups(ctx context.Context, userID int) ([]*models.Group, error) {
	return s.db.ListUserGroups(ctx, userID)
}

func (s *GroupService) JoinGroup(ctx context.Context, userID, groupID int) error {
	if _, err := s.db.GetGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrGroupNotFound
		}
		return err
	}

	return s.db.AddMembership(ctx, userID, groupID)
}

func (s *GroupService) LeaveGroup(ctx context.Context, userID, groupID int) error {
	isMember, err := s.db.IsMember(ctx, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return ErrNotAMember
	}

	return s.db.RemoveMembership(ctx, userID, groupID)
}

func (s *GroupService) GetGroupMembers(ctx context.Context, groupID, userID int) ([]*models.Member, error) {
	if _, err := s.db.GetGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	isMember, err := s.db.IsMember(ctx, userID, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return nil, ErrNotAMember
	}

	return s.db.GetGroupMembers(ctx, groupID)
}
