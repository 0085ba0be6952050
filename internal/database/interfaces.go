package database

import (
	"context"
	"errors"

	"campus-chat/internal/models"
)

var ErrNotFound = errors.New("not found")

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, req *models.CreateGroupRequest, ownerID int) (*models.Group, error)
	GetGroupByID(ctx context.Context, id int) (*models.Group, error)
	ListUserGroups(ctx context.Context, userID int) ([]*models.Group, error)
}

type MembershipRepository interface {
	AddMembership(ctx context.Context, userID, groupID int) error
	RemoveMembership(ctx context.Context, userID, groupID int) error
	IsMember(ctx context.Context, userID, groupID int) (bool, error)
	GetGroupMembers(ctx context.Context, groupID int) ([]*models.Member, error)
	ListMembershipGroupIDs(ctx context.Context, userID int) ([]int, error)
}

type MessageRepository interface {
	// InsertMessage persists a new message, assigning its id and server
	// timestamp, and returns the persisted record.
	InsertMessage(ctx context.Context, groupID, senderID int, text string, attachments []string) (*models.Message, error)
	// ListMessages returns one page of a group's messages, newest first,
	// along with the total message count for the group.
	ListMessages(ctx context.Context, groupID, page, limit int) ([]*models.Message, int, error)
}

type Store interface {
	UserRepository
	GroupRepository
	MembershipRepository
	MessageRepository
	Close() error
}
