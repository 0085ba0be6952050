package services

import (
	"context"
	"errors"
	"fmt"

	"campus-chat/internal/database"
	"campus-chat/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	ErrGroupNotFound  = errors.New("group not found")
	ErrNotAMember     = errors.New("not a member of this group")
	ErrInvalidMessage = errors.New("invalid message")
)

// Broadcaster pushes a persisted message to every live socket in its group's
// room. The gateway implements it.
type Broadcaster interface {
	BroadcastMessage(msg *models.Message)
}

type MessageService struct {
	db          database.Store
	broadcaster Broadcaster
	validate    *validator.Validate
	pageSize    int
}

func NewMessageService(db database.Store, broadcaster Broadcaster, pageSize int) *MessageService {
	return &MessageService{
		db:          db,
		broadcaster: broadcaster,
		validate:    validator.New(),
		pageSize:    pageSize,
	}
}

// Send persists a message and, only after the write succeeded, hands the
// persisted record to the broadcaster. A failed insert never reaches a
// socket, and the broadcast copy is the exact record the store returned.
func (s *MessageService) Send(ctx context.Context, groupID, senderID int, req *models.SendMessageRequest) (*models.Message, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if err := s.checkAccess(ctx, groupID, senderID); err != nil {
		return nil, err
	}

	msg, err := s.db.InsertMessage(ctx, groupID, senderID, req.Text, req.Attachments)
	if err != nil {
		return nil, fmt.Errorf("failed to persist message: %w", err)
	}

	s.broadcaster.BroadcastMessage(msg)
	return msg, nil
}

// History returns one newest-first page of a group's messages plus enough
// pagination metadata for the caller to know whether older history remains.
func (s *MessageService) History(ctx context.Context, groupID, userID, page, limit int) (*models.MessageHistory, error) {
	if err := s.checkAccess(ctx, groupID, userID); err != nil {
		return nil, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.pageSize
	}

	messages, total, err := s.db.ListMessages(ctx, groupID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	return &models.MessageHistory{
		Messages: messages,
		Pagination: models.Pagination{
			Total: total,
			Page:  page,
			Limit: limit,
			Pages: (total + limit - 1) / limit,
		},
	}, nil
}

func (s *MessageService) checkAccess(ctx context.Context, groupID, userID int) error {
	if _, err := s.db.GetGroupByID(ctx, groupID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrGroupNotFound
		}
		return fmt.Errorf("failed to load group: %w", err)
	}

	isMember, err := s.db.IsMember(ctx, userID, groupID)
	if err != nil {
		return fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return ErrNotAMember
	}
	return nil
}
