package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"campus-chat/internal/database"
	"campus-chat/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeStore implements the slice of database.Store these tests exercise;
// anything else panics via the embedded nil interface.
type fakeStore struct {
	database.Store

	groups    map[int]*models.Group
	members   map[int]map[int]bool // groupID -> userID -> member
	messages  []*models.Message
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:  make(map[int]*models.Group),
		members: make(map[int]map[int]bool),
	}
}

func (f *fakeStore) addGroup(id int, memberIDs ...int) {
	f.groups[id] = &models.Group{ID: id, Name: "group", CreatedAt: time.Now()}
	f.members[id] = make(map[int]bool)
	for _, uid := range memberIDs {
		f.members[id][uid] = true
	}
}

func (f *fakeStore) GetGroupByID(ctx context.Context, id int) (*models.Group, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return group, nil
}

func (f *fakeStore) IsMember(ctx context.Context, userID, groupID int) (bool, error) {
	return f.members[groupID][userID], nil
}

func (f *fakeStore) InsertMessage(ctx context.Context, groupID, senderID int, text string, attachments []string) (*models.Message, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	if attachments == nil {
		attachments = []string{}
	}
	msg := &models.Message{
		ID:          uuid.New(),
		GroupID:     groupID,
		SenderID:    senderID,
		Text:        text,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) ListMessages(ctx context.Context, groupID, page, limit int) ([]*models.Message, int, error) {
	// Newest first over the insertion-ordered slice.
	var all []*models.Message
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].GroupID == groupID {
			all = append(all, f.messages[i])
		}
	}

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

type fakeBroadcaster struct {
	broadcasts []*models.Message
}

func (f *fakeBroadcaster) BroadcastMessage(msg *models.Message) {
	f.broadcasts = append(f.broadcasts, msg)
}

func TestSendBroadcastsPersistedRecord(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	broadcaster := &fakeBroadcaster{}
	svc := NewMessageService(store, broadcaster, 50)

	msg, err := svc.Send(context.Background(), 1, 10, &models.SendMessageRequest{Text: "hello"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, msg.ID)
	require.False(t, msg.CreatedAt.IsZero())

	require.Len(t, broadcaster.broadcasts, 1)
	require.Same(t, msg, broadcaster.broadcasts[0])
}

func TestSendPersistFailureSuppressesBroadcast(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	store.insertErr = errors.New("disk on fire")
	broadcaster := &fakeBroadcaster{}
	svc := NewMessageService(store, broadcaster, 50)

	_, err := svc.Send(context.Background(), 1, 10, &models.SendMessageRequest{Text: "hello"})
	require.Error(t, err)
	require.Empty(t, broadcaster.broadcasts)
}

func TestSendRejectsNonMember(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	broadcaster := &fakeBroadcaster{}
	svc := NewMessageService(store, broadcaster, 50)

	_, err := svc.Send(context.Background(), 1, 99, &models.SendMessageRequest{Text: "hello"})
	require.ErrorIs(t, err, ErrNotAMember)
	require.Empty(t, broadcaster.broadcasts)
}

func TestSendRejectsMissingGroup(t *testing.T) {
	svc := NewMessageService(newFakeStore(), &fakeBroadcaster{}, 50)

	_, err := svc.Send(context.Background(), 404, 10, &models.SendMessageRequest{Text: "hello"})
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestSendValidatesText(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	svc := NewMessageService(store, &fakeBroadcaster{}, 50)

	_, err := svc.Send(context.Background(), 1, 10, &models.SendMessageRequest{Text: ""})
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = svc.Send(context.Background(), 1, 10, &models.SendMessageRequest{Text: strings.Repeat("x", 501)})
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestHistoryPaginationPagesAreDisjoint(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	svc := NewMessageService(store, &fakeBroadcaster{}, 50)

	for i := 0; i < 5; i++ {
		_, err := svc.Send(context.Background(), 1, 10, &models.SendMessageRequest{Text: strings.Repeat("m", i+1)})
		require.NoError(t, err)
	}

	page1, err := svc.History(context.Background(), 1, 10, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1.Messages, 2)
	require.Equal(t, models.Pagination{Total: 5, Page: 1, Limit: 2, Pages: 3}, page1.Pagination)
	require.True(t, page1.Pagination.HasMore())

	page2, err := svc.History(context.Background(), 1, 10, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2.Messages, 2)

	seen := map[uuid.UUID]bool{}
	for _, m := range append(page1.Messages, page2.Messages...) {
		require.False(t, seen[m.ID], "pages overlap on message %s", m.ID)
		seen[m.ID] = true
	}

	// Newest-first ordering holds across the page boundary.
	require.Equal(t, "mmmmm", page1.Messages[0].Text)
	require.Equal(t, "mmm", page2.Messages[0].Text)

	page3, err := svc.History(context.Background(), 1, 10, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3.Messages, 1)
	require.False(t, page3.Pagination.HasMore())
}

func TestHistoryDefaultsPageAndLimit(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	svc := NewMessageService(store, &fakeBroadcaster{}, 50)

	history, err := svc.History(context.Background(), 1, 10, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, history.Pagination.Page)
	require.Equal(t, 50, history.Pagination.Limit)
	require.NotNil(t, history.Messages)
}

func TestHistoryForbiddenForNonMember(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	svc := NewMessageService(store, &fakeBroadcaster{}, 50)

	_, err := svc.History(context.Background(), 1, 99, 1, 50)
	require.ErrorIs(t, err, ErrNotAMember)
}

func TestHistoryMissingGroup(t *testing.T) {
	svc := NewMessageService(newFakeStore(), &fakeBroadcaster{}, 50)

	_, err := svc.History(context.Background(), 404, 10, 1, 50)
	require.ErrorIs(t, err, ErrGroupNotFound)
}
