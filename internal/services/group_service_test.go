package services

import (
	"context"
	"testing"

	"campus-chat/internal/models"

	"github.com/stretchr/testify/require"
)

func (f *fakeStore) AddMembership(ctx context.Context, userID, groupID int) error {
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[int]bool)
	}
	f.members[groupID][userID] = true
	return nil
}

func (f *fakeStore) RemoveMembership(ctx context.Context, userID, groupID int) error {
	delete(f.members[groupID], userID)
	return nil
}

func (f *fakeStore) GetGroupMembers(ctx context.Context, groupID int) ([]*models.Member, error) {
	var members []*models.Member
	for uid := range f.members[groupID] {
		members = append(members, &models.Member{ID: uid})
	}
	return members, nil
}

func TestJoinGroupRequiresExistingGroup(t *testing.T) {
	svc := NewGroupService(newFakeStore())

	err := svc.JoinGroup(context.Background(), 10, 404)
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestJoinThenLeaveGroup(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1)
	svc := NewGroupService(store)

	require.NoError(t, svc.JoinGroup(context.Background(), 10, 1))
	isMember, _ := store.IsMember(context.Background(), 10, 1)
	require.True(t, isMember)

	require.NoError(t, svc.LeaveGroup(context.Background(), 10, 1))
	isMember, _ = store.IsMember(context.Background(), 10, 1)
	require.False(t, isMember)
}

func TestLeaveGroupRequiresMembership(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1)
	svc := NewGroupService(store)

	err := svc.LeaveGroup(context.Background(), 10, 1)
	require.ErrorIs(t, err, ErrNotAMember)
}

func TestGetGroupMembersForbiddenForOutsiders(t *testing.T) {
	store := newFakeStore()
	store.addGroup(1, 10)
	svc := NewGroupService(store)

	_, err := svc.GetGroupMembers(context.Background(), 1, 99)
	require.ErrorIs(t, err, ErrNotAMember)

	members, err := svc.GetGroupMembers(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, members, 1)
}
