package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"campus-chat/internal/auth"
	"campus-chat/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	identities map[string]*auth.Identity
}

func (f *fakeResolver) Resolve(ctx context.Context, credential string) (*auth.Identity, error) {
	if identity, ok := f.identities[credential]; ok {
		return identity, nil
	}
	return nil, errors.New("unknown credential")
}

func newTestGateway(t *testing.T, resolver Resolver) *Gateway {
	t.Helper()
	g := New(NewRegistry(), resolver, 8)
	go g.Run()
	t.Cleanup(g.Shutdown)
	return g
}

func attach(g *Gateway) *Conn {
	c := newConn(nil, 8)
	g.Attach(c)
	return c
}

// flush waits for every op posted before it to execute.
func flush(g *Gateway) {
	done := make(chan struct{})
	g.post(func() { close(done) })
	<-done
}

func recvEvent(t *testing.T, c *Conn) models.ServerEvent {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed while waiting for event")
		var ev models.ServerEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return models.ServerEvent{}
	}
}

func requireNoEvent(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected event: %s", data)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func requireClosed(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case _, ok := <-c.send:
		require.False(t, ok, "expected send channel to be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection close")
	}
}

func authenticate(t *testing.T, g *Gateway, c *Conn, token string) models.ServerEvent {
	t.Helper()
	g.HandleEvent(c, models.ClientEvent{Type: models.EventAuthenticate, Token: token})
	ev := recvEvent(t, c)
	require.Equal(t, models.EventAuthenticated, ev.Type)
	return ev
}

func testMessage(groupID int, text string) *models.Message {
	return &models.Message{
		ID:          uuid.New(),
		GroupID:     groupID,
		SenderID:    42,
		Text:        text,
		Attachments: []string{},
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestAuthenticateAutoJoinsMembershipRooms(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: []int{10, 20}},
	}}
	g := newTestGateway(t, resolver)
	c := attach(g)

	ev := authenticate(t, g, c, "token-a")
	require.Equal(t, 1, ev.UserID)

	g.BroadcastMessage(testMessage(10, "hello ten"))
	require.Equal(t, "hello ten", recvEvent(t, c).Message.Text)

	g.BroadcastMessage(testMessage(20, "hello twenty"))
	require.Equal(t, "hello twenty", recvEvent(t, c).Message.Text)

	g.BroadcastMessage(testMessage(30, "not for you"))
	requireNoEvent(t, c)
}

func TestAuthenticateFailureClosesConnection(t *testing.T) {
	g := newTestGateway(t, &fakeResolver{identities: map[string]*auth.Identity{}})
	c := attach(g)

	g.HandleEvent(c, models.ClientEvent{Type: models.EventAuthenticate, Token: "garbage"})

	requireClosed(t, c)
	flush(g)
	require.False(t, g.registry.Has(c))
}

func TestUnauthenticatedJoinIsIgnored(t *testing.T) {
	g := newTestGateway(t, &fakeResolver{})
	c := attach(g)

	g.HandleEvent(c, models.ClientEvent{Type: models.EventJoinGroup, GroupID: 5})
	flush(g)

	g.BroadcastMessage(testMessage(5, "secret"))
	requireNoEvent(t, c)
}

func TestUnauthenticatedTypingIsIgnored(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-b": {UserID: 2, Username: "bob", GroupIDs: []int{5}},
	}}
	g := newTestGateway(t, resolver)
	member := attach(g)
	authenticate(t, g, member, "token-b")

	stranger := attach(g)
	g.HandleEvent(stranger, models.ClientEvent{Type: models.EventTyping, GroupID: 5, IsTyping: true})
	flush(g)

	requireNoEvent(t, member)
}

func TestJoinGroupIsIdempotentNoDoubleDelivery(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: nil},
	}}
	g := newTestGateway(t, resolver)
	c := attach(g)
	authenticate(t, g, c, "token-a")

	g.HandleEvent(c, models.ClientEvent{Type: models.EventJoinGroup, GroupID: 7})
	g.HandleEvent(c, models.ClientEvent{Type: models.EventJoinGroup, GroupID: 7})
	flush(g)
	require.Equal(t, 1, g.registry.RoomSize(7))

	g.BroadcastMessage(testMessage(7, "once"))
	require.Equal(t, "once", recvEvent(t, c).Message.Text)
	requireNoEvent(t, c)
}

func TestTypingExcludesSender(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: []int{3}},
		"token-b": {UserID: 2, Username: "bob", GroupIDs: []int{3}},
	}}
	g := newTestGateway(t, resolver)
	a := attach(g)
	b := attach(g)
	authenticate(t, g, a, "token-a")
	authenticate(t, g, b, "token-b")

	g.HandleEvent(b, models.ClientEvent{Type: models.EventTyping, GroupID: 3, IsTyping: true})

	ev := recvEvent(t, a)
	require.Equal(t, models.EventUserTyping, ev.Type)
	require.Equal(t, 2, ev.UserID)
	require.True(t, ev.IsTyping)

	requireNoEvent(t, b)
}

func TestTypingStaysInsideRoom(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: []int{3}},
		"token-c": {UserID: 3, Username: "carol", GroupIDs: []int{4}},
	}}
	g := newTestGateway(t, resolver)
	a := attach(g)
	c := attach(g)
	authenticate(t, g, a, "token-a")
	authenticate(t, g, c, "token-c")

	g.HandleEvent(a, models.ClientEvent{Type: models.EventTyping, GroupID: 3, IsTyping: true})
	flush(g)

	requireNoEvent(t, c)
}

func TestLeaveGroupStopsDelivery(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: []int{9}},
	}}
	g := newTestGateway(t, resolver)
	c := attach(g)
	authenticate(t, g, c, "token-a")

	g.HandleEvent(c, models.ClientEvent{Type: models.EventLeaveGroup, GroupID: 9})
	flush(g)

	g.BroadcastMessage(testMessage(9, "gone"))
	requireNoEvent(t, c)
}

func TestDisconnectPurgesAndBroadcastSurvives(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: []int{6}},
		"token-b": {UserID: 2, Username: "bob", GroupIDs: []int{6}},
	}}
	g := newTestGateway(t, resolver)
	a := attach(g)
	b := attach(g)
	authenticate(t, g, a, "token-a")
	authenticate(t, g, b, "token-b")

	g.Disconnect(a)
	flush(g)
	require.False(t, g.registry.Has(a))
	require.Equal(t, 1, g.registry.RoomSize(6))

	g.BroadcastMessage(testMessage(6, "still works"))
	require.Equal(t, "still works", recvEvent(t, b).Message.Text)
}

func TestBroadcastDeliversIdenticalContent(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: []int{2}},
	}}
	g := newTestGateway(t, resolver)
	c := attach(g)
	authenticate(t, g, c, "token-a")

	msg := testMessage(2, "hello")
	msg.Attachments = []string{"img://one", "img://two"}
	g.BroadcastMessage(msg)

	ev := recvEvent(t, c)
	require.Equal(t, models.EventNewMessage, ev.Type)
	require.Equal(t, msg.ID, ev.Message.ID)
	require.Equal(t, msg.GroupID, ev.Message.GroupID)
	require.Equal(t, msg.SenderID, ev.Message.SenderID)
	require.Equal(t, msg.Text, ev.Message.Text)
	require.Equal(t, msg.Attachments, ev.Message.Attachments)
	require.True(t, msg.CreatedAt.Equal(ev.Message.CreatedAt))
}

func TestBroadcastOrderIsFIFOPerRoom(t *testing.T) {
	resolver := &fakeResolver{identities: map[string]*auth.Identity{
		"token-a": {UserID: 1, Username: "alice", GroupIDs: []int{1}},
	}}
	g := newTestGateway(t, resolver)
	c := attach(g)
	authenticate(t, g, c, "token-a")

	for i := 0; i < 5; i++ {
		g.BroadcastMessage(testMessage(1, string(rune('a'+i))))
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, string(rune('a'+i)), recvEvent(t, c).Message.Text)
	}
}
