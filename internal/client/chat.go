// Package client implements the chat-screen state machine a mobile client
// runs per group chat: room join/leave tied to screen lifecycle, a local
// newest-first message log fed by history pages and live broadcasts, and the
// derived typing-indicator state.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"campus-chat/internal/models"

	"github.com/samber/lo"
)

// DefaultTypingDebounce is the trailing quiet period after the last
// keystroke before typing(false) is emitted.
const DefaultTypingDebounce = 1500 * time.Millisecond

var ErrScreenNotActive = errors.New("chat screen not active")

type State int

const (
	Idle State = iota
	Joining
	Active
	Leaving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Joining:
		return "joining"
	case Active:
		return "active"
	case Leaving:
		return "leaving"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Emitter sends a protocol event over the live socket.
type Emitter interface {
	Emit(ev models.ClientEvent)
}

// HistoryFetcher loads one page of a group's history over REST.
type HistoryFetcher interface {
	FetchMessages(ctx context.Context, groupID, page, limit int) (*models.MessageHistory, error)
}

// MessageSender performs the REST send; the sent message only shows up
// locally via its broadcast echo.
type MessageSender interface {
	SendMessage(ctx context.Context, groupID int, req *models.SendMessageRequest) (*models.Message, error)
}

// ChatScreen drives one group chat screen.
//
// The local log is newest-first: live messages are prepended, older history
// pages are appended. There is no optimistic insert on send; the sender sees
// its own message through the same broadcast path as everyone else.
type ChatScreen struct {
	emitter Emitter
	fetcher HistoryFetcher
	sender  MessageSender

	pageSize int
	debounce time.Duration

	mu       sync.Mutex
	state    State
	groupID  int
	messages []*models.Message
	typing   map[int]bool
	page     int
	pages    int
	loading  bool

	typingActive bool
	typingTimer  *time.Timer
}

func NewChatScreen(emitter Emitter, fetcher HistoryFetcher, sender MessageSender, pageSize int, debounce time.Duration) *ChatScreen {
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}
	return &ChatScreen{
		emitter:  emitter,
		fetcher:  fetcher,
		sender:   sender,
		pageSize: pageSize,
		debounce: debounce,
		typing:   make(map[int]bool),
	}
}

func (s *ChatScreen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Mount joins the group's room and loads the first history page. The screen
// ends up Active even when the fetch fails (live events still flow); the
// returned error is the caller's cue to show a retry affordance.
func (s *ChatScreen) Mount(ctx context.Context, groupID int) error {
	s.mu.Lock()
	if s.state != Idle {
		s.mu.Unlock()
		return fmt.Errorf("cannot mount from state %s", s.state)
	}
	s.state = Joining
	s.groupID = groupID
	s.mu.Unlock()

	s.emitter.Emit(models.ClientEvent{Type: models.EventJoinGroup, GroupID: groupID})

	err := s.fetchPage(ctx, 1)

	s.mu.Lock()
	s.state = Active
	s.mu.Unlock()

	return err
}

// Unmount leaves the room and resets local state. It is the cleanup half of
// Mount and runs on every exit path, so leave_group is always emitted once
// the screen was mounted.
func (s *ChatScreen) Unmount() {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return
	}
	s.state = Leaving
	groupID := s.groupID
	s.cancelTypingTimerLocked()
	s.mu.Unlock()

	s.emitter.Emit(models.ClientEvent{Type: models.EventLeaveGroup, GroupID: groupID})

	s.mu.Lock()
	s.state = Idle
	s.groupID = 0
	s.messages = nil
	s.typing = make(map[int]bool)
	s.page = 0
	s.pages = 0
	s.loading = false
	s.typingActive = false
	s.mu.Unlock()
}

// Retry re-fetches page 1 after a failed initial load.
func (s *ChatScreen) Retry(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return ErrScreenNotActive
	}
	s.mu.Unlock()

	return s.fetchPage(ctx, 1)
}

// LoadMore fetches the next older page if one exists and no fetch is in
// flight. Older messages are appended to the tail of the newest-first log.
func (s *ChatScreen) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return ErrScreenNotActive
	}
	if s.loading || s.page >= s.pages {
		s.mu.Unlock()
		return nil
	}
	s.loading = true
	next := s.page + 1
	s.mu.Unlock()

	err := s.fetchPage(ctx, next)

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()

	return err
}

func (s *ChatScreen) fetchPage(ctx context.Context, page int) error {
	s.mu.Lock()
	groupID := s.groupID
	limit := s.pageSize
	s.mu.Unlock()

	history, err := s.fetcher.FetchMessages(ctx, groupID, page, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch messages: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The screen may have been unmounted while the fetch was in flight.
	if s.groupID != groupID || s.state == Idle || s.state == Leaving {
		return nil
	}
	if page == 1 {
		s.messages = history.Messages
	} else {
		s.messages = append(s.messages, history.Messages...)
	}
	s.page = history.Pagination.Page
	s.pages = history.Pagination.Pages
	return nil
}

// HandleEvent merges one server-pushed event into local state.
func (s *ChatScreen) HandleEvent(ev models.ServerEvent) {
	switch ev.Type {
	case models.EventNewMessage:
		s.handleNewMessage(ev.Message)
	case models.EventUserTyping:
		s.handleUserTyping(ev)
	}
}

func (s *ChatScreen) handleNewMessage(msg *models.Message) {
	if msg == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active || msg.GroupID != s.groupID {
		return
	}
	s.messages = append([]*models.Message{msg}, s.messages...)
}

// handleUserTyping overwrites the per-user flag. Entries are never expired:
// a missed final typing(false) leaves a stale indicator until a later event
// overwrites it, which is the accepted trade-off here.
func (s *ChatScreen) handleUserTyping(ev models.ServerEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return
	}
	if ev.GroupID != 0 && ev.GroupID != s.groupID {
		return
	}
	s.typing[ev.UserID] = ev.IsTyping
}

// Keystroke emits typing(true) once per burst and (re)arms the trailing
// timer that emits typing(false) after the debounce period of inactivity.
func (s *ChatScreen) Keystroke() {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return
	}

	groupID := s.groupID
	emitStart := !s.typingActive
	s.typingActive = true

	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.debounce, s.typingExpired)
	s.mu.Unlock()

	if emitStart {
		s.emitter.Emit(models.ClientEvent{Type: models.EventTyping, GroupID: groupID, IsTyping: true})
	}
}

func (s *ChatScreen) typingExpired() {
	s.mu.Lock()
	if !s.typingActive {
		s.mu.Unlock()
		return
	}
	s.typingActive = false
	groupID := s.groupID
	s.mu.Unlock()

	s.emitter.Emit(models.ClientEvent{Type: models.EventTyping, GroupID: groupID, IsTyping: false})
}

// Send submits the text over REST. On success the pending typing timer is
// cancelled and typing(false) goes out immediately. The message is not added
// to the local log; the broadcast echo does that.
func (s *ChatScreen) Send(ctx context.Context, text string, attachments []string) error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return ErrScreenNotActive
	}
	groupID := s.groupID
	s.mu.Unlock()

	_, err := s.sender.SendMessage(ctx, groupID, &models.SendMessageRequest{
		Text:        text,
		Attachments: attachments,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	s.mu.Lock()
	s.typingActive = false
	s.cancelTypingTimerLocked()
	s.mu.Unlock()

	s.emitter.Emit(models.ClientEvent{Type: models.EventTyping, GroupID: groupID, IsTyping: false})
	return nil
}

func (s *ChatScreen) cancelTypingTimerLocked() {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

// Messages returns a snapshot of the local log, newest first.
func (s *ChatScreen) Messages() []*models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// TypingUserIDs lists the users currently marked as typing.
func (s *ChatScreen) TypingUserIDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := lo.Keys(lo.PickByValues(s.typing, []bool{true}))
	return ids
}

// HasMore reports whether older history pages remain.
func (s *ChatScreen) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page < s.pages
}
