package gateway

import (
	"context"
	"encoding/json"
	"time"

	"campus-chat/internal/auth"
	"campus-chat/internal/models"
	"campus-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

const resolveTimeout = 5 * time.Second

// Resolver maps a bearer credential to an identity and its group memberships.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (*auth.Identity, error)
}

// Gateway is the realtime fan-out core. A single goroutine owns all room and
// connection state: every external entry point posts a closure onto the ops
// channel, so registry mutations and broadcasts are non-preemptible steps and
// delivery order per room is the order in which broadcasts were issued.
type Gateway struct {
	registry   *Registry
	resolver   Resolver
	ops        chan func()
	sendBuffer int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(registry *Registry, resolver Resolver, sendBuffer int) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		registry:   registry,
		resolver:   resolver,
		ops:        make(chan func(), 64),
		sendBuffer: sendBuffer,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run executes the event loop. Call in its own goroutine; returns after
// Shutdown.
func (g *Gateway) Run() {
	defer close(g.done)

	for {
		select {
		case <-g.ctx.Done():
			for c := range g.registry.conns {
				c.close()
			}
			return
		case fn := <-g.ops:
			fn()
		}
	}
}

func (g *Gateway) Shutdown() {
	g.cancel()
	<-g.done
}

func (g *Gateway) post(fn func()) {
	select {
	case g.ops <- fn:
	case <-g.ctx.Done():
	}
}

// Attach registers a freshly upgraded connection with the loop.
func (g *Gateway) Attach(c *Conn) {
	g.post(func() {
		g.registry.Add(c)
	})
}

// Disconnect purges the connection from every room and closes it. Safe to
// call more than once; the read pump calls it on every exit path.
func (g *Gateway) Disconnect(c *Conn) {
	g.post(func() {
		g.closeConn(c)
	})
}

// HandleEvent dispatches one client protocol event.
func (g *Gateway) HandleEvent(c *Conn, ev models.ClientEvent) {
	g.post(func() {
		switch ev.Type {
		case models.EventAuthenticate:
			g.handleAuthenticate(c, ev.Token)
		case models.EventJoinGroup:
			g.handleJoin(c, ev.GroupID)
		case models.EventLeaveGroup:
			g.handleLeave(c, ev.GroupID)
		case models.EventTyping:
			g.handleTyping(c, ev.GroupID, ev.IsTyping)
		default:
			logger.Debug("Unknown client event type %q", ev.Type)
		}
	})
}

// BroadcastMessage fans a persisted message out to every connection in the
// room matching its group. The REST send handler calls this strictly after
// the durable write succeeded.
func (g *Gateway) BroadcastMessage(msg *models.Message) {
	g.post(func() {
		g.fanOut(msg.GroupID, nil, models.ServerEvent{
			Type:    models.EventNewMessage,
			Message: msg,
		})
	})
}

// ServeConn adopts an upgraded websocket: registers it with the loop and
// starts its pumps. The connection starts unauthenticated; authenticate must
// be its first useful protocol event.
func (g *Gateway) ServeConn(ws *websocket.Conn) {
	c := newConn(ws, g.sendBuffer)
	g.Attach(c)
	go c.writePump()
	go c.readPump(g)
}

// handleAuthenticate resolves the credential off-loop so identity lookups
// never stall broadcasts, then finishes binding back on the loop.
func (g *Gateway) handleAuthenticate(c *Conn, token string) {
	if c.authenticated {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(g.ctx, resolveTimeout)
		defer cancel()

		identity, err := g.resolver.Resolve(ctx, token)

		g.post(func() {
			if !g.registry.Has(c) || c.closed {
				return
			}
			if err != nil {
				logger.Warn("Authentication failed for conn %s: %v", c.id, err)
				g.closeConn(c)
				return
			}

			c.userID = identity.UserID
			c.username = identity.Username
			c.authenticated = true

			// One room per membership group, joined exactly once.
			for _, groupID := range identity.GroupIDs {
				g.registry.Join(c, groupID)
			}

			g.trySend(c, models.ServerEvent{
				Type:   models.EventAuthenticated,
				UserID: c.userID,
			})
			logger.Info("User %d authenticated on conn %s (%d rooms)", c.userID, c.id, len(identity.GroupIDs))
		})
	}()
}

func (g *Gateway) handleJoin(c *Conn, groupID int) {
	if !c.authenticated {
		logger.Debug("Ignoring join_group from unauthenticated conn %s", c.id)
		return
	}
	g.registry.Join(c, groupID)
}

func (g *Gateway) handleLeave(c *Conn, groupID int) {
	if !c.authenticated {
		return
	}
	g.registry.Leave(c, groupID)
}

func (g *Gateway) handleTyping(c *Conn, groupID int, isTyping bool) {
	if !c.authenticated {
		logger.Debug("Ignoring typing from unauthenticated conn %s", c.id)
		return
	}
	g.fanOut(groupID, c, models.ServerEvent{
		Type:     models.EventUserTyping,
		UserID:   c.userID,
		GroupID:  groupID,
		IsTyping: isTyping,
	})
}

// fanOut delivers one event to every room member, excluding skip when set.
// Delivery is best-effort: a member whose send buffer is full is treated as
// gone and dropped.
func (g *Gateway) fanOut(groupID int, skip *Conn, ev models.ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Error marshaling %s event: %v", ev.Type, err)
		return
	}

	for _, member := range g.registry.MembersOf(groupID) {
		if member == skip {
			continue
		}
		g.trySendRaw(member, data)
	}
}

func (g *Gateway) trySend(c *Conn, ev models.ServerEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		logger.Error("Error marshaling %s event: %v", ev.Type, err)
		return
	}
	g.trySendRaw(c, data)
}

func (g *Gateway) trySendRaw(c *Conn, data []byte) {
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("Dropping slow conn %s", c.id)
		g.closeConn(c)
	}
}

func (g *Gateway) closeConn(c *Conn) {
	g.registry.RemoveConn(c)
	c.close()
}
