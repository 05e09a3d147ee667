package session

import (
	"context"
	"time"

	"github.com/sketchdash/sketchdash/internal/domain"
	"github.com/sketchdash/sketchdash/internal/infrastructure/events"
	"github.com/sketchdash/sketchdash/internal/infrastructure/logging"
	"github.com/sketchdash/sketchdash/internal/infrastructure/metrics"
	"github.com/sketchdash/sketchdash/internal/infrastructure/registry"
	"github.com/sketchdash/sketchdash/internal/infrastructure/ws"
)

// Options tunes the typing race rules.
type Options struct {
	RoundCount int
	TimeLimit  time.Duration
	InputSlack int
}

// Core owns all realtime session state. Every mutation runs on the single
// goroutine inside Run, so room structures never see interleaved writes.
// Durable-store calls happen on the calling connection's read goroutine and
// post their state mutations back here as tasks.
type Core struct {
	opts      Options
	logger    logging.Logger
	store     domain.RoomRepository
	prompts   domain.PromptSource
	publisher events.Publisher
	metrics   *metrics.Metrics

	registry *registry.Registry

	clients     map[string]*ws.Client
	names       map[string]string
	canvasVoice map[string]map[string]*domain.VoiceParticipant
	typingRooms map[string]*domain.TypingRoom
	typingOf    map[string]string

	register   chan *ws.Client
	unregister chan *ws.Client
	tasks      chan func()
}

func NewCore(
	opts Options,
	store domain.RoomRepository,
	prompts domain.PromptSource,
	publisher events.Publisher,
	m *metrics.Metrics,
	logger logging.Logger,
) *Core {
	if opts.RoundCount <= 0 {
		opts.RoundCount = domain.DefaultRoundCount
	}
	if opts.TimeLimit <= 0 {
		opts.TimeLimit = domain.DefaultTimeLimit
	}
	if opts.InputSlack <= 0 {
		opts.InputSlack = domain.DefaultInputSlack
	}

	return &Core{
		opts:        opts,
		logger:      logger,
		store:       store,
		prompts:     prompts,
		publisher:   publisher,
		metrics:     m,
		registry:    registry.New(),
		clients:     make(map[string]*ws.Client),
		names:       make(map[string]string),
		canvasVoice: make(map[string]map[string]*domain.VoiceParticipant),
		typingRooms: make(map[string]*domain.TypingRoom),
		typingOf:    make(map[string]string),
		register:    make(chan *ws.Client),
		unregister:  make(chan *ws.Client),
		tasks:       make(chan func(), 256),
	}
}

func (c *Core) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case cl := <-c.register:
			c.clients[cl.ID] = cl
			if c.metrics != nil {
				c.metrics.ConnectedClients.Inc()
			}

		case cl := <-c.unregister:
			c.dropClient(cl)

		case task := <-c.tasks:
			task()
		}
	}
}

func (c *Core) Register() chan<- *ws.Client {
	return c.register
}

// do schedules a state mutation onto the Run goroutine.
func (c *Core) do(task func()) {
	c.tasks <- task
}

// Dispatch implements ws.Sink. It runs on the client's read goroutine:
// canvas join/leave do their store I/O here, everything else is handed to
// the Run goroutine. Frames from one sender stay in arrival order either way.
func (c *Core) Dispatch(client *ws.Client, req *ws.Request) {
	switch req.Type {
	case ws.RoomJoin:
		c.handleRoomJoin(client, req)
	case ws.RoomLeave:
		c.leaveCanvas(client)
	default:
		c.do(func() { c.handleEvent(client, req) })
	}
}

// Drop implements ws.Sink; it fires exactly once per connection, after the
// read loop ends. Cleanup must succeed even for connections that never
// joined anything. Connection ids are cookie-pinned, so a reconnect may
// already own this id with a fresh socket; the ownership check round-trips
// through the Run goroutine, which also drains any joins this reader queued
// before disconnecting.
func (c *Core) Drop(client *ws.Client) {
	owner := make(chan bool, 1)
	c.do(func() { owner <- c.alive(client) })
	if <-owner {
		c.leaveCanvas(client)
	}
	c.unregister <- client
}

func (c *Core) handleEvent(client *ws.Client, req *ws.Request) {
	if !c.alive(client) {
		return
	}

	switch {
	case ws.IsDrawEvent(req.Type):
		c.relayDraw(client, req)

	case req.Type == ws.VoiceJoin:
		c.enableCanvasVoice(client, req)
	case req.Type == ws.VoiceLeave:
		if roomID, bound := c.registry.RoomOf(client.ID); bound {
			c.disableCanvasVoice(roomID, client.ID, false)
		}
	case req.Type == ws.TypingVoiceJoin:
		c.enableTypingVoice(client, req)
	case req.Type == ws.TypingVoiceLeave:
		c.disableTypingVoice(client.ID, false)
	case ws.IsVoiceSignal(req.Type):
		c.relaySignal(client, req)

	case req.Type == ws.TypingJoin:
		c.handleTypingJoin(client, req)
	case req.Type == ws.TypingUpdate:
		c.handleTypingUpdate(client, req)
	case req.Type == ws.TypingLeave:
		c.leaveTyping(client.ID)

	default:
		client.Send(ws.NewError(req.RoomID, ws.CodeValidation, "unknown event type: "+req.Type))
	}
}

func (c *Core) dropClient(client *ws.Client) {
	// A reconnect may already have replaced this id with a fresh client;
	// a stale socket's teardown must not touch the live session.
	if c.alive(client) {
		c.leaveTyping(client.ID)
		delete(c.clients, client.ID)
		delete(c.names, client.ID)
	}
	if c.metrics != nil {
		c.metrics.ConnectedClients.Dec()
	}

	// Nothing sends to this client once it is out of the clients map;
	// queued tasks re-check ownership before touching it.
	client.CloseSend()

	c.logger.Info(logging.Realtime, logging.RoomLifecycle, "client disconnected", map[logging.ExtraKey]any{
		logging.ConnectionID: client.ID,
	})
}

// alive reports whether the client is still the registered connection for
// its id. Tasks captured before a disconnect must not touch stale clients.
func (c *Core) alive(client *ws.Client) bool {
	current, ok := c.clients[client.ID]
	return ok && current == client
}

func (c *Core) send(connectionID string, msg *ws.WSMessage) {
	client, ok := c.clients[connectionID]
	if !ok {
		return
	}
	if !client.Send(msg) && c.metrics != nil {
		c.metrics.EventsDropped.Inc()
	}
}

// broadcastCanvas delivers msg to every connection bound to the room,
// except the one named by except.
func (c *Core) broadcastCanvas(roomID string, msg *ws.WSMessage, except string) {
	for _, id := range c.registry.Members(roomID) {
		if id == except {
			continue
		}
		c.send(id, msg)
	}
	if c.metrics != nil {
		c.metrics.EventsRelayed.WithLabelValues(msg.Type).Inc()
	}
}

func (c *Core) broadcastTyping(room *domain.TypingRoom, msg *ws.WSMessage, except string) {
	for id := range room.Participants {
		if id == except {
			continue
		}
		c.send(id, msg)
	}
	if c.metrics != nil {
		c.metrics.EventsRelayed.WithLabelValues(msg.Type).Inc()
	}
}
