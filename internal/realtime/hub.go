package realtime

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
)

const (
	relayPublishTimeout = 3 * time.Second
	relayBacklog        = 1024
	presenceStripes     = 64
)

// Envelope carries a message to the instance holding the recipient's socket.
type Envelope struct {
	Origin  string        `json:"origin"`
	UserID  string        `json:"userId"`
	Message model.Message `json:"message"`
}

// Relay fans envelopes out to every other instance.
type Relay interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe calls fn for every envelope until ctx is done.
	Subscribe(ctx context.Context, fn func(Envelope)) error
	Close() error
}

// Presence tracks which users hold at least one live socket anywhere.
type Presence interface {
	Connected(ctx context.Context, uid string) error
	Disconnected(ctx context.Context, uid string) error
	Online(ctx context.Context, uid string) (bool, error)
}

type HubConfig struct {
	// Origin identifies this instance on the relay.
	Origin   string
	Relay    Relay
	Presence Presence
	Logger   *slog.Logger
}

// Hub delivers persisted messages to live sessions. It is the process-wide
// owner of the session registry.
type Hub struct {
	registry *Registry
	relay    Relay
	presence Presence
	origin   string
	log      *slog.Logger

	// presence updates for one user are applied one at a time, and only
	// when the registry state differs from what was last reported
	presenceLocks [presenceStripes]sync.Mutex
	reported      sync.Map // uid -> struct{}

	outbox    chan Envelope
	done      chan struct{}
	closeOnce sync.Once
	publisher sync.WaitGroup
}

func NewHub(registry *Registry, cfg HubConfig) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Presence == nil {
		cfg.Presence = NewLocalPresence(registry)
	}
	h := &Hub{
		registry: registry,
		relay:    cfg.Relay,
		presence: cfg.Presence,
		origin:   cfg.Origin,
		log:      cfg.Logger.With("component", "hub"),
		done:     make(chan struct{}),
	}
	if h.relay != nil {
		h.outbox = make(chan Envelope, relayBacklog)
		h.publisher.Add(1)
		go h.publish()
	}
	return h
}

func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect registers ch as a live channel of uid.
func (h *Hub) Connect(ctx context.Context, uid string, ch Channel) error {
	first, err := h.registry.Register(uid, ch)
	if err != nil {
		return err
	}
	if first {
		h.syncPresence(ctx, uid)
	}
	h.log.Debug("channel connected", "uid", uid, "channel", ch.ID())
	return nil
}

// Disconnect removes ch and closes it. Safe to call more than once.
func (h *Hub) Disconnect(ctx context.Context, uid string, ch Channel) {
	last := h.registry.Unregister(uid, ch)
	ch.Close()
	if last {
		h.syncPresence(ctx, uid)
	}
}

// syncPresence brings the shared presence record of uid in line with the
// local registry. Racing connects and disconnects may call it in any
// order; each call reads the registry under the user's lock, so the last
// one to run leaves the record correct.
func (h *Hub) syncPresence(ctx context.Context, uid string) {
	mu := h.presenceLock(uid)
	mu.Lock()
	defer mu.Unlock()

	online := h.registry.Online(uid)
	_, reported := h.reported.Load(uid)
	switch {
	case online && !reported:
		if err := h.presence.Connected(ctx, uid); err != nil {
			h.log.Warn("presence update failed", "uid", uid, "error", err)
			return
		}
		h.reported.Store(uid, struct{}{})
	case !online && reported:
		h.reported.Delete(uid)
		if err := h.presence.Disconnected(ctx, uid); err != nil {
			h.log.Warn("presence update failed", "uid", uid, "error", err)
		}
	}
}

func (h *Hub) presenceLock(uid string) *sync.Mutex {
	f := fnv.New32a()
	_, _ = f.Write([]byte(uid))
	return &h.presenceLocks[f.Sum32()%presenceStripes]
}

func (h *Hub) Online(ctx context.Context, uid string) (bool, error) {
	return h.presence.Online(ctx, uid)
}

// Push delivers msg to every local channel of userID and queues it for the
// relay. It never waits on the relay; failures are logged, never returned.
func (h *Hub) Push(ctx context.Context, userID string, msg model.Message) {
	h.deliver(ctx, userID, msg)
	if h.relay == nil {
		return
	}
	env := Envelope{Origin: h.origin, UserID: userID, Message: msg}
	select {
	case <-h.done:
		h.log.Warn("relay closed, envelope dropped", "uid", userID, "message_id", msg.ID)
	case h.outbox <- env:
	default:
		h.log.Warn("relay backlog full, envelope dropped", "uid", userID, "message_id", msg.ID)
	}
}

func (h *Hub) publish() {
	defer h.publisher.Done()
	for {
		select {
		case env := <-h.outbox:
			h.publishOne(env)
		case <-h.done:
			// flush what was queued before Close
			for {
				select {
				case env := <-h.outbox:
					h.publishOne(env)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) publishOne(env Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
	defer cancel()
	if err := h.relay.Publish(ctx, env); err != nil {
		h.log.Warn("relay publish failed", "uid", env.UserID, "message_id", env.Message.ID, "error", err)
	}
}

// Run consumes relay envelopes until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		<-ctx.Done()
		return nil
	}
	return h.relay.Subscribe(ctx, func(env Envelope) {
		if env.Origin == h.origin {
			return
		}
		h.deliver(ctx, env.UserID, env.Message)
	})
}

// Close disconnects every session, clears the presence this instance
// reported and flushes queued relay envelopes. The relay itself stays
// open; it belongs to the caller.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		h.registry.Close()
		ctx, cancel := context.WithTimeout(context.Background(), relayPublishTimeout)
		defer cancel()
		h.reported.Range(func(k, _ any) bool {
			h.syncPresence(ctx, k.(string))
			return true
		})
		close(h.done)
		h.publisher.Wait()
	})
}

func (h *Hub) deliver(ctx context.Context, userID string, msg model.Message) {
	channels := h.registry.ChannelsFor(userID)
	if len(channels) == 0 {
		return
	}
	frame, err := MessageFrame(msg).Encode()
	if err != nil {
		h.log.Error("encode message frame", "message_id", msg.ID, "error", err)
		return
	}
	for _, ch := range channels {
		if err := ch.Send(frame); err != nil {
			h.log.Info("dropping channel", "uid", userID, "channel", ch.ID(), "error", err)
			h.Disconnect(ctx, userID, ch)
		}
	}
}
