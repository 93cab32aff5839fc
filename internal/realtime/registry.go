package realtime

import (
	"errors"
	"sync"
	"sync/atomic"
)

var (
	ErrRegistryClosed = errors.New("session registry closed")
	ErrChannelClosed  = errors.New("channel closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Channel is one live delivery path to a connected session.
type Channel interface {
	ID() string
	// Send queues an encoded frame. It must not block.
	Send(frame []byte) error
	Close()
}

type userChannels struct {
	mu       sync.Mutex
	channels map[string]Channel
	// dead is set once the set has been removed from the registry; late
	// registrations must retry with a fresh set.
	dead bool
}

// Registry maps user ids to their live channels. Each user has an
// independently locked set so unrelated users never contend.
type Registry struct {
	users  sync.Map // uid -> *userChannels
	closed atomic.Bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds ch for uid. first reports whether uid had no channel before.
func (r *Registry) Register(uid string, ch Channel) (first bool, err error) {
	for {
		if r.closed.Load() {
			return false, ErrRegistryClosed
		}
		v, _ := r.users.LoadOrStore(uid, &userChannels{channels: make(map[string]Channel)})
		set := v.(*userChannels)

		set.mu.Lock()
		if set.dead {
			set.mu.Unlock()
			continue
		}
		if r.closed.Load() {
			set.mu.Unlock()
			return false, ErrRegistryClosed
		}
		set.channels[ch.ID()] = ch
		first = len(set.channels) == 1
		set.mu.Unlock()
		return first, nil
	}
}

// Unregister removes ch for uid. last reports whether it was the final
// channel of uid. Removing an unknown channel is a no-op.
func (r *Registry) Unregister(uid string, ch Channel) (last bool) {
	v, ok := r.users.Load(uid)
	if !ok {
		return false
	}
	set := v.(*userChannels)

	set.mu.Lock()
	defer set.mu.Unlock()
	if cur, ok := set.channels[ch.ID()]; !ok || cur != ch {
		return false
	}
	delete(set.channels, ch.ID())
	if len(set.channels) > 0 {
		return false
	}
	set.dead = true
	r.users.CompareAndDelete(uid, set)
	return true
}

// ChannelsFor returns a snapshot of the channels of uid.
func (r *Registry) ChannelsFor(uid string) []Channel {
	v, ok := r.users.Load(uid)
	if !ok {
		return nil
	}
	set := v.(*userChannels)

	set.mu.Lock()
	defer set.mu.Unlock()
	out := make([]Channel, 0, len(set.channels))
	for _, ch := range set.channels {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) Online(uid string) bool {
	return len(r.ChannelsFor(uid)) > 0
}

// Len returns the number of users with at least one channel.
func (r *Registry) Len() int {
	n := 0
	r.users.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Close closes every channel and rejects further registrations.
func (r *Registry) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	var all []Channel
	r.users.Range(func(k, v any) bool {
		set := v.(*userChannels)
		set.mu.Lock()
		for _, ch := range set.channels {
			all = append(all, ch)
		}
		set.channels = make(map[string]Channel)
		set.dead = true
		set.mu.Unlock()
		r.users.Delete(k)
		return true
	})
	for _, ch := range all {
		ch.Close()
	}
}
