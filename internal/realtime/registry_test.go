package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	id     string
	mu     sync.Mutex
	frames [][]byte
	fail   error
	closed atomic.Bool
}

func newFakeChannel(id string) *fakeChannel {
	return &fakeChannel{id: id}
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Send(frame []byte) error {
	if f.closed.Load() {
		return ErrChannelClosed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeChannel) Close() { f.closed.Store(true) }

func (f *fakeChannel) received() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.frames...)
}

func TestRegistry_Lifecycle(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	phone, laptop := newFakeChannel("phone"), newFakeChannel("laptop")

	req.False(r.Online("alice"))
	first, err := r.Register("alice", phone)
	req.NoError(err)
	req.True(first)
	first, err = r.Register("alice", laptop)
	req.NoError(err)
	req.False(first)
	req.ElementsMatch([]Channel{phone, laptop}, r.ChannelsFor("alice"))
	req.Equal(1, r.Len())

	req.False(r.Unregister("alice", phone))
	req.False(r.Unregister("alice", phone), "second removal is a no-op")
	req.Equal([]Channel{laptop}, r.ChannelsFor("alice"))

	req.True(r.Unregister("alice", laptop))
	req.False(r.Online("alice"))
	req.Empty(r.ChannelsFor("alice"))
	req.Zero(r.Len())

	first, err = r.Register("alice", phone)
	req.NoError(err)
	req.True(first, "user is back to one channel after going offline")
}

func TestRegistry_UnregisterIgnoresStaleChannelWithSameID(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	old, cur := newFakeChannel("c1"), newFakeChannel("c1")

	_, err := r.Register("bob", old)
	req.NoError(err)
	_, err = r.Register("bob", cur)
	req.NoError(err)

	req.False(r.Unregister("bob", old))
	req.Equal([]Channel{cur}, r.ChannelsFor("bob"))
}

func TestRegistry_ConcurrentConnectDisconnect(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	var wg sync.WaitGroup
	for u := 0; u < 8; u++ {
		uid := fmt.Sprintf("user-%d", u)
		for c := 0; c < 50; c++ {
			c := c
			wg.Add(1)
			go func() {
				defer wg.Done()
				ch := newFakeChannel(fmt.Sprintf("%s-%d", uid, c))
				_, err := r.Register(uid, ch)
				if err != nil {
					t.Error(err)
					return
				}
				_ = r.ChannelsFor(uid)
				r.Unregister(uid, ch)
			}()
		}
	}
	wg.Wait()

	req.Zero(r.Len())
	for u := 0; u < 8; u++ {
		req.False(r.Online(fmt.Sprintf("user-%d", u)))
	}
}

func TestRegistry_Close(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	a, b := newFakeChannel("a"), newFakeChannel("b")
	_, _ = r.Register("alice", a)
	_, _ = r.Register("bob", b)

	r.Close()
	req.True(a.closed.Load())
	req.True(b.closed.Load())
	req.Zero(r.Len())

	_, err := r.Register("alice", newFakeChannel("c"))
	req.ErrorIs(err, ErrRegistryClosed)
	r.Close()
}
