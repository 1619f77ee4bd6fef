package ws

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu      sync.Mutex
	written []any
	broken  bool
	closed  bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return errors.New("write: broken pipe")
	}
	c.written = append(c.written, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func newTestRegistry() *Registry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewRegistry(logger)
}

func TestRegistrySendToAllTabs(t *testing.T) {
	r := newTestRegistry()
	key := Key{Role: "buyer", UserID: 1}
	tab1, tab2, other := &fakeConn{}, &fakeConn{}, &fakeConn{}

	r.Connect(key, tab1)
	r.Connect(key, tab2)
	r.Connect(Key{Role: "buyer", UserID: 2}, other)
	require.Equal(t, 2, r.Count(key))

	n := r.Send("buyer", 1, map[string]string{"type": "offer.submitted"})
	require.Equal(t, 2, n)
	require.Len(t, tab1.written, 1)
	require.Len(t, tab2.written, 1)
	require.Empty(t, other.written)

	// роль входит в ключ
	require.Equal(t, 0, r.Send("seller", 1, "x"))
}

func TestRegistryDropsBrokenConnections(t *testing.T) {
	r := newTestRegistry()
	key := Key{Role: "buyer", UserID: 1}
	alive, broken := &fakeConn{}, &fakeConn{broken: true}
	r.Connect(key, alive)
	r.Connect(key, broken)

	require.Equal(t, 1, r.Send("buyer", 1, "ping"))
	require.True(t, broken.closed)
	require.Equal(t, 1, r.Count(key))
}

func TestRegistryDisconnectIdempotent(t *testing.T) {
	r := newTestRegistry()
	key := Key{Role: "buyer", UserID: 1}
	c := &fakeConn{}
	r.Connect(key, c)

	r.Disconnect(key, c)
	r.Disconnect(key, c)
	r.Disconnect(Key{Role: "seller", UserID: 5}, c)
	require.Equal(t, 0, r.Count(key))
	require.Equal(t, 0, r.Send("buyer", 1, "ping"))
}
