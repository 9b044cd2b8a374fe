package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portrait-studio/internal/handle"
	"portrait-studio/internal/upload"
)

func newTestStore(t *testing.T, max int, ttl time.Duration) (*Store, *handle.Registry, *[]Key) {
	t.Helper()
	reg := handle.NewRegistry(handle.Options{})
	var closedMu sync.Mutex
	closed := &[]Key{}
	s := NewStore(Options{
		MaxSessions: max,
		IdleTTL:     ttl,
		NewWidget:   func() *upload.Widget { return upload.New(upload.Options{Provider: reg}) },
		OnClose: func(k Key) {
			closedMu.Lock()
			*closed = append(*closed, k)
			closedMu.Unlock()
		},
	})
	return s, reg, closed
}

func stage(t *testing.T, s *Store, key Key, name string) {
	t.Helper()
	s.Update(key, func(sess *Session) {
		c := upload.Candidate{Name: name, MediaType: "image/jpeg", Payload: []byte(name)}
		require.True(t, sess.Widget.Accept(&c))
	})
}

func TestUpdate_ReusesSession(t *testing.T) {
	s, _, _ := newTestStore(t, 10, time.Hour)
	key := Key{ChatID: 1, UserID: 2}

	var first, second *upload.Widget
	s.Update(key, func(sess *Session) {
		first = sess.Widget
		sess.MessageID = 42
	})
	s.Update(key, func(sess *Session) {
		second = sess.Widget
		assert.Equal(t, 42, sess.MessageID)
		assert.Equal(t, key, sess.Key)
	})

	assert.Same(t, first, second)
	assert.Equal(t, 1, s.Len())
}

func TestClose_TearsDownWidget(t *testing.T) {
	s, reg, closed := newTestStore(t, 10, time.Hour)
	key := Key{ChatID: 1, UserID: 1}

	stage(t, s, key, "a.jpg")
	require.Equal(t, 1, reg.Live())

	s.Close(key)
	assert.Equal(t, 0, reg.Live())
	assert.Equal(t, []Key{key}, *closed)

	s.Update(key, func(sess *Session) {
		assert.False(t, sess.Widget.Closed(), "a fresh widget replaces the closed one")
		assert.Equal(t, upload.KindEmpty, sess.Widget.State().Kind())
	})
}

func TestCapacityEvictionReleasesHandles(t *testing.T) {
	s, reg, closed := newTestStore(t, 2, time.Hour)

	stage(t, s, Key{ChatID: 1}, "1.jpg")
	stage(t, s, Key{ChatID: 2}, "2.jpg")
	stage(t, s, Key{ChatID: 3}, "3.jpg")

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 2, reg.Live())
	assert.Equal(t, []Key{{ChatID: 1}}, *closed)
}

func TestShutdown_TearsDownAll(t *testing.T) {
	s, reg, closed := newTestStore(t, 10, time.Hour)
	stage(t, s, Key{ChatID: 1}, "1.jpg")
	stage(t, s, Key{ChatID: 2}, "2.jpg")

	s.Shutdown()

	assert.Equal(t, 0, reg.Live())
	assert.Len(t, *closed, 2)
	assert.Equal(t, 0, s.Len())
}

func TestIdleExpiryReleasesHandle(t *testing.T) {
	s, reg, _ := newTestStore(t, 10, 30*time.Millisecond)
	key := Key{ChatID: 9}
	stage(t, s, key, "idle.jpg")
	require.Equal(t, 1, reg.Live())

	time.Sleep(60 * time.Millisecond)

	// The next touch either finds the entry already reaped or reaps it now.
	s.Update(key, func(sess *Session) {
		assert.Equal(t, upload.KindEmpty, sess.Widget.State().Kind())
	})
	assert.Equal(t, 0, reg.Live())
}

func TestUpdate_ConcurrentCallersAreSerialized(t *testing.T) {
	s, reg, _ := newTestStore(t, 10, time.Hour)
	key := Key{ChatID: 5}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Update(key, func(sess *Session) {
				c := upload.Candidate{Name: "x.jpg", MediaType: "image/jpeg", Payload: []byte{byte(i)}}
				sess.Widget.Accept(&c)
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Live())
}
