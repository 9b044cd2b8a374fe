package session

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"portrait-studio/internal/portrait"
	"portrait-studio/internal/upload"
)

type Key struct {
	ChatID int64
	UserID int64
}

// Session is one widget shown to one user, plus the surface state that
// goes with it. Fields are only touched inside Store.Update.
type Session struct {
	Key          Key
	Widget       *upload.Widget
	MessageID    int
	Style        portrait.Options
	LastActivity time.Time

	mu     sync.Mutex
	closed bool
}

type Options struct {
	MaxSessions int
	IdleTTL     time.Duration
	NewWidget   func() *upload.Widget
	OnOpen      func(Key)
	OnClose     func(Key)
}

// Store keeps a bounded set of sessions. Sessions that fall out of the
// cache (capacity, idle expiry, Close, Shutdown) have their widget torn down.
type Store struct {
	mu        sync.Mutex
	cache     *expirable.LRU[Key, *Session]
	newWidget func() *upload.Widget
	onOpen    func(Key)
	onClose   func(Key)
}

func NewStore(opts Options) *Store {
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	idle := opts.IdleTTL
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	if opts.NewWidget == nil {
		panic("session: NewWidget is required")
	}

	s := &Store{
		newWidget: opts.NewWidget,
		onOpen:    opts.OnOpen,
		onClose:   opts.OnClose,
	}
	s.cache = expirable.NewLRU[Key, *Session](maxSessions, s.evicted, idle)
	return s
}

// Update runs fn with exclusive access to the session for key, creating it
// if needed. Events for one session are therefore applied one at a time.
// fn must not call back into the Store.
func (s *Store) Update(key Key, fn func(*Session)) {
	for attempt := 0; attempt < 3; attempt++ {
		sess := s.acquire(key)

		sess.mu.Lock()
		if sess.closed {
			sess.mu.Unlock()
			s.forget(key, sess)
			continue
		}
		sess.LastActivity = time.Now()
		if fn != nil {
			fn(sess)
		}
		sess.mu.Unlock()
		return
	}
}

// Close tears down the session for key, if any.
func (s *Store) Close(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Remove(key)
}

// Shutdown tears down every session.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

func (s *Store) Len() int {
	return s.cache.Len()
}

func (s *Store) acquire(key Key) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.cache.Get(key)
	if !ok {
		// An expired entry may still sit in the cache; removing it runs the
		// eviction callback before the slot is reused.
		s.cache.Remove(key)
		sess = &Session{
			Key:          key,
			Widget:       s.newWidget(),
			LastActivity: time.Now(),
		}
		if s.onOpen != nil {
			s.onOpen(key)
		}
	}
	s.cache.Add(key, sess)
	return sess
}

func (s *Store) forget(key Key, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.cache.Peek(key); ok && cur == sess {
		s.cache.Remove(key)
	}
}

func (s *Store) evicted(key Key, sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.closed {
		return
	}
	sess.Widget.Teardown()
	sess.closed = true
	if s.onClose != nil {
		s.onClose(key)
	}
}
