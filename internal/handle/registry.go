package handle

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Handle is an opaque, revocable reference to staged image bytes.
// The zero value means "no handle".
type Handle string

func (h Handle) IsZero() bool {
	return h == ""
}

// Provider mints and revokes display handles.
// Release must tolerate the zero handle and handles that were already released.
type Provider interface {
	Create(payload []byte, mediaType string) Handle
	Release(h Handle)
}

var ErrNotFound = errors.New("handle not found")

type Blob struct {
	Payload   []byte
	MediaType string
	CreatedAt time.Time
}

type Options struct {
	// OnChange is called with the number of live handles after every create/release.
	OnChange func(live int)
}

type Registry struct {
	mu       sync.Mutex
	blobs    map[Handle]Blob
	onChange func(int)
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		blobs:    make(map[Handle]Blob),
		onChange: opts.OnChange,
	}
}

func (r *Registry) Create(payload []byte, mediaType string) Handle {
	h := Handle(uuid.NewString())
	data := append([]byte(nil), payload...)

	r.mu.Lock()
	r.blobs[h] = Blob{
		Payload:   data,
		MediaType: strings.TrimSpace(mediaType),
		CreatedAt: time.Now(),
	}
	live := len(r.blobs)
	r.mu.Unlock()

	r.notify(live)
	return h
}

func (r *Registry) Release(h Handle) {
	if h.IsZero() {
		return
	}

	r.mu.Lock()
	_, ok := r.blobs[h]
	delete(r.blobs, h)
	live := len(r.blobs)
	r.mu.Unlock()

	if ok {
		r.notify(live)
	}
}

// Open returns the bytes behind a live handle.
func (r *Registry) Open(h Handle) (Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blobs[h]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return b, nil
}

func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}

func (r *Registry) notify(live int) {
	if r.onChange != nil {
		r.onChange(live)
	}
}
