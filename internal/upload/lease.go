package upload

import "portrait-studio/internal/handle"

// lease owns at most one display handle.
type lease struct {
	provider handle.Provider
	current  handle.Handle
}

func (l *lease) acquire(payload []byte, mediaType string) handle.Handle {
	l.release()
	l.current = l.provider.Create(payload, mediaType)
	return l.current
}

func (l *lease) release() {
	if l.current.IsZero() {
		return
	}
	h := l.current
	l.current = ""
	l.provider.Release(h)
}
