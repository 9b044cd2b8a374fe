package upload

import "portrait-studio/internal/handle"

type Kind uint8

const (
	KindEmpty Kind = iota
	KindDragActive
	KindStaged
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindDragActive:
		return "drag_active"
	case KindStaged:
		return "staged"
	default:
		return "unknown"
	}
}

// State is the visible mode of a widget. Only the types in this file
// implement it, so a drag hover can never coexist with a staged image.
type State interface {
	Kind() Kind
	isState()
}

type Empty struct{}

func (Empty) Kind() Kind { return KindEmpty }
func (Empty) isState()   {}

type DragActive struct{}

func (DragActive) Kind() Kind { return KindDragActive }
func (DragActive) isState()   {}

// Staged describes the single accepted image. Handle stays valid until the
// widget releases it on replace, remove or teardown.
type Staged struct {
	Handle    handle.Handle
	FileName  string
	MediaType string
	Size      int
}

func (Staged) Kind() Kind { return KindStaged }
func (Staged) isState()   {}
