package upload

import (
	"fmt"
	"strings"
)

type EventKind uint8

const (
	EventChange EventKind = iota + 1
	EventDragEnter
	EventDragLeave
	EventDragOver
	EventDrop
	EventRemove
	EventGenerate
)

var eventNames = map[EventKind]string{
	EventChange:    "change",
	EventDragEnter: "dragenter",
	EventDragLeave: "dragleave",
	EventDragOver:  "dragover",
	EventDrop:      "drop",
	EventRemove:    "remove",
	EventGenerate:  "generate",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

func ParseEventKind(value string) (EventKind, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for k, name := range eventNames {
		if name == value {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event %q", value)
}

// Event is a raw input from one of the widget's channels. Files is only
// read for change and drop.
type Event struct {
	Kind  EventKind
	Files []Candidate
}

// Outcome reports what a dispatched event did.
type Outcome struct {
	From Kind
	To   Kind

	// Accepted is true when a candidate was staged.
	Accepted bool

	// PreventDefault asks the host to suppress the platform's default
	// handling (navigating to a dragged file).
	PreventDefault bool

	// Commit is set when the generate trigger fired.
	Commit *Staged
}
