package upload

import (
	"io"
	"log/slog"

	"portrait-studio/internal/handle"
)

type Options struct {
	Provider handle.Provider
	Logger   *slog.Logger

	// Accept overrides the picker allow-list. Defaults to AcceptedTypes.
	Accept string
}

// Widget is the single-image upload/preview state machine.
//
// A Widget is not safe for concurrent use: hosts must deliver events one at
// a time, and must call Teardown exactly when the widget stops being shown.
type Widget struct {
	lease  lease
	picker Picker
	state  State
	logger *slog.Logger
	closed bool
}

func New(opts Options) *Widget {
	if opts.Provider == nil {
		panic("upload: nil handle provider")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	accept := opts.Accept
	if accept == "" {
		accept = AcceptedTypes
	}

	return &Widget{
		lease:  lease{provider: opts.Provider},
		picker: NewPicker(accept),
		state:  Empty{},
		logger: logger,
	}
}

func (w *Widget) State() State {
	return w.state
}

func (w *Widget) Closed() bool {
	return w.closed
}

// Dispatch routes one raw input event through the state machine.
func (w *Widget) Dispatch(ev Event) Outcome {
	out := Outcome{From: w.state.Kind()}
	if w.closed {
		out.To = out.From
		return out
	}

	switch ev.Kind {
	case EventChange:
		if c, ok := w.picker.Select(ev.Files); ok {
			out.Accepted = w.Accept(&c)
		}
	case EventDragEnter:
		if _, ok := w.state.(Empty); ok {
			w.transition(DragActive{})
		}
	case EventDragLeave:
		w.clearDrag()
	case EventDragOver:
		out.PreventDefault = true
	case EventDrop:
		out.PreventDefault = true
		w.clearDrag()
		out.Accepted = w.Accept(firstFile(ev.Files))
		if out.Accepted && w.picker.Value() != "" {
			// The picker no longer describes what is staged.
			w.picker.Reset()
		}
	case EventRemove:
		w.Remove()
	case EventGenerate:
		if staged, ok := w.Generate(); ok {
			out.Commit = &staged
		}
	default:
		w.logger.Warn("upload: unknown event", "event", ev.Kind.String())
	}

	out.To = w.state.Kind()
	return out
}

// Accept stages c when it is an image. Anything else is ignored without a
// state change.
func (w *Widget) Accept(c *Candidate) bool {
	if w.closed || c == nil || !IsImage(c.MediaType) {
		return false
	}

	h := w.lease.acquire(c.Payload, c.MediaType)
	w.transition(Staged{
		Handle:    h,
		FileName:  c.Name,
		MediaType: c.MediaType,
		Size:      len(c.Payload),
	})
	return true
}

// Remove releases the staged image and resets the picker selection.
func (w *Widget) Remove() {
	if w.closed {
		return
	}
	w.lease.release()
	w.picker.Reset()
	w.transition(Empty{})
}

// Generate fires the downstream trigger. It is only available while staged.
func (w *Widget) Generate() (Staged, bool) {
	if w.closed {
		return Staged{}, false
	}
	staged, ok := w.state.(Staged)
	return staged, ok
}

// Teardown performs the final release. Calling it again is a no-op.
func (w *Widget) Teardown() {
	if w.closed {
		return
	}
	w.lease.release()
	w.state = Empty{}
	w.closed = true
	w.logger.Debug("upload: teardown")
}

func (w *Widget) clearDrag() {
	if _, ok := w.state.(DragActive); ok {
		w.transition(Empty{})
	}
}

func (w *Widget) transition(next State) {
	prev := w.state.Kind()
	w.state = next
	w.logger.Debug("upload: transition", "from", prev.String(), "to", next.Kind().String())
}
