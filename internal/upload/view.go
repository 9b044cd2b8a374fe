package upload

import "portrait-studio/internal/handle"

const (
	PromptText    = "Drag your photo here or click to select"
	HintText      = "PNG, JPG or WEBP"
	GenerateLabel = "Generate professional photo"
	RemoveLabel   = "Remove photo"
	PreviewAlt    = "Selected photo preview"
)

// View is what a renderer needs to draw the widget.
type View struct {
	Kind     Kind
	Dragging bool

	// Empty and DragActive.
	Prompt string
	Hint   string

	PickerAccept   string
	PickerEnabled  bool
	PickerRevision uint64

	// Staged.
	Preview  handle.Handle
	FileName string
	AltText  string

	CanRemove   bool
	CanGenerate bool
}

// EmptyView is the view of a fresh widget whose picker accepts accept.
func EmptyView(accept string) View {
	if accept == "" {
		accept = AcceptedTypes
	}
	return View{
		Kind:          KindEmpty,
		Prompt:        PromptText,
		Hint:          HintText,
		PickerAccept:  accept,
		PickerEnabled: true,
	}
}

func (w *Widget) View() View {
	v := View{
		Kind:           w.state.Kind(),
		PickerAccept:   w.picker.Accept(),
		PickerRevision: w.picker.Revision(),
	}

	switch st := w.state.(type) {
	case Staged:
		v.Preview = st.Handle
		v.FileName = st.FileName
		v.AltText = st.FileName
		if v.AltText == "" {
			v.AltText = PreviewAlt
		}
		v.CanRemove = true
		v.CanGenerate = true
	case DragActive:
		v.Dragging = true
		v.Prompt = PromptText
		v.Hint = HintText
		v.PickerEnabled = true
	default:
		v.Prompt = PromptText
		v.Hint = HintText
		v.PickerEnabled = !w.closed
	}

	return v
}
