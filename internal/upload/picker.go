package upload

// Picker models a file input control. It remembers its current selection
// and, like a browser input, reports no change when the same file is chosen
// again. Reset clears the selection so the next pick of that file counts.
type Picker struct {
	accept   string
	value    string
	revision uint64
}

func NewPicker(accept string) Picker {
	return Picker{accept: accept}
}

func (p *Picker) Accept() string {
	return p.accept
}

// Select takes the first file of a selection. An empty selection (the user
// cancelled) or an unchanged one yields no candidate.
func (p *Picker) Select(files []Candidate) (Candidate, bool) {
	f := firstFile(files)
	if f == nil {
		return Candidate{}, false
	}

	key := f.selectionKey()
	if key == p.value {
		return Candidate{}, false
	}
	p.value = key
	return *f, true
}

func (p *Picker) Reset() {
	p.value = ""
	p.revision++
}

func (p *Picker) Value() string {
	return p.value
}

// Revision increases on every Reset; remote renderers clear their native
// input when it moves.
func (p *Picker) Revision() uint64 {
	return p.revision
}
