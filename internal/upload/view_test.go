package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestView_Empty(t *testing.T) {
	w, _ := newWidget(t)
	v := w.View()

	assert.Equal(t, KindEmpty, v.Kind)
	assert.Equal(t, PromptText, v.Prompt)
	assert.Equal(t, HintText, v.Hint)
	assert.Equal(t, AcceptedTypes, v.PickerAccept)
	assert.True(t, v.PickerEnabled)
	assert.False(t, v.Dragging)
	assert.False(t, v.CanRemove)
	assert.False(t, v.CanGenerate)
	assert.True(t, v.Preview.IsZero())
}

func TestView_DragActiveMatchesEmptyPlusHover(t *testing.T) {
	w, _ := newWidget(t)
	empty := w.View()

	w.Dispatch(Event{Kind: EventDragEnter})
	v := w.View()

	assert.True(t, v.Dragging)
	v.Dragging = false
	v.Kind = KindEmpty
	assert.Equal(t, empty, v)
}

func TestView_StagedFallsBackToDefaultAlt(t *testing.T) {
	w, _ := newWidget(t)
	c := Candidate{MediaType: "image/webp", Payload: []byte("RIFF")}
	w.Accept(&c)

	v := w.View()
	assert.Equal(t, KindStaged, v.Kind)
	assert.Empty(t, v.FileName)
	assert.Equal(t, PreviewAlt, v.AltText)
	assert.False(t, v.PickerEnabled)
	assert.Empty(t, v.Prompt)
	assert.True(t, v.CanRemove)
	assert.True(t, v.CanGenerate)
}

func TestParseEventKind(t *testing.T) {
	for k, name := range eventNames {
		got, err := ParseEventKind(" " + name + " ")
		assert.NoError(t, err)
		assert.Equal(t, k, got)
		assert.Equal(t, name, k.String())
	}

	_, err := ParseEventKind("click")
	assert.Error(t, err)
}

func TestPicker_ResetBumpsRevision(t *testing.T) {
	p := NewPicker(AcceptedTypes)
	c, ok := p.Select([]Candidate{{Name: "a.png", Fingerprint: "fp-1"}})
	assert.True(t, ok)
	assert.Equal(t, "a.png", c.Name)
	assert.Equal(t, "fp-1", p.Value())

	p.Reset()
	assert.Empty(t, p.Value())
	assert.Equal(t, uint64(1), p.Revision())

	_, ok = p.Select([]Candidate{{Name: "renamed.png", Fingerprint: "fp-1"}})
	assert.True(t, ok)
	_, ok = p.Select([]Candidate{{Name: "other-name.png", Fingerprint: "fp-1"}})
	assert.False(t, ok, "fingerprint decides identity")
}

func TestEmptyView_MatchesFreshWidget(t *testing.T) {
	w := New(Options{Provider: newCountingProvider()})
	assert.Equal(t, w.View(), EmptyView(""))
	assert.Equal(t, "image/png", EmptyView("image/png").PickerAccept)
}
