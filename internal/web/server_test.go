package web

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portrait-studio/internal/handle"
	"portrait-studio/internal/portrait"
	"portrait-studio/internal/upload"
)

type fakeGenerator struct {
	mu  sync.Mutex
	got portrait.Request
	res portrait.Result
	err error
}

func (f *fakeGenerator) Generate(_ context.Context, req portrait.Request) (portrait.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = req
	return f.res, f.err
}

func (f *fakeGenerator) last() portrait.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.got
}

func newTestServer(t *testing.T, gen portrait.Generator) (*httptest.Server, *handle.Registry) {
	t.Helper()
	reg := handle.NewRegistry(handle.Options{})
	s, err := New(Options{Registry: reg, Generator: gen})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg serverMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func sendMsg(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func pngFile(name string) clientFile {
	return clientFile{
		Name:         name,
		Type:         "image/png",
		LastModified: 1700000000,
		Data:         base64.StdEncoding.EncodeToString([]byte("\x89PNG fake " + name)),
	}
}

func TestSocket_PickRemovePickAgain(t *testing.T) {
	ts, reg := newTestServer(t, nil)
	conn := dial(t, ts, "")

	msg := readMsg(t, conn)
	assert.Equal(t, "render", msg.Type)
	assert.Equal(t, "empty", msg.Kind)
	assert.Contains(t, msg.HTML, upload.PromptText)
	assert.Contains(t, msg.HTML, `accept="image/png,image/jpeg,image/webp"`)
	assert.NotContains(t, msg.HTML, `data-action="generate"`)

	sendMsg(t, conn, clientMessage{Type: "change", Files: []clientFile{pngFile("photo.png")}})
	msg = readMsg(t, conn)
	assert.Equal(t, "staged", msg.Kind)
	require.NotEmpty(t, msg.Preview)
	assert.Contains(t, msg.HTML, "photo.png")
	assert.Contains(t, msg.HTML, `data-action="generate"`)
	assert.Contains(t, msg.HTML, `data-action="remove"`)
	assert.Equal(t, 1, reg.Live())

	resp, err := http.Get(ts.URL + msg.Preview)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("content-type"))
	assert.Equal(t, "\x89PNG fake photo.png", string(body))
	preview := msg.Preview

	sendMsg(t, conn, clientMessage{Type: "remove"})
	msg = readMsg(t, conn)
	assert.Equal(t, "empty", msg.Kind)
	assert.Equal(t, uint64(1), msg.PickerRevision)
	assert.NotContains(t, msg.HTML, `data-action="generate"`)
	assert.Equal(t, 0, reg.Live())

	resp, err = http.Get(ts.URL + preview)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sendMsg(t, conn, clientMessage{Type: "change", Files: []clientFile{pngFile("photo.png")}})
	msg = readMsg(t, conn)
	assert.Equal(t, "staged", msg.Kind)
}

func TestSocket_DragFeedback(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "dragenter"})
	msg := readMsg(t, conn)
	assert.Equal(t, "drag_active", msg.Kind)
	assert.Contains(t, msg.HTML, "dropzone--active")

	// dragover changes nothing visible and produces no render.
	sendMsg(t, conn, clientMessage{Type: "dragover"})
	sendMsg(t, conn, clientMessage{Type: "dragleave"})
	msg = readMsg(t, conn)
	assert.Equal(t, "empty", msg.Kind)
	assert.NotContains(t, msg.HTML, "dropzone--active")
}

func TestSocket_DropNonImageClearsDrag(t *testing.T) {
	ts, reg := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "dragenter"})
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "drop", Files: []clientFile{{
		Name: "notes.txt", Type: "text/plain", Data: base64.StdEncoding.EncodeToString([]byte("hi")),
	}}})
	msg := readMsg(t, conn)
	assert.Equal(t, "empty", msg.Kind)
	assert.True(t, msg.PreventDefault)
	assert.Equal(t, 0, reg.Live())
}

func TestSocket_DropBadPayloadStillClearsDrag(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "dragenter"})
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "drop", Files: []clientFile{{Name: "x.png", Type: "image/png", Data: "!!not base64!!"}}})
	msg := readMsg(t, conn)
	assert.Equal(t, "empty", msg.Kind)
}

func TestSocket_DropIgnoresBadTrailingFile(t *testing.T) {
	ts, reg := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "drop", Files: []clientFile{
		pngFile("first.png"),
		{Name: "x.png", Type: "image/png", Data: "!!not base64!!"},
	}})
	msg := readMsg(t, conn)
	assert.Equal(t, "staged", msg.Kind)
	assert.Contains(t, msg.HTML, "first.png")
	assert.Equal(t, 1, reg.Live())
}

func TestToEvent_DecodesOnlyFirstFile(t *testing.T) {
	ev, err := toEvent(clientMessage{Type: "change", Files: []clientFile{
		pngFile("a.png"),
		{Name: "b.png", Type: "image/png", Data: "%%%"},
	}})
	require.NoError(t, err)
	require.Len(t, ev.Files, 1)
	assert.Equal(t, "a.png", ev.Files[0].Name)
	assert.Equal(t, []byte("\x89PNG fake a.png"), ev.Files[0].Payload)

	ev, err = toEvent(clientMessage{Type: "drop", Files: []clientFile{{Name: "b.png", Type: "image/png", Data: "%%%"}}})
	require.NoError(t, err)
	assert.Equal(t, upload.EventDrop, ev.Kind)
	assert.Empty(t, ev.Files)
}

func TestSocket_UnknownEventIsIgnored(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readMsg(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	sendMsg(t, conn, clientMessage{Type: "explode"})
	sendMsg(t, conn, clientMessage{Type: "dragenter"})

	msg := readMsg(t, conn)
	assert.Equal(t, "drag_active", msg.Kind, "connection survives bad input")
}

func TestSocket_CloseTearsDown(t *testing.T) {
	ts, reg := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "drop", Files: []clientFile{pngFile("me.png")}})
	msg := readMsg(t, conn)
	require.Equal(t, "staged", msg.Kind)
	require.Equal(t, 1, reg.Live())

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return reg.Live() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSocket_Generate(t *testing.T) {
	gen := &fakeGenerator{res: portrait.Result{Images: []portrait.Image{{Data: []byte("out"), MimeType: "image/png"}}}}
	ts, _ := newTestServer(t, gen)
	conn := dial(t, ts, "?style=studio")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "generate"})
	msg := readMsg(t, conn)
	assert.Equal(t, "render", msg.Type, "generate while empty only re-renders")

	sendMsg(t, conn, clientMessage{Type: "change", Files: []clientFile{pngFile("me.png")}})
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "generate"})
	msg = readMsg(t, conn)
	assert.Equal(t, "render", msg.Type)
	assert.Equal(t, "staged", msg.Kind)

	msg = readMsg(t, conn)
	require.Equal(t, "generated", msg.Type)
	require.Len(t, msg.Images, 1)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("out")), msg.Images[0])

	got := gen.last()
	assert.Equal(t, "me.png", got.FileName)
	assert.Equal(t, "image/png", got.MediaType)
	assert.Equal(t, "studio", got.Options.Style)
	assert.Equal(t, []byte("\x89PNG fake me.png"), got.Image)
}

func TestSocket_GenerateUnavailable(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "change", Files: []clientFile{pngFile("me.png")}})
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "generate"})
	readMsg(t, conn)

	msg := readMsg(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "not available")
}

func TestSocket_GenerateFailure(t *testing.T) {
	ts, _ := newTestServer(t, &fakeGenerator{err: errors.New("model down")})
	conn := dial(t, ts, "")
	readMsg(t, conn)

	sendMsg(t, conn, clientMessage{Type: "change", Files: []clientFile{pngFile("me.png")}})
	readMsg(t, conn)
	sendMsg(t, conn, clientMessage{Type: "generate"})
	readMsg(t, conn)

	msg := readMsg(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "Could not generate")
}

func TestIndexAndStatic(t *testing.T) {
	ts, reg := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/?style=outdoor")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Upload your photo")
	assert.Contains(t, string(body), "style=outdoor")
	assert.Contains(t, string(body), upload.HintText)
	assert.Equal(t, 0, reg.Live())

	resp, err = http.Get(ts.URL + "/static/app.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestBlob_SVGIsSandboxed(t *testing.T) {
	ts, reg := newTestServer(t, nil)
	h := reg.Create([]byte("<svg/>"), "image/svg+xml")

	resp, err := http.Get(ts.URL + blobPath + string(h))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "image/svg+xml", resp.Header.Get("content-type"))
	assert.Contains(t, resp.Header.Get("content-security-policy"), "sandbox")
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
