package web

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"portrait-studio/internal/portrait"
	"portrait-studio/internal/upload"
)

const writeTimeout = 10 * time.Second

type clientFile struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
	Data         string `json:"data"`
}

type clientMessage struct {
	Type  string       `json:"type"`
	Files []clientFile `json:"files,omitempty"`
}

type serverMessage struct {
	Type           string   `json:"type"`
	HTML           string   `json:"html,omitempty"`
	Kind           string   `json:"kind,omitempty"`
	Preview        string   `json:"preview,omitempty"`
	PickerRevision uint64   `json:"pickerRevision,omitempty"`
	PreventDefault bool     `json:"preventDefault,omitempty"`
	Images         []string `json:"images,omitempty"`
	Note           string   `json:"note,omitempty"`
	Message        string   `json:"message,omitempty"`
}

// socket hosts one widget for the lifetime of one websocket connection.
// Only the read loop dispatches into the widget.
type socket struct {
	srv    *Server
	conn   *websocket.Conn
	widget *upload.Widget
	logger *slog.Logger
	style  portrait.Options

	writeMu    sync.Mutex
	generating atomic.Bool
	wg         sync.WaitGroup
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	sock := &socket{
		srv:    s,
		conn:   conn,
		widget: upload.New(upload.Options{Provider: s.registry, Logger: s.logger}),
		logger: s.logger.With("remote", r.RemoteAddr),
		style:  portrait.ParseArgs(r.URL.Query().Get("style"), portrait.Options{}),
	}
	sock.run(r.Context())
}

func (c *socket) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)

	c.srv.metrics.WidgetOpened(surface)
	defer func() {
		cancel()
		c.widget.Teardown()
		c.srv.metrics.WidgetClosed(surface)
		c.wg.Wait()
		_ = c.conn.Close()
	}()

	// Server shutdown cancels the request context; unblock the read loop.
	go func() {
		<-ctx.Done()
		_ = c.conn.Close()
	}()

	// base64 inflates the payload by 4/3; leave room for the JSON envelope.
	c.conn.SetReadLimit(c.srv.maxUploadBytes/3*4 + 64<<10)

	if err := c.sendRender(upload.Outcome{}); err != nil {
		c.logger.Warn("initial render failed", "err", err)
		return
	}

	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.srv.readTimeout))

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "err", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("bad client message", "err", err)
			continue
		}

		ev, err := toEvent(msg)
		if err != nil {
			c.logger.Warn("bad client event", "err", err)
			continue
		}

		out := c.widget.Dispatch(ev)
		c.srv.metrics.ObserveEvent(surface, ev.Kind, out)

		if ev.Kind == upload.EventDragOver && out.From == out.To {
			// Nothing visible changed; suppression already happened client side.
			continue
		}
		if err := c.sendRender(out); err != nil {
			c.logger.Warn("render failed", "err", err)
			return
		}
		if out.Commit != nil {
			c.generate(ctx, *out.Commit)
		}
	}
}

func toEvent(msg clientMessage) (upload.Event, error) {
	kind, err := upload.ParseEventKind(msg.Type)
	if err != nil {
		return upload.Event{}, err
	}

	ev := upload.Event{Kind: kind}
	if kind != upload.EventChange && kind != upload.EventDrop {
		return ev, nil
	}

	// The widget only looks at the first file; the rest are never decoded.
	if len(msg.Files) == 0 {
		return ev, nil
	}
	f := msg.Files[0]
	payload, err := base64.StdEncoding.DecodeString(f.Data)
	if err != nil {
		// An unreadable file is the same as no file; drop still has
		// to clear the hover state.
		return ev, nil
	}
	ev.Files = []upload.Candidate{{
		Name:        f.Name,
		MediaType:   f.Type,
		Payload:     payload,
		Fingerprint: f.Name + ":" + strconv.FormatInt(f.LastModified, 10) + ":" + strconv.Itoa(len(payload)),
	}}
	return ev, nil
}

func (c *socket) sendRender(out upload.Outcome) error {
	view := c.widget.View()
	html, err := renderWidget(c.srv.tmpl, view)
	if err != nil {
		return err
	}

	msg := serverMessage{
		Type:           "render",
		HTML:           html,
		Kind:           view.Kind.String(),
		PickerRevision: view.PickerRevision,
		PreventDefault: out.PreventDefault,
	}
	if !view.Preview.IsZero() {
		msg.Preview = blobPath + string(view.Preview)
	}
	return c.write(msg)
}

func (c *socket) generate(ctx context.Context, staged upload.Staged) {
	// Blobs are immutable once created, so holding the payload stays valid
	// after the handle is released.
	blob, err := c.srv.registry.Open(staged.Handle)
	if err != nil {
		c.sendError("The photo is no longer available.")
		return
	}
	if !c.generating.CompareAndSwap(false, true) {
		c.sendError("A portrait is already being generated.")
		return
	}

	req := portrait.Request{
		FileName:  staged.FileName,
		MediaType: staged.MediaType,
		Image:     blob.Payload,
		Options:   c.style,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.generating.Store(false)

		genCtx, cancel := context.WithTimeout(ctx, c.srv.generateTimeout)
		defer cancel()

		res, err := c.srv.generator.Generate(genCtx, req)
		c.srv.metrics.ObserveGeneration(surface, err)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			c.logger.Error("portrait generation failed", "err", err)
			if errors.Is(err, portrait.ErrUnavailable) {
				c.sendError("Portrait generation is not available right now.")
			} else {
				c.sendError("Could not generate the portrait. Please try again.")
			}
			return
		}

		msg := serverMessage{Type: "generated", Note: res.Note}
		for _, img := range res.Images {
			msg.Images = append(msg.Images, fmt.Sprintf("data:%s;base64,%s", img.MimeType, base64.StdEncoding.EncodeToString(img.Data)))
		}
		if err := c.write(msg); err != nil {
			c.logger.Warn("send generated failed", "err", err)
		}
	}()
}

func (c *socket) sendError(text string) {
	if err := c.write(serverMessage{Type: "error", Message: text}); err != nil {
		c.logger.Warn("send error failed", "err", err)
	}
}

func (c *socket) write(msg serverMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}
