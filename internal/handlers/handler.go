package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"portrait-studio/internal/handle"
	"portrait-studio/internal/mediagroup"
	"portrait-studio/internal/metrics"
	"portrait-studio/internal/portrait"
	"portrait-studio/internal/session"
	"portrait-studio/internal/telegram"
	"portrait-studio/internal/upload"
)

const surface = "telegram"

var errTooLarge = errors.New("file too large")

// Messenger is the part of the Telegram client the handler talks to.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb *telegram.InlineKeyboard) (int, error)
	SendPhoto(chatID int64, p telegram.Photo, kb *telegram.InlineKeyboard) (int, error)
	DeleteMessage(chatID int64, messageID int) error
	AnswerCallback(callbackID string, text string, alert bool) error
	SendTyping(chatID int64)
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

type Options struct {
	Telegram  Messenger
	Sessions  *session.Store
	Registry  *handle.Registry
	Generator portrait.Generator
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	MaxUploadBytes int64
}

type Handler struct {
	tg         Messenger
	sessions   *session.Store
	registry   *handle.Registry
	gen        portrait.Generator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
	maxBytes   int64

	generating sync.Map // session.Key -> struct{}
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gen := opts.Generator
	if gen == nil {
		gen = portrait.Unavailable{}
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 20 << 20
	}

	return &Handler{
		tg:       opts.Telegram,
		sessions: opts.Sessions,
		registry: opts.Registry,
		gen:      gen,
		metrics:  opts.Metrics,
		logger:   logger,
		maxBytes: maxBytes,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	if msg.IsCommand() {
		return h.handleCommand(ctx, msg)
	}
	if _, ok := fileFromMessage(msg); ok {
		return h.handleFile(ctx, msg)
	}
	if strings.TrimSpace(msg.Text) != "" {
		return h.tg.SendText(msg.Chat.ID, sendPhotoHint)
	}
	return nil
}

// HandleMediaGroup treats an album as a drop of all of its files at once.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if len(group.Files) == 0 {
		return
	}
	key := session.Key{ChatID: group.ChatID, UserID: group.UserID}

	// The widget only ever looks at the first file of a drop.
	file, err := h.fetch(ctx, group.Files[0])
	if err != nil {
		h.reportFetchError(group.ChatID, err)
		return
	}

	ev := upload.Event{Kind: upload.EventDrop, Files: []upload.Candidate{file}}
	if _, err := h.dispatch(group.ChatID, key, group.Caption, ev); err != nil {
		h.logger.Error("media group dispatch failed", "err", err)
	}
}

func (h *Handler) handleFile(ctx context.Context, msg *telegram.Message) error {
	file, _ := fileFromMessage(msg)
	key := keyOf(msg)

	if msg.MediaGroupID != "" && h.aggregator != nil {
		if h.aggregator.Add(mediagroup.Item{
			ChatID:       msg.Chat.ID,
			UserID:       msg.From.ID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			File:         file,
		}) {
			return nil
		}
	}

	c, err := h.fetch(ctx, file)
	if err != nil {
		h.reportFetchError(msg.Chat.ID, err)
		return nil
	}

	_, err = h.dispatch(msg.Chat.ID, key, msg.Caption, upload.Event{Kind: upload.EventChange, Files: []upload.Candidate{c}})
	return err
}

// fetch turns a Telegram attachment into a widget candidate. Only files that
// declare an image type are downloaded; the rest reach the widget without a
// payload and are ignored there.
func (h *Handler) fetch(ctx context.Context, f mediagroup.File) (upload.Candidate, error) {
	c := upload.Candidate{
		Name:        f.Name,
		MediaType:   f.MimeType,
		Fingerprint: f.UniqueID,
	}
	if !upload.IsImage(f.MimeType) {
		return c, nil
	}
	if int64(f.Size) > h.maxBytes {
		return upload.Candidate{}, errTooLarge
	}

	data, mediaType, err := h.tg.DownloadFile(ctx, f.ID)
	if err != nil {
		if errors.Is(err, telegram.ErrTooLarge) {
			return upload.Candidate{}, errTooLarge
		}
		return upload.Candidate{}, err
	}
	c.Payload = data
	if strings.TrimSpace(c.MediaType) == "" {
		c.MediaType = mediaType
	}
	return c, nil
}

func (h *Handler) reportFetchError(chatID int64, err error) {
	if errors.Is(err, errTooLarge) {
		_ = h.tg.SendText(chatID, "❌ That file is too large. Please send a smaller photo.")
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	h.logger.Error("photo download failed", "err", err)
	_ = h.tg.SendText(chatID, "❌ Could not download the photo. Please try again.")
}

type dispatchResult struct {
	out     upload.Outcome
	request *portrait.Request
}

// dispatch applies one event to the user's widget and redraws the widget
// message when something visible changed.
func (h *Handler) dispatch(chatID int64, key session.Key, caption string, ev upload.Event) (dispatchResult, error) {
	var (
		res       dispatchResult
		renderErr error
	)

	h.sessions.Update(key, func(s *session.Session) {
		if caption = strings.TrimSpace(caption); caption != "" {
			s.Style = portrait.ParseArgs(caption, s.Style)
		}

		res.out = s.Widget.Dispatch(ev)
		h.metrics.ObserveEvent(surface, ev.Kind, res.out)

		if res.out.Commit != nil {
			req, err := h.request(s, *res.out.Commit)
			if err != nil {
				h.logger.Warn("staged photo unavailable", "err", err)
			} else {
				res.request = &req
			}
		}

		if res.out.Accepted || res.out.From != res.out.To {
			renderErr = h.render(chatID, s)
		}
	})

	return res, renderErr
}

func (h *Handler) request(s *session.Session, staged upload.Staged) (portrait.Request, error) {
	blob, err := h.registry.Open(staged.Handle)
	if err != nil {
		return portrait.Request{}, err
	}
	return portrait.Request{
		FileName:  staged.FileName,
		MediaType: staged.MediaType,
		Image:     blob.Payload,
		Options:   s.Style,
	}, nil
}

// generate runs the portrait model for one committed request. At most one
// generation runs per session.
func (h *Handler) generate(ctx context.Context, chatID int64, key session.Key, req portrait.Request) error {
	if _, busy := h.generating.LoadOrStore(key, struct{}{}); busy {
		return h.tg.SendText(chatID, "⏳ A portrait is already being generated.")
	}
	defer h.generating.Delete(key)

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, "🎨 Generating your portrait, this can take a minute…")

	res, err := h.gen.Generate(ctx, req)
	h.metrics.ObserveGeneration(surface, err)
	if err != nil {
		if errors.Is(err, portrait.ErrUnavailable) {
			return h.tg.SendText(chatID, "❌ Portrait generation is not available right now.")
		}
		if errors.Is(err, context.Canceled) {
			return err
		}
		h.logger.Error("portrait generation failed", "err", err)
		return h.tg.SendText(chatID, "❌ Could not generate the portrait. Please try again.")
	}

	caption := "✅ Ready! " + portrait.StyleName(req.Options.Style)
	for i, img := range res.Images {
		p := telegram.Photo{Data: img.Data, Name: imageName("portrait", img.MimeType)}
		if i == 0 {
			p.Caption = caption
		}
		if _, err := h.tg.SendPhoto(chatID, p, nil); err != nil {
			return err
		}
	}
	return nil
}

func keyOf(msg *telegram.Message) session.Key {
	return session.Key{ChatID: msg.Chat.ID, UserID: msg.From.ID}
}

func fileFromMessage(msg *telegram.Message) (mediagroup.File, bool) {
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		return mediagroup.File{
			ID:       largest.FileID,
			UniqueID: largest.FileUniqueID,
			Name:     "photo.jpg",
			MimeType: "image/jpeg",
			Size:     largest.FileSize,
		}, true
	}
	if msg.Document != nil {
		return mediagroup.File{
			ID:       msg.Document.FileID,
			UniqueID: msg.Document.FileUniqueID,
			Name:     msg.Document.FileName,
			MimeType: msg.Document.MimeType,
			Size:     msg.Document.FileSize,
		}, true
	}
	return mediagroup.File{}, false
}
