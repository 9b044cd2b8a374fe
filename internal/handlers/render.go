package handlers

import (
	"mime"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"portrait-studio/internal/portrait"
	"portrait-studio/internal/session"
	"portrait-studio/internal/telegram"
	"portrait-studio/internal/upload"
)

const (
	sendPrompt    = "Send your photo here or attach it as a file"
	sendPhotoHint = "📷 Send a photo of yourself to get started. /help shows what I can do."

	helpText = "📸 Portrait Studio\n\n" +
		"Send a photo (or attach an image file) and I will show it as your selected photo.\n" +
		"Send another one to replace it, or tap Remove photo.\n" +
		"Tap Generate professional photo to get a portrait.\n\n" +
		"Commands:\n" +
		"/start - Show the upload widget\n" +
		"/style <name> - corporate, studio, outdoor or creative\n" +
		"/remove - Remove the selected photo\n" +
		"/generate - Generate from the selected photo\n" +
		"/reset - Start over"
)

// render draws the widget as a fresh message and deletes the previous one.
func (h *Handler) render(chatID int64, s *session.Session) error {
	view := s.Widget.View()
	kb := widgetKeyboard(s.Key.UserID, view, s.Style)

	msgID, err := h.sendView(chatID, view, s.Style, &kb)
	if err != nil {
		return err
	}

	if s.MessageID != 0 && s.MessageID != msgID {
		if err := h.tg.DeleteMessage(chatID, s.MessageID); err != nil {
			h.logger.Debug("delete old widget message failed", "err", err)
		}
	}
	s.MessageID = msgID
	return nil
}

func (h *Handler) sendView(chatID int64, view upload.View, style portrait.Options, kb *telegram.InlineKeyboard) (int, error) {
	if !view.Preview.IsZero() {
		blob, err := h.registry.Open(view.Preview)
		if err == nil {
			id, err := h.tg.SendPhoto(chatID, telegram.Photo{
				Data:    blob.Payload,
				Name:    imageName("photo", blob.MediaType),
				Caption: widgetText(view, style),
			}, kb)
			if err == nil {
				return id, nil
			}
			h.logger.Warn("send preview photo failed", "err", err)
		}
	}
	return h.tg.SendTextWithKeyboard(chatID, widgetText(view, style), kb)
}

func widgetText(view upload.View, style portrait.Options) string {
	var b strings.Builder
	switch view.Kind {
	case upload.KindStaged:
		b.WriteString("✅ " + view.AltText + "\n")
		b.WriteString("Style: " + portrait.StyleName(style.Style) + "\n")
		if style.Custom != "" {
			b.WriteString("Note: " + style.Custom + "\n")
		}
		b.WriteString("\nSend another photo to replace it.")
	default:
		b.WriteString("📷 " + sendPrompt + "\n")
		b.WriteString(view.Hint + "\n")
		b.WriteString("Style: " + portrait.StyleName(style.Style))
	}
	return b.String()
}

func widgetKeyboard(ownerID int64, view upload.View, style portrait.Options) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	var actions []tgbotapi.InlineKeyboardButton
	if view.CanRemove {
		actions = append(actions, tgbotapi.NewInlineKeyboardButtonData("✖ "+upload.RemoveLabel, cb(ownerID, "remove")))
	}
	if view.CanGenerate {
		actions = append(actions, tgbotapi.NewInlineKeyboardButtonData("🎨 "+upload.GenerateLabel, cb(ownerID, "generate")))
	}
	if len(actions) > 0 {
		rows = append(rows, actions)
	}

	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Style: "+portrait.StyleName(style.Style), cb(ownerID, "styles")),
	})
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func styleKeyboard(ownerID int64) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, opt := range portrait.Styles() {
		key := opt.Key
		if key == "" {
			key = "corporate"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(opt.Name, cb(ownerID, "style", key)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func imageName(base, mediaType string) string {
	switch mediaType {
	case "image/jpeg":
		return base + ".jpg"
	case "image/png":
		return base + ".png"
	case "image/webp":
		return base + ".webp"
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		return base + exts[0]
	}
	return base + ".jpg"
}
