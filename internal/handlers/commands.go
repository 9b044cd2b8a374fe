package handlers

import (
	"context"
	"strconv"
	"strings"

	"portrait-studio/internal/portrait"
	"portrait-studio/internal/session"
	"portrait-studio/internal/telegram"
	"portrait-studio/internal/upload"
)

const callbackPrefix = "ps"

func (h *Handler) handleCommand(ctx context.Context, msg *telegram.Message) error {
	chatID := msg.Chat.ID
	key := keyOf(msg)

	switch msg.Command() {
	case "start":
		var err error
		h.sessions.Update(key, func(s *session.Session) {
			if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
				s.Style = portrait.ParseArgs(args, s.Style)
			}
			err = h.render(chatID, s)
		})
		return err
	case "help":
		return h.tg.SendText(chatID, helpText)
	case "remove":
		res, err := h.dispatch(chatID, key, "", upload.Event{Kind: upload.EventRemove})
		if err != nil {
			return err
		}
		if res.out.From == res.out.To {
			return h.tg.SendText(chatID, "No photo is selected.")
		}
		return nil
	case "generate":
		return h.commit(ctx, chatID, key, "")
	case "style":
		args := strings.TrimSpace(msg.CommandArguments())
		if args == "" {
			kb := styleKeyboard(key.UserID)
			_, err := h.tg.SendTextWithKeyboard(chatID, "Choose a portrait style:", &kb)
			return err
		}
		return h.setStyle(chatID, key, func(cur portrait.Options) portrait.Options {
			return portrait.ParseArgs(args, cur)
		})
	case "reset":
		// A fresh widget replaces the old message.
		var old int
		h.sessions.Update(key, func(s *session.Session) { old = s.MessageID })
		h.sessions.Close(key)

		var err error
		h.sessions.Update(key, func(s *session.Session) {
			s.MessageID = old
			err = h.render(chatID, s)
		})
		return err
	default:
		return h.tg.SendText(chatID, "❌ Unknown command. Use /help.")
	}
}

func (h *Handler) handleCallback(ctx context.Context, q *telegram.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, callbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This widget belongs to someone else.", true)
		return nil
	}

	chatID := q.Message.Chat.ID
	key := session.Key{ChatID: chatID, UserID: ownerID}
	action := parts[2]
	args := parts[3:]

	switch action {
	case "remove":
		_ = h.tg.AnswerCallback(q.ID, "Removed", false)
		_, err := h.dispatch(chatID, key, "", upload.Event{Kind: upload.EventRemove})
		return err
	case "generate":
		return h.commit(ctx, chatID, key, q.ID)
	case "styles":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		kb := styleKeyboard(ownerID)
		_, err := h.tg.SendTextWithKeyboard(chatID, "Choose a portrait style:", &kb)
		return err
	case "style":
		if len(args) < 1 {
			return nil
		}
		name := args[0]
		_ = h.tg.AnswerCallback(q.ID, "Style: "+portrait.StyleName(styleKey(name)), false)
		return h.setStyle(chatID, key, func(cur portrait.Options) portrait.Options {
			return portrait.ParseArgs(name, cur)
		})
	default:
		_ = h.tg.AnswerCallback(q.ID, "OK", false)
		return nil
	}
}

// commit fires the widget's generate trigger and, when it yields a staged
// photo, runs the portrait model outside the session lock.
func (h *Handler) commit(ctx context.Context, chatID int64, key session.Key, callbackID string) error {
	res, err := h.dispatch(chatID, key, "", upload.Event{Kind: upload.EventGenerate})
	if err != nil {
		return err
	}

	if res.request == nil {
		if callbackID != "" {
			_ = h.tg.AnswerCallback(callbackID, "Send a photo first.", true)
			return nil
		}
		return h.tg.SendText(chatID, "📷 Send a photo first.")
	}
	if callbackID != "" {
		_ = h.tg.AnswerCallback(callbackID, "Generating…", false)
	}
	return h.generate(ctx, chatID, key, *res.request)
}

func (h *Handler) setStyle(chatID int64, key session.Key, apply func(portrait.Options) portrait.Options) error {
	var err error
	h.sessions.Update(key, func(s *session.Session) {
		s.Style = apply(s.Style)
		err = h.render(chatID, s)
	})
	return err
}

func styleKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "corporate" || name == "default" {
		return ""
	}
	return name
}

func cb(ownerID int64, parts ...string) string {
	return callbackPrefix + ":" + strconv.FormatInt(ownerID, 10) + ":" + strings.Join(parts, ":")
}
