package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/deskdev/internal/event"
	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/transcript"
	"github.com/user/deskdev/internal/types"
)

const maxTelegramMessage = 4096

// Gateway is the part of the conversation gateway the bot drives.
type Gateway interface {
	Follow(ctx context.Context, id types.ConversationID, key types.DeliveryKey) error
	Unfollow(id types.ConversationID)
	SendMessage(ctx context.Context, id types.ConversationID, text string) error
	Events(ctx context.Context, id types.ConversationID) ([]event.Event, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Adapter bridges a Telegram chat to followed conversations. Each chat is
// bound to at most one conversation through its delivery key.
type Adapter struct {
	bot           *tgbotapi.BotAPI
	sender        sender
	gateway       Gateway
	conversations types.ConversationStore
}

// New creates a Telegram adapter.
func New(token string, gw Gateway, conversations types.ConversationStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{
		bot:           bot,
		sender:        bot,
		gateway:       gw,
		conversations: conversations,
	}, nil
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// Handler delivers rendered messages to the chat named by a
// "telegram:<chat id>" delivery key.
func (a *Adapter) Handler() func(key types.DeliveryKey, msg render.Message) error {
	return func(key types.DeliveryKey, msg render.Message) error {
		chatID, err := chatIDFromKey(key)
		if err != nil {
			return err
		}
		return a.send(chatID, msg.Text())
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}
	a.say(ctx, msg.Chat.ID, msg.Text)
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! Use /follow <conversation id> to watch a conversation, then send a message to talk to the agent.")

	case "follow":
		if args == "" {
			a.sendResponse(chatID, "Usage: /follow <conversation id>")
			return
		}
		id := types.ConversationID(args)
		if err := a.gateway.Follow(ctx, id, chatKey(chatID)); err != nil {
			slog.Error("follow conversation", "conversation_id", args, "error", err)
			a.sendResponse(chatID, "Could not follow that conversation.")
			return
		}
		a.sendResponse(chatID, fmt.Sprintf("Following %s.", id))

	case "unfollow":
		id, ok := a.bound(ctx, chatID)
		if !ok {
			a.sendResponse(chatID, "Not following any conversation.")
			return
		}
		a.gateway.Unfollow(id)
		a.sendResponse(chatID, fmt.Sprintf("Stopped following %s.", id))

	case "status":
		id, ok := a.bound(ctx, chatID)
		if !ok {
			a.sendResponse(chatID, "Not following any conversation.")
			return
		}
		events, err := a.gateway.Events(ctx, id)
		if err != nil {
			a.sendResponse(chatID, "Error fetching status.")
			return
		}
		state := "unknown"
		if s, ok := transcript.AgentState(events); ok {
			state = string(s)
		}
		a.sendResponse(chatID, fmt.Sprintf("Conversation: %s\nEvents: %d\nAgent: %s", id, len(events), state))

	case "say":
		a.say(ctx, chatID, args)

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /follow, /unfollow, /status, /say")
	}
}

func (a *Adapter) say(ctx context.Context, chatID int64, text string) {
	if text == "" {
		a.sendResponse(chatID, "Usage: /say <message>")
		return
	}
	id, ok := a.bound(ctx, chatID)
	if !ok {
		a.sendResponse(chatID, "Not following any conversation. Use /follow <conversation id> first.")
		return
	}
	if err := a.gateway.SendMessage(ctx, id, text); err != nil {
		slog.Error("send message", "conversation_id", string(id), "error", err)
		a.sendResponse(chatID, "Sorry, the message could not be sent.")
	}
}

// bound returns the most recently updated conversation delivering to chatID.
func (a *Adapter) bound(ctx context.Context, chatID int64) (types.ConversationID, bool) {
	convs, err := a.conversations.List(ctx)
	if err != nil {
		slog.Error("list conversations", "error", err)
		return "", false
	}
	key := chatKey(chatID)
	for _, c := range convs {
		if c.DeliveryKey == key {
			return c.ConversationID, true
		}
	}
	return "", false
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	if err := a.send(chatID, text); err != nil {
		slog.Error("send telegram message", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) send(chatID int64, text string) error {
	for _, part := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = "Markdown"
		if _, err := a.sender.Send(msg); err != nil {
			// Retry without markdown if it fails
			msg.ParseMode = ""
			if _, err := a.sender.Send(msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
		}
	}
	return nil
}

// splitMessage cuts text into parts of at most maxTelegramMessage
// characters. Cuts fall between runes so every part stays valid UTF-8.
func splitMessage(text string) []string {
	if utf8.RuneCountInString(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end, n := 0, 0
		for end < len(text) && n < maxTelegramMessage {
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
			n++
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}

func chatKey(chatID int64) types.DeliveryKey {
	return types.NewDeliveryKey("telegram", strconv.FormatInt(chatID, 10))
}

func chatIDFromKey(key types.DeliveryKey) (int64, error) {
	prefix, rest, ok := strings.Cut(string(key), ":")
	if !ok || prefix != "telegram" {
		return 0, fmt.Errorf("not a telegram delivery key: %s", key)
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse chat id %q: %w", rest, err)
	}
	return id, nil
}
