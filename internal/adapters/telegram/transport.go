// Package telegram adapts the Telegram Bot API to the chat-transport
// ports of the moderation core: the inbound post stream, the moderation
// primitives (delete, ban, notice, capability probe), and image fetch.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mikey/llm-chat-guard/internal/core"
	"go.uber.org/zap"
)

// downloadTimeout caps one photo download end to end.
const downloadTimeout = 30 * time.Second

// Bot is the subset of the Telegram bot API the transport uses,
// extracted as an interface so tests can substitute a fake.
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetSelf() tgbotapi.User
}

// botWrapper adapts *tgbotapi.BotAPI to the Bot interface
type botWrapper struct {
	bot *tgbotapi.BotAPI
}

func (w *botWrapper) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return w.bot.GetUpdatesChan(config)
}

func (w *botWrapper) StopReceivingUpdates() {
	w.bot.StopReceivingUpdates()
}

func (w *botWrapper) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return w.bot.Send(c)
}

func (w *botWrapper) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return w.bot.Request(c)
}

func (w *botWrapper) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	return w.bot.GetChatMember(config)
}

func (w *botWrapper) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	return w.bot.GetFile(config)
}

func (w *botWrapper) GetSelf() tgbotapi.User {
	return w.bot.Self
}

// BotFactory creates Bot instances (allows mocking)
type BotFactory func(token string) (Bot, error)

var defaultBotFactory BotFactory = func(token string) (Bot, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &botWrapper{bot: bot}, nil
}

// PostHandler consumes one inbound post
type PostHandler interface {
	ProcessPost(ctx context.Context, post *core.Post) error
}

// Transport runs the long-polling update loop and implements the
// ChatModerator and ImageSource ports.
type Transport struct {
	token       string
	pollTimeout int
	bot         Bot
	handler     PostHandler
	httpClient  *http.Client
	logger      *zap.Logger
	botFactory  BotFactory
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewTransport creates a Telegram transport. The post handler is
// attached separately with SetHandler: the handler (the moderation
// service) is itself constructed over this transport's moderation ports.
func NewTransport(token string, pollTimeout int, logger *zap.Logger) (*Transport, error) {
	return NewTransportWithFactory(token, pollTimeout, logger, defaultBotFactory)
}

// NewTransportWithFactory creates a Transport with a custom bot factory (for testing)
func NewTransportWithFactory(token string, pollTimeout int, logger *zap.Logger, factory BotFactory) (*Transport, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	return &Transport{
		token:       token,
		pollTimeout: pollTimeout,
		// Downloads run while the per-chat lock is held upstream, so
		// the client must be bounded.
		httpClient:  &http.Client{Timeout: downloadTimeout},
		logger:      logger,
		botFactory:  factory,
	}, nil
}

// SetHandler attaches the consumer of inbound posts. Must be called
// before Start.
func (t *Transport) SetHandler(handler PostHandler) {
	t.handler = handler
}

// SetBot sets the bot (for testing)
func (t *Transport) SetBot(bot Bot) {
	t.bot = bot
}

// Start authorizes the bot and begins consuming updates. Each update is
// handled on its own goroutine; ordering within one conversation is
// enforced downstream by the per-chat serialization in the handler.
func (t *Transport) Start(ctx context.Context) error {
	if t.handler == nil {
		return fmt.Errorf("no post handler attached")
	}
	if t.bot == nil {
		bot, err := t.botFactory(t.token)
		if err != nil {
			return fmt.Errorf("failed to create telegram bot: %w", err)
		}
		t.bot = bot
	}

	t.logger.Info("Telegram bot authorized",
		zap.String("username", t.bot.GetSelf().UserName))

	// The cancellable context stops only the polling select. Handler
	// goroutines keep the caller's context so an evaluation that is
	// mid-flight at shutdown runs to completion, never abandoned.
	pollCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.bot.GetUpdatesChan(u)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || update.Message.From == nil {
					continue
				}
				post := PostFromMessage(update.Message)
				t.wg.Add(1)
				go func() {
					defer t.wg.Done()
					if err := t.handler.ProcessPost(ctx, post); err != nil {
						t.logger.Error("Failed to process post",
							zap.Int64("chat_id", post.ChatID),
							zap.Int("message_id", post.MessageID),
							zap.Error(err))
					}
				}()
			case <-pollCtx.Done():
				return
			}
		}
	}()

	t.logger.Info("Telegram polling started")
	return nil
}

// Stop halts polling and waits for in-flight posts to finish. Started
// evaluations run to completion; nothing is abandoned mid-flight.
func (t *Transport) Stop() error {
	if t.bot != nil {
		t.bot.StopReceivingUpdates()
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.logger.Info("Telegram transport stopped")
	return nil
}

// PostFromMessage maps a Telegram message onto the core post model. The
// image reference is the file id of the largest photo rendition.
func PostFromMessage(msg *tgbotapi.Message) *core.Post {
	displayName := msg.From.UserName
	if displayName == "" {
		displayName = msg.From.FirstName
	}

	imageRef := ""
	if len(msg.Photo) > 0 {
		imageRef = msg.Photo[len(msg.Photo)-1].FileID
	}

	return &core.Post{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.MessageID,
		SenderID:    strconv.FormatInt(msg.From.ID, 10),
		DisplayName: displayName,
		Text:        msg.Text,
		Caption:     msg.Caption,
		ImageRef:    imageRef,
		IsGroup:     msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
		FromBot:     msg.From.IsBot,
	}
}

// Capabilities probes the bot's own membership in a chat. Queried fresh
// per incident; admin rights can change between posts.
func (t *Transport) Capabilities(ctx context.Context, chatID int64) (core.Capabilities, error) {
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: t.bot.GetSelf().ID,
		},
	})
	if err != nil {
		return core.Capabilities{}, fmt.Errorf("failed to query chat member: %w", err)
	}

	return CapabilitiesFromMember(member), nil
}

// CapabilitiesFromMember maps a chat-member record to capability flags
func CapabilitiesFromMember(member tgbotapi.ChatMember) core.Capabilities {
	if member.IsCreator() {
		return core.Capabilities{CanDelete: true, CanRestrict: true}
	}
	if !member.IsAdministrator() {
		return core.Capabilities{}
	}
	return core.Capabilities{
		CanDelete:   member.CanDeleteMessages,
		CanRestrict: member.CanRestrictMembers,
	}
}

// DeleteMessage removes a post from a conversation
func (t *Transport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if _, err := t.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// BanSender removes a user from a conversation
func (t *Transport) BanSender(ctx context.Context, chatID int64, senderID string) error {
	userID, err := strconv.ParseInt(senderID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sender id %q: %w", senderID, err)
	}

	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
	}
	if _, err := t.bot.Request(cfg); err != nil {
		return fmt.Errorf("failed to ban chat member: %w", err)
	}
	return nil
}

// SendNotice posts an operational notice into a conversation
func (t *Transport) SendNotice(ctx context.Context, chatID int64, text string) error {
	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// FetchImage downloads a photo by file id, refusing payloads over
// maxBytes. Telegram reports the size up front; the reader is capped
// anyway in case the report is missing or wrong.
func (t *Transport) FetchImage(ctx context.Context, ref string, maxBytes int64) ([]byte, string, error) {
	file, err := t.bot.GetFile(tgbotapi.FileConfig{FileID: ref})
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve telegram file: %w", err)
	}

	if maxBytes > 0 && int64(file.FileSize) > maxBytes {
		return nil, "", core.ErrImageTooLarge
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(t.token), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download telegram file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download telegram file: unexpected status %d", resp.StatusCode)
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read telegram file body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", core.ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("telegram file is empty")
	}

	mimeType := http.DetectContentType(data)
	if mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}

	return data, mimeType, nil
}
