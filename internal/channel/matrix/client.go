// Package matrix implements the Matrix channel using mautrix-go. The bot
// joins the configured rooms and the rooms it is invited to, and every
// member of those rooms can play.
package matrix

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"github.com/cereales/pendu/pkg/channel"
)

// Name is the channel identifier used as message source.
const Name = "matrix"

// maxLen is the longest message body sent in one event.
const maxLen = 4000

// Config holds Matrix channel configuration.
type Config struct {
	Homeserver string
	UserID     string // localpart, e.g. "pendu"
	Password   string
	ServerName string // e.g. "matrix.example.com"
	DataDir    string

	// Rooms are joined at start, by ID or alias.
	Rooms []string
	// Inviters may invite the bot to new rooms. Empty accepts every invite.
	Inviters []string
	// Ignored users never reach the game, e.g. other bots.
	Ignored []string
	// Greeting is posted once the bot joins a room it was invited to.
	Greeting string
}

// Channel implements channel.Channel for Matrix.
type Channel struct {
	config  Config
	client  *mautrix.Client
	session *session
	handler channel.MessageHandler
	since   time.Time
}

func New(cfg Config) *Channel {
	return &Channel{config: cfg, session: newSession(cfg.DataDir)}
}

func (c *Channel) Name() string { return Name }

// Start logs in, joins the configured rooms and syncs until ctx is done.
func (c *Channel) Start(ctx context.Context, handler channel.MessageHandler) error {
	c.handler = handler
	c.since = time.Now()

	if err := os.MkdirAll(c.config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	userID := id.NewUserID(c.config.UserID, c.config.ServerName)
	client, err := mautrix.NewClient(c.config.Homeserver, userID, "")
	if err != nil {
		return fmt.Errorf("create matrix client: %w", err)
	}
	client.Store = mautrix.NewMemorySyncStore()
	c.client = client

	if err := c.session.login(ctx, client, c.config.UserID, c.config.Password); err != nil {
		return err
	}

	syncer := client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.onMessage)
	syncer.OnEventType(event.StateMember, c.onMember)

	c.joinRooms(ctx)

	for {
		err := client.SyncWithContext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			slog.Warn("matrix sync failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(15 * time.Second):
			}
		}
	}
}

// Send posts a markdown notice. Code blocks keep the gallows aligned.
func (c *Channel) Send(ctx context.Context, resp channel.Response) error {
	roomID := id.RoomID(resp.RoomID)
	chunks := splitMessage(resp.Content, maxLen)
	for i, chunk := range chunks {
		content := format.RenderMarkdown(chunk, true, false)
		content.MsgType = event.MsgNotice
		if _, err := c.client.SendMessageEvent(ctx, roomID, event.EventMessage, &content); err != nil {
			return fmt.Errorf("matrix send to %s: %w", roomID, err)
		}
		if i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
		}
	}
	return nil
}

func (c *Channel) Stop() error {
	if c.client != nil {
		c.client.StopSync()
	}
	return nil
}

// splitMessage cuts s into chunks of at most maxLen bytes, preferring line
// breaks and never splitting a UTF-8 sequence.
func splitMessage(s string, maxLen int) []string {
	var chunks []string
	for len(s) > maxLen {
		cut := strings.LastIndexByte(s[:maxLen], '\n')
		if cut <= 0 {
			cut = maxLen
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		chunks = append(chunks, s[:cut])
		s = strings.TrimPrefix(s[cut:], "\n")
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}
