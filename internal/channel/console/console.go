// Package console plays in the terminal: lines read from stdin are room
// messages and replies are printed to stdout.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cereales/pendu/pkg/channel"
)

const (
	// Name is the channel identifier.
	Name = "console"
	// Room is the only room of the console.
	Room = "stdin"
)

// Channel implements channel.Channel over a reader and a writer.
type Channel struct {
	in   io.Reader
	user string

	mu  sync.Mutex
	out io.Writer
}

// New creates a console reading in and writing out. Messages are attributed
// to user.
func New(in io.Reader, out io.Writer, user string) *Channel {
	if user == "" {
		user = "player"
	}
	return &Channel{in: in, out: out, user: user}
}

// NewStdio plays on the process terminal as $USER.
func NewStdio() *Channel {
	return New(os.Stdin, os.Stdout, os.Getenv("USER"))
}

func (c *Channel) Name() string { return Name }

// Start reads lines until ctx is cancelled or the input ends.
func (c *Channel) Start(ctx context.Context, handler channel.MessageHandler) error {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- sc.Err()
	}()

	var seq int
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("read console: %w", err)
			}
			slog.Info("console input closed")
			return nil
		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			seq++
			msg := channel.Message{
				ID:         fmt.Sprintf("console-%d", seq),
				Source:     Name,
				SenderID:   c.user,
				SenderName: c.user,
				RoomID:     Room,
				Content:    line,
				Timestamp:  time.Now().UnixMilli(),
			}
			if err := handler(ctx, msg); err != nil {
				slog.Error("message handler error", "id", msg.ID, "error", err)
			}
		}
	}
}

// Send prints the response. Code fences are dropped since the terminal
// already uses a fixed-width font.
func (c *Channel) Send(_ context.Context, resp channel.Response) error {
	text := strings.ReplaceAll(resp.Content, "```\n", "")
	text = strings.ReplaceAll(text, "```", "")
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, strings.TrimRight(text, "\n"))
	return err
}

func (c *Channel) Stop() error { return nil }
