package matrix

import (
	"context"
	"log/slog"
	"slices"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/cereales/pendu/pkg/channel"
)

// joinRooms joins every configured room. A room that cannot be joined is
// logged and skipped.
func (c *Channel) joinRooms(ctx context.Context) {
	for _, room := range c.config.Rooms {
		resp, err := c.client.JoinRoom(ctx, room, nil)
		if err != nil {
			slog.Warn("matrix join failed", "room", room, "error", err)
			continue
		}
		slog.Info("matrix room joined", "room", room, "id", resp.RoomID)
	}
}

// onMember accepts invites for the bot and greets the room.
func (c *Channel) onMember(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != string(c.client.UserID) {
		return
	}
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if !c.canInvite(evt.Sender) {
		slog.Info("matrix invite declined", "room", evt.RoomID, "from", evt.Sender)
		return
	}
	if _, err := c.client.JoinRoomByID(ctx, evt.RoomID); err != nil {
		slog.Warn("matrix join failed", "room", evt.RoomID, "error", err)
		return
	}
	slog.Info("matrix invite accepted", "room", evt.RoomID, "from", evt.Sender)

	if c.config.Greeting == "" {
		return
	}
	if _, err := c.client.SendNotice(ctx, evt.RoomID, c.config.Greeting); err != nil {
		slog.Warn("matrix greeting failed", "room", evt.RoomID, "error", err)
	}
}

func (c *Channel) onMessage(ctx context.Context, evt *event.Event) {
	if !c.playable(evt) {
		return
	}
	content := evt.Content.AsMessage()
	// notices come from bots, including other pendu instances
	if content == nil || content.Body == "" || content.MsgType == event.MsgNotice {
		return
	}

	msg := channel.Message{
		ID:         string(evt.ID),
		Source:     Name,
		SenderID:   string(evt.Sender),
		SenderName: evt.Sender.Localpart(),
		RoomID:     string(evt.RoomID),
		Content:    content.Body,
		Timestamp:  evt.Timestamp,
	}
	if err := c.handler(ctx, msg); err != nil {
		slog.Warn("matrix message not handled", "room", evt.RoomID, "event", evt.ID, "error", err)
	}
}

// playable filters out our own messages, history replayed by the first
// sync and ignored users.
func (c *Channel) playable(evt *event.Event) bool {
	if evt.Sender == c.client.UserID {
		return false
	}
	if evt.Timestamp < c.since.UnixMilli() {
		return false
	}
	return !slices.Contains(c.config.Ignored, string(evt.Sender))
}

func (c *Channel) canInvite(sender id.UserID) bool {
	return len(c.config.Inviters) == 0 || slices.Contains(c.config.Inviters, string(sender))
}
