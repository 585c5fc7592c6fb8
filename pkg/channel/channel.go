// Package channel defines how the bot talks to chat platforms.
// A channel delivers room messages to a handler and sends replies back.
package channel

import "context"

// Message is an incoming room message from any channel.
type Message struct {
	// ID is the platform message identifier, used in logs.
	ID string

	// Source identifies the channel (e.g., "matrix", "console")
	Source string

	// SenderID is the channel-specific sender identifier
	SenderID string

	// SenderName is a display name when the platform provides one
	SenderName string

	// RoomID is the channel-specific room identifier. One game runs per room.
	RoomID string

	// Content is the message text
	Content string

	// Timestamp is the message timestamp in milliseconds
	Timestamp int64
}

// Response is an outgoing message. Content may contain markdown code
// blocks; channels that cannot render them send the text as is.
type Response struct {
	Content string
	RoomID  string
}

// Sender delivers responses to rooms.
type Sender interface {
	Send(ctx context.Context, resp Response) error
}

// Channel is the interface for a communication channel.
type Channel interface {
	Sender

	// Name returns the channel identifier (e.g., "matrix").
	Name() string

	// Start begins listening for messages. Blocks until ctx is cancelled.
	// Handlers run on the channel's delivery goroutine and must not block
	// for the length of a game.
	Start(ctx context.Context, handler MessageHandler) error

	// Stop gracefully shuts down the channel.
	Stop() error
}

// MessageHandler is called when a message is received from any channel.
type MessageHandler func(ctx context.Context, msg Message) error
