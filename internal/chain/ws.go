package chain

import (
	"context"
	"time"

	"solana-sniper/internal/domain"
)

// EventSource yields log events for a watched account.
type EventSource interface {
	// Subscribe starts the stream. The returned channel is closed after ctx is done.
	Subscribe(ctx context.Context) <-chan domain.LogEvent

	// State returns the current connection state.
	State() State
}

// State is the connection state of an event source.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// EventSourceConfig configures WebSocket event source behavior.
type EventSourceConfig struct {
	// ReconnectDelay is the flat wait after every disconnect.
	ReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// HandshakeTimeout bounds the websocket upgrade.
	HandshakeTimeout time.Duration
	// Buffer is the capacity of the event channel.
	Buffer int
}

// DefaultEventSourceConfig returns default event source configuration.
func DefaultEventSourceConfig() EventSourceConfig {
	return EventSourceConfig{
		ReconnectDelay:   5 * time.Second,
		PingInterval:     30 * time.Second,
		WriteTimeout:     10 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		Buffer:           1024,
	}
}
