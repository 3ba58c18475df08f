package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/buger/jsonparser"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solana-sniper/internal/clock"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
)

// errMalformed marks a payload that is not valid JSON or has a malformed logs field.
var errMalformed = errors.New("malformed notification")

// WSEventSource implements EventSource using gorilla/websocket logsSubscribe.
//
// Each session dials, subscribes with a mentions filter for the watched account and
// reads until the transport fails. Any disconnect is followed by a flat
// ReconnectDelay before the next dial. Bad messages are dropped, never fatal.
type WSEventSource struct {
	endpoint string
	account  string
	config   EventSourceConfig

	dialer  *websocket.Dialer
	capture io.Writer
	clock   clock.Clock
	log     logrus.FieldLogger
	metrics *observability.Metrics

	state    atomic.Int32
	attempts atomic.Int64
}

// EventSourceOption configures WSEventSource.
type EventSourceOption func(*WSEventSource)

// WithClock sets the clock used for reconnect delays.
func WithClock(c clock.Clock) EventSourceOption {
	return func(s *WSEventSource) {
		s.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) EventSourceOption {
	return func(s *WSEventSource) {
		s.log = l
	}
}

// WithStreamMetrics sets stream metrics.
func WithStreamMetrics(m *observability.Metrics) EventSourceOption {
	return func(s *WSEventSource) {
		s.metrics = m
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) EventSourceOption {
	return func(s *WSEventSource) {
		s.dialer = d
	}
}

// WithCapture writes every raw text message, one per line, to w.
// The output can be replayed with the replay package.
func WithCapture(w io.Writer) EventSourceOption {
	return func(s *WSEventSource) {
		s.capture = w
	}
}

// NewEventSource creates an event source for account on endpoint.
// Zero fields of config fall back to DefaultEventSourceConfig.
func NewEventSource(endpoint, account string, config EventSourceConfig, opts ...EventSourceOption) *WSEventSource {
	def := DefaultEventSourceConfig()
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = def.ReconnectDelay
	}
	if config.PingInterval <= 0 {
		config.PingInterval = def.PingInterval
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = def.HandshakeTimeout
	}
	if config.Buffer < 0 {
		config.Buffer = def.Buffer
	}

	s := &WSEventSource{
		endpoint: endpoint,
		account:  account,
		config:   config,
		dialer:   &websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
		clock:    clock.Real{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "event_source")
	return s
}

// Compile-time interface check.
var _ EventSource = (*WSEventSource)(nil)

// State returns the current connection state.
func (s *WSEventSource) State() State {
	return State(s.state.Load())
}

// ConnectAttempts returns the number of dials made so far.
func (s *WSEventSource) ConnectAttempts() int64 {
	return s.attempts.Load()
}

func (s *WSEventSource) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.SetStreamState(int(st))
}

// Subscribe starts the connect/read/reconnect loop in a goroutine.
func (s *WSEventSource) Subscribe(ctx context.Context) <-chan domain.LogEvent {
	out := make(chan domain.LogEvent, s.config.Buffer)
	go s.run(ctx, out)
	return out
}

func (s *WSEventSource) run(ctx context.Context, out chan<- domain.LogEvent) {
	defer close(out)
	defer s.setState(StateDisconnected)

	for ctx.Err() == nil {
		err := s.session(ctx, out)
		s.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}

		s.log.WithError(err).WithField("delay", s.config.ReconnectDelay).Warn("stream disconnected, reconnecting")
		s.metrics.RecordReconnect()

		if err := s.clock.Sleep(ctx, s.config.ReconnectDelay); err != nil {
			return
		}
	}
}

// session runs one connection until it fails. It always returns a non-nil error.
func (s *WSEventSource) session(ctx context.Context, out chan<- domain.LogEvent) error {
	s.attempts.Add(1)
	s.setState(StateConnecting)

	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := s.subscribe(conn); err != nil {
		return err
	}
	s.setState(StateSubscribed)
	s.log.WithField("account", s.account).Info("subscribed to logs")

	go s.pingLoop(conn, stop)

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		if msgType != websocket.TextMessage {
			s.log.WithField("type", msgType).Debug("dropping non-text frame")
			s.metrics.RecordEventDropped("non_text")
			continue
		}

		if s.capture != nil {
			if _, err := s.capture.Write(append(message, '\n')); err != nil {
				s.log.WithError(err).Warn("capture write failed, capture disabled")
				s.capture = nil
			}
		}

		event, ok, err := DecodeNotification(message)
		if err != nil {
			s.log.WithError(err).Warn("dropping undecodable message")
			s.metrics.RecordEventDropped("decode")
			continue
		}
		if !ok {
			continue
		}

		s.setState(StateStreaming)
		s.metrics.RecordEventReceived()
		event.ReceivedAt = s.clock.Now()

		select {
		case out <- event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// subscribe writes the logsSubscribe request for the watched account.
func (s *WSEventSource) subscribe(conn *websocket.Conn) error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "logsSubscribe",
		Params: []interface{}{
			map[string][]string{"mentions": {s.account}},
		},
	}

	if err := conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}
	return nil
}

// pingLoop sends periodic ping frames to keep connection alive.
// WriteControl is safe to call concurrently with the reader.
func (s *WSEventSource) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.config.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				// Reader observes the broken connection and triggers reconnect.
				s.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}

// DecodeNotification extracts a LogEvent from a logsNotification payload.
// ok is false for well-formed messages that carry no logs, such as the
// subscription confirmation.
func DecodeNotification(message []byte) (domain.LogEvent, bool, error) {
	if !json.Valid(message) {
		return domain.LogEvent{}, false, errMalformed
	}

	raw, dataType, _, err := jsonparser.Get(message, "params", "result", "value", "logs")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return domain.LogEvent{}, false, nil
	}
	if err != nil {
		return domain.LogEvent{}, false, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if dataType != jsonparser.Array {
		return domain.LogEvent{}, false, fmt.Errorf("%w: logs is %s", errMalformed, dataType)
	}

	logs := make([]string, 0)
	var itemErr error
	_, err = jsonparser.ArrayEach(raw, func(value []byte, vt jsonparser.ValueType, _ int, _ error) {
		if itemErr != nil {
			return
		}
		if vt != jsonparser.String {
			itemErr = fmt.Errorf("%w: log line is %s", errMalformed, vt)
			return
		}
		line, perr := jsonparser.ParseString(value)
		if perr != nil {
			itemErr = fmt.Errorf("%w: %v", errMalformed, perr)
			return
		}
		logs = append(logs, line)
	})
	if err != nil {
		return domain.LogEvent{}, false, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if itemErr != nil {
		return domain.LogEvent{}, false, itemErr
	}

	event := domain.LogEvent{Logs: logs}
	event.Signature, _ = jsonparser.GetString(message, "params", "result", "value", "signature")
	event.Slot, _ = jsonparser.GetInt(message, "params", "result", "context", "slot")
	if _, errType, _, err := jsonparser.Get(message, "params", "result", "value", "err"); err == nil && errType != jsonparser.Null {
		event.Failed = true
	}
	return event, true, nil
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}
