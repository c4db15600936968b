// Package realtime subscribes to per-user and per-chat channels on the
// pub/sub service and forwards well-formed events to callers.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	EventNewMessage   = "new-message"
	EventNotification = "notification"
)

var (
	ErrClosed         = errors.New("realtime notifier closed")
	ErrInvalidChannel = errors.New("realtime channel or event name is invalid")
)

// Unsubscribe detaches a callback. Calling it more than once is harmless.
type Unsubscribe func()

func noop() {}

// ConfigSource supplies the pub/sub key and cluster at runtime.
type ConfigSource interface {
	RealtimeConfig(ctx context.Context) (*apiclient.RealtimeConfig, error)
}

func ChatChannel(chatID string) string {
	return "private-chat-" + chatID
}

func UserChannel(userID string) string {
	return "private-user-" + userID
}

// Subject is the transport subject for an event on a channel.
func Subject(channel, event string) string {
	return channel + "." + event
}

// validToken reports whether s can be used as a single subject token.
// Separators and wildcards would widen the subscription to other channels.
func validToken(s string) bool {
	return s != "" && !strings.ContainsAny(s, ".*> \t\r\n")
}

type NotifierOption func(*Notifier)

func WithDialer(d Dialer) NotifierOption {
	return func(n *Notifier) {
		n.dial = d
	}
}

func WithMetrics(m *metrics.Metrics) NotifierOption {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// Notifier connects lazily on the first subscription. Without a key it is
// inert: subscriptions succeed and nothing is ever delivered.
type Notifier struct {
	cfg     apiclient.RealtimeConfig
	dial    Dialer
	metrics *metrics.Metrics

	mu        sync.Mutex
	transport Transport
	closed    bool
}

func NewNotifier(cfg apiclient.RealtimeConfig, options ...NotifierOption) *Notifier {
	n := &Notifier{
		cfg:  cfg,
		dial: NATSDialer(),
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

// FromAPI builds a notifier from the configuration served by the backend.
// A failed lookup leaves the notifier inert rather than failing the caller.
func FromAPI(ctx context.Context, source ConfigSource, options ...NotifierOption) *Notifier {
	cfg, err := source.RealtimeConfig(ctx)
	if err != nil || cfg == nil {
		log.Warn().Err(err).Msg("realtime configuration unavailable, live updates disabled")
		return NewNotifier(apiclient.RealtimeConfig{}, options...)
	}
	return NewNotifier(*cfg, options...)
}

// Enabled reports whether a service key is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Key != ""
}

func (n *Notifier) connect() (Transport, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrClosed
	}
	if n.transport != nil {
		return n.transport, nil
	}
	t, err := n.dial(n.cfg)
	if err != nil {
		return nil, errors.Wrap(err, "[Notifier.connect] dial")
	}
	n.transport = t
	return t, nil
}

// Subscribe forwards each payload published for event on channel to cb.
// Payloads that are not JSON objects with a non-empty string "id" are
// dropped.
func (n *Notifier) Subscribe(channel, event string, cb func(json.RawMessage)) (Unsubscribe, error) {
	if !n.Enabled() {
		return noop, nil
	}
	if !validToken(channel) || !validToken(event) {
		return noop, errors.Wrapf(ErrInvalidChannel, "[Notifier.Subscribe] %q %q", channel, event)
	}
	t, err := n.connect()
	if err != nil {
		return noop, err
	}

	logger := log.With().Str("component", "realtime").Str("channel", channel).Str("event", event).Logger()
	sub, err := t.Subscribe(Subject(channel, event), func(data []byte) {
		if !hasID(data) {
			logger.Warn().Int("bytes", len(data)).Msg("dropping realtime payload without id")
			n.metrics.RealtimeEvent(event, "dropped")
			return
		}
		n.metrics.RealtimeEvent(event, "delivered")
		cb(json.RawMessage(data))
	})
	if err != nil {
		return noop, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				logger.Debug().Err(err).Msg("unsubscribe failed")
			}
		})
	}, nil
}

func hasID(data []byte) bool {
	var payload struct {
		ID any `json:"id"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}
	id, ok := payload.ID.(string)
	return ok && id != ""
}

// SubscribeToChat delivers new messages posted to a chat.
func (n *Notifier) SubscribeToChat(chatID string, cb func(apiclient.Message)) (Unsubscribe, error) {
	return subscribeTyped(n, ChatChannel(chatID), EventNewMessage, cb)
}

// SubscribeToUser delivers notifications addressed to a user.
func (n *Notifier) SubscribeToUser(userID string, cb func(apiclient.Notification)) (Unsubscribe, error) {
	return subscribeTyped(n, UserChannel(userID), EventNotification, cb)
}

func subscribeTyped[T any](n *Notifier, channel, event string, cb func(T)) (Unsubscribe, error) {
	return n.Subscribe(channel, event, func(raw json.RawMessage) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable realtime payload")
			n.metrics.RealtimeEvent(event, "dropped")
			return
		}
		cb(v)
	})
}

// Close releases the transport. Later subscriptions fail with ErrClosed.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if n.transport == nil {
		return nil
	}
	return n.transport.Close()
}
