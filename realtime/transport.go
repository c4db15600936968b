package realtime

import (
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Transport delivers raw payloads published on a subject.
type Transport interface {
	Subscribe(subject string, handler func(data []byte)) (Subscription, error)
	Close() error
}

type Subscription interface {
	Unsubscribe() error
}

// Dialer opens a transport for the runtime configuration.
type Dialer func(cfg apiclient.RealtimeConfig) (Transport, error)

// NATSTransport carries events over a NATS connection.
type NATSTransport struct {
	nc *nats.Conn
}

var _ Transport = (*NATSTransport)(nil)

// DialNATS connects to the cluster named in cfg, authenticating with the
// key as the connection token. A cluster without a scheme is taken as a
// host name.
func DialNATS(cfg apiclient.RealtimeConfig, options ...nats.Option) (*NATSTransport, error) {
	url := ServerURL(cfg.Cluster)
	opts := []nats.Option{
		nats.Name("jobportal-client"),
		nats.Token(cfg.Key),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("realtime disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("realtime reconnected")
		}),
	}
	opts = append(opts, options...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "[DialNATS] nats.Connect")
	}
	return &NATSTransport{nc: nc}, nil
}

// NATSDialer adapts DialNATS to a Dialer.
func NATSDialer(options ...nats.Option) Dialer {
	return func(cfg apiclient.RealtimeConfig) (Transport, error) {
		return DialNATS(cfg, options...)
	}
}

func ServerURL(cluster string) string {
	switch {
	case cluster == "":
		return nats.DefaultURL
	case strings.Contains(cluster, "://"):
		return cluster
	default:
		return "nats://" + cluster
	}
}

func (t *NATSTransport) Subscribe(subject string, handler func(data []byte)) (Subscription, error) {
	sub, err := t.nc.Subscribe(subject, func(m *nats.Msg) {
		handler(m.Data)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "[NATSTransport.Subscribe] %s", subject)
	}
	return sub, nil
}

func (t *NATSTransport) Close() error {
	if err := t.nc.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		t.nc.Close()
		return errors.Wrap(err, "[NATSTransport.Close] Drain")
	}
	return nil
}

// MemoryTransport is an in-process transport. Publish delivers
// synchronously to every handler on the subject.
type MemoryTransport struct {
	mu     sync.Mutex
	subs   map[string]map[*memorySubscription]func([]byte)
	closed bool
}

var _ Transport = (*MemoryTransport)(nil)

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subs: map[string]map[*memorySubscription]func([]byte){}}
}

type memorySubscription struct {
	t       *MemoryTransport
	subject string
}

func (s *memorySubscription) Unsubscribe() error {
	s.t.mu.Lock()
	defer s.t.mu.Unlock()
	delete(s.t.subs[s.subject], s)
	return nil
}

func (t *MemoryTransport) Subscribe(subject string, handler func([]byte)) (Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, nats.ErrConnectionClosed
	}
	if t.subs[subject] == nil {
		t.subs[subject] = map[*memorySubscription]func([]byte){}
	}
	sub := &memorySubscription{t: t, subject: subject}
	t.subs[subject][sub] = handler
	return sub, nil
}

func (t *MemoryTransport) Publish(subject string, data []byte) {
	t.mu.Lock()
	handlers := make([]func([]byte), 0, len(t.subs[subject]))
	for _, h := range t.subs[subject] {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		h(data)
	}
}

// Subscribers reports how many handlers are attached to subject.
func (t *MemoryTransport) Subscribers(subject string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs[subject])
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.subs = map[string]map[*memorySubscription]func([]byte){}
	return nil
}

// Dialer returns a Dialer that always hands out this transport.
func (t *MemoryTransport) Dialer() Dialer {
	return func(apiclient.RealtimeConfig) (Transport, error) {
		return t, nil
	}
}
