package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/internal/metrics"
	"github.com/jrsteele09/go-jobportal-client/realtime"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	transport *realtime.MemoryTransport
	metrics   *metrics.Metrics
	notifier  *realtime.Notifier
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		transport: realtime.NewMemoryTransport(),
		metrics:   metrics.New(),
	}
	f.notifier = realtime.NewNotifier(
		apiclient.RealtimeConfig{Key: "key", Cluster: "localhost:4222"},
		realtime.WithDialer(f.transport.Dialer()),
		realtime.WithMetrics(f.metrics),
	)
	t.Cleanup(func() { _ = f.notifier.Close() })
	return f
}

func TestSubscribeWithoutKeyIsInert(t *testing.T) {
	dialled := false
	n := realtime.NewNotifier(apiclient.RealtimeConfig{}, realtime.WithDialer(func(apiclient.RealtimeConfig) (realtime.Transport, error) {
		dialled = true
		return nil, errors.New("should not dial")
	}))

	unsubscribe, err := n.Subscribe("private-user-1", realtime.EventNotification, func(json.RawMessage) {})
	require.NoError(t, err)
	require.NotNil(t, unsubscribe)
	unsubscribe()
	unsubscribe()
	require.False(t, dialled)
	require.False(t, n.Enabled())
}

func TestSubscribeRejectsWildcardChannels(t *testing.T) {
	f := setupTestFixture(t)

	for _, chatID := range []string{"", "a.b", "*", ">", "room 1"} {
		unsubscribe, err := f.notifier.SubscribeToChat(chatID, func(apiclient.Message) {})
		require.ErrorIs(t, err, realtime.ErrInvalidChannel, chatID)
		require.NotNil(t, unsubscribe)
		unsubscribe()
	}
	_, err := f.notifier.Subscribe("private-user-1", "notification.*", func(json.RawMessage) {})
	require.ErrorIs(t, err, realtime.ErrInvalidChannel)
	require.Zero(t, f.transport.Subscribers(realtime.Subject(realtime.ChatChannel("a.b"), realtime.EventNewMessage)))

	_, err = f.notifier.SubscribeToChat("chat-1", func(apiclient.Message) {})
	require.NoError(t, err)
	require.Equal(t, 1, f.transport.Subscribers(realtime.Subject(realtime.ChatChannel("chat-1"), realtime.EventNewMessage)))
}

func TestSubscribeForwardsPayloadsWithID(t *testing.T) {
	f := setupTestFixture(t)

	var got []string
	unsubscribe, err := f.notifier.Subscribe("private-user-1", realtime.EventNotification, func(raw json.RawMessage) {
		got = append(got, string(raw))
	})
	require.NoError(t, err)

	subject := realtime.Subject("private-user-1", realtime.EventNotification)
	require.Equal(t, "private-user-1.notification", subject)

	f.transport.Publish(subject, []byte(`{"id":"n1","title":"hello"}`))
	f.transport.Publish(subject, []byte(`{"title":"no id"}`))
	f.transport.Publish(subject, []byte(`{"id":""}`))
	f.transport.Publish(subject, []byte(`{"id":42}`))
	f.transport.Publish(subject, []byte(`not json`))

	require.Equal(t, []string{`{"id":"n1","title":"hello"}`}, got)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.RealtimeEvents.WithLabelValues("notification", "delivered")))
	require.Equal(t, float64(4), testutil.ToFloat64(f.metrics.RealtimeEvents.WithLabelValues("notification", "dropped")))

	unsubscribe()
	unsubscribe()
	require.Zero(t, f.transport.Subscribers(subject))
	f.transport.Publish(subject, []byte(`{"id":"n2"}`))
	require.Len(t, got, 1)
}

func TestSubscribeToChat(t *testing.T) {
	f := setupTestFixture(t)

	var messages []apiclient.Message
	unsubscribe, err := f.notifier.SubscribeToChat("c1", func(m apiclient.Message) {
		messages = append(messages, m)
	})
	require.NoError(t, err)
	defer unsubscribe()

	f.transport.Publish("private-chat-c1.new-message", []byte(`{"id":"m1","chatId":"c1","senderId":"u2","content":"hi"}`))
	f.transport.Publish("private-chat-c2.new-message", []byte(`{"id":"m2","chatId":"c2"}`))

	require.Len(t, messages, 1)
	require.Equal(t, "hi", messages[0].Content)
	require.Equal(t, "u2", messages[0].SenderID)
}

func TestSubscribeToUser(t *testing.T) {
	f := setupTestFixture(t)

	var notifications []apiclient.Notification
	_, err := f.notifier.SubscribeToUser("u1", func(n apiclient.Notification) {
		notifications = append(notifications, n)
	})
	require.NoError(t, err)

	f.transport.Publish("private-user-u1.notification", []byte(`{"id":"n1","title":"Application viewed","isRead":false}`))
	require.Len(t, notifications, 1)
	require.Equal(t, "Application viewed", notifications[0].Title)
}

func TestDialFailure(t *testing.T) {
	n := realtime.NewNotifier(apiclient.RealtimeConfig{Key: "k"}, realtime.WithDialer(func(apiclient.RealtimeConfig) (realtime.Transport, error) {
		return nil, errors.New("connection refused")
	}))
	unsubscribe, err := n.Subscribe("private-user-1", realtime.EventNotification, func(json.RawMessage) {})
	require.Error(t, err)
	require.NotNil(t, unsubscribe)
}

func TestClosedNotifier(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.notifier.Close())
	require.NoError(t, f.notifier.Close())

	_, err := f.notifier.Subscribe("private-user-1", realtime.EventNotification, func(json.RawMessage) {})
	require.ErrorIs(t, err, realtime.ErrClosed)
}

type staticSource struct {
	cfg *apiclient.RealtimeConfig
	err error
}

func (s staticSource) RealtimeConfig(context.Context) (*apiclient.RealtimeConfig, error) {
	return s.cfg, s.err
}

func TestFromAPI(t *testing.T) {
	n := realtime.FromAPI(context.Background(), staticSource{cfg: &apiclient.RealtimeConfig{Key: "k", Cluster: "c"}})
	require.True(t, n.Enabled())

	n = realtime.FromAPI(context.Background(), staticSource{err: errors.New("boom")})
	require.False(t, n.Enabled())
}

func TestServerURL(t *testing.T) {
	require.Equal(t, "nats://127.0.0.1:4222", realtime.ServerURL(""))
	require.Equal(t, "nats://eu.example.com:4222", realtime.ServerURL("eu.example.com:4222"))
	require.Equal(t, "tls://eu.example.com", realtime.ServerURL("tls://eu.example.com"))
}

func TestDialNATSFailsWithoutServer(t *testing.T) {
	start := time.Now()
	_, err := realtime.DialNATS(apiclient.RealtimeConfig{Key: "k", Cluster: "127.0.0.1:1"})
	require.Error(t, err)
	require.Less(t, time.Since(start), 10*time.Second)
}
