package chat_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/chat"
	"github.com/jrsteele09/go-jobportal-client/credentials/memstore"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/jrsteele09/go-jobportal-client/internal/fakebackend"
	"github.com/jrsteele09/go-jobportal-client/realtime"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/stretchr/testify/require"
)

const chatID = "chat-1"

type testFixture struct {
	backend   *fakebackend.Backend
	transport *realtime.MemoryTransport
	client    *apiclient.Client
	notifier  *realtime.Notifier
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	backend := fakebackend.New()
	t.Cleanup(backend.Close)
	user := backend.AddUser(users.User{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe"}, "Password1")

	store := memstore.New()
	require.NoError(t, store.SetAccessToken(context.Background(), backend.IssueAccessToken(user.ID, time.Hour)))
	client, err := apiclient.New(backend.URL(), apiclient.StoreTokenSource{Store: store})
	require.NoError(t, err)

	transport := realtime.NewMemoryTransport()
	return &testFixture{
		backend:   backend,
		transport: transport,
		client:    client,
		notifier:  realtime.NewNotifier(apiclient.RealtimeConfig{Key: "key"}, realtime.WithDialer(transport.Dialer())),
	}
}

func (f *testFixture) push(payload string) {
	f.transport.Publish(realtime.Subject(realtime.ChatChannel(chatID), realtime.EventNewMessage), []byte(payload))
}

func TestOpenLoadsHistoryAndFollowsLiveMessages(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	sent, err := f.client.SendMessage(ctx, chatID, "hello")
	require.NoError(t, err)

	room, err := chat.Open(ctx, f.client, f.notifier, chatID)
	require.NoError(t, err)
	defer room.Close()
	require.Len(t, room.Messages(), 1)

	var live []string
	room.Subscribe(func(m apiclient.Message) { live = append(live, m.ID) })

	f.push(`{"id":"m2","chatId":"chat-1","senderId":"u2","content":"hi back","createdAt":"2099-01-01T00:00:00Z"}`)
	// history echoed over the channel is not duplicated
	payload := `{"id":"` + sent.ID + `","chatId":"chat-1","content":"hello"}`
	f.push(payload)
	f.push(`{"content":"missing id"}`)

	msgs := room.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, sent.ID, msgs[0].ID)
	require.Equal(t, "m2", msgs[1].ID)
	require.Equal(t, []string{"m2"}, live)
}

func TestSend(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	room, err := chat.Open(ctx, f.client, f.notifier, chatID)
	require.NoError(t, err)
	defer room.Close()

	_, err = room.Send(ctx, "   ")
	require.ErrorIs(t, err, interrors.ErrValidation)

	m, err := room.Send(ctx, " Is the role still open? ")
	require.NoError(t, err)
	require.Equal(t, "Is the role still open?", m.Content)

	// the server's broadcast of our own message is ignored
	f.push(`{"id":"` + m.ID + `","chatId":"chat-1","content":"Is the role still open?"}`)
	require.Len(t, room.Messages(), 1)
}

func TestSendFailure(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	room, err := chat.Open(ctx, f.client, f.notifier, chatID)
	require.NoError(t, err)
	defer room.Close()

	f.backend.Fail("POST /chats/{id}/messages", http.StatusInternalServerError)
	_, err = room.Send(ctx, "hello")
	require.Error(t, err)
	require.Empty(t, room.Messages())
}

func TestOpenFailure(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Fail("GET /chats/{id}/messages", http.StatusForbidden)

	_, err := chat.Open(context.Background(), f.client, f.notifier, chatID)
	require.Error(t, err)
	require.Zero(t, f.transport.Subscribers(realtime.Subject(realtime.ChatChannel(chatID), realtime.EventNewMessage)))

	_, err = chat.Open(context.Background(), f.client, f.notifier, "")
	require.ErrorIs(t, err, interrors.ErrValidation)
}

func TestCloseStopsLiveUpdates(t *testing.T) {
	f := setupTestFixture(t)
	room, err := chat.Open(context.Background(), f.client, f.notifier, chatID)
	require.NoError(t, err)

	room.Close()
	f.push(`{"id":"late","chatId":"chat-1"}`)
	require.Empty(t, room.Messages())
}

func TestRoomWithoutRealtimeKey(t *testing.T) {
	f := setupTestFixture(t)
	inert := realtime.NewNotifier(apiclient.RealtimeConfig{})
	room, err := chat.Open(context.Background(), f.client, inert, chatID)
	require.NoError(t, err)
	defer room.Close()
	require.Equal(t, chatID, room.ChatID())
}
