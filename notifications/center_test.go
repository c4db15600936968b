package notifications_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/credentials/memstore"
	"github.com/jrsteele09/go-jobportal-client/events"
	"github.com/jrsteele09/go-jobportal-client/internal/fakebackend"
	"github.com/jrsteele09/go-jobportal-client/notifications"
	"github.com/jrsteele09/go-jobportal-client/realtime"
	"github.com/jrsteele09/go-jobportal-client/session"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/stretchr/testify/require"
)

// fakeSession stands in for session.Controller.
type fakeSession struct {
	mu   sync.Mutex
	user *users.User
	bus  *events.Bus[session.Event]
}

func (s *fakeSession) Subscribe(fn func(session.Event)) func() { return s.bus.Subscribe(fn) }

func (s *fakeSession) User() *users.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

func (s *fakeSession) signIn(u users.User) {
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	s.bus.Publish(session.Event{Kind: session.EventAuthenticated, User: u.Clone()})
}

func (s *fakeSession) signOut() {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()
	s.bus.Publish(session.Event{Kind: session.EventUnauthenticated})
}

type testFixture struct {
	backend   *fakebackend.Backend
	transport *realtime.MemoryTransport
	store     *memstore.MemStore
	session   *fakeSession
	center    *notifications.Center
	user      users.User
}

func setupTestFixture(t *testing.T, options ...notifications.CenterOption) *testFixture {
	t.Helper()
	backend := fakebackend.New()
	t.Cleanup(backend.Close)
	user := backend.AddUser(users.User{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe"}, "Password1")

	store := memstore.New()
	require.NoError(t, store.SetAccessToken(context.Background(), backend.IssueAccessToken(user.ID, time.Hour)))
	client, err := apiclient.New(backend.URL(), apiclient.StoreTokenSource{Store: store})
	require.NoError(t, err)

	transport := realtime.NewMemoryTransport()
	notifier := realtime.NewNotifier(apiclient.RealtimeConfig{Key: "key"}, realtime.WithDialer(transport.Dialer()))

	options = append([]notifications.CenterOption{notifications.WithPollInterval(0)}, options...)
	center := notifications.NewCenter(client, notifier, options...)
	t.Cleanup(center.Close)

	return &testFixture{
		backend:   backend,
		transport: transport,
		store:     store,
		session:   &fakeSession{bus: events.NewBus[session.Event]()},
		center:    center,
		user:      user,
	}
}

func (f *testFixture) publish(payload string) {
	f.transport.Publish(realtime.Subject(realtime.UserChannel(f.user.ID), realtime.EventNotification), []byte(payload))
}

func TestCenterFollowsSession(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "one"})
	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "two", IsRead: true})

	detach := f.center.Attach(context.Background(), f.session)
	defer detach()
	require.Zero(t, f.center.UnreadCount())

	f.session.signIn(f.user)
	require.Equal(t, 1, f.center.UnreadCount())
	require.Equal(t, 1, f.backend.Calls("GET /notifications/unread-count"))

	f.publish(`{"id":"live-1","title":"New applicant","isRead":false}`)
	require.Equal(t, 2, f.center.UnreadCount())
	require.Equal(t, "live-1", f.center.Items()[0].ID)

	f.session.signOut()
	require.Zero(t, f.center.UnreadCount())
	require.Empty(t, f.center.Items())

	// no longer listening once signed out
	f.publish(`{"id":"live-2"}`)
	require.Zero(t, f.center.UnreadCount())
	require.Zero(t, f.transport.Subscribers(realtime.Subject(realtime.UserChannel(f.user.ID), realtime.EventNotification)))
}

func TestAttachWhileSignedIn(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "one"})
	f.session.user = &f.user

	detach := f.center.Attach(context.Background(), f.session)
	defer detach()
	require.Equal(t, 1, f.center.UnreadCount())
}

func TestDuplicateLiveNotificationsAreIgnored(t *testing.T) {
	f := setupTestFixture(t)
	f.center.Start(context.Background(), f.user.ID)

	f.publish(`{"id":"n1","title":"hello"}`)
	f.publish(`{"id":"n1","title":"hello"}`)
	f.publish(`{"title":"no id"}`)

	require.Equal(t, 1, f.center.UnreadCount())
	require.Len(t, f.center.Items(), 1)
}

// replayRealtime delivers queued notifications while the subscription is
// being set up, as a connected transport may.
type replayRealtime struct {
	pending []apiclient.Notification
}

func (r *replayRealtime) SubscribeToUser(_ string, cb func(apiclient.Notification)) (realtime.Unsubscribe, error) {
	for _, n := range r.pending {
		cb(n)
	}
	return func() {}, nil
}

func TestNotificationDuringSubscribeIsKept(t *testing.T) {
	f := setupTestFixture(t)
	client, err := apiclient.New(f.backend.URL(), apiclient.StoreTokenSource{Store: f.store})
	require.NoError(t, err)
	rt := &replayRealtime{pending: []apiclient.Notification{{ID: "n-early", Title: "Interview"}}}
	center := notifications.NewCenter(client, rt, notifications.WithPollInterval(0))
	t.Cleanup(center.Close)

	center.Start(context.Background(), f.user.ID)
	items := center.Items()
	require.Len(t, items, 1)
	require.Equal(t, "n-early", items[0].ID)
}

func TestUnreadCountFallback(t *testing.T) {
	f := setupTestFixture(t, notifications.WithFallbackLimit(2))
	f.backend.DisableUnreadEndpoint(true)
	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "a"})
	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "b"})
	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "c"})

	f.center.Start(context.Background(), f.user.ID)

	require.Equal(t, 2, f.center.UnreadCount())
	require.Equal(t, 1, f.backend.Calls("GET /notifications"))
}

func TestRefreshError(t *testing.T) {
	f := setupTestFixture(t)
	f.center.Start(context.Background(), f.user.ID)
	f.backend.Fail("GET /notifications/unread-count", http.StatusInternalServerError)

	require.Error(t, f.center.Refresh(context.Background()))
	require.Equal(t, 2, f.backend.Calls("GET /notifications/unread-count"))
}

func TestLoadAndMarkRead(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()
	first := f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "a"})
	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "b"})
	f.center.Start(ctx, f.user.ID)

	items, err := f.center.Load(ctx, 20)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 2, f.center.UnreadCount())

	require.NoError(t, f.center.MarkRead(ctx, first.ID))
	require.Equal(t, 1, f.center.UnreadCount())
	// marking again does not double count
	require.NoError(t, f.center.MarkRead(ctx, first.ID))
	require.Equal(t, 1, f.center.UnreadCount())

	require.Error(t, f.center.MarkRead(ctx, "missing"))

	require.NoError(t, f.center.MarkAllRead(ctx))
	require.Zero(t, f.center.UnreadCount())
	for _, n := range f.center.Items() {
		require.True(t, n.IsRead)
	}

	require.NoError(t, f.center.Refresh(ctx))
	require.Zero(t, f.center.UnreadCount())
}

func TestPolling(t *testing.T) {
	f := setupTestFixture(t, notifications.WithPollInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.center.Start(ctx, f.user.ID)
	require.Zero(t, f.center.UnreadCount())

	f.backend.AddNotification(f.user.ID, apiclient.Notification{Title: "later"})
	require.Eventually(t, func() bool { return f.center.UnreadCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	f := setupTestFixture(t)
	var mu sync.Mutex
	var counts []int
	f.center.Subscribe(func(s notifications.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, s.Unread)
	})

	f.center.Start(context.Background(), f.user.ID)
	f.publish(`{"id":"n1"}`)
	f.center.Stop()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 0}, counts)
}
