// Package notifications keeps the signed-in user's notification list and
// unread badge current. It follows the session: it starts when a user
// signs in and resets when they sign out.
package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/events"
	"github.com/jrsteele09/go-jobportal-client/realtime"
	"github.com/jrsteele09/go-jobportal-client/session"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultPollInterval  = 30 * time.Second
	DefaultFallbackLimit = 100
)

type API interface {
	UnreadCount(ctx context.Context) (int, error)
	ListNotifications(ctx context.Context, limit int) ([]apiclient.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

type Realtime interface {
	SubscribeToUser(userID string, cb func(apiclient.Notification)) (realtime.Unsubscribe, error)
}

// SessionSource is what the center needs from session.Controller.
type SessionSource interface {
	Subscribe(fn func(session.Event)) func()
	User() *users.User
}

var _ SessionSource = (*session.Controller)(nil)

// Snapshot is the state published to subscribers.
type Snapshot struct {
	Unread int
	Items  []apiclient.Notification
}

type CenterOption func(*Center)

// WithPollInterval sets how often the unread count is refetched. Zero
// disables polling.
func WithPollInterval(d time.Duration) CenterOption {
	return func(c *Center) {
		c.pollInterval = d
	}
}

func WithFallbackLimit(n int) CenterOption {
	return func(c *Center) {
		c.fallbackLimit = n
	}
}

type Center struct {
	api           API
	rt            Realtime
	pollInterval  time.Duration
	fallbackLimit int
	logger        zerolog.Logger

	mu          sync.Mutex
	userID      string
	unread      int
	items       []apiclient.Notification
	stopRT      realtime.Unsubscribe
	stopPolling context.CancelFunc

	changes *events.Bus[Snapshot]
}

func NewCenter(api API, rt Realtime, options ...CenterOption) *Center {
	c := &Center{
		api:           api,
		rt:            rt,
		pollInterval:  DefaultPollInterval,
		fallbackLimit: DefaultFallbackLimit,
		logger:        log.With().Str("component", "notifications").Logger(),
		changes:       events.NewBus[Snapshot](),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Attach follows the session until ctx is done or the returned function is
// called. If a user is already signed in the center starts immediately.
func (c *Center) Attach(ctx context.Context, s SessionSource) func() {
	unsubscribe := s.Subscribe(func(e session.Event) {
		switch e.Kind {
		case session.EventAuthenticated:
			if e.User != nil {
				c.Start(ctx, e.User.ID)
			}
		case session.EventUnauthenticated:
			c.Stop()
		case session.EventUserUpdated:
			if e.User != nil && e.User.ID != c.currentUser() {
				c.Start(ctx, e.User.ID)
			}
		}
	})
	if u := s.User(); u != nil {
		c.Start(ctx, u.ID)
	}

	var once sync.Once
	detach := func() {
		once.Do(func() {
			unsubscribe()
			c.Stop()
		})
	}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			detach()
		}()
	}
	return detach
}

// Start begins tracking userID, replacing any previous user.
func (c *Center) Start(ctx context.Context, userID string) {
	c.Stop()

	// userID is set first so events delivered during subscription are kept
	pollCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.userID = userID
	c.stopPolling = cancel
	c.mu.Unlock()

	stopRT, err := c.rt.SubscribeToUser(userID, c.receive)
	if err != nil {
		c.logger.Warn().Err(err).Msg("live notifications unavailable")
		stopRT = func() {}
	}
	c.mu.Lock()
	c.stopRT = stopRT
	c.mu.Unlock()

	if err := c.Refresh(pollCtx); err != nil {
		c.logger.Warn().Err(err).Msg("initial unread count failed")
	}
	if c.pollInterval > 0 {
		go c.poll(pollCtx)
	}
}

// Stop detaches from the current user and clears all state.
func (c *Center) Stop() {
	c.mu.Lock()
	stopRT, stopPolling := c.stopRT, c.stopPolling
	wasActive := c.userID != "" || c.unread != 0 || len(c.items) != 0
	c.userID = ""
	c.unread = 0
	c.items = nil
	c.stopRT = nil
	c.stopPolling = nil
	c.mu.Unlock()

	if stopRT != nil {
		stopRT()
	}
	if stopPolling != nil {
		stopPolling()
	}
	if wasActive {
		c.publish()
	}
}

func (c *Center) poll(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.logger.Debug().Err(err).Msg("unread count poll failed")
			}
		}
	}
}

// Refresh refetches the unread count. Backends without the count endpoint
// answer 404, in which case the most recent notifications are listed and
// the unread ones counted.
func (c *Center) Refresh(ctx context.Context) error {
	count, err := c.api.UnreadCount(ctx)
	if apiclient.IsNotFound(err) {
		var list []apiclient.Notification
		list, err = c.api.ListNotifications(ctx, c.fallbackLimit)
		count = countUnread(list)
	}
	if err != nil {
		return errors.Wrap(err, "[Center.Refresh] unread count")
	}

	c.mu.Lock()
	if c.userID == "" {
		c.mu.Unlock()
		return nil
	}
	c.unread = count
	c.mu.Unlock()
	c.publish()
	return nil
}

// Load fetches the notification list and recounts unread items from it.
func (c *Center) Load(ctx context.Context, limit int) ([]apiclient.Notification, error) {
	list, err := c.api.ListNotifications(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[Center.Load] ListNotifications")
	}
	c.mu.Lock()
	c.items = append([]apiclient.Notification(nil), list...)
	if limit <= 0 || len(list) < limit {
		c.unread = countUnread(list)
	}
	c.mu.Unlock()
	c.publish()
	return append([]apiclient.Notification(nil), list...), nil
}

func (c *Center) MarkRead(ctx context.Context, id string) error {
	if err := c.api.MarkNotificationRead(ctx, id); err != nil {
		return errors.Wrap(err, "[Center.MarkRead] MarkNotificationRead")
	}
	c.mu.Lock()
	for i := range c.items {
		if c.items[i].ID == id && !c.items[i].IsRead {
			c.items[i].IsRead = true
			if c.unread > 0 {
				c.unread--
			}
		}
	}
	c.mu.Unlock()
	c.publish()
	return nil
}

func (c *Center) MarkAllRead(ctx context.Context) error {
	if err := c.api.MarkAllNotificationsRead(ctx); err != nil {
		return errors.Wrap(err, "[Center.MarkAllRead] MarkAllNotificationsRead")
	}
	c.mu.Lock()
	for i := range c.items {
		c.items[i].IsRead = true
	}
	c.unread = 0
	c.mu.Unlock()
	c.publish()
	return nil
}

// receive handles a live notification; duplicates of known ids are ignored.
func (c *Center) receive(n apiclient.Notification) {
	c.mu.Lock()
	if c.userID == "" {
		c.mu.Unlock()
		return
	}
	for _, existing := range c.items {
		if existing.ID == n.ID {
			c.mu.Unlock()
			return
		}
	}
	c.items = append([]apiclient.Notification{n}, c.items...)
	if !n.IsRead {
		c.unread++
	}
	c.mu.Unlock()
	c.publish()
}

func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

func (c *Center) Items() []apiclient.Notification {
	return c.Snapshot().Items
}

func (c *Center) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{Unread: c.unread, Items: append([]apiclient.Notification(nil), c.items...)}
}

func (c *Center) currentUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Center) Subscribe(fn func(Snapshot)) func() {
	return c.changes.Subscribe(fn)
}

func (c *Center) publish() {
	c.changes.Publish(c.Snapshot())
}

// Close stops tracking and detaches subscribers.
func (c *Center) Close() {
	c.Stop()
	c.changes.Close()
}

func countUnread(list []apiclient.Notification) int {
	n := 0
	for _, item := range list {
		if !item.IsRead {
			n++
		}
	}
	return n
}
