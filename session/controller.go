// Package session owns the signed-in user. It persists credentials through a
// credentials.Store, resumes the previous session at startup, and tells the
// rest of the client about authentication changes via an event bus.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/credentials"
	"github.com/jrsteele09/go-jobportal-client/events"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/jrsteele09/go-jobportal-client/internal/metrics"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// API is the part of the backend the controller talks to.
type API interface {
	Login(ctx context.Context, email, password string) (*apiclient.AuthPayload, error)
	Register(ctx context.Context, req apiclient.RegisterRequest) (*apiclient.AuthPayload, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context) (users.Patch, error)
	RefreshToken(ctx context.Context, refreshToken string) (*apiclient.TokenPair, error)
	UpdateProfile(ctx context.Context, update apiclient.ProfileUpdate) (users.Patch, error)
	ForgotPassword(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp string) (string, error)
	ResetPassword(ctx context.Context, req apiclient.ResetPasswordRequest) error
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
}

var _ API = (*apiclient.Client)(nil)

// PushRegistrar schedules device token registration for the session.
type PushRegistrar interface {
	Schedule(ctx context.Context)
	OnForeground(ctx context.Context)
	Cancel()
	Unregister(ctx context.Context)
	// Reset forgets per-session registration state.
	Reset()
}

// Navigator moves the UI back to the login screen after a logout.
type Navigator interface {
	ResetToLogin()
}

type NavigatorFunc func()

func (f NavigatorFunc) ResetToLogin() { f() }

type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

type EventKind int

const (
	EventAuthenticated EventKind = iota + 1
	EventUnauthenticated
	EventUserUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventAuthenticated:
		return "authenticated"
	case EventUnauthenticated:
		return "unauthenticated"
	case EventUserUpdated:
		return "user_updated"
	default:
		return "unknown"
	}
}

// Event describes a change of the signed-in user. User is a copy and is
// nil for EventUnauthenticated.
type Event struct {
	Kind EventKind
	User *users.User
}

// Result is the outcome of a user initiated operation. Error carries a
// message suitable for display when Success is false.
type Result struct {
	Success bool
	Error   string
	Err     error
}

func succeeded() Result {
	return Result{Success: true}
}

func failed(err error) Result {
	if msg, ok := interrors.ValidationMessage(err); ok {
		return Result{Error: msg, Err: err}
	}
	return Result{Error: apiclient.ErrorMessage(err), Err: err}
}

// Deps are the collaborators of a Controller. Push and Navigator are
// optional.
type Deps struct {
	API       API
	Store     credentials.Store
	Push      PushRegistrar
	Navigator Navigator
}

type Controller struct {
	api       API
	store     credentials.Store
	push      PushRegistrar
	navigator Navigator
	metrics   *metrics.Metrics
	nowTime   func() time.Time
	logger    zerolog.Logger

	mu      sync.RWMutex
	user    *users.User
	state   State
	loading bool

	initOnce sync.Once
	changes  *events.Bus[Event]

	// lifetime bounds work that outlives a single call, such as push
	// registration attempts
	lifetime context.Context
	cancel   context.CancelFunc
}

type ControllerOption func(*Controller)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

func WithMetrics(m *metrics.Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

func NewController(deps Deps, options ...ControllerOption) (*Controller, error) {
	if deps.API == nil {
		return nil, errors.New("[NewController] API is required")
	}
	if deps.Store == nil {
		return nil, errors.New("[NewController] Store is required")
	}
	if deps.Push == nil {
		deps.Push = noopPush{}
	}
	if deps.Navigator == nil {
		deps.Navigator = NavigatorFunc(func() {})
	}

	lifetime, cancel := context.WithCancel(context.Background())
	c := &Controller{
		api:       deps.API,
		store:     deps.Store,
		push:      deps.Push,
		navigator: deps.Navigator,
		nowTime:   time.Now,
		logger:    log.With().Str("component", "session").Logger(),
		state:     StateUnknown,
		loading:   true,
		changes:   events.NewBus[Event](),
		lifetime:  lifetime,
		cancel:    cancel,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type noopPush struct{}

func (noopPush) Schedule(context.Context)     {}
func (noopPush) OnForeground(context.Context) {}
func (noopPush) Cancel()                      {}
func (noopPush) Unregister(context.Context)   {}
func (noopPush) Reset()                       {}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsLoading is true until Init has settled the startup session.
func (c *Controller) IsLoading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

func (c *Controller) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user != nil
}

// User returns a copy of the signed-in user, or nil.
func (c *Controller) User() *users.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user.Clone()
}

// Subscribe registers fn for session events and returns a function that
// removes it.
func (c *Controller) Subscribe(fn func(Event)) func() {
	return c.changes.Subscribe(fn)
}

// OnForeground retries push registration when the app becomes active.
func (c *Controller) OnForeground(ctx context.Context) {
	if c.IsAuthenticated() {
		c.push.OnForeground(ctx)
	}
}

// Close stops background work and detaches all subscribers. The store is
// left untouched so the session can be resumed later.
func (c *Controller) Close() {
	c.cancel()
	c.push.Cancel()
	c.changes.Close()
}

func (c *Controller) authenticate(user *users.User) {
	c.mu.Lock()
	c.user = user.Clone()
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.push.Schedule(c.lifetime)
	c.changes.Publish(Event{Kind: EventAuthenticated, User: user.Clone()})
}

// clear forgets the session locally. It never fails: store errors are
// logged.
func (c *Controller) clear(ctx context.Context) {
	c.push.Reset()
	if err := c.store.ClearAll(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear stored credentials")
	}
	c.mu.Lock()
	c.user = nil
	c.state = StateUnauthenticated
	c.loading = false
	c.mu.Unlock()

	c.changes.Publish(Event{Kind: EventUnauthenticated})
	c.navigator.ResetToLogin()
}

func (c *Controller) setLoading(loading bool) {
	c.mu.Lock()
	c.loading = loading
	c.mu.Unlock()
}

// mergeUser applies a server patch to the in-memory user and persists the
// result. It fails with ErrNotAuthenticated if the session ended meanwhile.
func (c *Controller) mergeUser(ctx context.Context, patch users.Patch) (*users.User, error) {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return nil, interrors.ErrNotAuthenticated
	}
	merged := users.Merge(c.user, patch)
	c.user = merged
	c.mu.Unlock()

	if err := c.store.SetUser(ctx, merged); err != nil {
		return nil, errors.Wrap(err, "[Controller.mergeUser] SetUser")
	}
	c.changes.Publish(Event{Kind: EventUserUpdated, User: merged.Clone()})
	return merged.Clone(), nil
}
