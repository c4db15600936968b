// Package push registers the device push token with the backend. Device
// tokens are frequently unavailable right after startup, so registration is
// attempted at several fixed delays and again whenever the app returns to
// the foreground. Every attempt is best-effort: failures are logged and
// counted, never returned.
package push

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/jrsteele09/go-jobportal-client/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultDelays are the offsets from Schedule at which attempts run.
var DefaultDelays = []time.Duration{2500 * time.Millisecond, 6 * time.Second, 12 * time.Second}

// API is the subset of the backend client the registrar needs.
type API interface {
	RegisterPushToken(ctx context.Context, pushToken string, platform apiclient.Platform) error
	UnregisterPushToken(ctx context.Context, pushToken string) error
}

// TokenProvider returns the device push token. It returns
// ErrPushTokenUnavailable (or an empty token) when the platform has not
// issued one yet.
type TokenProvider interface {
	DeviceToken(ctx context.Context) (string, apiclient.Platform, error)
}

type TokenProviderFunc func(ctx context.Context) (string, apiclient.Platform, error)

func (f TokenProviderFunc) DeviceToken(ctx context.Context) (string, apiclient.Platform, error) {
	return f(ctx)
}

// StaticToken is a provider for a token known up front, e.g. from config.
type StaticToken struct {
	Token    string
	Platform apiclient.Platform
}

func (s StaticToken) DeviceToken(context.Context) (string, apiclient.Platform, error) {
	if s.Token == "" {
		return "", "", interrors.ErrPushTokenUnavailable
	}
	p := s.Platform
	if p == "" {
		p = apiclient.PlatformOther
	}
	return s.Token, p, nil
}

const (
	outcomeSuccess   = "success"
	outcomeFailed    = "failed"
	outcomeSkipped   = "skipped"
	outcomeDuplicate = "duplicate"
)

type RegistrarOption func(*Registrar)

func WithDelays(delays ...time.Duration) RegistrarOption {
	return func(r *Registrar) {
		r.delays = append([]time.Duration(nil), delays...)
	}
}

func WithMetrics(m *metrics.Metrics) RegistrarOption {
	return func(r *Registrar) {
		r.metrics = m
	}
}

type Registrar struct {
	api     API
	tokens  TokenProvider
	delays  []time.Duration
	metrics *metrics.Metrics

	mu         sync.Mutex
	timers     []*time.Timer
	cancel     context.CancelFunc
	registered string

	// attempts never overlap so the same token is not sent twice
	attemptMu sync.Mutex
}

func NewRegistrar(api API, tokens TokenProvider, options ...RegistrarOption) *Registrar {
	r := &Registrar{
		api:    api,
		tokens: tokens,
		delays: DefaultDelays,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Schedule arms one attempt per configured delay, replacing any attempts
// still pending from a previous call. Attempts stop when ctx is done or
// Cancel is called.
func (r *Registrar) Schedule(ctx context.Context) {
	r.Cancel()

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel = cancel
	for _, d := range r.delays {
		r.timers = append(r.timers, time.AfterFunc(d, func() {
			if runCtx.Err() != nil {
				return
			}
			r.attempt(runCtx)
		}))
	}
	log.Debug().Int("attempts", len(r.delays)).Msg("push registration scheduled")
}

// OnForeground attempts registration immediately.
func (r *Registrar) OnForeground(ctx context.Context) {
	r.attempt(ctx)
}

// Cancel stops pending attempts. It is safe to call at any time.
func (r *Registrar) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.timers {
		t.Stop()
	}
	r.timers = nil
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Reset cancels pending attempts and forgets the registered token without
// contacting the backend. The next session registers the token again.
func (r *Registrar) Reset() {
	r.Cancel()

	r.attemptMu.Lock()
	defer r.attemptMu.Unlock()
	r.setRegistered("")
}

// Unregister cancels pending attempts and removes the token from the
// backend. Failures are logged only.
func (r *Registrar) Unregister(ctx context.Context) {
	r.Cancel()

	r.attemptMu.Lock()
	defer r.attemptMu.Unlock()

	token := r.Registered()
	if token == "" {
		t, _, err := r.tokens.DeviceToken(ctx)
		if err != nil || t == "" {
			return
		}
		token = t
	}
	if err := r.api.UnregisterPushToken(ctx, token); err != nil {
		log.Warn().Err(errors.Wrap(err, "[Registrar.Unregister] UnregisterPushToken")).Msg("push token unregister failed")
	}
	r.setRegistered("")
}

// Registered returns the token last registered successfully.
func (r *Registrar) Registered() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registered
}

func (r *Registrar) setRegistered(token string) {
	r.mu.Lock()
	r.registered = token
	r.mu.Unlock()
}

func (r *Registrar) attempt(ctx context.Context) {
	r.attemptMu.Lock()
	defer r.attemptMu.Unlock()

	token, platform, err := r.tokens.DeviceToken(ctx)
	if err != nil || token == "" {
		if err != nil && !errors.Is(err, interrors.ErrPushTokenUnavailable) {
			log.Debug().Err(err).Msg("push token lookup failed")
		}
		r.metrics.PushAttempt(outcomeSkipped)
		return
	}
	if token == r.Registered() {
		r.metrics.PushAttempt(outcomeDuplicate)
		return
	}

	if err := r.api.RegisterPushToken(ctx, token, platform); err != nil {
		log.Warn().Err(errors.Wrap(err, "[Registrar.attempt] RegisterPushToken")).Msg("push token registration failed")
		r.metrics.PushAttempt(outcomeFailed)
		return
	}
	r.setRegistered(token)
	r.metrics.PushAttempt(outcomeSuccess)
	log.Info().Str("platform", string(platform)).Msg("push token registered")
}
