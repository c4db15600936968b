// Package fakebackend is an in-process job portal backend used by tests
// and by the CLI's --fake mode.
package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/users"
	"golang.org/x/crypto/bcrypt"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

type account struct {
	user users.User
	hash string
}

type Backend struct {
	server *httptest.Server
	secret []byte

	mu            sync.Mutex
	accounts      map[string]*account // email -> account
	refresh       map[string]string   // refresh token -> user id
	revoked       map[string]bool     // revoked access tokens
	pushTokens    map[string]map[string]bool
	notifications map[string][]apiclient.Notification
	messages      map[string][]apiclient.Message
	jobs          []apiclient.Job
	applications  map[string][]apiclient.Application
	otps          map[string]string
	failures      map[string]int
	calls         map[string]int

	accessTTL        time.Duration
	rotateRefresh    bool
	omitRoleInMe     bool
	noUnreadEndpoint bool
	realtime         apiclient.RealtimeConfig
}

// New starts the backend on a random local port.
func New() *Backend {
	b := &Backend{
		secret:        []byte(uuid.NewString()),
		accounts:      make(map[string]*account),
		refresh:       make(map[string]string),
		revoked:       make(map[string]bool),
		pushTokens:    make(map[string]map[string]bool),
		notifications: make(map[string][]apiclient.Notification),
		messages:      make(map[string][]apiclient.Message),
		applications:  make(map[string][]apiclient.Application),
		otps:          make(map[string]string),
		failures:      make(map[string]int),
		calls:         make(map[string]int),
		accessTTL:     15 * time.Minute,
		rotateRefresh: true,
	}
	b.server = httptest.NewServer(b.router())
	return b
}

func (b *Backend) URL() string {
	return b.server.URL
}

func (b *Backend) Close() {
	b.server.Close()
}

// AddUser registers an account and returns the stored user.
func (b *Backend) AddUser(u users.User, password string) users.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if !u.Role.Valid() {
		u.Role = users.RoleCandidate
	}
	if u.Status == "" {
		u.Status = users.StatusActive
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[strings.ToLower(u.Email)] = &account{user: u, hash: string(hash)}
	return u
}

// IssueAccessToken signs an access token for userID that expires after ttl.
// A negative ttl yields an already expired token.
func (b *Backend) IssueAccessToken(userID string, ttl time.Duration) string {
	now := NowTimeFunc()
	claims := jwtlib.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (b *Backend) IssueRefreshToken(userID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.issueRefreshLocked(userID)
}

func (b *Backend) issueRefreshLocked(userID string) string {
	rt := strings.ReplaceAll(uuid.NewString(), "-", "")
	b.refresh[rt] = userID
	return rt
}

// RevokeRefreshTokens invalidates every outstanding refresh token.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh = make(map[string]string)
}

func (b *Backend) SetAccessTTL(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accessTTL = d
}

func (b *Backend) SetRotateRefresh(rotate bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rotateRefresh = rotate
}

// OmitRoleInMe makes /auth/me leave out the role field.
func (b *Backend) OmitRoleInMe(omit bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.omitRoleInMe = omit
}

// DisableUnreadEndpoint makes /notifications/unread-count answer 404.
func (b *Backend) DisableUnreadEndpoint(disable bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.noUnreadEndpoint = disable
}

func (b *Backend) SetRealtimeConfig(cfg apiclient.RealtimeConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.realtime = cfg
}

// Fail makes every request to route (e.g. "POST /auth/login") answer with
// status until Fail is called again with status 0.
func (b *Backend) Fail(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, route)
		return
	}
	b.failures[route] = status
}

// Calls returns how many requests route has received.
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

func (b *Backend) PushTokens(userID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.pushTokens[userID]))
	for t := range b.pushTokens[userID] {
		out = append(out, t)
	}
	return out
}

func (b *Backend) AddNotification(userID string, n apiclient.Notification) apiclient.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = NowTimeFunc()
	}
	b.notifications[userID] = append(b.notifications[userID], n)
	return n
}

func (b *Backend) AddJob(j apiclient.Job) apiclient.Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	b.jobs = append(b.jobs, j)
	return j
}

// OTP returns the last one time code issued for email.
func (b *Backend) OTP(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.otps[strings.ToLower(email)]
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}

func routeName(r *http.Request) string {
	tpl := r.URL.Path
	if route := mux.CurrentRoute(r); route != nil {
		if t, err := route.GetPathTemplate(); err == nil {
			tpl = t
		}
	}
	return fmt.Sprintf("%s %s", r.Method, tpl)
}

func (b *Backend) countingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := routeName(r)
		b.mu.Lock()
		b.calls[name]++
		status := b.failures[name]
		b.mu.Unlock()
		if status != 0 {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}
