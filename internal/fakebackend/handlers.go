package fakebackend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/users"
	"golang.org/x/crypto/bcrypt"
)

type ctxKey struct{}

func (b *Backend) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(loggingMiddleware, b.countingMiddleware)

	r.HandleFunc("/auth/login", b.login).Methods("POST")
	r.HandleFunc("/auth/register", b.register).Methods("POST")
	r.HandleFunc("/auth/refresh-token", b.refreshToken).Methods("POST")
	r.HandleFunc("/auth/forgot-password", b.forgotPassword).Methods("POST")
	r.HandleFunc("/auth/verify-otp", b.verifyOTP).Methods("POST")
	r.HandleFunc("/auth/reset-password", b.resetPassword).Methods("POST")

	authed := r.NewRoute().Subrouter()
	authed.Use(b.requireAuth)
	authed.HandleFunc("/auth/logout", b.logout).Methods("POST")
	authed.HandleFunc("/auth/me", b.me).Methods("GET")
	authed.HandleFunc("/auth/change-password", b.changePassword).Methods("PUT")
	authed.HandleFunc("/users/profile", b.updateProfile).Methods("PUT")
	authed.HandleFunc("/users/cv", b.uploadCV).Methods("POST")
	authed.HandleFunc("/users/push-token", b.registerPush).Methods("POST")
	authed.HandleFunc("/users/push-token", b.unregisterPush).Methods("DELETE")
	authed.HandleFunc("/jobs", b.listJobs).Methods("GET")
	authed.HandleFunc("/jobs/{id}", b.getJob).Methods("GET")
	authed.HandleFunc("/jobs/{id}/apply", b.apply).Methods("POST")
	authed.HandleFunc("/applications/me", b.myApplications).Methods("GET")
	authed.HandleFunc("/notifications", b.listNotifications).Methods("GET")
	authed.HandleFunc("/notifications/unread-count", b.unreadCount).Methods("GET")
	authed.HandleFunc("/notifications/read-all", b.markAllRead).Methods("PUT")
	authed.HandleFunc("/notifications/{id}/read", b.markRead).Methods("PUT")
	authed.HandleFunc("/chats/{id}/messages", b.listMessages).Methods("GET")
	authed.HandleFunc("/chats/{id}/messages", b.sendMessage).Methods("POST")
	authed.HandleFunc("/support", b.support).Methods("POST")
	authed.HandleFunc("/realtime/config", b.realtimeConfig).Methods("GET")
	return r
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := jwtlib.RegisteredClaims{}
		_, err := jwtlib.ParseWithClaims(raw, &claims, func(*jwtlib.Token) (any, error) {
			return b.secret, nil
		}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(NowTimeFunc))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		b.mu.Lock()
		revoked := b.revoked[claims.ID]
		b.mu.Unlock()
		if revoked {
			writeError(w, http.StatusUnauthorized, "Token revoked")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

func claimsFrom(r *http.Request) jwtlib.RegisteredClaims {
	c, _ := r.Context().Value(ctxKey{}).(jwtlib.RegisteredClaims)
	return c
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}

// accountByIDLocked must be called with b.mu held.
func (b *Backend) accountByIDLocked(id string) *account {
	for _, a := range b.accounts {
		if a.user.ID == id {
			return a
		}
	}
	return nil
}

func (b *Backend) authPayloadLocked(u users.User) apiclient.AuthPayload {
	return apiclient.AuthPayload{
		AccessToken:  b.IssueAccessToken(u.ID, b.accessTTL),
		RefreshToken: b.issueRefreshLocked(u.ID),
		User:         &u,
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, Password string }
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.accounts[strings.ToLower(req.Email)]
	if !ok || bcrypt.CompareHashAndPassword([]byte(a.hash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, b.authPayloadLocked(a.user))
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var req apiclient.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !req.Role.SelfRegistrable() {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	b.mu.Lock()
	_, exists := b.accounts[strings.ToLower(req.Email)]
	b.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	u := users.User{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, Role: req.Role}
	if req.Phone != "" {
		u.Phone = &req.Phone
	}
	u = b.AddUser(u, req.Password)

	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusCreated, b.authPayloadLocked(u))
}

func (b *Backend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	userID, ok := b.refresh[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	out := apiclient.TokenPair{AccessToken: b.IssueAccessToken(userID, b.accessTTL)}
	if b.rotateRefresh {
		delete(b.refresh, req.RefreshToken)
		out.RefreshToken = b.issueRefreshLocked(userID)
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decode(r, &req)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.refresh, req.RefreshToken)
	b.revoked[claimsFrom(r).ID] = true
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.accountByIDLocked(claimsFrom(r).Subject)
	if a == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if b.omitRoleInMe {
		u := a.user
		writeJSON(w, http.StatusOK, map[string]any{
			"id": u.ID, "email": u.Email, "firstName": u.FirstName, "lastName": u.LastName, "status": u.Status,
		})
		return
	}
	writeJSON(w, http.StatusOK, a.user)
}

func (b *Backend) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email string }
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	// always succeed so account existence is not revealed
	if _, ok := b.accounts[strings.ToLower(req.Email)]; ok {
		b.otps[strings.ToLower(req.Email)] = fmt.Sprintf("%06d", rand.Intn(1000000))
	}
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct{ Email, OTP string }
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email := strings.ToLower(req.Email)
	if code, ok := b.otps[email]; !ok || code != req.OTP {
		writeError(w, http.StatusBadRequest, "Invalid or expired code")
		return
	}
	resetToken := uuid.NewString()
	b.otps[email] = "reset:" + resetToken
	writeJSON(w, http.StatusOK, map[string]string{"resetToken": resetToken})
}

func (b *Backend) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ResetPasswordRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	email := strings.ToLower(req.Email)
	a, ok := b.accounts[email]
	if !ok || b.otps[email] != "reset:"+req.ResetToken {
		writeError(w, http.StatusBadRequest, "Invalid reset token")
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	a.hash = string(hash)
	delete(b.otps, email)
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) changePassword(w http.ResponseWriter, r *http.Request) {
	var req struct{ CurrentPassword, NewPassword string }
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.accountByIDLocked(claimsFrom(r).Subject)
	if a == nil || bcrypt.CompareHashAndPassword([]byte(a.hash), []byte(req.CurrentPassword)) != nil {
		writeError(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	a.hash = string(hash)
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req apiclient.ProfileUpdate
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.accountByIDLocked(claimsFrom(r).Subject)
	if a == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	merged := users.Merge(&a.user, users.Patch{
		FirstName: req.FirstName, LastName: req.LastName, Phone: req.Phone, ProfileImage: req.ProfileImage,
	})
	a.user = *merged
	writeJSON(w, http.StatusOK, a.user)
}

func (b *Backend) uploadCV(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("cv")
	if err != nil {
		writeError(w, http.StatusBadRequest, "cv file is required")
		return
	}
	defer file.Close()
	_, _ = io.Copy(io.Discard, file)
	writeJSON(w, http.StatusCreated, apiclient.Document{
		ID:         uuid.NewString(),
		FileName:   header.Filename,
		URL:        "/uploads/" + header.Filename,
		UploadedAt: NowTimeFunc(),
	})
}

func (b *Backend) registerPush(w http.ResponseWriter, r *http.Request) {
	var req struct{ PushToken, Platform string }
	if err := decode(r, &req); err != nil || req.PushToken == "" {
		writeError(w, http.StatusBadRequest, "pushToken is required")
		return
	}
	userID := claimsFrom(r).Subject
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pushTokens[userID] == nil {
		b.pushTokens[userID] = make(map[string]bool)
	}
	b.pushTokens[userID][req.PushToken] = true
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) unregisterPush(w http.ResponseWriter, r *http.Request) {
	var req struct{ PushToken string }
	_ = decode(r, &req)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pushTokens[claimsFrom(r).Subject], req.PushToken)
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	matched := make([]apiclient.Job, 0)
	for _, j := range b.jobs {
		if search != "" && !strings.Contains(strings.ToLower(j.Title), search) {
			continue
		}
		if t := q.Get("type"); t != "" && string(j.Type) != t {
			continue
		}
		matched = append(matched, j)
	}
	start := min((page-1)*limit, len(matched))
	end := min(start+limit, len(matched))
	writeJSON(w, http.StatusOK, apiclient.JobPage{Jobs: matched[start:end], Total: len(matched), Page: page, Limit: limit})
}

func (b *Backend) getJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, j := range b.jobs {
		if j.ID == id {
			writeJSON(w, http.StatusOK, j)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Job not found")
}

func (b *Backend) apply(w http.ResponseWriter, r *http.Request) {
	var req struct{ CoverLetter string }
	_ = decode(r, &req)
	userID := claimsFrom(r).Subject
	jobID := mux.Vars(r)["id"]

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.applications[userID] {
		if a.JobID == jobID {
			writeError(w, http.StatusConflict, "You have already applied for this job")
			return
		}
	}
	app := apiclient.Application{
		ID: uuid.NewString(), JobID: jobID, CandidateID: userID, Status: apiclient.ApplicationPending,
		CoverLetter: req.CoverLetter, CreatedAt: NowTimeFunc(),
	}
	b.applications[userID] = append(b.applications[userID], app)
	writeJSON(w, http.StatusCreated, app)
}

func (b *Backend) myApplications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	apps := b.applications[claimsFrom(r).Subject]
	if apps == nil {
		apps = []apiclient.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (b *Backend) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.notifications[claimsFrom(r).Subject]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	if list == nil {
		list = []apiclient.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) unreadCount(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.noUnreadEndpoint {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	count := 0
	for _, n := range b.notifications[claimsFrom(r).Subject] {
		if !n.IsRead {
			count++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (b *Backend) markRead(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	userID := claimsFrom(r).Subject
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications[userID] {
		if b.notifications[userID][i].ID == id {
			b.notifications[userID][i].IsRead = true
			writeJSON(w, http.StatusOK, nil)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Notification not found")
}

func (b *Backend) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID := claimsFrom(r).Subject
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.notifications[userID] {
		b.notifications[userID][i].IsRead = true
	}
	writeJSON(w, http.StatusOK, nil)
}

func (b *Backend) listMessages(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.messages[mux.Vars(r)["id"]]
	if list == nil {
		list = []apiclient.Message{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct{ Content string }
	if err := decode(r, &req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	chatID := mux.Vars(r)["id"]
	msg := apiclient.Message{
		ID: uuid.NewString(), ChatID: chatID, SenderID: claimsFrom(r).Subject, Content: req.Content, CreatedAt: NowTimeFunc(),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[chatID] = append(b.messages[chatID], msg)
	writeJSON(w, http.StatusCreated, msg)
}

func (b *Backend) support(w http.ResponseWriter, r *http.Request) {
	var req apiclient.SupportRequest
	if err := decode(r, &req); err != nil || req.Subject == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "subject and message are required")
		return
	}
	writeJSON(w, http.StatusCreated, nil)
}

func (b *Backend) realtimeConfig(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.realtime)
}
