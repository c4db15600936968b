// Package chat keeps the message list of one open conversation, combining
// the history fetched over HTTP with messages pushed in real time.
package chat

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jrsteele09/go-jobportal-client/apiclient"
	"github.com/jrsteele09/go-jobportal-client/events"
	interrors "github.com/jrsteele09/go-jobportal-client/internal/errors"
	"github.com/jrsteele09/go-jobportal-client/realtime"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type API interface {
	ListMessages(ctx context.Context, chatID string) ([]apiclient.Message, error)
	SendMessage(ctx context.Context, chatID, content string) (*apiclient.Message, error)
}

type Realtime interface {
	SubscribeToChat(chatID string, cb func(apiclient.Message)) (realtime.Unsubscribe, error)
}

// Room holds messages ordered by creation time, each id at most once.
type Room struct {
	chatID string
	api    API

	mu          sync.Mutex
	messages    []apiclient.Message
	seen        map[string]bool
	unsubscribe realtime.Unsubscribe

	incoming *events.Bus[apiclient.Message]
}

// Open subscribes to the chat and loads its history. The subscription is
// made first so nothing sent while the history loads is missed.
func Open(ctx context.Context, api API, rt Realtime, chatID string) (*Room, error) {
	if chatID == "" {
		return nil, interrors.Validation("chat id is required")
	}
	r := &Room{
		chatID:   chatID,
		api:      api,
		seen:     make(map[string]bool),
		incoming: events.NewBus[apiclient.Message](),
	}

	unsubscribe, err := rt.SubscribeToChat(chatID, func(m apiclient.Message) {
		r.add(m)
	})
	if err != nil {
		log.Warn().Err(err).Str("chat", chatID).Msg("live chat updates unavailable")
		unsubscribe = func() {}
	}
	r.unsubscribe = unsubscribe

	history, err := api.ListMessages(ctx, chatID)
	if err != nil {
		unsubscribe()
		return nil, errors.Wrap(err, "[chat.Open] ListMessages")
	}
	for _, m := range history {
		r.add(m)
	}
	return r, nil
}

func (r *Room) ChatID() string {
	return r.chatID
}

// Send posts content and adds the stored message. A live echo of the same
// message is ignored.
func (r *Room) Send(ctx context.Context, content string) (apiclient.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return apiclient.Message{}, interrors.Validation("message cannot be empty")
	}
	m, err := r.api.SendMessage(ctx, r.chatID, content)
	if err != nil {
		return apiclient.Message{}, errors.Wrap(err, "[Room.Send] SendMessage")
	}
	r.add(*m)
	return *m, nil
}

func (r *Room) add(m apiclient.Message) {
	if m.ID == "" || (m.ChatID != "" && m.ChatID != r.chatID) {
		return
	}
	r.mu.Lock()
	if r.seen[m.ID] {
		r.mu.Unlock()
		return
	}
	r.seen[m.ID] = true
	r.messages = append(r.messages, m)
	sort.SliceStable(r.messages, func(i, j int) bool {
		return r.messages[i].CreatedAt.Before(r.messages[j].CreatedAt)
	})
	r.mu.Unlock()

	r.incoming.Publish(m)
}

func (r *Room) Messages() []apiclient.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]apiclient.Message(nil), r.messages...)
}

// Subscribe registers fn for every message added to the room.
func (r *Room) Subscribe(fn func(apiclient.Message)) func() {
	return r.incoming.Subscribe(fn)
}

func (r *Room) Close() {
	r.unsubscribe()
	r.incoming.Close()
}
