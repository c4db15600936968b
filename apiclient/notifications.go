package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	path := "/notifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []Notification
	err := c.getJSON(ctx, path, &out)
	return out, err
}

// UnreadCount calls the dedicated count endpoint. Older backends answer
// 404; see notifications.Center for the fallback.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.getJSON(ctx, "/notifications/unread-count", &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.sendJSON(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id)+"/read", true, nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.sendJSON(ctx, http.MethodPut, "/notifications/read-all", true, nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var out []Message
	err := c.getJSON(ctx, "/chats/"+url.PathEscape(chatID)+"/messages", &out)
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, chatID, content string) (*Message, error) {
	var out Message
	body := map[string]string{"content": content}
	if err := c.sendJSON(ctx, http.MethodPost, "/chats/"+url.PathEscape(chatID)+"/messages", true, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
