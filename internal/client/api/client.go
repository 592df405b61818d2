// Package api is the REST client for the gateway's chat and notification
// endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

const apiPrefix = "/api/v1"

// Error is a non-2xx response from the gateway.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithToken returns a copy of the client that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.Token = token
	return &cp
}

type ChatPage struct {
	Chats      []models.ChatSummary  `json:"chats"`
	Pagination models.PaginationMeta `json:"pagination"`
}

func (p ChatPage) HasMore() bool {
	return p.Pagination.HasMore()
}

type MessagePage struct {
	Messages []models.Message
	HasMore  bool
}

func (c *Client) ListChats(ctx context.Context, page, limit int) (ChatPage, error) {
	var out ChatPage
	err := c.do(ctx, http.MethodGet, "/chats"+pageQuery(page, limit), nil, &out)
	return out, err
}

// ListMessages fetches one page of a chat's history. Page 1 holds the newest
// messages.
func (c *Client) ListMessages(ctx context.Context, chatID string, page, limit int) (MessagePage, error) {
	var out struct {
		Messages   []models.Message      `json:"messages"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	path := "/chats/" + url.PathEscape(chatID) + "/messages" + pageQuery(page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return MessagePage{}, err
	}
	return MessagePage{Messages: out.Messages, HasMore: out.Pagination.HasMore()}, nil
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, "/notifications", nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

// ClearNotifications deletes every notification of the signed-in user.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/notifications", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+apiPrefix+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &errResp)
		return &Error{Status: resp.StatusCode, Message: errResp.Error}
	}

	if dst == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, dst); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func pageQuery(page, limit int) string {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
