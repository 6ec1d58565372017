// Package slack is a thin authenticated client for the Slack Web API. It
// covers only the methods the tool dispatcher and the registration flow
// need; responses are decoded into the few fields we render.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Error is a Slack API-level failure ({"ok":false,"error":"..."}).
type Error struct {
	Method string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("slack %s: %s", e.Method, e.Reason)
}

// IsScopeError reports whether the failure means the token lacks the scope
// for the attempted method, as opposed to being invalid outright.
func (e *Error) IsScopeError() bool {
	switch e.Reason {
	case "not_allowed_token_type", "missing_scope", "no_permission":
		return true
	}
	return false
}

// Client wraps HTTP access to the Slack Web API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Slack API client. baseURL is normally
// "https://slack.com/api"; tests point it at a local fake.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// call performs one form-encoded POST against a Web API method and decodes
// the response into out, which must embed the ok/error envelope fields.
func (c *Client) call(ctx context.Context, token, method string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &Error{Method: method, Reason: fmt.Sprintf("http_%d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (e apiEnvelope) err(method string) error {
	if e.OK {
		return nil
	}
	reason := e.Error
	if reason == "" {
		reason = "unknown_error"
	}
	return &Error{Method: method, Reason: reason}
}

// AuthTestResponse identifies the token holder.
type AuthTestResponse struct {
	apiEnvelope
	URL    string `json:"url"`
	Team   string `json:"team"`
	User   string `json:"user"`
	TeamID string `json:"team_id"`
	UserID string `json:"user_id"`
}

// AuthTest validates a token against the live platform.
func (c *Client) AuthTest(ctx context.Context, token string) (*AuthTestResponse, error) {
	var resp AuthTestResponse
	if err := c.call(ctx, token, "auth.test", nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("auth.test"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Channel is one conversation from conversations.list.
type Channel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsPrivate  bool   `json:"is_private"`
	NumMembers int    `json:"num_members"`
	Topic      struct {
		Value string `json:"value"`
	} `json:"topic"`
}

// ListChannels returns up to limit channels visible to the token.
func (c *Client) ListChannels(ctx context.Context, token string, limit int) ([]Channel, error) {
	params := url.Values{}
	params.Set("types", "public_channel,private_channel")
	params.Set("exclude_archived", "true")
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		apiEnvelope
		Channels []Channel `json:"channels"`
	}
	if err := c.call(ctx, token, "conversations.list", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("conversations.list"); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// Message is one entry from conversations.history.
type Message struct {
	User string `json:"user"`
	Text string `json:"text"`
	TS   string `json:"ts"`
}

// GetChannelHistory returns the most recent messages of a channel.
func (c *Client) GetChannelHistory(ctx context.Context, token, channelID string, limit int) ([]Message, error) {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		apiEnvelope
		Messages []Message `json:"messages"`
	}
	if err := c.call(ctx, token, "conversations.history", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("conversations.history"); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SearchMatch is one hit from search.messages.
type SearchMatch struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	Channel  struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channel"`
	Permalink string `json:"permalink"`
}

// SearchMessages runs a full-text search. Requires a token with search scope;
// callers handle the scope failure by falling back to history filtering.
func (c *Client) SearchMessages(ctx context.Context, token, query string, count int) ([]SearchMatch, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("count", strconv.Itoa(count))

	var resp struct {
		apiEnvelope
		Messages struct {
			Total   int           `json:"total"`
			Matches []SearchMatch `json:"matches"`
		} `json:"messages"`
	}
	if err := c.call(ctx, token, "search.messages", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("search.messages"); err != nil {
		return nil, err
	}
	return resp.Messages.Matches, nil
}

// PostMessageResponse carries the posted message coordinates.
type PostMessageResponse struct {
	apiEnvelope
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

// PostMessage sends text to a channel as the token's user.
func (c *Client) PostMessage(ctx context.Context, token, channelID, text string) (*PostMessageResponse, error) {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("text", text)

	var resp PostMessageResponse
	if err := c.call(ctx, token, "chat.postMessage", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("chat.postMessage"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// User is one workspace member from users.list.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Deleted  bool   `json:"deleted"`
	IsBot    bool   `json:"is_bot"`
	Profile  struct {
		Email string `json:"email"`
	} `json:"profile"`
}

// ListUsers returns up to limit workspace members.
func (c *Client) ListUsers(ctx context.Context, token string, limit int) ([]User, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var resp struct {
		apiEnvelope
		Members []User `json:"members"`
	}
	if err := c.call(ctx, token, "users.list", params, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("users.list"); err != nil {
		return nil, err
	}
	return resp.Members, nil
}
