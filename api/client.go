// Package api wraps the Twitch Helix endpoints needed for live-stream
// monitoring: user lookup and stream info, authenticated with an app access
// token.
package api

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

const defaultBaseURL = "https://api.twitch.tv/helix"

// User is the subset of a Helix user record the notifier needs.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

// StreamSnapshot is the result of one stream query. Produced fresh every
// poll and never persisted.
type StreamSnapshot struct {
	LiveNow      bool
	Title        string
	GameName     string
	ViewerCount  int
	ThumbnailURL string // template with {width}/{height} placeholders
	StartedAt    time.Time
}

// Thumbnail substitutes the size placeholders in the thumbnail template.
func (s *StreamSnapshot) Thumbnail(width, height int) string {
	if s.ThumbnailURL == "" {
		return ""
	}
	u := strings.ReplaceAll(s.ThumbnailURL, "{width}", strconv.Itoa(width))
	return strings.ReplaceAll(u, "{height}", strconv.Itoa(height))
}

// Client talks to the Helix API. BaseURL is overridable for tests.
type Client struct {
	ClientID    string
	TokenSource *TokenSource
	BaseURL     string
	HTTPClient  *http.Client
}

func NewClient(clientID, clientSecret string, timeout time.Duration) *Client {
	hc := &http.Client{Timeout: timeout}
	return &Client{
		ClientID: clientID,
		TokenSource: &TokenSource{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			HTTPClient:   hc,
		},
		BaseURL:    defaultBaseURL,
		HTTPClient: hc,
	}
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	tok, err := c.TokenSource.Get(ctx)
	if err != nil {
		return err
	}
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = query.Encode()
	req.Header.Set("Client-Id", c.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.http().Do(req)
	if err != nil {
		return &TransientError{Op: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token died before its declared expiry; next sweep exchanges anew.
		c.TokenSource.Invalidate()
		return &TransientError{Op: path, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return &TransientError{Op: path, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransientError{Op: path, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// GetUserByLogin resolves a login name to its user record, or
// ErrUserNotFound when the login does not exist.
func (c *Client) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	return c.getUser(ctx, "login", strings.ToLower(login))
}

// GetUserByID fetches a user record by stable id.
func (c *Client) GetUserByID(ctx context.Context, id string) (*User, error) {
	return c.getUser(ctx, "id", id)
}

func (c *Client) getUser(ctx context.Context, key, value string) (*User, error) {
	if value == "" {
		return nil, ErrUserNotFound
	}
	q := url.Values{}
	q.Set(key, value)
	var body struct {
		Data []User `json:"data"`
	}
	if err := c.get(ctx, "/users", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return nil, ErrUserNotFound
	}
	return &body.Data[0], nil
}

// GetStream returns the current stream snapshot for a user id. An offline
// channel yields a snapshot with LiveNow=false, not an error.
func (c *Client) GetStream(ctx context.Context, userID string) (*StreamSnapshot, error) {
	if userID == "" {
		return nil, &TransientError{Op: "/streams", Err: fmt.Errorf("empty user id")}
	}
	q := url.Values{}
	q.Set("user_id", userID)
	var body struct {
		Data []struct {
			Type         string `json:"type"`
			Title        string `json:"title"`
			GameName     string `json:"game_name"`
			ViewerCount  int    `json:"viewer_count"`
			ThumbnailURL string `json:"thumbnail_url"`
			StartedAt    string `json:"started_at"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/streams", q, &body); err != nil {
		return nil, err
	}
	if len(body.Data) == 0 {
		return &StreamSnapshot{}, nil
	}
	d := body.Data[0]
	started, _ := time.Parse(time.RFC3339, d.StartedAt)
	return &StreamSnapshot{
		LiveNow:      true,
		Title:        d.Title,
		GameName:     d.GameName,
		ViewerCount:  d.ViewerCount,
		ThumbnailURL: d.ThumbnailURL,
		StartedAt:    started,
	}, nil
}

// ChannelURL is the public page for a login.
func ChannelURL(login string) string {
	return "https://twitch.tv/" + login
}
