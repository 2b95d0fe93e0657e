// Package playerhttp implements the player.Backend contract against the
// reviewd REST API.
package playerhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/lpedia/review-player/pkg/player"
)

type Client struct {
	base  string
	token string
	http  *http.Client
}

type Config struct {
	// BaseURL is the reviewd root, e.g. https://lms.example.com.
	BaseURL string
	// Token is a bearer token obtained from /auth/login. Ignored when the
	// OAuth fields are set.
	Token string

	// Client-credentials grant for machine callers.
	TokenURL     string
	ClientID     string
	ClientSecret string

	Timeout time.Duration
}

func New(cfg Config) *Client {
	var h *http.Client
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		h = cc.Client(context.Background())
	} else {
		h = &http.Client{}
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}
	return &Client{
		base:  strings.TrimRight(cfg.BaseURL, "/"),
		token: cfg.Token,
		http:  h,
	}
}

var _ player.Backend = (*Client)(nil)

type sessionPayload struct {
	Package  player.Package `json:"package"`
	Attempt  player.Attempt `json:"attempt"`
	MediaURL string         `json:"media_url,omitempty"`
}

func (c *Client) FetchSession(ctx context.Context, packageID string) (player.Package, player.Attempt, error) {
	var payload sessionPayload
	err := c.do(ctx, "GET", "/packages/"+url.PathEscape(packageID)+"/session", nil, &payload)
	if err != nil {
		return player.Package{}, player.Attempt{}, err
	}
	// A direct source plays through the signed media URL, not the raw
	// locator.
	if payload.MediaURL != "" {
		payload.Package.Source.Locator = payload.MediaURL
	}
	return payload.Package, payload.Attempt, nil
}

func (c *Client) ReportProgress(ctx context.Context, attemptID string, snap player.ProgressSnapshot) (player.Attempt, error) {
	var attempt player.Attempt
	err := c.do(ctx, "POST", "/attempts/"+url.PathEscape(attemptID)+"/progress", snap, &attempt)
	return attempt, err
}

func (c *Client) SubmitAnswer(ctx context.Context, attemptID, checkpointID string, selected int) (player.Attempt, error) {
	body := map[string]any{"checkpoint_id": checkpointID, "selected_index": selected}
	var attempt player.Attempt
	err := c.do(ctx, "POST", "/attempts/"+url.PathEscape(attemptID)+"/answers", body, &attempt)
	return attempt, err
}

type finalizePayload struct {
	Attempt player.Attempt `json:"attempt"`
	Report  player.Report  `json:"report"`
}

func (c *Client) Finalize(ctx context.Context, attemptID string) (player.Attempt, player.Report, error) {
	var payload finalizePayload
	err := c.do(ctx, "POST", "/attempts/"+url.PathEscape(attemptID)+"/finalize", nil, &payload)
	if err != nil {
		return player.Attempt{}, player.Report{}, err
	}
	return payload.Attempt, payload.Report, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return statusError(res)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

// statusError maps the API's error responses onto the engine's sentinels so
// callers can branch on errors.Is.
func statusError(res *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = res.Status
	}
	switch res.StatusCode {
	case http.StatusConflict:
		if strings.Contains(msg, "finalized") {
			return fmt.Errorf("%s: %w", msg, player.ErrFinalized)
		}
		return fmt.Errorf("%s: %w", msg, player.ErrNotEligible)
	case http.StatusBadRequest:
		return fmt.Errorf("%s: %w", msg, player.ErrBadSelection)
	default:
		return fmt.Errorf("%s %s: %s", res.Request.Method, res.Request.URL.Path, msg)
	}
}
