package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/config"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/service"
)

// Interface guards
var (
	_ service.Identity         = (*Client)(nil)
	_ service.Directory        = (*Client)(nil)
	_ service.ChannelDeliverer = (*Client)(nil)
)

// Client talks to the clinic platform's internal API. It backs three ports:
// identity verification at connect time, the user directory, and the
// secondary-channel gateway (email/sms/push).
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(cfg *config.Config) *Client {
	return &Client{
		baseURL: cfg.Platform.BaseURL,
		token:   cfg.Platform.Token,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   model.Role `json:"role"`
	Active bool       `json:"active"`
}

// Verify resolves an opaque session token to a principal. Any negative
// outcome, including an inactive account, maps to an authentication error;
// the transport never learns why a token was bad.
func (c *Client) Verify(ctx context.Context, token string) (model.Principal, error) {
	if token == "" {
		return model.Principal{}, model.ErrAuthentication("missing token")
	}

	var res verifyResponse
	err := c.post(ctx, "/internal/v1/auth/verify", verifyRequest{Token: token}, &res)
	if err != nil {
		if apiStatus(err) == http.StatusUnauthorized {
			return model.Principal{}, model.ErrAuthentication("token rejected")
		}
		return model.Principal{}, err
	}
	if !res.Active {
		return model.Principal{}, model.ErrAuthentication("account inactive")
	}
	return model.Principal{UserID: res.UserID, Role: res.Role, Active: res.Active}, nil
}

type profileResponse struct {
	UserID uuid.UUID  `json:"user_id"`
	Name   string     `json:"name"`
	Role   model.Role `json:"role"`
}

func (c *Client) Profile(ctx context.Context, userID uuid.UUID) (model.Profile, error) {
	var res profileResponse
	err := c.get(ctx, "/internal/v1/users/"+userID.String(), &res)
	if err != nil {
		if apiStatus(err) == http.StatusNotFound {
			return model.Profile{}, model.ErrNotFound("user not found")
		}
		return model.Profile{}, err
	}
	return model.Profile{UserID: res.UserID, Name: res.Name, Role: res.Role}, nil
}

// Responders returns the on-call emergency roster.
func (c *Client) Responders(ctx context.Context) ([]model.Profile, error) {
	var res struct {
		Users []profileResponse `json:"users"`
	}
	q := url.Values{"roster": {"emergency"}}
	if err := c.get(ctx, "/internal/v1/users?"+q.Encode(), &res); err != nil {
		return nil, err
	}
	out := make([]model.Profile, 0, len(res.Users))
	for _, u := range res.Users {
		out = append(out, model.Profile{UserID: u.UserID, Name: u.Name, Role: u.Role})
	}
	return out, nil
}

// Deliver hands a notification job to the platform's channel gateway, which
// picks email, sms or push per the recipient's preferences.
func (c *Client) Deliver(ctx context.Context, job service.ChannelJob) error {
	return c.post(ctx, "/internal/v1/notify", job, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return &apiError{status: res.StatusCode, path: req.URL.Path}
	}
	if out == nil {
		io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("platform: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

type apiError struct {
	status int
	path   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("platform: %s returned %d", e.path, e.status)
}

func apiStatus(err error) int {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status
	}
	return 0
}
