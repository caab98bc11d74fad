package realtime

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
)

// FullAccess lets a session read and write room storage and presence.
const FullAccess = "room:write"

// maxResponseBytes bounds how much of an upstream reply we are willing to
// hold and forward.
const maxResponseBytes = 1 << 20

// ErrResponseTooLarge is returned instead of a truncated credential.
var ErrResponseTooLarge = errors.New("realtime response exceeds size limit")

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type UserInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// SessionRequest asks the service to sign a credential for one user.
// Permissions maps a room id to the permission scopes granted in it.
type SessionRequest struct {
	UserID      string              `json:"userId"`
	UserInfo    UserInfo            `json:"userInfo"`
	GroupIDs    []string            `json:"groupIds,omitempty"`
	Permissions map[string][]string `json:"permissions"`
}

// SessionResponse is the service's answer, kept opaque.
type SessionResponse struct {
	Status      int
	ContentType string
	Body        []byte
}

// Authorize calls the service's authorize-user endpoint. Any HTTP answer,
// including non-2xx, is returned as-is; only transport failures are errors.
func (c *Client) Authorize(ctx context.Context, session SessionRequest) (*SessionResponse, error) {
	body, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/v2/authorize-user",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("realtime authorize: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("realtime authorize: read body: %w", err)
	}
	if len(payload) > maxResponseBytes {
		return nil, fmt.Errorf("realtime authorize: %w", ErrResponseTooLarge)
	}

	return &SessionResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}, nil
}

// DeleteRoom drops a room and its stored state. A room that never existed
// counts as deleted.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodDelete,
		c.baseURL+"/v2/rooms/"+url.PathEscape(roomID),
		nil,
	)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf(
			"realtime delete room error: status=%d body=%s",
			resp.StatusCode,
			string(b),
		)
	}

	return nil
}
