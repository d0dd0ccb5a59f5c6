// Package lobby calls the HTTP endpoints that create rooms and resolve the
// socket server hosting a room.
package lobby

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/wfunc/wordbot/logger"
)

// GameID is the game the bot plays.
const GameID = "bombparty"

const maxTries = 3

var ErrBadResponse = errors.New("unexpected lobby response")

type Client struct {
	startRoomURL string
	joinRoomURL  string
	http         *http.Client
}

func NewClient(startRoomURL, joinRoomURL string, timeout time.Duration) *Client {
	return &Client{
		startRoomURL: startRoomURL,
		joinRoomURL:  joinRoomURL,
		http:         &http.Client{Timeout: timeout},
	}
}

type startRoomRequest struct {
	Name             string `json:"name"`
	IsPublic         bool   `json:"isPublic"`
	GameID           string `json:"gameId"`
	CreatorUserToken string `json:"creatorUserToken"`
}

type startRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type joinRoomResponse struct {
	URL string `json:"url"`
}

// StartRoom creates a room owned by token and returns its code.
func (c *Client) StartRoom(ctx context.Context, name string, public bool, token string) (string, error) {
	var resp startRoomResponse
	req := startRoomRequest{Name: name, IsPublic: public, GameID: GameID, CreatorUserToken: token}
	if err := c.post(ctx, c.startRoomURL, req, &resp); err != nil {
		return "", fmt.Errorf("start room: %w", err)
	}
	if resp.RoomCode == "" {
		return "", fmt.Errorf("start room: %w: missing roomCode", ErrBadResponse)
	}
	logger.Log.Infow("room started", "room", resp.RoomCode, "public", public)
	return resp.RoomCode, nil
}

// JoinRoom returns the socket server url for code.
func (c *Client) JoinRoom(ctx context.Context, code string) (string, error) {
	var resp joinRoomResponse
	if err := c.post(ctx, c.joinRoomURL, joinRoomRequest{RoomCode: code}, &resp); err != nil {
		return "", fmt.Errorf("join room %s: %w", code, err)
	}
	if resp.URL == "" {
		return "", fmt.Errorf("join room %s: %w: missing url", code, ErrBadResponse)
	}
	return resp.URL, nil
}

// post sends body as JSON and decodes the reply into out. Network failures and
// 5xx answers are retried; anything else fails at once.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	op := func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			logger.Log.Warnw("lobby request failed", "url", url, "error", err)
			return struct{}{}, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return struct{}{}, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return struct{}{}, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: %v", ErrBadResponse, err))
		}
		return struct{}{}, nil
	}

	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxTries),
	)
	return err
}

// NewUserToken returns a random 16 character user token.
func NewUserToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
