package openvidu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/gateway"
	"go.uber.org/zap"
)

const (
	basicAuthUser  = "OPENVIDUAPP"
	apiPrefix      = "/openvidu/api"
	requestTimeout = 15 * time.Second
)

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// Client talks to the OpenVidu REST API. Sessions are created with a custom
// id derived from the reservation so lookups need no local state.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL, secret string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    &http.Client{Timeout: requestTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sessionResponse struct {
	ID          string `json:"id"`
	CreatedAt   int64  `json:"createdAt"`
	Connections struct {
		Content []connectionResponse `json:"content"`
	} `json:"connections"`
}

type connectionResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Role  string `json:"role"`
}

type recordingResponse struct {
	ID        string  `json:"id"`
	SessionID string  `json:"sessionId"`
	Status    string  `json:"status"`
	Size      int64   `json:"size"`
	Duration  float64 `json:"duration"`
	URL       string  `json:"url"`
}

type recordingList struct {
	Items []recordingResponse `json:"items"`
}

func (c *Client) CreateSession(ctx context.Context, reservationID int64) (*domain.SessionHandle, error) {
	body := map[string]any{
		"customSessionId": gateway.SessionName(reservationID),
		"mediaMode":       "ROUTED",
		"recordingMode":   "ALWAYS",
		"defaultRecordingProperties": map[string]any{
			"outputMode": "COMPOSED",
			"hasAudio":   true,
			"hasVideo":   true,
		},
	}
	var out sessionResponse
	status, err := c.do(ctx, http.MethodPost, "/sessions", body, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusConflict {
		return nil, gateway.ErrSessionExists
	}
	return &domain.SessionHandle{
		ReservationID: reservationID,
		SessionID:     out.ID,
		CreatedAt:     time.UnixMilli(out.CreatedAt),
	}, nil
}

func (c *Client) GetSession(ctx context.Context, reservationID int64) (*domain.SessionHandle, bool, error) {
	s, err := c.session(ctx, reservationID)
	if errors.Is(err, gateway.ErrSessionNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &domain.SessionHandle{
		ReservationID: reservationID,
		SessionID:     s.ID,
		CreatedAt:     time.UnixMilli(s.CreatedAt),
	}, true, nil
}

func (c *Client) CreateToken(ctx context.Context, reservationID int64, role domain.Role) (string, error) {
	body := map[string]any{
		"type": "WEBRTC",
		"role": providerRole(role),
		"data": string(role),
	}
	var out connectionResponse
	status, err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(gateway.SessionName(reservationID))+"/connection", body, &out)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", gateway.ErrSessionNotFound
	}
	return out.Token, nil
}

func (c *Client) StopRecording(ctx context.Context, reservationID int64) (*domain.RecordingHandle, error) {
	var list recordingList
	if _, err := c.do(ctx, http.MethodGet, "/recordings", nil, &list); err != nil {
		return nil, err
	}
	sessionID := gateway.SessionName(reservationID)
	for _, rec := range list.Items {
		if rec.SessionID != sessionID || rec.Status != "started" {
			continue
		}
		var out recordingResponse
		status, err := c.do(ctx, http.MethodPost, "/recordings/stop/"+url.PathEscape(rec.ID), nil, &out)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, gateway.ErrRecordingNotFound
		}
		return &domain.RecordingHandle{
			ID:            out.ID,
			ReservationID: reservationID,
			SessionID:     out.SessionID,
			URL:           out.URL,
			Size:          out.Size,
			Duration:      out.Duration,
		}, nil
	}
	return nil, gateway.ErrRecordingNotFound
}

// RemoveToken drops the connection that was handed token. OpenVidu addresses
// connections by id, so the session is read first to resolve it.
func (c *Client) RemoveToken(ctx context.Context, reservationID int64, token string, role domain.Role) error {
	s, err := c.session(ctx, reservationID)
	if err != nil {
		return err
	}
	for _, conn := range s.Connections.Content {
		if conn.Token != token || conn.Role != providerRole(role) {
			continue
		}
		status, err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(s.ID)+"/connection/"+url.PathEscape(conn.ID), nil, nil)
		if err != nil {
			return err
		}
		if status == http.StatusNotFound {
			return gateway.ErrSessionNotFound
		}
		return nil
	}
	c.logger.Warn("token not attached to session", zap.Int64("reservation_id", reservationID))
	return nil
}

func (c *Client) RemoveSession(ctx context.Context, reservationID int64) error {
	status, err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(gateway.SessionName(reservationID)), nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return gateway.ErrSessionNotFound
	}
	return nil
}

func (c *Client) DeleteRecording(ctx context.Context, recordingID string) error {
	status, err := c.do(ctx, http.MethodDelete, "/recordings/"+url.PathEscape(recordingID), nil, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return gateway.ErrRecordingNotFound
	}
	return nil
}

func (c *Client) session(ctx context.Context, reservationID int64) (*sessionResponse, error) {
	var out sessionResponse
	status, err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(gateway.SessionName(reservationID)), nil, &out)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, gateway.ErrSessionNotFound
	}
	return &out, nil
}

// do sends one API call. 404 and 409 are returned as status without error so
// callers can map them; any other non 2xx status is an error.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(basicAuthUser, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("openvidu %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusConflict:
		return resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("openvidu %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func providerRole(role domain.Role) string {
	if role == domain.RoleAgent {
		return "PUBLISHER"
	}
	return "SUBSCRIBER"
}

var _ gateway.VideoGateway = (*Client)(nil)
