// Package local is an in-process VideoGateway. It keeps sessions in memory and
// hands out signed tokens scoped to a session and role. It backs development
// setups and tests.
package local

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Domenick1991/ownbang/internal/domain"
	"github.com/Domenick1991/ownbang/internal/gateway"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "ownbang-local-gateway"

// Claims is the payload of a viewing token.
type Claims struct {
	SessionID string      `json:"sid"`
	Role      domain.Role `json:"role"`
	Publish   bool        `json:"pub"`
	jwt.RegisteredClaims
}

type session struct {
	handle    domain.SessionHandle
	tokens    map[string]domain.Role
	recording *domain.RecordingHandle
}

type Gateway struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu         sync.Mutex
	sessions   map[int64]*session
	recordings map[string]*domain.RecordingHandle
}

func New(secret string, ttl time.Duration) *Gateway {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Gateway{
		secret:     []byte(secret),
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[int64]*session),
		recordings: make(map[string]*domain.RecordingHandle),
	}
}

func (g *Gateway) CreateSession(_ context.Context, reservationID int64) (*domain.SessionHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[reservationID]; ok {
		return nil, gateway.ErrSessionExists
	}
	s := &session{
		handle: domain.SessionHandle{
			ReservationID: reservationID,
			SessionID:     "ses_" + uuid.NewString(),
			CreatedAt:     g.now(),
		},
		tokens: make(map[string]domain.Role),
	}
	s.recording = &domain.RecordingHandle{
		ID:            s.handle.SessionID,
		ReservationID: reservationID,
		SessionID:     s.handle.SessionID,
	}
	g.sessions[reservationID] = s
	handle := s.handle
	return &handle, nil
}

func (g *Gateway) GetSession(_ context.Context, reservationID int64) (*domain.SessionHandle, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[reservationID]
	if !ok {
		return nil, false, nil
	}
	handle := s.handle
	return &handle, true, nil
}

func (g *Gateway) CreateToken(_ context.Context, reservationID int64, role domain.Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", role)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[reservationID]
	if !ok {
		return "", gateway.ErrSessionNotFound
	}

	now := g.now()
	claims := Claims{
		SessionID: s.handle.SessionID,
		Role:      role,
		Publish:   role == domain.RoleAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   strconv.FormatInt(reservationID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	s.tokens[token] = role
	return token, nil
}

// Verify parses a token issued by this gateway and checks it still belongs to
// a live session.
func (g *Gateway) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithTimeFunc(g.now))
	if err != nil {
		return nil, err
	}
	reservationID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad subject: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[reservationID]
	if !ok || s.handle.SessionID != claims.SessionID {
		return nil, gateway.ErrSessionNotFound
	}
	if _, ok := s.tokens[token]; !ok {
		return nil, errors.New("token revoked")
	}
	return claims, nil
}

func (g *Gateway) StopRecording(_ context.Context, reservationID int64) (*domain.RecordingHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[reservationID]
	if !ok {
		return nil, gateway.ErrSessionNotFound
	}
	if s.recording == nil {
		return nil, gateway.ErrRecordingNotFound
	}
	rec := s.recording
	rec.Duration = g.now().Sub(s.handle.CreatedAt).Seconds()
	s.recording = nil
	g.recordings[rec.ID] = rec
	out := *rec
	return &out, nil
}

func (g *Gateway) RemoveToken(_ context.Context, reservationID int64, token string, role domain.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.sessions[reservationID]
	if !ok {
		return gateway.ErrSessionNotFound
	}
	if held, ok := s.tokens[token]; ok && held == role {
		delete(s.tokens, token)
	}
	return nil
}

func (g *Gateway) RemoveSession(_ context.Context, reservationID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.sessions[reservationID]; !ok {
		return gateway.ErrSessionNotFound
	}
	delete(g.sessions, reservationID)
	return nil
}

func (g *Gateway) DeleteRecording(_ context.Context, recordingID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.recordings[recordingID]; !ok {
		return gateway.ErrRecordingNotFound
	}
	delete(g.recordings, recordingID)
	return nil
}

var _ gateway.VideoGateway = (*Gateway)(nil)
