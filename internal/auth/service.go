package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenResponse follows the OAuth client-credentials response shape.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// Claims identifies the service client behind a request.
type Claims struct {
	ClientID string
	TokenID  string
}

// Service issues and verifies HS256 tokens for configured service clients.
type Service struct {
	secret  []byte
	ttl     time.Duration
	clients map[string][]byte
	now     func() time.Time
}

// NewService builds a token service. clients maps client id to a bcrypt
// hash of its secret. An empty signing secret falls back to a random one
// that lives as long as the process.
func NewService(secret string, ttl time.Duration, clients map[string]string) (*Service, error) {
	key := []byte(strings.TrimSpace(secret))
	if len(key) == 0 {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		key = []byte(base64.RawURLEncoding.EncodeToString(buf))
		log.Print("JWT_SECRET is not set; using ephemeral in-memory fallback secret")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	s := &Service{secret: key, ttl: ttl, clients: make(map[string][]byte, len(clients)), now: time.Now}
	for id, hash := range clients {
		s.clients[id] = []byte(hash)
	}
	return s, nil
}

// IssueToken checks the client secret against its stored hash and returns
// a signed token.
func (s *Service) IssueToken(req TokenRequest) (*TokenResponse, error) {
	hash, ok := s.clients[req.ClientID]
	if !ok {
		// Burn comparable time for unknown clients.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.ClientSecret))
		return nil, ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(req.ClientSecret)); err != nil {
		return nil, ErrInvalidCreds
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   req.ClientID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("signing token: %w", err)
	}
	return &TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: int64(s.ttl.Seconds())}, nil
}

// ParseToken verifies signature and expiry.
func (s *Service) ParseToken(tokenString string) (Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &rc, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}
	if rc.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return Claims{ClientID: rc.Subject, TokenID: rc.ID}, nil
}

// HashSecret produces the bcrypt hash stored in configuration for a client.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}
	return string(hash), nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused"), bcrypt.MinCost)
