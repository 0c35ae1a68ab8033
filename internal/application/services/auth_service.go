package services

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/whattodo/core/internal/domain/entities"
	"github.com/whattodo/core/internal/infrastructure/config"
	"github.com/whattodo/core/internal/infrastructure/logger"
	"github.com/whattodo/core/internal/ports"
)

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// AuthService tracks the signed-in user. Sessions are HS256 tokens issued
// elsewhere (or by IssueToken); the service only verifies them and tells
// subscribers when the session changes.
type AuthService struct {
	jwtConfig config.JWTConfig
	logger    *logger.Logger
	now       func() time.Time

	mu          sync.Mutex
	state       ports.AuthState
	subscribers map[int]func(ports.AuthState)
	nextID      int
}

// NewAuthService creates a new auth service
func NewAuthService(jwtConfig config.JWTConfig, log *logger.Logger) *AuthService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthService{
		jwtConfig:   jwtConfig,
		logger:      log.WithComponent("auth"),
		now:         time.Now,
		subscribers: make(map[int]func(ports.AuthState)),
	}
}

// Current returns the session state.
func (s *AuthService) Current() ports.AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for session changes.
func (s *AuthService) Subscribe(fn func(ports.AuthState)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// SignIn verifies token and makes its user the signed-in one.
func (s *AuthService) SignIn(token string) (ports.AuthState, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		s.logger.LogSecurityEvent("invalid_token", "", "", map[string]interface{}{
			"error": err.Error(),
		})
		return ports.AuthState{}, err
	}

	state := ports.AuthState{UserID: claims.UserID, SignedIn: true}
	s.setState(state)
	s.logger.WithUserID(claims.UserID).Info("User signed in")
	return state, nil
}

// SignOut clears the session.
func (s *AuthService) SignOut() {
	s.setState(ports.AuthState{})
	s.logger.Info("User signed out")
}

func (s *AuthService) setState(state ports.AuthState) {
	s.mu.Lock()
	s.state = state
	ids := make([]int, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	fns := make([]func(ports.AuthState), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.subscribers[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// ValidateToken parses and verifies a session token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtConfig.Secret), nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", entities.ErrInvalidToken)
	}

	return claims, nil
}

// IssueToken signs a session token for userID.
func (s *AuthService) IssueToken(userID string) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtConfig.ExpiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.jwtConfig.Issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.jwtConfig.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}
