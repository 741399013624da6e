package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/matti-app/matti/backend/internal/model/user"
	"github.com/matti-app/matti/backend/internal/store"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenRevoked    = errors.New("refresh token revoked or expired")
	ErrMissingIdentity = errors.New("user identity is required")
	ErrMissingSecret   = errors.New("cookie secret is not configured")
)

const (
	issuer = "matti"

	kindAccess  = "access"
	kindRefresh = "refresh"
)

// Claims are carried by both token kinds.
type Claims struct {
	OpenID string    `json:"openId"`
	Name   string    `json:"name,omitempty"`
	Role   user.Role `json:"role"`
	Kind   string    `json:"kind"`
	jwt.RegisteredClaims
}

// TokenPair is an access and refresh token with their expiry.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Options configures token lifetimes and the admin identity.
type Options struct {
	Secret      string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	OwnerOpenID string
	Now         func() time.Time
}

// Service issues and validates session tokens. Refresh tokens are single use:
// only the hash of the latest one is stored per user.
type Service struct {
	db          *store.DB
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	ownerOpenID string
	now         func() time.Time
}

// NewService creates the token service.
func NewService(db *store.DB, opts Options) (*Service, error) {
	if opts.Secret == "" {
		return nil, ErrMissingSecret
	}
	s := &Service{
		db:          db,
		secret:      []byte(opts.Secret),
		accessTTL:   opts.AccessTTL,
		refreshTTL:  opts.RefreshTTL,
		ownerOpenID: opts.OwnerOpenID,
		now:         opts.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = 15 * time.Minute
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = 30 * 24 * time.Hour
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func (s *Service) roleFor(openID string) user.Role {
	if s.ownerOpenID != "" && openID == s.ownerOpenID {
		return user.RoleAdmin
	}
	return user.RoleUser
}

// SignIn upserts the user behind openID and issues a fresh token pair.
func (s *Service) SignIn(ctx context.Context, openID string, name *string) (user.User, TokenPair, error) {
	openID = strings.TrimSpace(openID)
	if openID == "" {
		return user.User{}, TokenPair{}, ErrMissingIdentity
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		name = &trimmed
		if trimmed == "" {
			name = nil
		}
	}

	u, err := s.db.UpsertUser(ctx, openID, name, s.roleFor(openID), s.now())
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	pair, err := s.issue(ctx, u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	zerolog.Ctx(ctx).Info().Str("component", "auth").Str("role", string(u.Role)).Msg("user signed in")
	return u, pair, nil
}

func (s *Service) issue(ctx context.Context, u user.User) (TokenPair, error) {
	now := s.now()
	name := ""
	if u.Name != nil {
		name = *u.Name
	}

	pair := TokenPair{
		AccessExpiresAt:  now.Add(s.accessTTL),
		RefreshExpiresAt: now.Add(s.refreshTTL),
	}

	var err error
	pair.AccessToken, err = s.sign(Claims{
		OpenID: u.OpenID,
		Name:   name,
		Role:   u.Role,
		Kind:   kindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.OpenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(pair.AccessExpiresAt),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	jti := uuid.NewString()
	pair.RefreshToken, err = s.sign(Claims{
		OpenID: u.OpenID,
		Role:   u.Role,
		Kind:   kindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.OpenID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(pair.RefreshExpiresAt),
		},
	})
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.db.SaveRefreshToken(ctx, u.OpenID, hashToken(jti), pair.RefreshExpiresAt, now); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Service) sign(c Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) parse(tokenString, kind string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Kind != kind || claims.OpenID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate validates an access token.
func (s *Service) Authenticate(tokenString string) (*Claims, error) {
	return s.parse(tokenString, kindAccess)
}

// Refresh rotates a refresh token into a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (user.User, TokenPair, error) {
	claims, err := s.parse(refreshToken, kindRefresh)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	stored, expiresAt, err := s.db.RefreshToken(ctx, claims.OpenID)
	if errors.Is(err, store.ErrNotFound) {
		return user.User{}, TokenPair{}, ErrTokenRevoked
	}
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	if stored != hashToken(claims.ID) || !s.now().Before(expiresAt) {
		return user.User{}, TokenPair{}, ErrTokenRevoked
	}

	u, err := s.db.UserByOpenID(ctx, claims.OpenID)
	if errors.Is(err, store.ErrNotFound) {
		return user.User{}, TokenPair{}, ErrTokenRevoked
	}
	if err != nil {
		return user.User{}, TokenPair{}, err
	}

	pair, err := s.issue(ctx, u)
	if err != nil {
		return user.User{}, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout revokes the user's refresh token.
func (s *Service) Logout(ctx context.Context, openID string) error {
	return s.db.DeleteRefreshToken(ctx, openID)
}

// User loads the account behind an authenticated open id.
func (s *Service) User(ctx context.Context, openID string) (user.User, error) {
	return s.db.UserByOpenID(ctx, openID)
}
