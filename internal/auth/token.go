// Package auth emite e valida os tokens JWT da API e os tokens de redefinição de senha.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ericoliveiras/gestao-clientes/internal/cache"
	"github.com/ericoliveiras/gestao-clientes/internal/config"
	"github.com/ericoliveiras/gestao-clientes/internal/model"
	"github.com/ericoliveiras/gestao-clientes/internal/permission"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	// ResetTokenTTL é a validade do token de redefinição de senha.
	ResetTokenTTL = time.Hour
)

var (
	ErrTokenExpired = errors.New("Token expirado")
	ErrTokenInvalid = errors.New("Token inválido")
	ErrTokenRevoked = errors.New("Token revogado")
)

// TokenClaims são as claims dos tokens de acesso e de atualização.
type TokenClaims struct {
	UserID      uint     `json:"user_id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	IsStaff     bool     `json:"is_staff"`
	IsSuperuser bool     `json:"is_superuser"`
	Groups      []string `json:"groups"`
	Permissions []string `json:"permissions"`
	TokenType   string   `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair é o par devolvido no login e no cadastro.
type TokenPair struct {
	Access          string
	Refresh         string
	AccessExpiresAt time.Time
}

type TokenService struct {
	secret        []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	store         cache.Store
	now           func() time.Time
}

func NewTokenService(cfg config.JWTConfig, store cache.Store) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("JWT secret não pode ser vazio")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("refresh secret não pode ser vazio")
	}
	return &TokenService{
		secret:        []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		issuer:        cfg.Issuer,
		store:         store,
		now:           time.Now,
	}, nil
}

// WithClock troca o relógio usado na emissão e na validação.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *TokenService) claimsFor(u *model.Usuario, tokenType string, ttl time.Duration) *TokenClaims {
	now := s.now()
	return &TokenClaims{
		UserID:      u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsStaff:     u.IsStaff,
		IsSuperuser: u.IsSuperuser,
		Groups:      u.GroupNames(),
		Permissions: permission.UserPermissions(u),
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

// IssueAccess assina um token de acesso para o usuário.
func (s *TokenService) IssueAccess(u *model.Usuario) (string, time.Time, error) {
	claims := s.claimsFor(u, TokenTypeAccess, s.accessTTL)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("falha ao assinar token de acesso: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Issue assina o par de tokens de acesso e atualização.
func (s *TokenService) Issue(u *model.Usuario) (*TokenPair, error) {
	access, exp, err := s.IssueAccess(u)
	if err != nil {
		return nil, err
	}
	claims := s.claimsFor(u, TokenTypeRefresh, s.refreshTTL)
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("falha ao assinar refresh token: %w", err)
	}
	return &TokenPair{Access: access, Refresh: refresh, AccessExpiresAt: exp}, nil
}

func (s *TokenService) parse(tokenString string, key []byte, tokenType string) (*TokenClaims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("método de assinatura inesperado: %v", token.Header["alg"])
		}
		return key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid || claims.TokenType != tokenType {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func blacklistKey(jti string) string {
	return "jwt:blacklist:" + jti
}

func (s *TokenService) checkRevoked(ctx context.Context, claims *TokenClaims) error {
	revoked, err := s.store.Exists(ctx, blacklistKey(claims.ID))
	if err != nil {
		return err
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

// ParseAccess valida um token de acesso, incluindo a lista de revogados.
func (s *TokenService) ParseAccess(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.parse(tokenString, s.secret, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *TokenService) ParseRefresh(ctx context.Context, tokenString string) (*TokenClaims, error) {
	claims, err := s.parse(tokenString, s.refreshSecret, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// RevokeRefresh coloca o refresh token na lista de revogados até expirar.
func (s *TokenService) RevokeRefresh(ctx context.Context, tokenString string) error {
	claims, err := s.ParseRefresh(ctx, tokenString)
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.store.Set(ctx, blacklistKey(claims.ID), "1", ttl)
}

func resetKey(token string) string {
	return "password_reset:" + token
}

// NewResetToken gera um token de 32 caracteres válido por uma hora.
func (s *TokenService) NewResetToken(ctx context.Context, userID uint) (string, error) {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.store.Set(ctx, resetKey(token), strconv.FormatUint(uint64(userID), 10), ResetTokenTTL); err != nil {
		return "", err
	}
	return token, nil
}

// ConsumeResetToken devolve o usuário do token e o invalida.
func (s *TokenService) ConsumeResetToken(ctx context.Context, token string) (uint, error) {
	raw, err := s.store.Get(ctx, resetKey(token))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return 0, ErrTokenInvalid
		}
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	if err := s.store.Delete(ctx, resetKey(token)); err != nil {
		return 0, err
	}
	return uint(id), nil
}
